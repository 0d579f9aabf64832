package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript mirrors apply(). Times are unix milliseconds.
// Returns {status, count, window_start, locked_until}.
var hitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local max = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local lockout = tonumber(ARGV[4])

local rec = redis.call("HMGET", KEYS[1], "c", "ws", "lu")
local count = tonumber(rec[1])
local ws = tonumber(rec[2]) or 0
local lu = tonumber(rec[3]) or 0

if count ~= nil and lu > now then
	return {2, count, ws, lu}
end

local status = 0
if count == nil or now >= ws + window then
	count = 1
	ws = now
	lu = 0
else
	count = count + 1
	if count > max then
		lu = now + lockout
		status = 1
	end
end

redis.call("HSET", KEYS[1], "c", count, "ws", ws, "lu", lu)
local ttl = ws + window
if lu > ttl then
	ttl = lu
end
ttl = ttl - now
if ttl < 1 then
	ttl = 1
end
redis.call("PEXPIRE", KEYS[1], ttl)
return {status, count, ws, lu}
`)

// RedisStore is a Store shared across processes. Key TTLs replace the
// background sweep.
type RedisStore struct {
	redis redis.UniversalClient
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{redis: client}
}

func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, p Policy) (HitResult, error) {
	vals, err := hitScript.Run(ctx, s.redis, []string{key},
		now.UnixMilli(),
		p.MaxAttempts,
		p.Window.Milliseconds(),
		p.Lockout.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return HitResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(vals) != 4 {
		return HitResult{}, fmt.Errorf("%w: unexpected script reply", ErrStoreUnavailable)
	}

	return HitResult{
		Status: Status(vals[0]),
		Record: Record{
			Count:       int(vals[1]),
			WindowStart: time.UnixMilli(vals[2]),
			LockedUntil: millisOrZero(vals[3]),
		},
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (Record, bool, error) {
	vals, err := s.redis.HMGet(ctx, key, "c", "ws", "lu").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(vals) != 3 || vals[0] == nil {
		return Record{}, false, nil
	}

	count := parseInt(vals[0])
	return Record{
		Count:       int(count),
		WindowStart: time.UnixMilli(parseInt(vals[1])),
		LockedUntil: millisOrZero(parseInt(vals[2])),
	}, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func parseInt(v interface{}) int64 {
	str, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func millisOrZero(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
