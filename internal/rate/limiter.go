package rate

import (
	"context"
	"time"
)

// Policy configures one purpose. KeyPrefix namespaces the purpose so that an
// IP's login counter never collides with its registration counter.
type Policy struct {
	Purpose     string
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
	KeyPrefix   string
}

// Validate reports an error for unusable policies.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 || p.Window <= 0 || p.Lockout < 0 || p.KeyPrefix == "" {
		return ErrInvalidPolicy
	}
	return nil
}

func (p Policy) key(identifier string) string {
	return p.KeyPrefix + identifier
}

// Record is the persisted counter state of one key.
type Record struct {
	Count       int
	WindowStart time.Time
	LockedUntil time.Time
}

// Status is the outcome of a single hit.
type Status uint8

const (
	StatusAllowed Status = iota
	StatusBreached
	StatusLocked
)

// HitResult is returned by a Store after applying one attempt.
type HitResult struct {
	Record Record
	Status Status
}

// Store is the key-value counter abstraction. Hit must apply the whole
// check-and-increment step atomically for key.
type Store interface {
	Hit(ctx context.Context, key string, now time.Time, p Policy) (HitResult, error)
	Get(ctx context.Context, key string) (Record, bool, error)
	Delete(ctx context.Context, key string) error
}

// Decision is the result of an admitted check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter applies policies against a Store.
type Limiter struct {
	store Store
	now   func() time.Time
}

// New creates a Limiter over store.
func New(store Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// NewWithClock creates a Limiter that reads time from now.
func NewWithClock(store Store, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{store: store, now: now}
}

// Check records one attempt for identifier under p. Denials are returned as
// *DeniedError.
func (l *Limiter) Check(ctx context.Context, p Policy, identifier string) (Decision, error) {
	if err := p.Validate(); err != nil {
		return Decision{}, err
	}

	now := l.now()
	res, err := l.store.Hit(ctx, p.key(identifier), now, p)
	if err != nil {
		return Decision{}, err
	}

	rec := res.Record
	switch res.Status {
	case StatusLocked:
		return Decision{ResetAt: rec.LockedUntil}, &DeniedError{Reason: ErrLocked, RetryAfter: rec.LockedUntil.Sub(now)}
	case StatusBreached:
		return Decision{ResetAt: rec.LockedUntil}, &DeniedError{Reason: ErrRateLimited, RetryAfter: rec.LockedUntil.Sub(now)}
	}

	return Decision{
		Allowed:   true,
		Remaining: p.MaxAttempts - rec.Count,
		ResetAt:   rec.WindowStart.Add(p.Window),
	}, nil
}

// Clear deletes the record so a later legitimate attempt starts fresh.
func (l *Limiter) Clear(ctx context.Context, p Policy, identifier string) error {
	return l.store.Delete(ctx, p.key(identifier))
}

// Attempts returns the current record for identifier, if any.
func (l *Limiter) Attempts(ctx context.Context, p Policy, identifier string) (Record, bool, error) {
	return l.store.Get(ctx, p.key(identifier))
}

// apply is the reference transition used by MemoryStore. RedisStore mirrors
// it in Lua.
func apply(rec Record, exists bool, now time.Time, p Policy) (Record, Status) {
	if exists && rec.LockedUntil.After(now) {
		return rec, StatusLocked
	}
	if !exists || !now.Before(rec.WindowStart.Add(p.Window)) {
		return Record{Count: 1, WindowStart: now}, StatusAllowed
	}
	rec.Count++
	if rec.Count > p.MaxAttempts {
		rec.LockedUntil = now.Add(p.Lockout)
		return rec, StatusBreached
	}
	return rec, StatusAllowed
}

func expiry(rec Record, p Policy) time.Time {
	end := rec.WindowStart.Add(p.Window)
	if rec.LockedUntil.After(end) {
		return rec.LockedUntil
	}
	return end
}
