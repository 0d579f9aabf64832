package rate

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const memoryShardCount = 32

type memoryEntry struct {
	record    Record
	expiresAt time.Time
}

type memoryShard struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// MemoryStore is a single-process Store. Keys are spread over shards, each
// guarded by its own mutex, so Hit is atomic per key.
type MemoryStore struct {
	shards [memoryShardCount]memoryShard
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]memoryEntry)
	}
	return s
}

func (s *MemoryStore) shard(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%memoryShardCount]
}

func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, p Policy) (HitResult, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, exists := sh.entries[key]
	if exists && !now.Before(entry.expiresAt) {
		exists = false
	}

	rec, status := apply(entry.record, exists, now, p)
	if status != StatusLocked {
		sh.entries[key] = memoryEntry{record: rec, expiresAt: expiry(rec, p)}
	}

	return HitResult{Record: rec, Status: status}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (Record, bool, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := sh.entries[key]
	if !ok {
		return Record{}, false, nil
	}
	return entry.record, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	sh := s.shard(key)
	sh.mu.Lock()
	delete(sh.entries, key)
	sh.mu.Unlock()
	return nil
}

// Sweep removes records whose window and lock have both elapsed at now and
// returns the number removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, entry := range sh.entries {
			if !now.Before(entry.expiresAt) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
