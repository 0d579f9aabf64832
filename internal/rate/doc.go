// Package rate implements the fixed-window attempt counter with lockout
// escalation used in front of every credential-bearing operation.
//
// # Window semantics
//
// A check against an active lock is denied with [ErrLocked]. Otherwise, if the
// window started by the first attempt has elapsed, the counter restarts at 1.
// Otherwise it is incremented; exceeding MaxAttempts sets LockedUntil and the
// attempt is denied with [ErrRateLimited].
//
// The whole read-modify-write runs atomically per key inside a [Store]:
// [MemoryStore] holds a shard mutex, [RedisStore] runs one Lua script.
//
// # What this package must NOT do
//
//   - Decide which identifier a purpose is keyed by (the flows do).
//   - Be imported outside the shopAuth module.
package rate
