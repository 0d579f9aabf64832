// Package store defines the persistent-store records and interfaces consumed by
// the shopAuth core.
//
// The core owns [Token], [Session] and [AuditEvent] and references [Profile]
// only by id. Implementations live under storage/ (memory, postgres) or in the
// host application.
//
// # Conditional updates
//
// Every mutation that guards a security decision is a conditional update:
// MarkUsed only succeeds while used_at is unset and the token is unexpired,
// MarkUsedExclusive does the same and retires every sibling in the same step,
// Revoke and RotateRefresh only touch rows that are still active. Two
// concurrent callers can never both pass the same guard.
package store
