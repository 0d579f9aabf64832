// Package sessions manages refresh-token backed login sessions.
//
// # State machine
//
//	CREATED -> ACTIVE (refresh, self-loop) -> REVOKED | EXPIRED
//
// REVOKED and EXPIRED are terminal. Expiry is detected passively at lookup
// time; CleanupExpired purges terminal rows in batches.
//
// # Refresh tokens
//
// A refresh token is base64url(session id || 32-byte secret). Only the
// SHA-256 of the secret is stored; lookups compare hashes in constant time.
package sessions
