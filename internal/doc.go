// Package internal contains helpers private to shopAuth, chiefly the opaque
// token codec shared by one-time tokens and refresh tokens.
//
// # Sub-packages
//
//   - audit: audit log, async dispatcher and sinks
//   - flows: flow orchestrators for every Engine operation
//   - rate: fixed-window limiter with lockout over memory or Redis stores
//   - sessions: refresh-token backed session manager
//   - tokens: single-use verification and reset tokens
//   - worker: periodic maintenance janitor
//
// # What this package must NOT do
//
//   - Export types that appear in the public shopAuth API.
//   - Be imported by any package outside the shopAuth module.
package internal
