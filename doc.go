// Package shopAuth is the authentication and session-security core of a
// social-commerce platform.
//
// Build an [Engine] with [New] and [Builder.Build]. The Engine registers
// accounts, authenticates logins, issues access tokens with refresh-token
// backed sessions, runs email verification and password reset, and records
// every security-relevant outcome in an audit log. Failures leave the Engine
// only as [*Error] values of a fixed set of kinds; credential failures are
// indistinguishable whether or not the account exists.
//
// # Architecture boundaries
//
// shopAuth is the public surface. Rate limiting, one-time tokens, sessions,
// audit persistence and flow orchestration live under internal/. Persistence
// is reached only through the interfaces in package store, credentials only
// through [IdentityProvider], and delivery only through [Notifier].
//
// # What this package must NOT do
//
//   - Hash passwords itself (the identity provider owns credentials).
//   - Return collaborator errors unmapped.
//   - Import any sub-package that re-imports shopAuth (no import cycles).
package shopAuth
