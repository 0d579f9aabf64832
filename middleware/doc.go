// Package middleware exposes HTTP guards that validate Bearer access tokens
// through a shopAuth Engine.
//
// # Guards
//
//   - [Guard] validates in the given mode.
//   - [RequireJWTOnly] checks the signature only.
//   - [RequireStrict] also checks that the session is still active.
//
// Each guard reads the Authorization header, calls Validate and stores the
// claims on the request context for [ClaimsFromContext].
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access the session store.
//   - Make authorization decisions beyond pass or reject.
package middleware
