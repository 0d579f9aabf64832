// Package httpapi is the JSON-over-HTTP surface of a shopAuth Engine.
//
// [NewRouter] mounts the /auth routes on a chi router. Every error is an
// *shopAuth.Error rendered as {"error": {...}} with the status of its kind and,
// for RATE_LIMITED and ACCOUNT_LOCKED, a Retry-After header. A coarse per-IP
// token bucket ([EdgeLimiter]) sits in front of all routes; the Engine's own
// per-purpose limits still apply behind it.
//
// # What this package must NOT do
//
//   - Make authentication decisions. Handlers translate HTTP into Engine calls.
//   - Leak internal error details into responses.
package httpapi
