// Package flows contains the orchestrators behind every Engine operation.
//
// Each Run function takes the shared [Deps] and coordinates the rate limiter,
// token service, session manager, audit log and external collaborators for
// one operation. Flows hold no state between calls; the Engine builds Deps
// once and owns every resource in it.
//
// Flows never build public errors themselves. Every failure leaves through
// one of the host-supplied values in [Errors], so the set of externally
// visible outcomes is fixed in one place.
//
// # What this package must NOT do
//
//   - Import shopAuth (to avoid import cycles).
//   - Return a collaborator error to the caller unmapped.
//   - Let an audit failure change the outcome of a flow.
package flows
