// Package tokens issues and redeems the single-use tokens behind email
// verification and password reset.
//
// A token is ISSUED on Create and ends either CONSUMED (Consume) or EXPIRED
// (detected at lookup). Verify and Consume collapse every failure into
// [ErrInvalidOrExpired] so callers cannot tell a missing token from a used one.
package tokens
