package rate

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrRateLimited is reported on the attempt that breaches the policy.
	ErrRateLimited = errors.New("rate limited")
	// ErrLocked is reported while a lockout is active.
	ErrLocked = errors.New("locked out")
	// ErrStoreUnavailable wraps counter backend failures.
	ErrStoreUnavailable = errors.New("rate store unavailable")
	// ErrInvalidPolicy is returned for policies with non-positive limits.
	ErrInvalidPolicy = errors.New("invalid rate policy")
)

// DeniedError carries the retry hint of a denied check. It unwraps to
// ErrRateLimited or ErrLocked.
type DeniedError struct {
	Reason     error
	RetryAfter time.Duration
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%v: retry after %ds", e.Reason, e.RetryAfterSeconds())
}

func (e *DeniedError) Unwrap() error {
	return e.Reason
}

// RetryAfterSeconds rounds the retry hint up to whole seconds, minimum 1.
func (e *DeniedError) RetryAfterSeconds() int {
	if e == nil || e.RetryAfter <= 0 {
		return 1
	}
	s := int(math.Ceil(e.RetryAfter.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
