package shopAuth

import (
	"errors"
	"net/http"
	"strconv"
)

// ErrorKind is one of the fixed, externally visible failure classes. Every
// error an Engine operation returns is an *Error carrying one of these.
type ErrorKind string

const (
	KindValidation            ErrorKind = "VALIDATION"
	KindRateLimited           ErrorKind = "RATE_LIMITED"
	KindAccountLocked         ErrorKind = "ACCOUNT_LOCKED"
	KindInvalidCredentials    ErrorKind = "INVALID_CREDENTIALS"
	KindEmailNotVerified      ErrorKind = "EMAIL_NOT_VERIFIED"
	KindInvalidOrExpiredToken ErrorKind = "INVALID_OR_EXPIRED_TOKEN"
	KindUnauthorized          ErrorKind = "UNAUTHORIZED"
	KindInternal              ErrorKind = "INTERNAL"
)

// Error is the public failure type. Internal distinctions are discarded
// before an Error is built: two failures with the same Kind and Message are
// indistinguishable to callers.
type Error struct {
	Kind    ErrorKind
	Message string
	// RetryAfter is set for RATE_LIMITED and ACCOUNT_LOCKED, in whole seconds.
	RetryAfter int
	// Fields carries per-field messages for VALIDATION.
	Fields map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.RetryAfter > 0 {
		return string(e.Kind) + ": " + e.Message + " (retry after " + strconv.Itoa(e.RetryAfter) + "s)"
	}
	return string(e.Kind) + ": " + e.Message
}

// Is matches any *Error of the same Kind, so errors.Is(err, ErrRateLimited)
// holds whatever the retry-after value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// HTTPStatus maps the kind to its HTTP status code.
func (e *Error) HTTPStatus() int {
	if e == nil {
		return http.StatusOK
	}
	switch e.Kind {
	case KindValidation, KindInvalidOrExpiredToken:
		return http.StatusBadRequest
	case KindRateLimited, KindAccountLocked:
		return http.StatusTooManyRequests
	case KindInvalidCredentials, KindUnauthorized:
		return http.StatusUnauthorized
	case KindEmailNotVerified:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrValidation            = &Error{Kind: KindValidation, Message: "invalid request"}
	ErrRateLimited           = &Error{Kind: KindRateLimited, Message: "too many attempts, try again later"}
	ErrAccountLocked         = &Error{Kind: KindAccountLocked, Message: "too many failed attempts, try again later"}
	ErrInvalidCredentials    = &Error{Kind: KindInvalidCredentials, Message: "invalid email or password"}
	ErrEmailNotVerified      = &Error{Kind: KindEmailNotVerified, Message: "email address has not been verified"}
	ErrInvalidOrExpiredToken = &Error{Kind: KindInvalidOrExpiredToken, Message: "token is invalid or has expired"}
	ErrUnauthorized          = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrInternal              = &Error{Kind: KindInternal, Message: "internal error"}

	// ErrRegistrationFailed is returned for every registration failure that
	// must not reveal whether the email or username is taken.
	ErrRegistrationFailed = &Error{Kind: KindValidation, Message: "registration could not be completed"}
)

func validationError(fields map[string]string) error {
	return &Error{Kind: KindValidation, Message: ErrValidation.Message, Fields: fields}
}

func deniedError(kind ErrorKind, retryAfter int) error {
	msg := ErrRateLimited.Message
	if kind == KindAccountLocked {
		msg = ErrAccountLocked.Message
	}
	if retryAfter < 1 {
		retryAfter = 1
	}
	return &Error{Kind: kind, Message: msg, RetryAfter: retryAfter}
}

// AsError extracts the *Error from err, mapping anything else to ErrInternal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}
