package shopAuth

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := deniedError(KindAccountLocked, 90)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatal("locked error must match ErrAccountLocked")
	}
	if errors.Is(err, ErrRateLimited) {
		t.Fatal("kinds must not cross-match")
	}

	wrapped := fmt.Errorf("login: %w", validationError(map[string]string{"email": "is required"}))
	if !errors.Is(wrapped, ErrValidation) || !errors.Is(wrapped, ErrRegistrationFailed) {
		t.Fatal("validation errors share one kind")
	}
	if pub := AsError(wrapped); pub.Fields["email"] == "" {
		t.Fatalf("AsError must unwrap, got %+v", pub)
	}
	if AsError(errors.New("boom")) != ErrInternal {
		t.Fatal("foreign errors map to ErrInternal")
	}
	if AsError(nil) != nil {
		t.Fatal("nil stays nil")
	}
}

func TestDeniedErrorRetryAfterFloor(t *testing.T) {
	pub := AsError(deniedError(KindRateLimited, 0))
	if pub.RetryAfter != 1 {
		t.Fatalf("retry-after must be at least 1, got %d", pub.RetryAfter)
	}
	if pub.Error() != "RATE_LIMITED: too many attempts, try again later (retry after 1s)" {
		t.Fatalf("unexpected message %q", pub.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[*Error]int{
		ErrValidation:            http.StatusBadRequest,
		ErrInvalidOrExpiredToken: http.StatusBadRequest,
		ErrRateLimited:           http.StatusTooManyRequests,
		ErrAccountLocked:         http.StatusTooManyRequests,
		ErrInvalidCredentials:    http.StatusUnauthorized,
		ErrUnauthorized:          http.StatusUnauthorized,
		ErrEmailNotVerified:      http.StatusForbidden,
		ErrInternal:              http.StatusInternalServerError,
		ErrEngineNotReady:        http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := err.HTTPStatus(); got != want {
			t.Fatalf("%s: status %d, want %d", err.Kind, got, want)
		}
	}
}
