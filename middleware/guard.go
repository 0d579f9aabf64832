package middleware

import (
	"context"
	"net/http"
	"strings"

	shopAuth "github.com/MrEthical07/shopAuth"
)

// Validator verifies access tokens. *shopAuth.Engine satisfies it.
type Validator interface {
	Validate(ctx context.Context, token string, mode shopAuth.ValidationMode) (*shopAuth.AccessClaims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims a guard stored on the request.
func ClaimsFromContext(ctx context.Context) (*shopAuth.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*shopAuth.AccessClaims)
	return claims, ok
}

// WithClaims stores claims on ctx the way a guard does. It is meant for
// handler tests.
func WithClaims(ctx context.Context, claims *shopAuth.AccessClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// Guard rejects requests without a valid Bearer access token. Engine
// failures answer 500; every other rejection answers 401.
func Guard(v Validator, mode shopAuth.ValidationMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.Validate(r.Context(), token, mode)
			if err != nil {
				if shopAuth.AsError(err).Kind == shopAuth.KindInternal {
					http.Error(w, "internal error", http.StatusInternalServerError)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// BearerToken extracts the token of an "Authorization: Bearer" header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
