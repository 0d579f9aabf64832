package middleware

import (
	"net/http"

	shopAuth "github.com/MrEthical07/shopAuth"
)

// RequireJWTOnly trusts the token signature until expiry and never touches
// the session store.
func RequireJWTOnly(v Validator) func(http.Handler) http.Handler {
	return Guard(v, shopAuth.ModeJWTOnly)
}
