package middleware

import (
	"net/http"

	shopAuth "github.com/MrEthical07/shopAuth"
)

// RequireStrict also requires the session named by the token to be active,
// so logout takes effect before the access token expires.
func RequireStrict(v Validator) func(http.Handler) http.Handler {
	return Guard(v, shopAuth.ModeStrict)
}
