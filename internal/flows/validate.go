package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/shopAuth/internal/sessions"
	"github.com/MrEthical07/shopAuth/jwt"
)

// RunValidate verifies an access token. In strict mode the session named by
// the token must also still be active and owned by the token subject, so a
// revoked session stops authorizing requests before its access tokens expire.
func RunValidate(ctx context.Context, token string, strict bool, d Deps) (*jwt.AccessClaims, error) {
	d.normalize()

	if token == "" {
		return nil, d.Errors.Unauthorized
	}

	claims, err := d.Access.ParseAccess(token)
	if err != nil {
		return nil, d.Errors.Unauthorized
	}
	if !strict {
		return claims, nil
	}

	sess, err := d.Sessions.Get(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return nil, d.Errors.Unauthorized
		}
		return nil, d.internal(ctx, "validate.session", err)
	}
	if sess.OwnerID != claims.UID {
		return nil, d.Errors.Unauthorized
	}
	return claims, nil
}
