package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/shopAuth/internal/audit"
	"github.com/MrEthical07/shopAuth/internal/sessions"
	"github.com/MrEthical07/shopAuth/store"
)

// RefreshOutput is the result of a successful refresh. RefreshToken is the
// rotated token when rotation is enabled and the presented one otherwise.
type RefreshOutput struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
	SessionID       string
	Rotated         bool
}

// RunRefresh exchanges an active refresh token for a new access token.
// Revoked, expired, unknown and superseded tokens all fail with
// Errors.Unauthorized.
func RunRefresh(ctx context.Context, refreshToken string, d Deps) (*RefreshOutput, error) {
	d.normalize()

	if refreshToken == "" {
		return nil, d.Errors.Validation(map[string]string{"refresh_token": "is required"})
	}

	sess, err := d.Sessions.GetActiveByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			d.refreshFailed(ctx, "", "", "invalid_token")
			return nil, d.Errors.Unauthorized
		}
		return nil, d.internal(ctx, "refresh.lookup", err)
	}

	updated, rotated, err := d.Sessions.Refresh(ctx, sess)
	if err != nil {
		switch {
		case errors.Is(err, sessions.ErrNotFound):
			d.refreshFailed(ctx, sess.OwnerID, sess.ID, "superseded")
			return nil, d.Errors.Unauthorized
		case errors.Is(err, sessions.ErrStoreUnavailable):
			return nil, d.internal(ctx, "refresh.update", err)
		default:
			return nil, d.mapDenied(ctx, d.Policies.Refresh.Purpose, err, "", sess.OwnerID)
		}
	}

	profile, err := d.Profiles.GetProfileByID(ctx, updated.OwnerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.refreshFailed(ctx, updated.OwnerID, updated.ID, "profile_missing")
			return nil, d.Errors.Unauthorized
		}
		return nil, d.internal(ctx, "refresh.profile", err)
	}

	access, accessExp, err := d.Access.CreateAccess(profile.ID, updated.ID, profile.Role)
	if err != nil {
		return nil, d.internal(ctx, "refresh.issue_access", err)
	}

	out := &RefreshOutput{
		AccessToken:     access,
		AccessExpiresAt: accessExp,
		RefreshToken:    refreshToken,
		SessionID:       updated.ID,
	}
	if rotated != "" {
		out.RefreshToken = rotated
		out.Rotated = true
	}

	d.MetricInc(d.Metrics.RefreshSuccess)
	d.emit(ctx, audit.Event{
		Type:       audit.EventTokenRefreshed,
		OwnerID:    profile.ID,
		ResourceID: updated.ID,
		Success:    true,
	})
	return out, nil
}

func (d *Deps) refreshFailed(ctx context.Context, ownerID, sessionID, reason string) {
	d.MetricInc(d.Metrics.RefreshFailure)
	d.emit(ctx, audit.Event{
		Type:       audit.EventRefreshFailed,
		OwnerID:    ownerID,
		ResourceID: sessionID,
		Reason:     reason,
	})
}
