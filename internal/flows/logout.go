package flows

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/shopAuth/internal/audit"
	"github.com/MrEthical07/shopAuth/internal/sessions"
)

// RunLogout revokes one active session. Unknown and already terminal
// sessions fail with Errors.Unauthorized.
func RunLogout(ctx context.Context, sessionID string, d Deps) error {
	d.normalize()

	if sessionID == "" {
		return d.Errors.Unauthorized
	}

	sess, err := d.Sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return d.Errors.Unauthorized
		}
		return d.internal(ctx, "logout.lookup", err)
	}

	if err := d.Sessions.Revoke(ctx, sess.ID); err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return d.Errors.Unauthorized
		}
		return d.internal(ctx, "logout.revoke", err)
	}

	d.MetricInc(d.Metrics.Logout)
	d.MetricInc(d.Metrics.SessionRevoked)
	d.emit(ctx, audit.Event{
		Type:       audit.EventLogout,
		OwnerID:    sess.OwnerID,
		ResourceID: sess.ID,
		Success:    true,
	})
	return nil
}

// RunLogoutAll revokes every active session of ownerID and returns how many
// were revoked.
func RunLogoutAll(ctx context.Context, ownerID string, d Deps) (int64, error) {
	d.normalize()

	if ownerID == "" {
		return 0, d.Errors.Unauthorized
	}

	n, err := d.Sessions.RevokeAll(ctx, ownerID)
	if err != nil {
		return 0, d.internal(ctx, "logout_all.revoke", err)
	}

	d.MetricInc(d.Metrics.LogoutAll)
	d.emit(ctx, audit.Event{
		Type:     audit.EventLogoutAll,
		OwnerID:  ownerID,
		Success:  true,
		Metadata: map[string]string{"sessions_revoked": strconv.FormatInt(n, 10)},
	})
	return n, nil
}
