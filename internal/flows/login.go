package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/shopAuth/idp"
	"github.com/MrEthical07/shopAuth/internal/audit"
	"github.com/MrEthical07/shopAuth/store"
)

// LoginOutput is the token pair of a new session.
type LoginOutput struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	SessionID        string
	SessionExpiresAt time.Time
	ProfileID        string
	Role             string
}

// RunLogin authenticates email and password and opens a session.
//
// The identity provider is consulted even when no profile exists, and every
// credential failure returns the same Errors.InvalidCredentials value. An
// unverified account is refused with Errors.EmailNotVerified before the
// credential check. Requests missing a field are refused before the
// per-email limiter, so they never share a counter.
func RunLogin(ctx context.Context, email, password string, d Deps) (*LoginOutput, error) {
	d.normalize()

	email = NormalizeEmail(email)

	fields := map[string]string{}
	if email == "" {
		fields["email"] = "is required"
	}
	if password == "" {
		fields["password"] = "is required"
	}
	if len(fields) > 0 {
		return nil, d.Errors.Validation(fields)
	}

	if err := d.checkRate(ctx, d.Policies.Login, email, email, ""); err != nil {
		return nil, err
	}

	profile, err := d.Profiles.GetProfileByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, d.internal(ctx, "login.lookup", err)
		}
		profile = nil
	}

	if profile != nil && d.RequireVerifiedEmail && !profile.EmailVerified {
		d.MetricInc(d.Metrics.LoginUnverified)
		d.emit(ctx, audit.Event{
			Type:    audit.EventLoginFailed,
			OwnerID: profile.ID,
			Subject: email,
			Reason:  "email_not_verified",
		})
		return nil, d.Errors.EmailNotVerified
	}

	callCtx, cancel := d.bounded(ctx)
	externalID, err := d.Identity.VerifyCredential(callCtx, email, password)
	cancel()
	if err != nil && !errors.Is(err, idp.ErrInvalidCredentials) {
		return nil, d.internal(ctx, "login.verify_credential", err)
	}
	if err != nil || profile == nil || externalID != profile.ExternalID {
		ownerID := ""
		if profile != nil {
			ownerID = profile.ID
		}
		d.MetricInc(d.Metrics.LoginFailure)
		d.emit(ctx, audit.Event{
			Type:    audit.EventLoginFailed,
			OwnerID: ownerID,
			Subject: email,
			Reason:  "invalid_credentials",
		})
		return nil, d.Errors.InvalidCredentials
	}

	d.clearRate(ctx, d.Policies.Login, email)

	out, err := d.openSession(ctx, profile)
	if err != nil {
		return nil, err
	}

	d.MetricInc(d.Metrics.LoginSuccess)
	d.emit(ctx, audit.Event{
		Type:       audit.EventLoginSuccess,
		OwnerID:    profile.ID,
		ResourceID: out.SessionID,
		Subject:    email,
		Success:    true,
	})
	return out, nil
}

func (d *Deps) openSession(ctx context.Context, profile *store.Profile) (*LoginOutput, error) {
	sess, refresh, err := d.Sessions.Create(ctx, profile.ID, d.device(ctx))
	if err != nil {
		return nil, d.internal(ctx, "login.create_session", err)
	}

	access, accessExp, err := d.Access.CreateAccess(profile.ID, sess.ID, profile.Role)
	if err != nil {
		_ = d.Sessions.Revoke(ctx, sess.ID)
		return nil, d.internal(ctx, "login.issue_access", err)
	}
	d.MetricInc(d.Metrics.SessionCreated)

	return &LoginOutput{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		SessionID:        sess.ID,
		SessionExpiresAt: sess.ExpiresAt,
		ProfileID:        profile.ID,
		Role:             profile.Role,
	}, nil
}
