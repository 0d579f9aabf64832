package flows

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/MrEthical07/shopAuth/idp"
	"github.com/MrEthical07/shopAuth/internal"
	"github.com/MrEthical07/shopAuth/internal/audit"
	"github.com/MrEthical07/shopAuth/internal/tokens"
	"github.com/MrEthical07/shopAuth/store"
)

// PasswordResetMessage is returned by every accepted reset request.
const PasswordResetMessage = "If an account exists for that email, a password reset link has been sent."

// RunRequestPasswordReset issues a reset token when email belongs to an
// account. The result does not reveal whether it does: token store and
// notifier failures are logged and the same message is returned.
func RunRequestPasswordReset(ctx context.Context, email string, d Deps) (string, error) {
	d.normalize()

	email = NormalizeEmail(email)
	if msg := validateEmail(email); msg != "" {
		return "", d.Errors.Validation(map[string]string{"email": msg})
	}
	if err := d.checkRate(ctx, d.Policies.ResetRequest, email, email, ""); err != nil {
		return "", err
	}

	d.MetricInc(d.Metrics.PasswordResetRequest)

	profile, err := d.Profiles.GetProfileByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		_, _, _, _ = internal.NewToken()
		return PasswordResetMessage, nil
	case err != nil:
		return "", d.internal(ctx, "reset_request.lookup", err)
	}

	token, err := d.Tokens.Create(ctx, profile.ID, store.PurposeResetPassword)
	if err != nil {
		d.Logger.ErrorContext(ctx, "reset token not issued",
			slog.String("profile_id", profile.ID),
			slog.String("error", err.Error()),
		)
		return PasswordResetMessage, nil
	}

	if d.Notifier != nil {
		callCtx, cancel := d.bounded(ctx)
		err = d.Notifier.SendPasswordReset(callCtx, profile.Email, token)
		cancel()
		if err != nil {
			d.Logger.WarnContext(ctx, "reset notification failed",
				slog.String("profile_id", profile.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	d.emit(ctx, audit.Event{
		Type:    audit.EventPasswordResetRequested,
		OwnerID: profile.ID,
		Subject: email,
		Success: true,
	})
	return PasswordResetMessage, nil
}

// RunResetPassword consumes a reset token, sets the new credential and
// revokes every session of the owner.
//
// The new password is validated before the token is consumed. Once the token
// is consumed it stays consumed even if the identity provider then fails.
func RunResetPassword(ctx context.Context, token, newPassword string, d Deps) error {
	d.normalize()

	if msg := CheckPassword(newPassword, d.Password); msg != "" {
		return d.Errors.Validation(map[string]string{"password": msg})
	}

	ownerID, err := d.Tokens.Consume(ctx, token, store.PurposeResetPassword)
	if err != nil {
		if errors.Is(err, tokens.ErrInvalidOrExpired) {
			d.MetricInc(d.Metrics.PasswordResetFailure)
			d.emit(ctx, audit.Event{Type: audit.EventPasswordResetFailed, Reason: "invalid_token"})
			return d.Errors.InvalidToken
		}
		return d.internal(ctx, "reset.consume", err)
	}

	profile, err := d.Profiles.GetProfileByID(ctx, ownerID)
	if err != nil {
		return d.internal(ctx, "reset.profile", err)
	}

	if err := d.updateCredential(ctx, profile, newPassword, "reset"); err != nil {
		d.MetricInc(d.Metrics.PasswordResetFailure)
		d.emit(ctx, audit.Event{
			Type:    audit.EventPasswordResetFailed,
			OwnerID: profile.ID,
			Subject: profile.Email,
			Reason:  "identity_update",
		})
		return err
	}

	revoked, err := d.Sessions.RevokeAll(ctx, profile.ID)
	if err != nil {
		return d.internal(ctx, "reset.revoke_all", err)
	}
	d.clearRate(ctx, d.Policies.Login, profile.Email)

	d.MetricInc(d.Metrics.PasswordResetSuccess)
	d.emit(ctx, audit.Event{
		Type:     audit.EventPasswordResetCompleted,
		OwnerID:  profile.ID,
		Subject:  profile.Email,
		Success:  true,
		Metadata: map[string]string{"sessions_revoked": strconv.FormatInt(revoked, 10)},
	})
	return nil
}

// RunChangePassword replaces the password of an authenticated account after
// re-verifying the current one, then revokes every session of the owner.
// Attempts count against the login policy of the account email.
func RunChangePassword(ctx context.Context, ownerID, current, next string, d Deps) error {
	d.normalize()

	fields := map[string]string{}
	if current == "" {
		fields["current_password"] = "is required"
	}
	if msg := CheckPassword(next, d.Password); msg != "" {
		fields["new_password"] = msg
	} else if next == current {
		fields["new_password"] = "must differ from the current password"
	}
	if len(fields) > 0 {
		return d.Errors.Validation(fields)
	}

	profile, err := d.Profiles.GetProfileByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return d.Errors.Unauthorized
		}
		return d.internal(ctx, "change_password.profile", err)
	}

	if err := d.checkRate(ctx, d.Policies.Login, profile.Email, profile.Email, profile.ID); err != nil {
		return err
	}

	callCtx, cancel := d.bounded(ctx)
	externalID, err := d.Identity.VerifyCredential(callCtx, profile.Email, current)
	cancel()
	if err != nil && !errors.Is(err, idp.ErrInvalidCredentials) {
		return d.internal(ctx, "change_password.verify_credential", err)
	}
	if err != nil || externalID != profile.ExternalID {
		d.MetricInc(d.Metrics.PasswordChangeFailure)
		d.emit(ctx, audit.Event{
			Type:    audit.EventPasswordChangeFailed,
			OwnerID: profile.ID,
			Subject: profile.Email,
			Reason:  "invalid_credentials",
		})
		return d.Errors.InvalidCredentials
	}
	d.clearRate(ctx, d.Policies.Login, profile.Email)

	if err := d.updateCredential(ctx, profile, next, "change_password"); err != nil {
		d.MetricInc(d.Metrics.PasswordChangeFailure)
		return err
	}

	revoked, err := d.Sessions.RevokeAll(ctx, profile.ID)
	if err != nil {
		return d.internal(ctx, "change_password.revoke_all", err)
	}

	d.MetricInc(d.Metrics.PasswordChangeSuccess)
	d.emit(ctx, audit.Event{
		Type:     audit.EventPasswordChanged,
		OwnerID:  profile.ID,
		Subject:  profile.Email,
		Success:  true,
		Metadata: map[string]string{"sessions_revoked": strconv.FormatInt(revoked, 10)},
	})
	return nil
}

func (d *Deps) updateCredential(ctx context.Context, profile *store.Profile, password, op string) error {
	callCtx, cancel := d.bounded(ctx)
	err := d.Identity.UpdateCredential(callCtx, profile.ExternalID, password)
	cancel()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, idp.ErrRejected):
		return d.Errors.Validation(map[string]string{"password": "was rejected by the identity provider"})
	default:
		return d.internal(ctx, op+".update_credential", err)
	}
}
