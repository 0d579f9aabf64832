package flows

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrEthical07/shopAuth/internal"
	"github.com/MrEthical07/shopAuth/internal/audit"
	"github.com/MrEthical07/shopAuth/internal/tokens"
	"github.com/MrEthical07/shopAuth/store"
)

// ResendVerificationMessage is returned by every accepted resend request.
const ResendVerificationMessage = "If an unverified account exists for that email, a verification link has been sent."

// sendVerification issues a verification token for p and hands it to the
// notifier. Failures are logged; the account can always request a resend.
func (d *Deps) sendVerification(ctx context.Context, p *store.Profile) {
	d.MetricInc(d.Metrics.EmailVerificationRequest)

	token, err := d.Tokens.Create(ctx, p.ID, store.PurposeVerifyEmail)
	if err != nil {
		d.Logger.ErrorContext(ctx, "verification token not issued",
			slog.String("profile_id", p.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if d.Notifier != nil {
		callCtx, cancel := d.bounded(ctx)
		err = d.Notifier.SendVerification(callCtx, p.Email, token)
		cancel()
		if err != nil {
			d.Logger.WarnContext(ctx, "verification notification failed",
				slog.String("profile_id", p.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	d.emit(ctx, audit.Event{
		Type:    audit.EventEmailVerificationSent,
		OwnerID: p.ID,
		Subject: p.Email,
		Success: err == nil,
	})
}

// RunVerifyEmail consumes a verification token and marks its owner verified.
// Reusing a consumed token fails with Errors.InvalidToken.
func RunVerifyEmail(ctx context.Context, token string, d Deps) error {
	d.normalize()

	ownerID, err := d.Tokens.Consume(ctx, token, store.PurposeVerifyEmail)
	if err != nil {
		if errors.Is(err, tokens.ErrInvalidOrExpired) {
			d.verifyFailed(ctx, "", "invalid_token")
			return d.Errors.InvalidToken
		}
		return d.internal(ctx, "verify_email.consume", err)
	}

	if err := d.Profiles.MarkEmailVerified(ctx, ownerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.verifyFailed(ctx, ownerID, "profile_missing")
			return d.Errors.InvalidToken
		}
		return d.internal(ctx, "verify_email.mark_verified", err)
	}

	d.MetricInc(d.Metrics.EmailVerificationSuccess)
	d.emit(ctx, audit.Event{
		Type:    audit.EventEmailVerified,
		OwnerID: ownerID,
		Success: true,
	})
	return nil
}

// RunResendVerification sends a new verification token to an unverified
// account. The result is the same message whether or not one exists.
func RunResendVerification(ctx context.Context, email string, d Deps) (string, error) {
	d.normalize()

	email = NormalizeEmail(email)
	if msg := validateEmail(email); msg != "" {
		return "", d.Errors.Validation(map[string]string{"email": msg})
	}
	if err := d.checkRate(ctx, d.Policies.Resend, email, email, ""); err != nil {
		return "", err
	}

	profile, err := d.Profiles.GetProfileByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		_, _, _, _ = internal.NewToken()
		return ResendVerificationMessage, nil
	case err != nil:
		return "", d.internal(ctx, "resend_verification.lookup", err)
	}

	if profile.EmailVerified {
		_, _, _, _ = internal.NewToken()
		return ResendVerificationMessage, nil
	}

	d.sendVerification(ctx, profile)
	return ResendVerificationMessage, nil
}

func (d *Deps) verifyFailed(ctx context.Context, ownerID, reason string) {
	d.MetricInc(d.Metrics.EmailVerificationFailure)
	d.emit(ctx, audit.Event{
		Type:    audit.EventEmailVerifyFailed,
		OwnerID: ownerID,
		Reason:  reason,
	})
}
