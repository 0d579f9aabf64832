package shopAuth

import (
	"context"

	"github.com/MrEthical07/shopAuth/internal/flows"
)

// Register creates an unverified account and sends its first verification
// token through the Notifier.
//
// Registrations are limited per client IP before any validation runs.
// Invalid input returns a VALIDATION error with per-field messages. A taken
// email or username returns ErrRegistrationFailed, the same value returned
// when the identity provider rejects the account, so the response does not
// reveal which accounts exist.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.start(ctx, "register")

	out, err := e.flows.Register(ctx, flows.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	e.finish(span, err)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{
		ProfileID:            out.ProfileID,
		Email:                out.Email,
		Username:             out.Username,
		Role:                 out.Role,
		VerificationRequired: out.VerificationRequired,
	}, nil
}

// ChangePassword replaces the password of ownerID after verifying current.
// Every session of the account is revoked, including the caller's.
func (e *Engine) ChangePassword(ctx context.Context, ownerID, current, next string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.start(ctx, "change_password")

	err := e.flows.ChangePassword(ctx, ownerID, current, next)
	e.finish(span, err)
	return err
}
