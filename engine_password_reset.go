package shopAuth

import "context"

// RequestPasswordReset sends a reset token when email belongs to an
// account. The returned message is identical either way.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	ctx, span := e.start(ctx, "request_password_reset")

	msg, err := e.flows.RequestPasswordReset(ctx, email)
	e.finish(span, err)
	return msg, err
}

// ResetPassword consumes a reset token and sets newPassword. All sessions of
// the account are revoked and its login lockout is cleared. Invalid, expired
// and already used tokens return ErrInvalidOrExpiredToken.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.start(ctx, "reset_password")

	err := e.flows.ResetPassword(ctx, token, newPassword)
	e.finish(span, err)
	return err
}
