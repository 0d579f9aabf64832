package shopAuth

import "context"

// VerifyEmail consumes a verification token and marks its account verified.
func (e *Engine) VerifyEmail(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.start(ctx, "verify_email")

	err := e.flows.VerifyEmail(ctx, token)
	e.finish(span, err)
	return err
}

// ResendVerification sends a fresh verification token to an unverified
// account. The message is the same whether or not such an account exists.
func (e *Engine) ResendVerification(ctx context.Context, email string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	ctx, span := e.start(ctx, "resend_verification")

	msg, err := e.flows.ResendVerification(ctx, email)
	e.finish(span, err)
	return msg, err
}
