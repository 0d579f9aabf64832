package shopAuth

import (
	"context"
	"log/slog"
)

// AuditTrail lists audit events matching q, newest first. Limit defaults to
// 50 and is capped at 500.
func (e *Engine) AuditTrail(ctx context.Context, q AuditQuery) ([]AuditEvent, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	events, err := e.audit.List(ctx, q)
	if err != nil {
		e.logger.ErrorContext(ctx, "audit list failed", slog.String("error", err.Error()))
		return nil, ErrInternal
	}
	return events, nil
}

// ListSessions returns the active sessions of ownerID, newest first.
func (e *Engine) ListSessions(ctx context.Context, ownerID string) ([]Session, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	out, err := e.sessions.ListActive(ctx, ownerID)
	if err != nil {
		e.logger.ErrorContext(ctx, "session list failed",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, ErrInternal
	}
	return out, nil
}

// ClearLoginLockout removes the login counter of email, for support tooling.
func (e *Engine) ClearLoginLockout(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	p := e.config.RateLimit.policies().Login
	if err := e.limiter.Clear(ctx, p, normalizeEmail(email)); err != nil {
		e.logger.ErrorContext(ctx, "login lockout clear failed", slog.String("error", err.Error()))
		return ErrInternal
	}
	return nil
}
