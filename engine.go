package shopAuth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/shopAuth/internal/audit"
	"github.com/MrEthical07/shopAuth/internal/flows"
	"github.com/MrEthical07/shopAuth/internal/rate"
	"github.com/MrEthical07/shopAuth/internal/sessions"
	"github.com/MrEthical07/shopAuth/internal/tokens"
	"github.com/MrEthical07/shopAuth/jwt"
	"github.com/MrEthical07/shopAuth/store"
)

// ErrEngineNotReady is returned by every operation of an Engine that was
// not created through Builder.Build.
var ErrEngineNotReady = &Error{Kind: KindInternal, Message: "engine not initialized"}

// Engine is the authentication orchestrator. All methods are safe for
// concurrent use. Every error returned by an operation is an *Error.
type Engine struct {
	config     Config
	store      store.Store
	limiter    *rate.Limiter
	memRate    *rate.MemoryStore
	tokens     *tokens.Service
	sessions   *sessions.Manager
	audit      *audit.Log
	jwtManager *jwt.Manager
	metrics    *Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
	flows      flows.Service
}

// Close flushes pending audit events. The Engine must not be used after.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

// start opens the span of one public operation.
func (e *Engine) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "shopauth."+op, trace.WithSpanKind(trace.SpanKindInternal))
}

// finish records the outcome on span and ends it.
func (e *Engine) finish(span trace.Span, err error) {
	if err != nil {
		kind := KindInternal
		var pubErr *Error
		if errors.As(err, &pubErr) {
			kind = pubErr.Kind
		}
		if kind == KindInternal {
			e.metricInc(MetricInternalError)
		}
		span.SetAttributes(attribute.String("shopauth.error_kind", string(kind)))
		span.SetStatus(codes.Error, string(kind))
	}
	span.End()
}

// Login authenticates email and password and opens a session.
//
// A wrong password and an unknown email return the same ErrInvalidCredentials
// value. An unverified account receives ErrEmailNotVerified when verified
// email is required. Repeated failures lock the email for the configured
// lockout; attempts during the lock return ACCOUNT_LOCKED without touching
// the identity provider.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.start(ctx, "login")
	started := time.Now()

	out, err := e.flows.Login(ctx, email, password)
	e.metrics.Observe(MetricLoginLatency, time.Since(started))
	e.finish(span, err)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken:      out.AccessToken,
		AccessExpiresAt:  out.AccessExpiresAt,
		RefreshToken:     out.RefreshToken,
		SessionID:        out.SessionID,
		SessionExpiresAt: out.SessionExpiresAt,
		ProfileID:        out.ProfileID,
		Role:             out.Role,
	}, nil
}

// RefreshAccessToken issues a new access token for an active session.
// Revoked, expired and unknown refresh tokens return ErrUnauthorized.
func (e *Engine) RefreshAccessToken(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.start(ctx, "refresh")

	out, err := e.flows.Refresh(ctx, refreshToken)
	e.finish(span, err)
	if err != nil {
		return nil, err
	}
	return &RefreshResult{
		AccessToken:     out.AccessToken,
		AccessExpiresAt: out.AccessExpiresAt,
		RefreshToken:    out.RefreshToken,
		SessionID:       out.SessionID,
		Rotated:         out.Rotated,
	}, nil
}

// ValidateAccess verifies an access token using the configured validation
// mode.
func (e *Engine) ValidateAccess(ctx context.Context, token string) (*AccessClaims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return e.Validate(ctx, token, e.config.Access.ValidationMode)
}

// Validate verifies an access token in the given mode. ModeStrict also
// requires the session named by the token to be active.
func (e *Engine) Validate(ctx context.Context, token string, mode ValidationMode) (*AccessClaims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.start(ctx, "validate")
	span.SetAttributes(attribute.Bool("shopauth.strict", mode == ModeStrict))

	started := time.Now()
	claims, err := e.flows.Validate(ctx, token, mode == ModeStrict)
	e.metrics.Observe(MetricValidateLatency, time.Since(started))
	e.finish(span, err)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Logout revokes exactly the session sessionID. Unknown or already revoked
// sessions return ErrUnauthorized.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.start(ctx, "logout")

	err := e.flows.Logout(ctx, sessionID)
	e.finish(span, err)
	return err
}

// LogoutByAccessToken validates token and revokes the session it names.
func (e *Engine) LogoutByAccessToken(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	claims, err := e.Validate(ctx, token, ModeJWTOnly)
	if err != nil {
		return err
	}
	return e.Logout(ctx, claims.SID)
}

// LogoutAll revokes every active session of ownerID. It also serves as the
// account deletion hook.
func (e *Engine) LogoutAll(ctx context.Context, ownerID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.start(ctx, "logout_all")

	n, err := e.flows.LogoutAll(ctx, ownerID)
	span.SetAttributes(attribute.Int64("shopauth.sessions_revoked", n))
	e.finish(span, err)
	return err
}
