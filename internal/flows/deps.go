package flows

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/shopAuth/idp"
	"github.com/MrEthical07/shopAuth/internal/audit"
	"github.com/MrEthical07/shopAuth/internal/rate"
	"github.com/MrEthical07/shopAuth/jwt"
	"github.com/MrEthical07/shopAuth/store"
)

// RequestMeta is the caller metadata attached to a request context.
type RequestMeta struct {
	IP         string
	UserAgent  string
	DeviceName string
}

// Limiter is the subset of *rate.Limiter the flows use.
type Limiter interface {
	Check(ctx context.Context, p rate.Policy, identifier string) (rate.Decision, error)
	Clear(ctx context.Context, p rate.Policy, identifier string) error
}

// Tokens is the subset of *tokens.Service the flows use.
type Tokens interface {
	Create(ctx context.Context, ownerID string, purpose store.TokenPurpose) (string, error)
	Consume(ctx context.Context, token string, purpose store.TokenPurpose) (string, error)
}

// Sessions is the subset of *sessions.Manager the flows use.
type Sessions interface {
	Create(ctx context.Context, ownerID string, device store.DeviceMeta) (*store.Session, string, error)
	GetActiveByRefreshToken(ctx context.Context, refreshToken string) (*store.Session, error)
	Get(ctx context.Context, id string) (*store.Session, error)
	Refresh(ctx context.Context, sess *store.Session) (*store.Session, string, error)
	Revoke(ctx context.Context, sessionID string) error
	RevokeAll(ctx context.Context, ownerID string) (int64, error)
}

// Auditor records audit events without ever failing the caller.
type Auditor interface {
	Record(ctx context.Context, e audit.Event)
}

// Notifier delivers one-time tokens to their owner.
type Notifier interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// AccessIssuer signs and parses access tokens.
type AccessIssuer interface {
	CreateAccess(uid, sid, role string) (string, time.Time, error)
	ParseAccess(token string) (*jwt.AccessClaims, error)
}

// Policies holds the rate policy of every throttled purpose.
type Policies struct {
	Login        rate.Policy
	Register     rate.Policy
	Refresh      rate.Policy
	ResetRequest rate.Policy
	Resend       rate.Policy
}

// PasswordPolicy is the local password acceptance rule.
type PasswordPolicy struct {
	MinLength     int
	MaxLength     int
	RequireMixed  bool
	RequireDigit  bool
	RequireSymbol bool
}

// Metrics carries the host metric ids the flows increment.
type Metrics struct {
	RegisterSuccess          int
	RegisterFailure          int
	LoginSuccess             int
	LoginFailure             int
	LoginUnverified          int
	RefreshSuccess           int
	RefreshFailure           int
	RateLimitHit             int
	AccountLocked            int
	SessionCreated           int
	SessionRevoked           int
	PasswordResetRequest     int
	PasswordResetSuccess     int
	PasswordResetFailure     int
	PasswordChangeSuccess    int
	PasswordChangeFailure    int
	EmailVerificationRequest int
	EmailVerificationSuccess int
	EmailVerificationFailure int
	Logout                   int
	LogoutAll                int
}

// Errors carries the host-level outcomes. Flows return only these.
type Errors struct {
	Validation func(fields map[string]string) error
	// Denied builds a rate-limit outcome. locked is true while a lockout is
	// active as opposed to the attempt that triggered it.
	Denied func(purpose string, locked bool, retryAfterSeconds int) error

	InvalidCredentials error
	EmailNotVerified   error
	InvalidToken       error
	Unauthorized       error
	RegistrationFailed error
	Internal           error
}

// Deps is built once by the Engine and shared by every flow.
type Deps struct {
	Limiter  Limiter
	Policies Policies
	Tokens   Tokens
	Sessions Sessions
	Audit    Auditor
	Profiles store.ProfileStore
	Identity idp.Provider
	Notifier Notifier
	Access   AccessIssuer

	RequireVerifiedEmail bool
	StrictValidation     bool
	DefaultRole          string
	Password             PasswordPolicy
	CallTimeout          time.Duration

	Meta      func(context.Context) RequestMeta
	Now       func() time.Time
	NewID     func() string
	Logger    *slog.Logger
	MetricInc func(int)

	Metrics Metrics
	Errors  Errors
}

// Ready reports whether every required collaborator is wired.
func (d *Deps) Ready() bool {
	return d != nil &&
		d.Tokens != nil &&
		d.Sessions != nil &&
		d.Profiles != nil &&
		d.Identity != nil &&
		d.Access != nil &&
		d.Errors.Validation != nil &&
		d.Errors.Denied != nil &&
		d.Errors.Internal != nil
}

func (d *Deps) normalize() {
	if d.Meta == nil {
		d.Meta = func(context.Context) RequestMeta { return RequestMeta{} }
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MetricInc == nil {
		d.MetricInc = func(int) {}
	}
}

// bounded derives the context used for one collaborator call.
func (d *Deps) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.CallTimeout)
}

func (d *Deps) emit(ctx context.Context, e audit.Event) {
	if d.Audit == nil {
		return
	}
	meta := d.Meta(ctx)
	if e.IP == "" {
		e.IP = meta.IP
	}
	if e.UserAgent == "" {
		e.UserAgent = meta.UserAgent
	}
	d.Audit.Record(ctx, e)
}

// internal logs err with full context and returns the generic outcome.
func (d *Deps) internal(ctx context.Context, op string, err error) error {
	d.Logger.ErrorContext(ctx, "auth operation failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return d.Errors.Internal
}

// checkRate runs one limiter check. Denials are audited and mapped through
// Errors.Denied; limiter outages fail closed as Internal.
func (d *Deps) checkRate(ctx context.Context, p rate.Policy, identifier, subject, ownerID string) error {
	if d.Limiter == nil {
		return nil
	}
	_, err := d.Limiter.Check(ctx, p, identifier)
	if err == nil {
		return nil
	}
	return d.mapDenied(ctx, p.Purpose, err, subject, ownerID)
}

func (d *Deps) mapDenied(ctx context.Context, purpose string, err error, subject, ownerID string) error {
	var denied *rate.DeniedError
	if !errors.As(err, &denied) {
		return d.internal(ctx, "rate_limit."+purpose, err)
	}

	locked := errors.Is(err, rate.ErrLocked)
	eventType := audit.EventRateLimited
	if locked && purpose == d.Policies.Login.Purpose {
		eventType = audit.EventAccountLocked
		d.MetricInc(d.Metrics.AccountLocked)
	}
	d.MetricInc(d.Metrics.RateLimitHit)
	d.emit(ctx, audit.Event{
		Type:    eventType,
		OwnerID: ownerID,
		Subject: subject,
		Reason:  purpose,
		Metadata: map[string]string{
			"retry_after": denied.RetryAfter.String(),
		},
	})
	return d.Errors.Denied(purpose, locked, denied.RetryAfterSeconds())
}

func (d *Deps) clearRate(ctx context.Context, p rate.Policy, identifier string) {
	if d.Limiter == nil {
		return
	}
	if err := d.Limiter.Clear(ctx, p, identifier); err != nil {
		d.Logger.WarnContext(ctx, "rate limit clear failed",
			slog.String("purpose", p.Purpose),
			slog.String("error", err.Error()),
		)
	}
}

func (d *Deps) device(ctx context.Context) store.DeviceMeta {
	meta := d.Meta(ctx)
	return store.DeviceMeta{Name: meta.DeviceName, IP: meta.IP, UserAgent: meta.UserAgent}
}
