package shopAuth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/shopAuth/idp/local"
	"github.com/MrEthical07/shopAuth/internal/audit"
	"github.com/MrEthical07/shopAuth/internal/flows"
	"github.com/MrEthical07/shopAuth/internal/rate"
	"github.com/MrEthical07/shopAuth/internal/sessions"
	"github.com/MrEthical07/shopAuth/internal/tokens"
	"github.com/MrEthical07/shopAuth/jwt"
	"github.com/MrEthical07/shopAuth/storage/memory"
	"github.com/MrEthical07/shopAuth/store"
)

const tracerName = "github.com/MrEthical07/shopAuth"

// Builder assembles an Engine. Configure it during initialization, call
// Build once and discard it.
type Builder struct {
	config Config
	store  store.Store
	redis  redis.UniversalClient

	identity  IdentityProvider
	notifier  Notifier
	logger    *slog.Logger
	auditSink AuditSink
	tracing   trace.TracerProvider
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the persistent store. Without one the Engine keeps all
// state in process memory.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithRedis moves rate-limit counters to Redis so that every instance shares
// them. Without it counters are kept in process memory.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityProvider sets the credential authority. Without one an
// in-memory argon2id provider is used.
func (b *Builder) WithIdentityProvider(p IdentityProvider) *Builder {
	b.identity = p
	return b
}

// WithNotifier sets the token delivery channel. Defaults to LogNotifier.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink mirrors every stored audit event to sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithTracerProvider sets the source of operation spans. Defaults to the
// global OpenTelemetry provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracing = tp
	return b
}

// WithClock overrides the time source for every component.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine. A Builder can
// be built only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- PERSISTENCE --------
	st := b.store
	if st == nil {
		st = memory.New()
	}

	identity := b.identity
	if identity == nil {
		p, err := local.New(cfg.Password.Hashing())
		if err != nil {
			return nil, err
		}
		identity = p
	}

	notifier := b.notifier
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}

	// -------- RATE LIMITER --------
	var (
		rateStore rate.Store
		memRate   *rate.MemoryStore
	)
	if b.redis != nil {
		rateStore = rate.NewRedisStore(b.redis)
	} else {
		memRate = rate.NewMemoryStore()
		rateStore = memRate
	}
	limiter := rate.NewWithClock(rateStore, now)
	policies := cfg.RateLimit.policies()

	// -------- ACCESS TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	// -------- TOKENS, SESSIONS, AUDIT --------
	tokenSvc := tokens.New(st, tokens.Config{
		VerifyEmailTTL:   cfg.Tokens.VerifyEmailTTL,
		ResetPasswordTTL: cfg.Tokens.ResetPasswordTTL,
	}, now)

	sessionMgr := sessions.New(st, limiter, sessions.Config{
		TTL:                 cfg.Session.TTL,
		RotateRefreshTokens: cfg.Session.RotateRefreshTokens,
		RefreshPolicy:       policies.Refresh,
	}, now)

	auditLog := audit.NewLog(st, cfg.Audit.log(), logger, b.auditSink, now)
	metrics := NewMetrics(cfg.Metrics)

	tp := b.tracing
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	engine := &Engine{
		config:     cloneConfig(cfg),
		store:      st,
		limiter:    limiter,
		memRate:    memRate,
		tokens:     tokenSvc,
		sessions:   sessionMgr,
		audit:      auditLog,
		jwtManager: jm,
		metrics:    metrics,
		logger:     logger,
		tracer:     tp.Tracer(tracerName),
		now:        now,
	}

	engine.flows = flows.New(flows.Deps{
		Limiter:  limiter,
		Policies: policies,
		Tokens:   tokenSvc,
		Sessions: sessionMgr,
		Audit:    auditLog,
		Profiles: st,
		Identity: identity,
		Notifier: notifier,
		Access:   jm,

		RequireVerifiedEmail: cfg.Access.RequireVerifiedEmail,
		StrictValidation:     cfg.Access.ValidationMode == ModeStrict,
		DefaultRole:          cfg.Access.DefaultRole,
		Password:             cfg.Password.policy(),
		CallTimeout:          cfg.CallTimeout,

		Meta:      requestMeta,
		Now:       now,
		NewID:     uuid.NewString,
		Logger:    logger,
		MetricInc: func(id int) { metrics.Inc(MetricID(id)) },
		Metrics:   flowMetrics(),
		Errors:    flowErrors(),
	})

	b.built = true

	return engine, nil
}

func flowErrors() flows.Errors {
	return flows.Errors{
		Validation: validationError,
		Denied: func(purpose string, locked bool, retryAfter int) error {
			if locked && purpose == PurposeLogin {
				return deniedError(KindAccountLocked, retryAfter)
			}
			return deniedError(KindRateLimited, retryAfter)
		},
		InvalidCredentials: ErrInvalidCredentials,
		EmailNotVerified:   ErrEmailNotVerified,
		InvalidToken:       ErrInvalidOrExpiredToken,
		Unauthorized:       ErrUnauthorized,
		RegistrationFailed: ErrRegistrationFailed,
		Internal:           ErrInternal,
	}
}

func flowMetrics() flows.Metrics {
	return flows.Metrics{
		RegisterSuccess:          int(MetricRegisterSuccess),
		RegisterFailure:          int(MetricRegisterFailure),
		LoginSuccess:             int(MetricLoginSuccess),
		LoginFailure:             int(MetricLoginFailure),
		LoginUnverified:          int(MetricLoginUnverified),
		RefreshSuccess:           int(MetricRefreshSuccess),
		RefreshFailure:           int(MetricRefreshFailure),
		RateLimitHit:             int(MetricRateLimitHit),
		AccountLocked:            int(MetricAccountLocked),
		SessionCreated:           int(MetricSessionCreated),
		SessionRevoked:           int(MetricSessionRevoked),
		PasswordResetRequest:     int(MetricPasswordResetRequest),
		PasswordResetSuccess:     int(MetricPasswordResetSuccess),
		PasswordResetFailure:     int(MetricPasswordResetFailure),
		PasswordChangeSuccess:    int(MetricPasswordChangeSuccess),
		PasswordChangeFailure:    int(MetricPasswordChangeFailure),
		EmailVerificationRequest: int(MetricEmailVerificationRequest),
		EmailVerificationSuccess: int(MetricEmailVerificationSuccess),
		EmailVerificationFailure: int(MetricEmailVerificationFailure),
		Logout:                   int(MetricLogout),
		LogoutAll:                int(MetricLogoutAll),
	}
}
