package shopAuth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/MrEthical07/shopAuth/internal/audit"
	"github.com/MrEthical07/shopAuth/internal/flows"
	"github.com/MrEthical07/shopAuth/internal/rate"
	"github.com/MrEthical07/shopAuth/jwt"
	"github.com/MrEthical07/shopAuth/password"
)

// Config is the complete Engine configuration. Start from DefaultConfig and
// override what differs; Builder.Build validates the result.
type Config struct {
	JWT         JWTConfig         `envPrefix:"JWT_"`
	Session     SessionConfig     `envPrefix:"SESSION_"`
	RateLimit   RateLimitConfig   `envPrefix:"RATE_"`
	Tokens      TokenConfig       `envPrefix:"TOKEN_"`
	Password    PasswordConfig    `envPrefix:"PASSWORD_"`
	Access      AccessConfig      `envPrefix:"ACCESS_"`
	Audit       AuditConfig       `envPrefix:"AUDIT_"`
	Metrics     MetricsConfig     `envPrefix:"METRICS_"`
	Maintenance MaintenanceConfig `envPrefix:"MAINTENANCE_"`

	// CallTimeout bounds each call to an external collaborator.
	CallTimeout time.Duration `env:"CALL_TIMEOUT"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access-token signing.
type JWTConfig struct {
	AccessTTL     time.Duration `env:"ACCESS_TTL"`
	SigningMethod string        `env:"SIGNING_METHOD"` // "ed25519" (default) or "hs256"
	PrivateKey    []byte        `env:"-"`
	PublicKey     []byte        `env:"-"`
	Issuer        string        `env:"ISSUER"`
	Audience      string        `env:"AUDIENCE"`
	Leeway        time.Duration `env:"LEEWAY"`
	KeyID         string        `env:"KEY_ID"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetime.
type SessionConfig struct {
	TTL time.Duration `env:"TTL"`
	// RotateRefreshTokens swaps the refresh secret on every refresh.
	RotateRefreshTokens bool `env:"ROTATE_REFRESH_TOKENS"`
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitPolicy is the fixed-window rule of one purpose. Lockout is the
// strike duration applied once MaxAttempts is exceeded within Window.
type RateLimitPolicy struct {
	MaxAttempts int           `env:"MAX_ATTEMPTS"`
	Window      time.Duration `env:"WINDOW"`
	Lockout     time.Duration `env:"LOCKOUT"`
}

// RateLimitConfig holds the policy of every throttled purpose.
type RateLimitConfig struct {
	Login              RateLimitPolicy `envPrefix:"LOGIN_"`
	Register           RateLimitPolicy `envPrefix:"REGISTER_"`
	Refresh            RateLimitPolicy `envPrefix:"REFRESH_"`
	PasswordReset      RateLimitPolicy `envPrefix:"RESET_"`
	VerificationResend RateLimitPolicy `envPrefix:"RESEND_"`

	// KeyPrefix namespaces every counter key, e.g. in a shared Redis.
	KeyPrefix string `env:"KEY_PREFIX"`
	// SweepInterval drives the in-memory counter sweep. Redis keys expire
	// on their own.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL"`
}

// Rate-limit purposes. They name the counter namespace and appear in audit
// events.
const (
	PurposeLogin              = "login"
	PurposeRegister           = "register"
	PurposeRefresh            = "refresh"
	PurposePasswordReset      = "password_reset"
	PurposeVerificationResend = "verification_resend"
)

func (c RateLimitConfig) policy(purpose string, p RateLimitPolicy) rate.Policy {
	return rate.Policy{
		Purpose:     purpose,
		MaxAttempts: p.MaxAttempts,
		Window:      p.Window,
		Lockout:     p.Lockout,
		KeyPrefix:   c.KeyPrefix + purpose + ":",
	}
}

func (c RateLimitConfig) policies() flows.Policies {
	return flows.Policies{
		Login:        c.policy(PurposeLogin, c.Login),
		Register:     c.policy(PurposeRegister, c.Register),
		Refresh:      c.policy(PurposeRefresh, c.Refresh),
		ResetRequest: c.policy(PurposePasswordReset, c.PasswordReset),
		Resend:       c.policy(PurposeVerificationResend, c.VerificationResend),
	}
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig sets the lifetime of one-time tokens.
type TokenConfig struct {
	VerifyEmailTTL   time.Duration `env:"VERIFY_EMAIL_TTL"`
	ResetPasswordTTL time.Duration `env:"RESET_PASSWORD_TTL"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the local acceptance policy and the argon2id
// parameters used by the bundled identity provider.
type PasswordConfig struct {
	MinLength     int  `env:"MIN_LENGTH"`
	MaxLength     int  `env:"MAX_LENGTH"`
	RequireMixed  bool `env:"REQUIRE_MIXED"`
	RequireDigit  bool `env:"REQUIRE_DIGIT"`
	RequireSymbol bool `env:"REQUIRE_SYMBOL"`

	Memory      uint32 `env:"ARGON2_MEMORY"` // in KB
	Time        uint32 `env:"ARGON2_TIME"`
	Parallelism uint8  `env:"ARGON2_PARALLELISM"`
	SaltLength  uint32 `env:"ARGON2_SALT_LENGTH"`
	KeyLength   uint32 `env:"ARGON2_KEY_LENGTH"`
}

// Hashing returns the argon2id parameters as a password.Config.
func (c PasswordConfig) Hashing() password.Config {
	return password.Config{
		Memory:           c.Memory,
		Time:             c.Time,
		Parallelism:      c.Parallelism,
		SaltLength:       c.SaltLength,
		KeyLength:        c.KeyLength,
		MaxPasswordBytes: 4 * c.MaxLength,
	}
}

func (c PasswordConfig) policy() flows.PasswordPolicy {
	return flows.PasswordPolicy{
		MinLength:     c.MinLength,
		MaxLength:     c.MaxLength,
		RequireMixed:  c.RequireMixed,
		RequireDigit:  c.RequireDigit,
		RequireSymbol: c.RequireSymbol,
	}
}

/*
====================================
ACCESS CONFIG
====================================
*/

// ValidationMode selects how ValidateAccess treats access tokens.
type ValidationMode int

const (
	// ModeJWTOnly trusts a valid signature until the token expires.
	ModeJWTOnly ValidationMode = iota
	// ModeStrict also requires the session of the token to be active.
	ModeStrict
)

func (m ValidationMode) String() string {
	switch m {
	case ModeJWTOnly:
		return "jwt_only"
	case ModeStrict:
		return "strict"
	default:
		return fmt.Sprintf("ValidationMode(%d)", int(m))
	}
}

// UnmarshalText parses "jwt_only" or "strict".
func (m *ValidationMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "jwt_only", "jwt-only", "jwt":
		*m = ModeJWTOnly
	case "strict":
		*m = ModeStrict
	default:
		return fmt.Errorf("unknown validation mode %q", text)
	}
	return nil
}

// AccessConfig controls who may log in and how access tokens are checked.
type AccessConfig struct {
	RequireVerifiedEmail bool           `env:"REQUIRE_VERIFIED_EMAIL"`
	DefaultRole          string         `env:"DEFAULT_ROLE"`
	ValidationMode       ValidationMode `env:"VALIDATION_MODE"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls audit persistence and the suspicious-activity rule.
type AuditConfig struct {
	Async               bool          `env:"ASYNC"`
	BufferSize          int           `env:"BUFFER_SIZE"`
	DropIfFull          bool          `env:"DROP_IF_FULL"`
	SuspiciousWindow    time.Duration `env:"SUSPICIOUS_WINDOW"`
	SuspiciousThreshold int           `env:"SUSPICIOUS_THRESHOLD"`
	WriteTimeout        time.Duration `env:"WRITE_TIMEOUT"`
}

func (c AuditConfig) log() audit.Config {
	return audit.Config{
		Async:               c.Async,
		BufferSize:          c.BufferSize,
		DropIfFull:          c.DropIfFull,
		SuspiciousWindow:    c.SuspiciousWindow,
		SuspiciousThreshold: c.SuspiciousThreshold,
		WriteTimeout:        c.WriteTimeout,
	}
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS"`
}

/*
====================================
MAINTENANCE CONFIG
====================================
*/

// MaintenanceConfig drives the background janitor.
type MaintenanceConfig struct {
	Interval time.Duration `env:"INTERVAL"`
	// TokenRetention keeps expired token rows this long before deletion.
	TokenRetention time.Duration `env:"TOKEN_RETENTION"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. JWT keys are left empty.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: string(jwt.MethodEd25519),
			Issuer:        "shopauth",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			TTL:                 7 * 24 * time.Hour,
			RotateRefreshTokens: false,
		},
		RateLimit: RateLimitConfig{
			Login:              RateLimitPolicy{MaxAttempts: 5, Window: 15 * time.Minute, Lockout: 30 * time.Minute},
			Register:           RateLimitPolicy{MaxAttempts: 3, Window: time.Hour, Lockout: time.Hour},
			Refresh:            RateLimitPolicy{MaxAttempts: 10, Window: 5 * time.Minute, Lockout: 15 * time.Minute},
			PasswordReset:      RateLimitPolicy{MaxAttempts: 5, Window: time.Hour, Lockout: time.Hour},
			VerificationResend: RateLimitPolicy{MaxAttempts: 3, Window: time.Hour, Lockout: time.Hour},
			KeyPrefix:          "rl:",
			SweepInterval:      time.Minute,
		},
		Tokens: TokenConfig{
			VerifyEmailTTL:   24 * time.Hour,
			ResetPasswordTTL: 15 * time.Minute,
		},
		Password: PasswordConfig{
			MinLength:    12,
			MaxLength:    128,
			RequireMixed: true,
			RequireDigit: true,
			Memory:       64 * 1024,
			Time:         3,
			Parallelism:  2,
			SaltLength:   16,
			KeyLength:    32,
		},
		Access: AccessConfig{
			RequireVerifiedEmail: true,
			DefaultRole:          "buyer",
			ValidationMode:       ModeJWTOnly,
		},
		Audit: AuditConfig{
			Async:               true,
			BufferSize:          1024,
			DropIfFull:          true,
			SuspiciousWindow:    5 * time.Minute,
			SuspiciousThreshold: 3,
			WriteTimeout:        2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Maintenance: MaintenanceConfig{
			Interval:       5 * time.Minute,
			TokenRetention: 24 * time.Hour,
		},
		CallTimeout: 5 * time.Second,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
ENVIRONMENT
====================================
*/

type keyEnv struct {
	PrivateKey string `env:"JWT_PRIVATE_KEY"`
	PublicKey  string `env:"JWT_PUBLIC_KEY"`
}

// LoadConfigFromEnv overlays environment variables named prefix + field
// path onto DefaultConfig, for example SHOPAUTH_RATE_LOGIN_MAX_ATTEMPTS.
// Key material is read base64-encoded from prefix+JWT_PRIVATE_KEY and
// prefix+JWT_PUBLIC_KEY. The result is validated.
func LoadConfigFromEnv(prefix string) (Config, error) {
	cfg := DefaultConfig()
	opts := env.Options{Prefix: prefix}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	var keys keyEnv
	if err := env.ParseWithOptions(&keys, opts); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	var err error
	if cfg.JWT.PrivateKey, err = decodeKey(keys.PrivateKey); err != nil {
		return Config{}, fmt.Errorf("%sJWT_PRIVATE_KEY: %w", prefix, err)
	}
	if cfg.JWT.PublicKey, err = decodeKey(keys.PublicKey); err != nil {
		return Config{}, fmt.Errorf("%sJWT_PUBLIC_KEY: %w", prefix, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	switch jwt.SigningMethod(c.JWT.SigningMethod) {
	case jwt.MethodEd25519:
		if len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	case jwt.MethodHS256:
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.TTL <= c.JWT.AccessTTL {
		return errors.New("Session TTL must exceed JWT AccessTTL")
	}

	// Rate limits
	rl := c.RateLimit
	for name, p := range map[string]RateLimitPolicy{
		PurposeLogin:              rl.Login,
		PurposeRegister:           rl.Register,
		PurposeRefresh:            rl.Refresh,
		PurposePasswordReset:      rl.PasswordReset,
		PurposeVerificationResend: rl.VerificationResend,
	} {
		if p.MaxAttempts <= 0 {
			return fmt.Errorf("RateLimit %s MaxAttempts must be > 0", name)
		}
		if p.Window <= 0 {
			return fmt.Errorf("RateLimit %s Window must be > 0", name)
		}
		if p.Lockout < 0 {
			return fmt.Errorf("RateLimit %s Lockout must be >= 0", name)
		}
	}
	if rl.SweepInterval < 0 {
		return errors.New("RateLimit SweepInterval must be >= 0")
	}

	// Tokens
	if c.Tokens.VerifyEmailTTL <= 0 || c.Tokens.ResetPasswordTTL <= 0 {
		return errors.New("Token TTLs must be > 0")
	}

	// Password
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Access
	if strings.TrimSpace(c.Access.DefaultRole) == "" {
		return errors.New("Access DefaultRole must be set")
	}
	if c.Access.ValidationMode != ModeJWTOnly && c.Access.ValidationMode != ModeStrict {
		return errors.New("Access ValidationMode is invalid")
	}

	// Audit
	if c.Audit.Async && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Async is enabled")
	}
	if c.Audit.SuspiciousThreshold < 0 || c.Audit.SuspiciousWindow < 0 {
		return errors.New("Audit suspicious rule must be >= 0")
	}

	// Maintenance
	if c.Maintenance.Interval < 0 || c.Maintenance.TokenRetention < 0 {
		return errors.New("Maintenance durations must be >= 0")
	}

	if c.CallTimeout < 0 {
		return errors.New("CallTimeout must be >= 0")
	}

	return nil
}
