package shopAuth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func validEd25519Config(t *testing.T) Config {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	return cfg
}

func TestDefaultConfigNeedsKeys(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config without signing keys must not validate")
	}

	cfg = validEd25519Config(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with keys must validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "jwt leeway valid",
			mutate:    func(c *Config) { c.JWT.Leeway = 45 * time.Second },
			wantValid: true,
		},
		{
			name:      "jwt leeway invalid",
			mutate:    func(c *Config) { c.JWT.Leeway = 3 * time.Minute },
			wantValid: false,
		},
		{
			name:      "jwt signing invalid",
			mutate:    func(c *Config) { c.JWT.SigningMethod = "rs256" },
			wantValid: false,
		},
		{
			name: "hs256 short secret invalid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "hs256"
				c.JWT.PrivateKey = []byte("short")
			},
			wantValid: false,
		},
		{
			name: "hs256 valid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "hs256"
				c.JWT.PrivateKey = []byte(strings.Repeat("k", 32))
			},
			wantValid: true,
		},
		{
			name:      "session ttl below access ttl invalid",
			mutate:    func(c *Config) { c.Session.TTL = 10 * time.Minute },
			wantValid: false,
		},
		{
			name:      "login attempts zero invalid",
			mutate:    func(c *Config) { c.RateLimit.Login.MaxAttempts = 0 },
			wantValid: false,
		},
		{
			name:      "refresh window zero invalid",
			mutate:    func(c *Config) { c.RateLimit.Refresh.Window = 0 },
			wantValid: false,
		},
		{
			name:      "zero lockout valid",
			mutate:    func(c *Config) { c.RateLimit.Register.Lockout = 0 },
			wantValid: true,
		},
		{
			name:      "reset ttl zero invalid",
			mutate:    func(c *Config) { c.Tokens.ResetPasswordTTL = 0 },
			wantValid: false,
		},
		{
			name:      "password min length below floor invalid",
			mutate:    func(c *Config) { c.Password.MinLength = 6 },
			wantValid: false,
		},
		{
			name:      "password max below min invalid",
			mutate:    func(c *Config) { c.Password.MaxLength = 10 },
			wantValid: false,
		},
		{
			name:      "argon2 memory too low invalid",
			mutate:    func(c *Config) { c.Password.Memory = 1024 },
			wantValid: false,
		},
		{
			name:      "blank default role invalid",
			mutate:    func(c *Config) { c.Access.DefaultRole = "  " },
			wantValid: false,
		},
		{
			name:      "unknown validation mode invalid",
			mutate:    func(c *Config) { c.Access.ValidationMode = ValidationMode(7) },
			wantValid: false,
		},
		{
			name: "async audit without buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Async = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "sync audit without buffer valid",
			mutate: func(c *Config) {
				c.Audit.Async = false
				c.Audit.BufferSize = 0
			},
			wantValid: true,
		},
		{
			name:      "negative call timeout invalid",
			mutate:    func(c *Config) { c.CallTimeout = -time.Second },
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validEd25519Config(t)
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("s", 32)))
	t.Setenv("SHOPAUTH_JWT_SIGNING_METHOD", "hs256")
	t.Setenv("SHOPAUTH_JWT_PRIVATE_KEY", secret)
	t.Setenv("SHOPAUTH_JWT_ACCESS_TTL", "10m")
	t.Setenv("SHOPAUTH_SESSION_ROTATE_REFRESH_TOKENS", "true")
	t.Setenv("SHOPAUTH_RATE_LOGIN_MAX_ATTEMPTS", "7")
	t.Setenv("SHOPAUTH_RATE_LOGIN_LOCKOUT", "1h")
	t.Setenv("SHOPAUTH_RATE_KEY_PREFIX", "shop:")
	t.Setenv("SHOPAUTH_ACCESS_VALIDATION_MODE", "strict")
	t.Setenv("SHOPAUTH_PASSWORD_MIN_LENGTH", "14")

	cfg, err := LoadConfigFromEnv("SHOPAUTH_")
	if err != nil {
		t.Fatalf("LoadConfigFromEnv failed: %v", err)
	}
	if cfg.JWT.SigningMethod != "hs256" || len(cfg.JWT.PrivateKey) != 32 {
		t.Fatalf("unexpected jwt config: method=%q key=%d bytes", cfg.JWT.SigningMethod, len(cfg.JWT.PrivateKey))
	}
	if cfg.JWT.AccessTTL != 10*time.Minute || !cfg.Session.RotateRefreshTokens {
		t.Fatalf("unexpected jwt/session config: %+v %+v", cfg.JWT.AccessTTL, cfg.Session)
	}
	if cfg.RateLimit.Login.MaxAttempts != 7 || cfg.RateLimit.Login.Lockout != time.Hour {
		t.Fatalf("unexpected login policy: %+v", cfg.RateLimit.Login)
	}
	if cfg.RateLimit.Login.Window != 15*time.Minute {
		t.Fatalf("unset values must keep defaults, got window %v", cfg.RateLimit.Login.Window)
	}
	if got := cfg.RateLimit.policies().Login.KeyPrefix; got != "shop:login:" {
		t.Fatalf("unexpected key prefix %q", got)
	}
	if cfg.Access.ValidationMode != ModeStrict || cfg.Password.MinLength != 14 {
		t.Fatalf("unexpected access/password config: %v %d", cfg.Access.ValidationMode, cfg.Password.MinLength)
	}
}

func TestLoadConfigFromEnvErrors(t *testing.T) {
	t.Run("bad key encoding", func(t *testing.T) {
		t.Setenv("SHOPAUTH_JWT_SIGNING_METHOD", "hs256")
		t.Setenv("SHOPAUTH_JWT_PRIVATE_KEY", "%%%not-base64")
		if _, err := LoadConfigFromEnv("SHOPAUTH_"); err == nil {
			t.Fatal("expected key decoding error")
		}
	})
	t.Run("bad validation mode", func(t *testing.T) {
		t.Setenv("SHOPAUTH_ACCESS_VALIDATION_MODE", "sometimes")
		if _, err := LoadConfigFromEnv("SHOPAUTH_"); err == nil {
			t.Fatal("expected parse error")
		}
	})
	t.Run("missing keys fail validation", func(t *testing.T) {
		if _, err := LoadConfigFromEnv("SHOPAUTH_"); err == nil {
			t.Fatal("expected validation error")
		}
	})
}

func TestValidationModeText(t *testing.T) {
	for in, want := range map[string]ValidationMode{
		"strict":   ModeStrict,
		"STRICT":   ModeStrict,
		"jwt_only": ModeJWTOnly,
		" jwt ":    ModeJWTOnly,
	} {
		var m ValidationMode
		if err := m.UnmarshalText([]byte(in)); err != nil {
			t.Fatalf("UnmarshalText(%q) failed: %v", in, err)
		}
		if m != want {
			t.Fatalf("UnmarshalText(%q) = %v, want %v", in, m, want)
		}
	}
	if ModeStrict.String() != "strict" || ModeJWTOnly.String() != "jwt_only" {
		t.Fatal("unexpected String output")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Login.MaxAttempts = 0
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("Build must validate the config")
	}
}
