package jwt

import (
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var hardeningNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newHardenedManager(t *testing.T, priv ed25519.PrivateKey, now *time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     10 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "shopauth",
		Audience:      "storefront",
		Leeway:        30 * time.Second,
		RequireIAT:    true,
		MaxFutureIAT:  time.Minute,
		Now:           func() time.Time { return *now },
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

// buyerClaims are valid claims at hardeningNow for newHardenedManager.
func buyerClaims() AccessClaims {
	return AccessClaims{UID: "u1", SID: "s1", Role: "buyer", RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "shopauth",
		Audience:  gjwt.ClaimStrings{"storefront"},
		IssuedAt:  gjwt.NewNumericDate(hardeningNow),
		ExpiresAt: gjwt.NewNumericDate(hardeningNow.Add(10 * time.Minute)),
	}}
}

func TestParseAccessClaimChecks(t *testing.T) {
	_, priv := newEdKeys(t)
	_, otherPriv := newEdKeys(t)
	now := hardeningNow
	m := newHardenedManager(t, priv, &now)

	tests := []struct {
		name    string
		edit    func(*AccessClaims)
		method  gjwt.SigningMethod
		key     any
		wantErr bool
	}{
		{name: "valid", edit: func(*AccessClaims) {}},
		{name: "other issuer", edit: func(c *AccessClaims) { c.Issuer = "marketplace" }, wantErr: true},
		{name: "other audience", edit: func(c *AccessClaims) { c.Audience = gjwt.ClaimStrings{"admin-console"} }, wantErr: true},
		{name: "expired inside leeway", edit: func(c *AccessClaims) {
			c.ExpiresAt = gjwt.NewNumericDate(hardeningNow.Add(-20 * time.Second))
		}},
		{name: "expired past leeway", edit: func(c *AccessClaims) {
			c.ExpiresAt = gjwt.NewNumericDate(hardeningNow.Add(-45 * time.Second))
		}, wantErr: true},
		{name: "iat beyond future bound", edit: func(c *AccessClaims) {
			c.IssuedAt = gjwt.NewNumericDate(hardeningNow.Add(5 * time.Minute))
		}, wantErr: true},
		{name: "no role", edit: func(c *AccessClaims) { c.Role = "" }},
		{name: "role escalated under foreign key", edit: func(c *AccessClaims) { c.Role = "admin" }, key: otherPriv, wantErr: true},
		{name: "hmac algorithm", edit: func(*AccessClaims) {}, method: gjwt.SigningMethodHS256, key: []byte("secret-secret-secret-secret"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := buyerClaims()
			tt.edit(&claims)

			method, key := tt.method, tt.key
			if method == nil {
				method = gjwt.SigningMethodEdDSA
			}
			if key == nil {
				key = priv
			}
			token, err := gjwt.NewWithClaims(method, claims).SignedString(key)
			if err != nil {
				t.Fatalf("sign token: %v", err)
			}

			got, err := m.ParseAccess(token)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidToken) {
					t.Fatalf("expected ErrInvalidToken, got claims=%+v err=%v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse access: %v", err)
			}
			if got.Role != claims.Role {
				t.Fatalf("role = %q, want %q", got.Role, claims.Role)
			}
		})
	}
}

func TestParseAccessFollowsClock(t *testing.T) {
	_, priv := newEdKeys(t)
	now := hardeningNow
	m := newHardenedManager(t, priv, &now)

	token, exp, err := m.CreateAccess("u1", "s1", "seller")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	steps := []struct {
		at      time.Time
		wantErr bool
	}{
		{at: hardeningNow},
		{at: exp.Add(29 * time.Second)},
		{at: exp.Add(31 * time.Second), wantErr: true},
		{at: hardeningNow.Add(-2 * time.Minute), wantErr: true},
	}
	for _, step := range steps {
		now = step.at
		claims, err := m.ParseAccess(token)
		if step.wantErr != (err != nil) {
			t.Fatalf("at %v: err=%v, wantErr=%v", step.at, err, step.wantErr)
		}
		if err == nil && claims.Role != "seller" {
			t.Fatalf("at %v: role = %q", step.at, claims.Role)
		}
	}
}

func TestParseAccessKeyIDs(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, priv2 := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv2,
		PublicKey:     pub2,
		KeyID:         "2026-05",
		VerifyKeys: map[string][]byte{
			"2026-04": pub1,
			"2026-05": pub2,
		},
		Now: func() time.Time { return hardeningNow },
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	tests := []struct {
		name    string
		kid     string
		key     ed25519.PrivateKey
		wantErr bool
	}{
		{name: "current key", kid: "2026-05", key: priv2},
		{name: "retired key still trusted", kid: "2026-04", key: priv1},
		{name: "kid names another key", kid: "2026-05", key: priv1, wantErr: true},
		{name: "unknown kid", kid: "2025-12", key: priv1, wantErr: true},
		{name: "missing kid", key: priv2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := AccessClaims{UID: "u1", SID: "s1", Role: "buyer", RegisteredClaims: gjwt.RegisteredClaims{
				ExpiresAt: gjwt.NewNumericDate(hardeningNow.Add(time.Minute)),
			}}
			tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
			if tt.kid != "" {
				tok.Header["kid"] = tt.kid
			}
			token, err := tok.SignedString(tt.key)
			if err != nil {
				t.Fatalf("sign token: %v", err)
			}
			if _, err := m.ParseAccess(token); tt.wantErr != (err != nil) {
				t.Fatalf("err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}
