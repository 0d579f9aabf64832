package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func TestCreateAndParseRoundTrip(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	m, err := NewManager(Config{
		AccessTTL:     15 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "shopauth",
		Now:           func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, exp, err := m.CreateAccess("u1", "s1", "seller")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if !exp.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("expiry = %v", exp)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.UID != "u1" || claims.SID != "s1" || claims.Role != "seller" || claims.Subject != "u1" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	now = now.Add(16 * time.Minute)
	if _, err := m.ParseAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token error = %v, want ErrInvalidToken", err)
	}
}

func TestNewManagerRejectsShortSecret(t *testing.T) {
	_, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")})
	if err == nil {
		t.Fatal("expected short hs256 secret to be rejected")
	}
}

func TestParseAccessRequiresSessionID(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: secret})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := AccessClaims{UID: "u1", RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected token without sid to be rejected")
	}
}

func TestParseAccessRequiresExpiry(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: secret})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := AccessClaims{UID: "u1", SID: "s1"}
	token, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(secret)
	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected token without exp to be rejected")
	}
}
