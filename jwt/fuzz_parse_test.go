package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

// FuzzParseAccess checks that whatever ParseAccess accepts carries a uid, a
// sid and an expiry the manager's clock still honours.
func FuzzParseAccess(f *testing.F) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		f.Fatal(err)
	}
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	leeway := 30 * time.Second
	mgr, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "shopauth",
		Leeway:        leeway,
		RequireIAT:    true,
		MaxFutureIAT:  time.Minute,
		Now:           func() time.Time { return now },
	})
	if err != nil {
		f.Fatal(err)
	}

	for _, role := range []string{"buyer", "seller", "admin", ""} {
		token, _, err := mgr.CreateAccess("u1", "s1", role)
		if err != nil {
			f.Fatal(err)
		}
		f.Add(token)
	}
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.eyJ1aWQiOiJ1MSIsInNpZCI6InMxIiwicm9sZSI6ImFkbWluIn0.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := mgr.ParseAccess(input)
		if err != nil {
			return
		}
		if claims == nil || claims.UID == "" || claims.SID == "" {
			t.Fatalf("accepted token without identity: %+v", claims)
		}
		if claims.ExpiresAt == nil || !claims.ExpiresAt.Add(leeway).After(now) {
			t.Fatalf("accepted token past its expiry: %+v", claims)
		}
	})
}
