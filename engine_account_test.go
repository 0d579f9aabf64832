package shopAuth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/MrEthical07/shopAuth/idp/local"
	"github.com/MrEthical07/shopAuth/storage/memory"
	"github.com/MrEthical07/shopAuth/store"
)

func TestRegisterCreatesUnverifiedProfile(t *testing.T) {
	env := newTestEnv(t)

	res := env.register(t, " A@X.com", "alice")
	if res.Email != "a@x.com" || res.Username != "alice" || !res.VerificationRequired {
		t.Fatalf("unexpected result: %+v", res)
	}

	profile, err := env.store.GetProfileByID(context.Background(), res.ProfileID)
	if err != nil {
		t.Fatalf("GetProfileByID failed: %v", err)
	}
	if profile.EmailVerified {
		t.Fatal("new account must start unverified")
	}
	if profile.ExternalID == "" || profile.Role != "buyer" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	env.notifier.lastVerification(t, "a@x.com")

	types := env.auditTypes(t, res.ProfileID)
	for _, want := range []string{AuditRegisterSuccess, AuditEmailVerificationSent} {
		if !containsString(types, want) {
			t.Fatalf("missing %s audit event in %v", want, types)
		}
	}
}

func TestRegisterDuplicateIsGeneric(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@x.com", "alice")

	ctx := env.freshIP(context.Background())
	_, byEmail := env.engine.Register(ctx, RegisterRequest{Email: "a@x.com", Username: "other", Password: testPassword})
	_, byUsername := env.engine.Register(ctx, RegisterRequest{Email: "b@x.com", Username: "alice", Password: testPassword})

	requireKind(t, byEmail, KindValidation)
	if !errors.Is(byEmail, ErrRegistrationFailed) || byEmail != ErrRegistrationFailed {
		t.Fatalf("expected ErrRegistrationFailed, got %v", byEmail)
	}
	if !reflect.DeepEqual(byEmail, byUsername) {
		t.Fatalf("duplicate errors differ: %v vs %v", byEmail, byUsername)
	}
	if pub := AsError(byEmail); len(pub.Fields) != 0 {
		t.Fatalf("duplicate error must not carry field details: %v", pub.Fields)
	}

	events, err := env.engine.AuditTrail(context.Background(), AuditQuery{Type: AuditRegisterFailed})
	if err != nil {
		t.Fatalf("AuditTrail failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 REGISTER_FAILED events, got %d", len(events))
	}
}

func TestRegisterDuplicateHashesPassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@x.com", "alice")

	tests := []struct {
		name  string
		email string
		user  string
	}{
		{name: "email taken", email: "a@x.com", user: "other"},
		{name: "username taken", email: "b@x.com", user: "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := env.idp.burnCalls.Load()
			_, err := env.engine.Register(env.freshIP(context.Background()), RegisterRequest{
				Email:    tt.email,
				Username: tt.user,
				Password: testPassword,
			})
			if err != ErrRegistrationFailed {
				t.Fatalf("expected ErrRegistrationFailed, got %v", err)
			}
			if got := env.idp.burnCalls.Load() - before; got != 1 {
				t.Fatalf("duplicate registration hashed %d times, want 1", got)
			}
		})
	}

	before := env.idp.burnCalls.Load()
	env.register(t, "c@x.com", "carol")
	if env.idp.burnCalls.Load() != before {
		t.Fatal("successful registration must hash through CreateAccount only")
	}
}

// failingProfiles rejects the next CreateProfile with err.
type failingProfiles struct {
	*memory.Store
	err   error
	armed atomic.Bool
}

func (f *failingProfiles) CreateProfile(ctx context.Context, p store.Profile) error {
	if f.armed.CompareAndSwap(true, false) {
		return f.err
	}
	return f.Store.CreateProfile(ctx, p)
}

func TestRegisterRollsBackAccountWhenProfileFails(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{name: "conflict", err: store.ErrConflict, kind: KindValidation},
		{name: "outage", err: errors.New("connection reset"), kind: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			provider, err := local.New(cfg.Password.Hashing())
			if err != nil {
				t.Fatalf("local.New failed: %v", err)
			}
			profiles := &failingProfiles{Store: memory.New(), err: tt.err}
			profiles.armed.Store(true)

			engine, err := New().
				WithConfig(cfg).
				WithStore(profiles).
				WithIdentityProvider(provider).
				WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
				Build()
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			t.Cleanup(engine.Close)

			req := RegisterRequest{Email: "a@x.com", Username: "alice", Password: testPassword}
			_, err = engine.Register(WithClientIP(context.Background(), "10.9.0.1"), req)
			requireKind(t, err, tt.kind)

			if _, err := provider.VerifyCredential(context.Background(), req.Email, req.Password); err == nil {
				t.Fatal("identity account survived a failed profile write")
			}

			res, err := engine.Register(WithClientIP(context.Background(), "10.9.0.2"), req)
			if err != nil {
				t.Fatalf("retry after rollback failed: %v", err)
			}
			if res.Email != "a@x.com" {
				t.Fatalf("unexpected result: %+v", res)
			}
		})
	}
}

func TestRegisterValidationReportsFields(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Register(env.freshIP(context.Background()), RegisterRequest{
		Email:    "not-an-email",
		Username: "a!",
		Password: "short",
	})
	pub := requireKind(t, err, KindValidation)
	for _, field := range []string{"email", "username", "password"} {
		if pub.Fields[field] == "" {
			t.Fatalf("expected message for %s, got %v", field, pub.Fields)
		}
	}
	if err == ErrRegistrationFailed {
		t.Fatal("input validation must not use the generic duplicate error")
	}
}

func TestRegisterPasswordPolicy(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name     string
		password string
		ok       bool
	}{
		{"valid", testPassword, true},
		{"too short", "P@ssw0rd", false},
		{"no upper", "p@ssw0rd1234", false},
		{"no digit", "P@sswordabcd", false},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.Register(env.freshIP(context.Background()), RegisterRequest{
				Email:    "user" + string(rune('a'+i)) + "@x.com",
				Username: "user_" + string(rune('a'+i)),
				Password: tc.password,
			})
			if tc.ok && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tc.ok {
				pub := requireKind(t, err, KindValidation)
				if pub.Fields["password"] == "" {
					t.Fatalf("expected password field message, got %v", pub.Fields)
				}
			}
		})
	}
}

func TestRegisterRateLimitedPerIP(t *testing.T) {
	env := newTestEnv(t)
	ctx := WithClientIP(context.Background(), "192.0.2.10")

	_, err := env.engine.Register(ctx, RegisterRequest{Email: "a@x.com", Username: "alice", Password: testPassword})
	if err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	_, err = env.engine.Register(ctx, RegisterRequest{Email: "a@x.com", Username: "alice", Password: testPassword})
	requireKind(t, err, KindValidation)
	_, err = env.engine.Register(ctx, RegisterRequest{Email: "bad", Username: "", Password: ""})
	requireKind(t, err, KindValidation)

	_, err = env.engine.Register(ctx, RegisterRequest{Email: "c@x.com", Username: "carol", Password: testPassword})
	pub := requireKind(t, err, KindRateLimited)
	if pub.RetryAfter < 1 {
		t.Fatalf("expected retry-after, got %d", pub.RetryAfter)
	}

	other := WithClientIP(context.Background(), "192.0.2.11")
	if _, err := env.engine.Register(other, RegisterRequest{Email: "c@x.com", Username: "carol", Password: testPassword}); err != nil {
		t.Fatalf("other IP must not be limited: %v", err)
	}
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	env := newTestEnv(t)
	reg := env.registerVerified(t, "a@x.com", "alice")
	first := env.login(t, "a@x.com")
	second := env.login(t, "a@x.com")
	ctx := context.Background()

	err := env.engine.ChangePassword(ctx, reg.ProfileID, "Wrong-password-1", "N3w-Passw0rd!!")
	requireKind(t, err, KindInvalidCredentials)

	if err := env.engine.ChangePassword(ctx, reg.ProfileID, testPassword, "N3w-Passw0rd!!"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	for _, s := range []*LoginResult{first, second} {
		_, err := env.engine.RefreshAccessToken(ctx, s.RefreshToken)
		requireKind(t, err, KindUnauthorized)
	}

	_, err = env.engine.Login(ctx, "a@x.com", testPassword)
	requireKind(t, err, KindInvalidCredentials)
	if _, err := env.engine.Login(ctx, "a@x.com", "N3w-Passw0rd!!"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}

	types := env.auditTypes(t, reg.ProfileID)
	if !containsString(types, AuditPasswordChanged) || !containsString(types, AuditPasswordChangeFailed) {
		t.Fatalf("expected password change audit events, got %v", types)
	}
}

func TestChangePasswordRejectsSamePassword(t *testing.T) {
	env := newTestEnv(t)
	reg := env.registerVerified(t, "a@x.com", "alice")

	err := env.engine.ChangePassword(context.Background(), reg.ProfileID, testPassword, testPassword)
	pub := requireKind(t, err, KindValidation)
	if pub.Fields["new_password"] == "" {
		t.Fatalf("expected new_password message, got %v", pub.Fields)
	}
}

func TestChangePasswordUnknownOwner(t *testing.T) {
	env := newTestEnv(t)

	err := env.engine.ChangePassword(context.Background(), "missing", testPassword, "N3w-Passw0rd!!")
	requireKind(t, err, KindUnauthorized)
}
