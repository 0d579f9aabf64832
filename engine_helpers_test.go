package shopAuth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/shopAuth/idp"
	"github.com/MrEthical07/shopAuth/idp/local"
	"github.com/MrEthical07/shopAuth/storage/memory"
)

const testPassword = "P@ssw0rd1234"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureNotifier struct {
	mu     sync.Mutex
	verify map[string][]string
	reset  map[string][]string
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{verify: map[string][]string{}, reset: map[string][]string{}}
}

func (n *captureNotifier) SendVerification(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verify[email] = append(n.verify[email], token)
	return nil
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset[email] = append(n.reset[email], token)
	return nil
}

func (n *captureNotifier) lastVerification(t *testing.T, email string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	tokens := n.verify[email]
	if len(tokens) == 0 {
		t.Fatalf("no verification token sent to %s", email)
	}
	return tokens[len(tokens)-1]
}

func (n *captureNotifier) lastReset(t *testing.T, email string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	tokens := n.reset[email]
	if len(tokens) == 0 {
		t.Fatalf("no reset token sent to %s", email)
	}
	return tokens[len(tokens)-1]
}

func (n *captureNotifier) resetCount(email string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reset[email])
}

// countingIdP counts credential checks and password burns of the wrapped
// provider.
type countingIdP struct {
	IdentityProvider
	verifyCalls atomic.Int64
	burnCalls   atomic.Int64
}

func (c *countingIdP) Burn(password string) {
	c.burnCalls.Add(1)
	if b, ok := c.IdentityProvider.(idp.Burner); ok {
		b.Burn(password)
	}
}

func (c *countingIdP) VerifyCredential(ctx context.Context, email, password string) (string, error) {
	c.verifyCalls.Add(1)
	return c.IdentityProvider.VerifyCredential(ctx, email, password)
}

type testEnv struct {
	engine   *Engine
	store    *memory.Store
	idp      *countingIdP
	notifier *captureNotifier
	clock    *testClock
	ipSeq    atomic.Int64
}

type testOption func(*Config, *Builder)

func withRedis(rdb redis.UniversalClient) testOption {
	return func(_ *Config, b *Builder) { b.WithRedis(rdb) }
}

func withTracerProvider(tp trace.TracerProvider) testOption {
	return func(_ *Config, b *Builder) { b.WithTracerProvider(tp) }
}

func withConfig(fn func(*Config)) testOption {
	return func(cfg *Config, _ *Builder) { fn(cfg) }
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Async = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newTestEnv(t *testing.T, opts ...testOption) *testEnv {
	t.Helper()

	cfg := testConfig()
	b := New()
	for _, opt := range opts {
		opt(&cfg, b)
	}

	provider, err := local.New(cfg.Password.Hashing())
	if err != nil {
		t.Fatalf("local.New failed: %v", err)
	}

	env := &testEnv{
		store:    memory.New(),
		idp:      &countingIdP{IdentityProvider: provider},
		notifier: newCaptureNotifier(),
		clock:    newTestClock(),
	}

	engine, err := b.
		WithConfig(cfg).
		WithStore(env.store).
		WithIdentityProvider(env.idp).
		WithNotifier(env.notifier).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	env.engine = engine
	return env
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// freshIP returns a context carrying an IP no other registration used.
func (env *testEnv) freshIP(ctx context.Context) context.Context {
	n := env.ipSeq.Add(1)
	return WithClientIP(ctx, fmt.Sprintf("10.1.%d.%d", n/250, n%250+1))
}

func (env *testEnv) register(t *testing.T, email, username string) *RegisterResult {
	t.Helper()

	res, err := env.engine.Register(env.freshIP(context.Background()), RegisterRequest{
		Email:    email,
		Username: username,
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return res
}

func (env *testEnv) registerVerified(t *testing.T, email, username string) *RegisterResult {
	t.Helper()

	res := env.register(t, email, username)
	if err := env.engine.VerifyEmail(context.Background(), env.notifier.lastVerification(t, res.Email)); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	return res
}

func (env *testEnv) login(t *testing.T, email string) *LoginResult {
	t.Helper()

	res, err := env.engine.Login(context.Background(), email, testPassword)
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", email, err)
	}
	return res
}

func (env *testEnv) auditTypes(t *testing.T, ownerID string) []string {
	t.Helper()

	events, err := env.engine.AuditTrail(context.Background(), AuditQuery{OwnerID: ownerID, Limit: 500})
	if err != nil {
		t.Fatalf("AuditTrail failed: %v", err)
	}
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func requireKind(t *testing.T, err error, kind ErrorKind) *Error {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	pub, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if pub.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, pub.Kind, pub)
	}
	return pub
}
