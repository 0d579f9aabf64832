package sessions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/shopAuth/internal/rate"
	"github.com/MrEthical07/shopAuth/storage/memory"
	"github.com/MrEthical07/shopAuth/store"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
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

func refreshPolicy() rate.Policy {
	return rate.Policy{
		Purpose:     "refresh",
		MaxAttempts: 3,
		Window:      5 * time.Minute,
		Lockout:     15 * time.Minute,
		KeyPrefix:   "rl:refresh:",
	}
}

func newTestManager(t *testing.T, rotate bool) (*Manager, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	limiter := rate.NewWithClock(rate.NewMemoryStore(), clock.Now)
	m := New(memory.New(), limiter, Config{
		RotateRefreshTokens: rotate,
		RefreshPolicy:       refreshPolicy(),
	}, clock.Now)
	return m, clock
}

func TestCreateSessionDefaults(t *testing.T) {
	m, clock := newTestManager(t, false)
	ctx := context.Background()

	sess, token, err := m.Create(ctx, "u1", store.DeviceMeta{IP: "10.0.0.1", UserAgent: "ua"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !sess.ExpiresAt.Equal(clock.Now().Add(7 * 24 * time.Hour)) {
		t.Fatalf("expected 7 day expiry, got %v", sess.ExpiresAt)
	}
	if !sess.LastUsedAt.Equal(clock.Now()) {
		t.Fatalf("expected lastUsedAt=now, got %v", sess.LastUsedAt)
	}

	got, err := m.GetActiveByRefreshToken(ctx, token)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got.ID != sess.ID || got.Device.IP != "10.0.0.1" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestRevokeAllDeactivatesEverySession(t *testing.T) {
	m, _ := newTestManager(t, false)
	ctx := context.Background()

	_, t1, _ := m.Create(ctx, "u1", store.DeviceMeta{})
	_, t2, _ := m.Create(ctx, "u1", store.DeviceMeta{})
	_, other, _ := m.Create(ctx, "u2", store.DeviceMeta{})

	n, err := m.RevokeAll(ctx, "u1")
	if err != nil {
		t.Fatalf("revokeAll failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 revoked, got %d", n)
	}

	for _, tok := range []string{t1, t2} {
		if _, err := m.GetActiveByRefreshToken(ctx, tok); !errors.Is(err, ErrNotFound) {
			t.Fatalf("revoked session must not resolve, got %v", err)
		}
	}
	if _, err := m.GetActiveByRefreshToken(ctx, other); err != nil {
		t.Fatalf("other owner's session must survive: %v", err)
	}
}

func TestRevokedSessionIsNeverReactivated(t *testing.T) {
	m, _ := newTestManager(t, false)
	ctx := context.Background()

	sess, token, _ := m.Create(ctx, "u1", store.DeviceMeta{})
	if err := m.Revoke(ctx, sess.ID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, _, err := m.Refresh(ctx, sess); !errors.Is(err, ErrNotFound) {
		t.Fatalf("refresh of stale revoked copy must fail, got %v", err)
	}
	if _, err := m.GetActiveByRefreshToken(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("revoked session must stay revoked, got %v", err)
	}
}

func TestExpiredSessionDetectedPassively(t *testing.T) {
	m, clock := newTestManager(t, false)
	ctx := context.Background()

	_, token, _ := m.Create(ctx, "u1", store.DeviceMeta{})
	clock.Advance(7 * 24 * time.Hour)

	if _, err := m.GetActiveByRefreshToken(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired session must not resolve, got %v", err)
	}
}

func TestRefreshUpdatesLastUsedWithoutRotation(t *testing.T) {
	m, clock := newTestManager(t, false)
	ctx := context.Background()

	sess, token, _ := m.Create(ctx, "u1", store.DeviceMeta{})
	clock.Advance(time.Minute)

	updated, next, err := m.Refresh(ctx, sess)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if next != "" {
		t.Fatal("rotation disabled must not issue a new refresh token")
	}
	if !updated.LastUsedAt.Equal(clock.Now()) {
		t.Fatalf("expected lastUsedAt advanced, got %v", updated.LastUsedAt)
	}
	if !updated.ExpiresAt.Equal(sess.ExpiresAt) {
		t.Fatal("refresh must not extend expiry")
	}
	if _, err := m.GetActiveByRefreshToken(ctx, token); err != nil {
		t.Fatalf("original token must stay valid: %v", err)
	}
}

func TestRefreshRotationInvalidatesOldToken(t *testing.T) {
	m, _ := newTestManager(t, true)
	ctx := context.Background()

	sess, oldToken, _ := m.Create(ctx, "u1", store.DeviceMeta{})
	_, next, err := m.Refresh(ctx, sess)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if next == "" || next == oldToken {
		t.Fatal("rotation must issue a fresh refresh token")
	}
	if _, err := m.GetActiveByRefreshToken(ctx, oldToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old token must stop resolving after rotation, got %v", err)
	}
	if _, err := m.GetActiveByRefreshToken(ctx, next); err != nil {
		t.Fatalf("rotated token must resolve: %v", err)
	}

	// a second rotation from the stale copy loses the compare-and-swap
	if _, _, err := m.Refresh(ctx, sess); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale rotation must fail, got %v", err)
	}
}

func TestRefreshIsRateLimitedPerOwner(t *testing.T) {
	m, _ := newTestManager(t, false)
	ctx := context.Background()

	sess, _, _ := m.Create(ctx, "u1", store.DeviceMeta{})
	for i := 0; i < refreshPolicy().MaxAttempts; i++ {
		if _, _, err := m.Refresh(ctx, sess); err != nil {
			t.Fatalf("refresh %d failed: %v", i, err)
		}
	}
	if _, _, err := m.Refresh(ctx, sess); !errors.Is(err, rate.ErrRateLimited) {
		t.Fatalf("expected refresh throttled, got %v", err)
	}
}

func TestCleanupExpiredIsIdempotent(t *testing.T) {
	m, clock := newTestManager(t, false)
	ctx := context.Background()

	_, _, _ = m.Create(ctx, "u1", store.DeviceMeta{})
	clock.Advance(24 * time.Hour)
	_, live, _ := m.Create(ctx, "u1", store.DeviceMeta{})
	clock.Advance(6*24*time.Hour + time.Second)

	n, err := m.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one expired session purged, got %d", n)
	}
	n, err = m.CleanupExpired(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second cleanup must be a no-op, n=%d err=%v", n, err)
	}
	if _, err := m.GetActiveByRefreshToken(ctx, live); err != nil {
		t.Fatalf("unexpired session must survive cleanup: %v", err)
	}
}

func TestListActive(t *testing.T) {
	m, clock := newTestManager(t, false)
	ctx := context.Background()

	first, _, _ := m.Create(ctx, "u1", store.DeviceMeta{Name: "phone"})
	clock.Advance(time.Second)
	second, _, _ := m.Create(ctx, "u1", store.DeviceMeta{Name: "laptop"})
	revoked, _, _ := m.Create(ctx, "u1", store.DeviceMeta{})
	_ = m.Revoke(ctx, revoked.ID)

	list, err := m.ListActive(ctx, "u1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("unexpected active list: %+v", list)
	}
}
