// Package storetest holds a behavioural suite every store.Store backend must
// pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/shopAuth/store"
	"github.com/google/uuid"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) store.Store

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Run executes the conformance suite against newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("TokenMarkUsedOnce", func(t *testing.T) { testTokenMarkUsedOnce(t, newStore(t)) })
	t.Run("TokenMarkUsedExpired", func(t *testing.T) { testTokenMarkUsedExpired(t, newStore(t)) })
	t.Run("TokenConcurrentMarkUsed", func(t *testing.T) { testTokenConcurrentMarkUsed(t, newStore(t)) })
	t.Run("TokenSiblings", func(t *testing.T) { testTokenSiblings(t, newStore(t)) })
	t.Run("TokenConcurrentSiblings", func(t *testing.T) { testTokenConcurrentSiblings(t, newStore(t)) })
	t.Run("TokenDeleteExpired", func(t *testing.T) { testTokenDeleteExpired(t, newStore(t)) })
	t.Run("SessionLifecycle", func(t *testing.T) { testSessionLifecycle(t, newStore(t)) })
	t.Run("SessionRotateCAS", func(t *testing.T) { testSessionRotateCAS(t, newStore(t)) })
	t.Run("SessionRevokeAll", func(t *testing.T) { testSessionRevokeAll(t, newStore(t)) })
	t.Run("AuditQueries", func(t *testing.T) { testAuditQueries(t, newStore(t)) })
	t.Run("AuditIPHeuristics", func(t *testing.T) { testAuditIPHeuristics(t, newStore(t)) })
	t.Run("ProfileUniqueness", func(t *testing.T) { testProfileUniqueness(t, newStore(t)) })
}

func newID() string { return uuid.NewString() }

func token(owner string, purpose store.TokenPurpose, ttl time.Duration) store.Token {
	return store.Token{
		ID:         newID(),
		OwnerID:    owner,
		Purpose:    purpose,
		SecretHash: [32]byte{1, 2, 3},
		CreatedAt:  base,
		ExpiresAt:  base.Add(ttl),
	}
}

func testTokenMarkUsedOnce(t *testing.T, s store.Store) {
	ctx := context.Background()
	tok := token(newID(), store.PurposeVerifyEmail, time.Hour)
	if err := s.CreateToken(ctx, tok); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if err := s.CreateToken(ctx, tok); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate CreateToken = %v, want ErrConflict", err)
	}

	got, err := s.GetToken(ctx, tok.ID)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got.SecretHash != tok.SecretHash || got.Purpose != tok.Purpose || got.UsedAt != nil {
		t.Fatalf("unexpected token %+v", got)
	}

	used, err := s.MarkUsed(ctx, tok.ID, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("MarkUsed: %v", err)
	}
	if used.UsedAt == nil || !used.UsedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("UsedAt = %v", used.UsedAt)
	}
	if _, err := s.MarkUsed(ctx, tok.ID, base.Add(2*time.Minute)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second MarkUsed = %v, want ErrNotFound", err)
	}
	if _, err := s.GetToken(ctx, newID()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetToken(unknown) = %v, want ErrNotFound", err)
	}
}

func testTokenMarkUsedExpired(t *testing.T, s store.Store) {
	ctx := context.Background()
	tok := token(newID(), store.PurposeResetPassword, time.Minute)
	if err := s.CreateToken(ctx, tok); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if _, err := s.MarkUsed(ctx, tok.ID, tok.ExpiresAt); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("MarkUsed at expiry = %v, want ErrNotFound", err)
	}
}

func testTokenConcurrentMarkUsed(t *testing.T, s store.Store) {
	ctx := context.Background()
	tok := token(newID(), store.PurposeResetPassword, time.Hour)
	if err := s.CreateToken(ctx, tok); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.MarkUsed(ctx, tok.ID, base.Add(time.Second)); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("winners = %d, want 1", wins.Load())
	}
}

func testTokenSiblings(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := newID()
	keep := token(owner, store.PurposeResetPassword, time.Hour)
	sibling := token(owner, store.PurposeResetPassword, time.Hour)
	otherPurpose := token(owner, store.PurposeVerifyEmail, time.Hour)
	for _, tok := range []store.Token{keep, sibling, otherPurpose} {
		if err := s.CreateToken(ctx, tok); err != nil {
			t.Fatalf("CreateToken: %v", err)
		}
	}

	used, err := s.MarkUsedExclusive(ctx, keep.ID, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("MarkUsedExclusive: %v", err)
	}
	if used.ID != keep.ID || used.UsedAt == nil {
		t.Fatalf("unexpected consumed token: %+v", used)
	}

	if got, _ := s.GetToken(ctx, otherPurpose.ID); got.UsedAt != nil {
		t.Fatal("token of another purpose was marked used")
	}
	if got, _ := s.GetToken(ctx, sibling.ID); got.UsedAt == nil {
		t.Fatal("sibling token still unused")
	}
	if _, err := s.MarkUsedExclusive(ctx, sibling.ID, base.Add(2*time.Minute)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("retired sibling redeemed: %v", err)
	}
}

func testTokenConcurrentSiblings(t *testing.T, s store.Store) {
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		owner := newID()
		first := token(owner, store.PurposeResetPassword, time.Hour)
		second := token(owner, store.PurposeResetPassword, time.Hour)
		for _, tok := range []store.Token{first, second} {
			if err := s.CreateToken(ctx, tok); err != nil {
				t.Fatalf("CreateToken: %v", err)
			}
		}

		var (
			wg   sync.WaitGroup
			wins atomic.Int64
		)
		for _, id := range []string{first.ID, second.ID} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if _, err := s.MarkUsedExclusive(ctx, id, base.Add(time.Second)); err == nil {
					wins.Add(1)
				}
			}(id)
		}
		wg.Wait()

		if wins.Load() != 1 {
			t.Fatalf("round %d: sibling winners = %d, want 1", round, wins.Load())
		}
	}
}

func testTokenDeleteExpired(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := newID()
	short := token(owner, store.PurposeVerifyEmail, time.Minute)
	long := token(owner, store.PurposeVerifyEmail, 48*time.Hour)
	for _, tok := range []store.Token{short, long} {
		if err := s.CreateToken(ctx, tok); err != nil {
			t.Fatalf("CreateToken: %v", err)
		}
	}

	n, err := s.DeleteExpiredTokens(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteExpiredTokens: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted = %d, want 1", n)
	}
	if _, err := s.GetToken(ctx, short.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expired token still present: %v", err)
	}
	if _, err := s.GetToken(ctx, long.ID); err != nil {
		t.Fatalf("live token removed: %v", err)
	}
}

func session(owner string, ttl time.Duration) store.Session {
	return store.Session{
		ID:          newID(),
		OwnerID:     owner,
		RefreshHash: [32]byte{9},
		Device:      store.DeviceMeta{Name: "laptop", IP: "10.0.0.1", UserAgent: "test-agent"},
		CreatedAt:   base,
		LastUsedAt:  base,
		ExpiresAt:   base.Add(ttl),
	}
}

func testSessionLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	sess := session(newID(), time.Hour)
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Device != sess.Device {
		t.Fatalf("device = %+v, want %+v", got.Device, sess.Device)
	}

	touched, err := s.TouchSession(ctx, sess.ID, base.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("TouchSession: %v", err)
	}
	if !touched.LastUsedAt.Equal(base.Add(10 * time.Minute)) {
		t.Fatalf("LastUsedAt = %v", touched.LastUsedAt)
	}
	if _, err := s.TouchSession(ctx, sess.ID, sess.ExpiresAt); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("touch after expiry = %v, want ErrNotFound", err)
	}

	if err := s.RevokeSession(ctx, sess.ID, base.Add(20*time.Minute)); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if err := s.RevokeSession(ctx, sess.ID, base.Add(30*time.Minute)); err != nil {
		t.Fatalf("second RevokeSession: %v", err)
	}
	got, _ = s.GetSession(ctx, sess.ID)
	if got.RevokedAt == nil || !got.RevokedAt.Equal(base.Add(20*time.Minute)) {
		t.Fatalf("RevokedAt = %v, want first revocation time", got.RevokedAt)
	}
	if _, err := s.TouchSession(ctx, sess.ID, base.Add(21*time.Minute)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("touch after revoke = %v, want ErrNotFound", err)
	}
	if err := s.RevokeSession(ctx, newID(), base); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("revoke unknown = %v, want ErrNotFound", err)
	}

	n, err := s.DeleteExpiredSessions(ctx, sess.ExpiresAt)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted = %d, want 1", n)
	}
}

func testSessionRotateCAS(t *testing.T, s store.Store) {
	ctx := context.Background()
	sess := session(newID(), time.Hour)
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	next := [32]byte{7}
	rotated, err := s.RotateRefresh(ctx, sess.ID, sess.RefreshHash, next, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("RotateRefresh: %v", err)
	}
	if rotated.RefreshHash != next {
		t.Fatal("refresh hash not swapped")
	}
	if _, err := s.RotateRefresh(ctx, sess.ID, sess.RefreshHash, [32]byte{8}, base.Add(2*time.Minute)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("stale rotate = %v, want ErrNotFound", err)
	}
}

func testSessionRevokeAll(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := newID()
	first := session(owner, time.Hour)
	second := session(owner, time.Hour)
	second.CreatedAt = base.Add(time.Minute)
	other := session(newID(), time.Hour)
	for _, sess := range []store.Session{first, second, other} {
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	active, err := s.ListActiveSessions(ctx, owner, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("ListActiveSessions: %v", err)
	}
	if len(active) != 2 || active[0].ID != second.ID {
		t.Fatalf("active = %+v, want newest first", active)
	}

	n, err := s.RevokeAllSessions(ctx, owner, base.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("RevokeAllSessions: %v", err)
	}
	if n != 2 {
		t.Fatalf("revoked = %d, want 2", n)
	}
	active, _ = s.ListActiveSessions(ctx, owner, base.Add(4*time.Minute))
	if len(active) != 0 {
		t.Fatalf("active after revoke-all = %d", len(active))
	}
	if got, _ := s.GetSession(ctx, other.ID); got.RevokedAt != nil {
		t.Fatal("another owner's session was revoked")
	}
}

func event(typ, owner, subject, ip string, at time.Time) store.AuditEvent {
	return store.AuditEvent{
		ID:        newID(),
		Type:      typ,
		OwnerID:   owner,
		Subject:   subject,
		IP:        ip,
		Success:   false,
		Metadata:  map[string]string{"k": "v"},
		CreatedAt: at,
	}
}

func testAuditQueries(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := newID()
	for i := 0; i < 5; i++ {
		if err := s.AppendAudit(ctx, event("LOGIN_FAILED", owner, "a@example.com", "10.0.0.1", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}
	if err := s.AppendAudit(ctx, event("LOGOUT", owner, "", "", base.Add(10*time.Second))); err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}

	all, err := s.ListAudit(ctx, store.AuditQuery{OwnerID: owner})
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(all) != 6 || all[0].Type != "LOGOUT" {
		t.Fatalf("events = %d, first = %q", len(all), all[0].Type)
	}
	if all[1].Metadata["k"] != "v" {
		t.Fatalf("metadata = %v", all[1].Metadata)
	}

	page, err := s.ListAudit(ctx, store.AuditQuery{OwnerID: owner, Type: "LOGIN_FAILED", Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListAudit page: %v", err)
	}
	if len(page) != 2 || !page[0].CreatedAt.Equal(base.Add(3*time.Second)) {
		t.Fatalf("page = %+v", page)
	}
}

func testAuditIPHeuristics(t *testing.T, s store.Store) {
	ctx := context.Background()
	subject := fmt.Sprintf("%s@example.com", newID())
	for i := 0; i < 4; i++ {
		ip := fmt.Sprintf("10.0.0.%d", i+1)
		if err := s.AppendAudit(ctx, event("LOGIN_FAILED", "", subject, ip, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}

	n, err := s.DistinctIPs(ctx, "LOGIN_FAILED", subject, base)
	if err != nil {
		t.Fatalf("DistinctIPs: %v", err)
	}
	if n != 4 {
		t.Fatalf("distinct = %d, want 4", n)
	}
	n, _ = s.DistinctIPs(ctx, "LOGIN_FAILED", subject, base.Add(2*time.Minute))
	if n != 2 {
		t.Fatalf("distinct since +2m = %d, want 2", n)
	}

	subjects, err := s.SubjectsOverIPThreshold(ctx, "LOGIN_FAILED", base, 3)
	if err != nil {
		t.Fatalf("SubjectsOverIPThreshold: %v", err)
	}
	found := false
	for _, got := range subjects {
		if got == subject {
			found = true
		}
	}
	if !found {
		t.Fatalf("subjects = %v, want %q", subjects, subject)
	}

	has, err := s.HasEventSince(ctx, "LOGIN_FAILED", subject, base.Add(3*time.Minute))
	if err != nil || !has {
		t.Fatalf("HasEventSince = %v, %v", has, err)
	}
	has, _ = s.HasEventSince(ctx, "LOGIN_FAILED", subject, base.Add(time.Hour))
	if has {
		t.Fatal("HasEventSince matched outside the window")
	}
}

func testProfileUniqueness(t *testing.T, s store.Store) {
	ctx := context.Background()
	suffix := newID()[:8]
	p := store.Profile{
		ID:         newID(),
		ExternalID: newID(),
		Email:      "Buyer-" + suffix + "@Example.com",
		Username:   "buyer_" + suffix,
		Role:       "buyer",
		CreatedAt:  base,
	}
	if err := s.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}

	dup := p
	dup.ID = newID()
	dup.Username = "other_" + suffix
	dup.Email = "buyer-" + suffix + "@example.com"
	if err := s.CreateProfile(ctx, dup); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate email = %v, want ErrConflict", err)
	}

	got, err := s.GetProfileByEmail(ctx, "BUYER-"+suffix+"@EXAMPLE.COM")
	if err != nil || got.ID != p.ID {
		t.Fatalf("GetProfileByEmail = %+v, %v", got, err)
	}
	if _, err := s.GetProfileByUsername(ctx, "BUYER_"+suffix); err != nil {
		t.Fatalf("GetProfileByUsername: %v", err)
	}

	if err := s.MarkEmailVerified(ctx, p.ID); err != nil {
		t.Fatalf("MarkEmailVerified: %v", err)
	}
	got, _ = s.GetProfileByID(ctx, p.ID)
	if !got.EmailVerified {
		t.Fatal("profile not verified")
	}
	if err := s.MarkEmailVerified(ctx, newID()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("verify unknown = %v, want ErrNotFound", err)
	}
}
