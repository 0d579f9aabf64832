package shopAuth

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestRunMaintenanceDeletesExpiredState(t *testing.T) {
	env := newTestEnv(t)
	reg := env.registerVerified(t, "a@x.com", "alice")
	env.register(t, "b@x.com", "bob")
	env.login(t, "a@x.com")
	env.login(t, "a@x.com")
	ctx := context.Background()

	report, err := env.engine.RunMaintenance(ctx)
	if err != nil {
		t.Fatalf("RunMaintenance failed: %v", err)
	}
	if report.SessionsDeleted != 0 || report.TokensDeleted != 0 {
		t.Fatalf("nothing should expire yet: %+v", report)
	}

	env.clock.Advance(8 * 24 * time.Hour)
	report, err = env.engine.RunMaintenance(ctx)
	if err != nil {
		t.Fatalf("RunMaintenance failed: %v", err)
	}
	if report.SessionsDeleted != 2 {
		t.Fatalf("expected 2 sessions deleted, got %d", report.SessionsDeleted)
	}
	if report.TokensDeleted != 2 {
		t.Fatalf("expected 2 tokens deleted, got %d", report.TokensDeleted)
	}
	if report.RateRecordsSwept == 0 {
		t.Fatal("expected stale rate records to be swept")
	}

	sessions, err := env.engine.ListSessions(ctx, reg.ProfileID)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions, got %d", len(sessions))
	}

	again, err := env.engine.RunMaintenance(ctx)
	if err != nil {
		t.Fatalf("second RunMaintenance failed: %v", err)
	}
	if again.SessionsDeleted != 0 || again.TokensDeleted != 0 || again.RateRecordsSwept != 0 {
		t.Fatalf("maintenance must be idempotent: %+v", again)
	}
}

func TestSuspiciousActivityFlaggedOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		ipCtx := WithClientIP(ctx, fmt.Sprintf("198.51.100.%d", i))
		_, err := env.engine.Login(ipCtx, "victim@x.com", "Wrong-password-1")
		requireKind(t, err, KindInvalidCredentials)
	}

	events, err := env.engine.AuditTrail(ctx, AuditQuery{Type: AuditSuspiciousActivity})
	if err != nil {
		t.Fatalf("AuditTrail failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 SUSPICIOUS_ACTIVITY event, got %d", len(events))
	}
	if events[0].Subject != "victim@x.com" || events[0].Metadata["distinct_ips"] != "4" {
		t.Fatalf("unexpected suspicious event: %+v", events[0])
	}

	report, err := env.engine.RunMaintenance(ctx)
	if err != nil {
		t.Fatalf("RunMaintenance failed: %v", err)
	}
	if report.SuspiciousFlagged != 0 {
		t.Fatalf("already flagged subject must not be flagged again, got %d", report.SuspiciousFlagged)
	}
}

func TestRunMaintenanceNotReady(t *testing.T) {
	var e Engine
	if _, err := e.RunMaintenance(context.Background()); err != ErrEngineNotReady {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}
