package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	shopAuth "github.com/MrEthical07/shopAuth"
)

type fakeMaintainer struct {
	calls  atomic.Int64
	report shopAuth.MaintenanceReport
	err    error
}

func (f *fakeMaintainer) RunMaintenance(context.Context) (shopAuth.MaintenanceReport, error) {
	f.calls.Add(1)
	return f.report, f.err
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(w *syncBuffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func TestRunOnceLogsReport(t *testing.T) {
	var out syncBuffer
	m := &fakeMaintainer{report: shopAuth.MaintenanceReport{SessionsDeleted: 3, TokensDeleted: 2}}
	j := NewJanitor(m, newTestLogger(&out), time.Minute)

	j.RunOnce(context.Background())

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out.String())), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", out.String(), err)
	}
	if entry["msg"] != "maintenance pass completed" {
		t.Fatalf("msg = %v", entry["msg"])
	}
	if entry["sessions_deleted"] != float64(3) || entry["tokens_deleted"] != float64(2) {
		t.Fatalf("report not logged: %v", entry)
	}
}

func TestRunOnceLogsFailure(t *testing.T) {
	var out syncBuffer
	m := &fakeMaintainer{err: errors.New("store down")}
	j := NewJanitor(m, newTestLogger(&out), time.Minute)

	j.RunOnce(context.Background())

	if !strings.Contains(out.String(), `"level":"ERROR"`) || !strings.Contains(out.String(), "store down") {
		t.Fatalf("expected error log, got %q", out.String())
	}
}

func TestStartRunsUntilCancelled(t *testing.T) {
	var out syncBuffer
	m := &fakeMaintainer{}
	j := NewJanitor(m, newTestLogger(&out), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for m.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 passes, got %d", m.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
	if !strings.Contains(out.String(), "maintenance janitor stopped") {
		t.Fatal("expected stop log")
	}
}

func TestNewJanitorDefaultsInterval(t *testing.T) {
	j := NewJanitor(&fakeMaintainer{}, nil, 0)
	if j.interval != 5*time.Minute {
		t.Fatalf("interval = %v, want 5m", j.interval)
	}
}
