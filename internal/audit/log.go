package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/shopAuth/store"
	"github.com/google/uuid"
)

// Config controls recording and the suspicious-activity heuristic.
type Config struct {
	Async               bool
	BufferSize          int
	DropIfFull          bool
	SuspiciousWindow    time.Duration
	SuspiciousThreshold int
	WriteTimeout        time.Duration
}

// DefaultConfig returns async recording with a 5 minute / 3 IP heuristic.
func DefaultConfig() Config {
	return Config{
		Async:               true,
		BufferSize:          1024,
		SuspiciousWindow:    5 * time.Minute,
		SuspiciousThreshold: 3,
		WriteTimeout:        2 * time.Second,
	}
}

// Log is the append-only audit log.
type Log struct {
	store      store.AuditStore
	cfg        Config
	logger     *slog.Logger
	mirror     Sink
	dispatcher *Dispatcher
	now        func() time.Time
}

// NewLog creates a Log over s. mirror, when non-nil, receives every event
// after it is stored.
func NewLog(s store.AuditStore, cfg Config, logger *slog.Logger, mirror Sink, now func() time.Time) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	if cfg.SuspiciousWindow <= 0 {
		cfg.SuspiciousWindow = DefaultConfig().SuspiciousWindow
	}
	if cfg.SuspiciousThreshold <= 0 {
		cfg.SuspiciousThreshold = DefaultConfig().SuspiciousThreshold
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}

	l := &Log{
		store:  s,
		cfg:    cfg,
		logger: logger,
		mirror: mirror,
		now:    now,
	}
	if cfg.Async {
		l.dispatcher = NewDispatcher(DispatcherConfig{
			BufferSize: cfg.BufferSize,
			DropIfFull: cfg.DropIfFull,
		}, sinkFunc(l.write))
	}
	return l
}

// Record appends e. It never fails the caller.
func (l *Log) Record(ctx context.Context, e Event) {
	if l == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now().UTC()
	}

	if l.dispatcher != nil {
		l.dispatcher.Emit(context.WithoutCancel(ctx), e)
		return
	}
	l.write(context.WithoutCancel(ctx), e)
}

func (l *Log) write(ctx context.Context, e Event) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.WriteTimeout)
	defer cancel()

	if err := l.store.AppendAudit(ctx, e); err != nil {
		l.logger.Error("audit write failed",
			slog.String("error", err.Error()),
			slog.String("event_type", e.Type),
			slog.String("event_id", e.ID),
		)
	}
	if l.mirror != nil {
		l.mirror.Emit(ctx, e)
	}

	if e.Type == EventLoginFailed {
		l.checkSuspicious(ctx, e)
	}
}

// checkSuspicious flags an identity attacked from more distinct IPs than the
// threshold inside the trailing window. Advisory only.
func (l *Log) checkSuspicious(ctx context.Context, e Event) {
	if e.Subject == "" {
		return
	}

	since := e.CreatedAt.Add(-l.cfg.SuspiciousWindow)
	n, err := l.store.DistinctIPs(ctx, EventLoginFailed, e.Subject, since)
	if err != nil {
		l.logger.Warn("suspicious activity check failed",
			slog.String("error", err.Error()),
			slog.String("subject", e.Subject),
		)
		return
	}
	if n <= l.cfg.SuspiciousThreshold {
		return
	}

	l.write(ctx, l.suspiciousEvent(e.Subject, e.OwnerID, n, "login_failures"))
}

func (l *Log) suspiciousEvent(subject, ownerID string, distinctIPs int, trigger string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      EventSuspiciousActivity,
		OwnerID:   ownerID,
		Subject:   subject,
		Success:   false,
		Reason:    "distinct_ip_threshold",
		CreatedAt: l.now().UTC(),
		Metadata: map[string]string{
			"distinct_ips": fmt.Sprint(distinctIPs),
			"window":       l.cfg.SuspiciousWindow.String(),
			"trigger":      trigger,
		},
	}
}

// SweepSuspicious scans the trailing window for identities over the IP
// threshold that have not been flagged inside that window and flags them.
// It is idempotent within a window and safe to run beside live traffic.
func (l *Log) SweepSuspicious(ctx context.Context) (int, error) {
	if l == nil {
		return 0, nil
	}
	since := l.now().Add(-l.cfg.SuspiciousWindow)

	subjects, err := l.store.SubjectsOverIPThreshold(ctx, EventLoginFailed, since, l.cfg.SuspiciousThreshold)
	if err != nil {
		return 0, err
	}

	flagged := 0
	for _, subject := range subjects {
		seen, err := l.store.HasEventSince(ctx, EventSuspiciousActivity, subject, since)
		if err != nil {
			return flagged, err
		}
		if seen {
			continue
		}
		n, err := l.store.DistinctIPs(ctx, EventLoginFailed, subject, since)
		if err != nil {
			return flagged, err
		}
		l.write(ctx, l.suspiciousEvent(subject, "", n, "sweep"))
		flagged++
	}
	return flagged, nil
}

// List returns events matching q, newest first.
func (l *Log) List(ctx context.Context, q store.AuditQuery) ([]Event, error) {
	switch {
	case q.Limit <= 0:
		q.Limit = 50
	case q.Limit > 500:
		q.Limit = 500
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return l.store.ListAudit(ctx, q)
}

// Close drains pending async events.
func (l *Log) Close() {
	if l == nil {
		return
	}
	l.dispatcher.Close()
}

// Dropped reports events lost to dispatcher backpressure.
func (l *Log) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.dispatcher.Dropped()
}
