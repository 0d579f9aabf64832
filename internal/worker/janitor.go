// Package worker runs the periodic maintenance of an Engine.
package worker

import (
	"context"
	"log/slog"
	"time"

	shopAuth "github.com/MrEthical07/shopAuth"
)

// Maintainer is the maintenance side of an Engine.
type Maintainer interface {
	RunMaintenance(ctx context.Context) (shopAuth.MaintenanceReport, error)
}

// Janitor calls RunMaintenance on a fixed interval.
type Janitor struct {
	target   Maintainer
	logger   *slog.Logger
	interval time.Duration
}

// NewJanitor creates a Janitor. A non-positive interval defaults to five
// minutes.
func NewJanitor(target Maintainer, logger *slog.Logger, interval time.Duration) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Janitor{target: target, logger: logger, interval: interval}
}

// Start runs one pass immediately and then one per interval until ctx is
// cancelled.
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("maintenance janitor started", slog.Duration("interval", j.interval))

	j.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("maintenance janitor stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single maintenance pass and logs its outcome.
func (j *Janitor) RunOnce(ctx context.Context) {
	start := time.Now()

	report, err := j.target.RunMaintenance(ctx)
	attrs := []any{
		slog.Int64("sessions_deleted", report.SessionsDeleted),
		slog.Int64("tokens_deleted", report.TokensDeleted),
		slog.Int("rate_records_swept", report.RateRecordsSwept),
		slog.Int("suspicious_flagged", report.SuspiciousFlagged),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	}
	if err != nil {
		j.logger.Error("maintenance pass failed", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	j.logger.Info("maintenance pass completed", attrs...)
}
