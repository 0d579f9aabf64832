package shopAuth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrEthical07/shopAuth/internal/flows"
)

func normalizeEmail(email string) string {
	return flows.NormalizeEmail(email)
}

// RunMaintenance deletes expired sessions and tokens, sweeps stale in-memory
// rate records and flags suspicious login activity. Every step is
// idempotent and safe beside live traffic. All steps run even when one fails;
// the joined error reports every failure.
func (e *Engine) RunMaintenance(ctx context.Context) (MaintenanceReport, error) {
	var report MaintenanceReport
	if !e.ready() {
		return report, ErrEngineNotReady
	}
	ctx, span := e.start(ctx, "maintenance")

	var errs []error

	n, err := e.sessions.CleanupExpired(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	report.SessionsDeleted = n

	n, err = e.tokens.DeleteExpired(ctx, e.now().Add(-e.config.Maintenance.TokenRetention))
	if err != nil {
		errs = append(errs, err)
	}
	report.TokensDeleted = n

	if e.memRate != nil {
		report.RateRecordsSwept = e.memRate.Sweep(e.now())
	}

	flagged, err := e.audit.SweepSuspicious(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	report.SuspiciousFlagged = flagged
	for i := 0; i < flagged; i++ {
		e.metricInc(MetricSuspiciousFlagged)
	}

	err = errors.Join(errs...)
	if err != nil {
		e.logger.ErrorContext(ctx, "maintenance incomplete", slog.String("error", err.Error()))
	}
	e.finish(span, err)
	return report, err
}
