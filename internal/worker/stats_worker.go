package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/circulation/internal/domain"
	"github.com/yourorg/circulation/internal/observability/metrics"
)

const overdueAfterDays = 30

// StatsWorker periodically refreshes the circulation gauges from the loan
// ledger so dashboards track active and overdue loans without polling the API.
type StatsWorker struct {
	loans    domain.LoanRepository
	logger   *slog.Logger
	interval time.Duration
}

// NewStatsWorker creates a new stats worker.
func NewStatsWorker(loans domain.LoanRepository, logger *slog.Logger, interval time.Duration) *StatsWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsWorker{loans: loans, logger: logger, interval: interval}
}

// Start runs the refresh loop until the context is cancelled.
func (w *StatsWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("stats worker started", slog.Duration("interval", w.interval))

	// Prime the gauges immediately rather than waiting a full interval.
	w.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stats worker stopped")
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *StatsWorker) refresh(ctx context.Context) {
	active, err := w.loans.FindActive(ctx)
	if err != nil {
		w.logger.Error("failed to count active loans", slog.String("error", err.Error()))
		return
	}
	metrics.SetActiveLoans(len(active))

	cutoff := time.Now().AddDate(0, 0, -overdueAfterDays)
	overdue, err := w.loans.FindOverdue(ctx, cutoff)
	if err != nil {
		w.logger.Error("failed to count overdue loans", slog.String("error", err.Error()))
		return
	}
	metrics.SetOverdueLoans(len(overdue))

	w.logger.Debug("circulation gauges refreshed",
		slog.Int("active", len(active)),
		slog.Int("overdue", len(overdue)),
	)
}
