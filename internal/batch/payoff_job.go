package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Stevencedor/EasyLoans/internal/domain/loan"
	"github.com/Stevencedor/EasyLoans/internal/pkg/apperrors"
)

// PayoffReconcileJob sweeps active loans and settles those whose recorded
// payments already cover the accrued total. Interest keeps accruing monthly,
// so a loan that was short yesterday can never become covered by waiting;
// the sweep exists to catch loans settled by out-of-band ledger fixes.
type PayoffReconcileJob struct {
	loanRepo    loan.Repository
	loanService loan.LoanService
	logger      *slog.Logger
}

func NewPayoffReconcileJob(loanRepo loan.Repository, loanSvc loan.LoanService, logger *slog.Logger) *PayoffReconcileJob {
	if loanRepo == nil || loanSvc == nil || logger == nil {
		panic("PayoffReconcileJob dependencies cannot be nil")
	}
	return &PayoffReconcileJob{
		loanRepo:    loanRepo,
		loanService: loanSvc,
		logger:      logger.With("job", "PayoffReconcile"),
	}
}

func (j *PayoffReconcileJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting loan payoff reconciliation job.")

	activeLoanIDs, err := j.loanRepo.GetAllActiveLoanIDs(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to get active loan IDs, aborting job.", slog.Any("error", err))
		return fmt.Errorf("cannot run job, failed to get active loans: %w", err)
	}
	j.logger.InfoContext(ctx, "Fetched active loan IDs.", slog.Int("count", len(activeLoanIDs)))

	if len(activeLoanIDs) == 0 {
		j.logger.InfoContext(ctx, "No active loans found to reconcile.")
		j.logger.InfoContext(ctx, "Loan payoff reconciliation job finished.", slog.Duration("duration", time.Since(startTime)))
		return nil
	}

	var wg sync.WaitGroup
	var processedCount, settledCount, errorCount atomic.Int32

	for _, loanID := range activeLoanIDs {
		wg.Add(1)
		go func(currentLoanID int64) {
			defer wg.Done()

			logCtx := j.logger.With(slog.Int64("loanID", currentLoanID))

			settled, settleErr := j.loanService.SettleIfCovered(ctx, currentLoanID)
			if settleErr != nil {
				if errors.Is(settleErr, apperrors.ErrNotFound) {
					logCtx.WarnContext(ctx, "Loan disappeared during reconciliation sweep", slog.Any("error", settleErr))
				} else {
					logCtx.ErrorContext(ctx, "Failed to reconcile loan payoff", slog.Any("error", settleErr))
					errorCount.Add(1)
				}
				return
			}

			if settled {
				logCtx.InfoContext(ctx, "Loan settled by reconciliation sweep.")
				settledCount.Add(1)
			}
			processedCount.Add(1)
		}(loanID)
	}

	wg.Wait()

	j.logger.InfoContext(ctx, "Loan payoff reconciliation job finished.",
		slog.Int("total_active_loans", len(activeLoanIDs)),
		slog.Int("processed", int(processedCount.Load())),
		slog.Int("settled", int(settledCount.Load())),
		slog.Int("errors", int(errorCount.Load())),
		slog.Duration("duration", time.Since(startTime)),
	)

	if errorCount.Load() > 0 {
		return fmt.Errorf("payoff reconciliation finished with %d errors", errorCount.Load())
	}
	return nil
}
