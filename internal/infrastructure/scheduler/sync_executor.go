package scheduler

import (
	"context"

	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/supplier"
)

// SyncRunner runs one catalog sync pass. Satisfied by the sync
// application service.
type SyncRunner interface {
	Run(ctx context.Context, cfg supplier.Config) (*supplier.Summary, error)
}

// SyncExecutor adapts the sync service to the scheduler's job contract.
type SyncExecutor struct {
	runner SyncRunner
	logger *zap.Logger
}

// NewSyncExecutor creates a SyncExecutor
func NewSyncExecutor(runner SyncRunner, logger *zap.Logger) *SyncExecutor {
	return &SyncExecutor{
		runner: runner,
		logger: logger,
	}
}

// Execute runs the sync described by the job and attaches its summary
func (e *SyncExecutor) Execute(ctx context.Context, job *Job) error {
	summary, err := e.runner.Run(ctx, job.Config)
	if err != nil {
		return err
	}
	job.Complete(summary)

	e.logger.Info("Catalog sync finished",
		zap.String("job_id", job.ID.String()),
		zap.Int("pages_processed", summary.PagesProcessed),
		zap.Int("product_upserts", summary.ProductUpserts),
	)
	return nil
}

var _ JobExecutor = (*SyncExecutor)(nil)
