package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Job prunes subscription ledger rows that finished long ago. Journal entries
// and payments are kept: entries belong to the user, payments are financial
// records.
type Job struct {
	pruner    ledgerPruner
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

type ledgerPruner interface {
	DeleteInactiveEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func New(pruner ledgerPruner, retention time.Duration, logger *zap.Logger) *Job {
	if retention <= 0 {
		retention = 365 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		pruner:    pruner,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.pruner == nil {
		return nil
	}

	cutoff := j.now().UTC().Add(-j.retention)
	rows, err := j.pruner.DeleteInactiveEndedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune subscription ledger: %w", err)
	}
	if rows > 0 {
		j.logger.Info("subscription ledger pruned", zap.Int64("deleted", rows))
	}

	return nil
}
