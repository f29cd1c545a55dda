package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"syntra-settlement/config"
	"syntra-settlement/internal/services/points"
)

type batchSyncer interface {
	BatchSyncAllUsers(ctx context.Context, lookup points.BalanceLookup, opts points.BatchOptions) (points.BatchSummary, error)
}

// runPointsSync runs one batch sync immediately and then on every tick
// until ctx is cancelled. Each run resumes where the previous one stopped;
// the cursor returns to the first user once a run reaches the last one.
func runPointsSync(ctx context.Context, syncer batchSyncer, lookup points.BalanceLookup, cfg config.SyncConfig, logger *zap.Logger) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	opts := points.BatchOptions{
		BatchSize:   cfg.BatchSize,
		MaxBatches:  cfg.MaxBatches,
		Concurrency: cfg.Concurrency,
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		summary, err := syncer.BatchSyncAllUsers(ctx, lookup, opts)
		if err != nil {
			logger.Error("Scheduled points sync failed",
				zap.Int64("start_after", opts.StartAfter),
				zap.Error(err),
			)
		} else {
			logger.Info("Scheduled points sync finished",
				zap.Int64("start_after", opts.StartAfter),
				zap.Int("batches", summary.Batches),
				zap.Int("processed", summary.Processed),
				zap.Int("updated", summary.Updated),
				zap.Int("failed", len(summary.Failed)),
				zap.Bool("exhausted", summary.Exhausted),
				zap.Duration("duration", summary.Duration),
			)
		}

		// A failed run keeps whatever progress it reported.
		opts.StartAfter = summary.LastUserID
		if err == nil && summary.Exhausted {
			opts.StartAfter = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
