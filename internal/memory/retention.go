package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/trip-planner/internal/store"
)

const retentionWorkerInterval = 30 * time.Minute

// StartRetentionWorker runs a background goroutine that periodically
// deletes transcripts older than retention. A non-positive retention
// disables the worker.
func StartRetentionWorker(ctx context.Context, repo store.Repository, retention time.Duration) {
	if retention <= 0 {
		slog.Info("Memory retention worker disabled")
		return
	}

	ticker := time.NewTicker(retentionWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Memory retention worker started", "interval", retentionWorkerInterval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				sweepExpired(ctx, repo, retention)
			case <-ctx.Done():
				slog.Info("Memory retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepExpired(ctx context.Context, repo store.Repository, retention time.Duration) int64 {
	n, err := repo.CleanupExpiredMemory(ctx, retention)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Memory retention sweep canceled", "error", err)
			return 0
		}
		slog.Error("Memory retention sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		slog.Info("Memory retention sweep removed transcripts", "count", n)
	}
	return n
}
