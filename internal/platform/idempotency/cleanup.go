package idempotency

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunCleanup purges expired keys every interval until ctx is cancelled.
func RunCleanup(ctx context.Context, store Store, interval time.Duration, batchSize int, logger *zap.Logger) {
	if store == nil || interval <= 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := drain(ctx, store, now, batchSize)
			switch {
			case err != nil:
				logger.Warn("idempotency: cleanup failed", zap.Error(err), zap.Int("removed", removed))
			case removed > 0:
				logger.Info("idempotency: expired keys removed", zap.Int("removed", removed))
			}
		}
	}
}

// drain purges full batches until one comes back short.
func drain(ctx context.Context, store Store, now time.Time, batchSize int) (int, error) {
	total := 0
	for ctx.Err() == nil {
		n, err := store.Purge(ctx, now, batchSize)
		total += n
		if err != nil || batchSize <= 0 || n < batchSize {
			return total, err
		}
	}
	return total, ctx.Err()
}
