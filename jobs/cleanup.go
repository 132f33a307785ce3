package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// IdempotencyCleaner prunes one-shot keys past their retention.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// HandleIdempotencyCleanup removes claimed keys older than retention. Old
// claims only guard against replays of long-finished work, so pruning them
// keeps the table bounded without reopening any live one-shot.
func HandleIdempotencyCleanup(cleaner IdempotencyCleaner, retention time.Duration, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		if err := cleaner.Cleanup(ctx, retention); err != nil {
			return err
		}
		logger.Info("idempotency cleanup", slog.Duration("retention", retention))
		return nil
	}
}
