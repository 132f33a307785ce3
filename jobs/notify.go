package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HandleNotifyDeliver loads a stored notification and hands it to the
// delivery channel. Push and email transports are out of process; this
// handler records the hand-off. A missing row means the record was deleted
// after enqueue, which is not worth a retry.
func HandleNotifyDeliver(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload NotifyDeliverPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		var recipientUID, noteType, title string
		err := pool.QueryRow(ctx, `SELECT recipient_uid, type, title FROM notifications WHERE id=$1`, payload.NotificationID).
			Scan(&recipientUID, &noteType, &title)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return asynq.SkipRetry
			}
			return err
		}
		logger.Info("notification delivered",
			slog.String("notification_id", payload.NotificationID.String()),
			slog.String("recipient_uid", recipientUID),
			slog.String("type", noteType),
			slog.String("title", title))
		return nil
	}
}
