package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Notification is a record handed to the delivery pipeline. Delivery itself
// (push, email) happens out of process; the service only persists the record
// and enqueues a delivery task.
type Notification struct {
	ID           uuid.UUID
	FamilyID     uuid.UUID
	RecipientUID string
	Type         string
	Title        string
	Body         string
	Data         map[string]any
	Read         bool
	CreatedAt    time.Time
}

// DeliveryEnqueuer submits a stored notification for asynchronous delivery.
type DeliveryEnqueuer interface {
	EnqueueNotificationDelivery(ctx context.Context, notificationID uuid.UUID) error
}

// Notifier persists notification records and hands them to the queue.
// Failures are reported to the caller, which is expected to log and continue:
// a notification must never fail the state transition that produced it.
type Notifier struct {
	pool   *pgxpool.Pool
	queue  DeliveryEnqueuer
	logger *slog.Logger
}

// NewNotifier constructs a Notifier. queue may be nil, in which case records
// are stored without being enqueued.
func NewNotifier(pool *pgxpool.Pool, queue DeliveryEnqueuer, logger *slog.Logger) *Notifier {
	return &Notifier{pool: pool, queue: queue, logger: logger}
}

// Notify stores the record and enqueues delivery.
func (n *Notifier) Notify(ctx context.Context, note Notification) error {
	if n == nil {
		return errors.New("notifier not initialised")
	}
	if note.RecipientUID == "" {
		return errors.New("notification requires recipient")
	}
	if note.Type == "" {
		return errors.New("notification requires type")
	}
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}
	dataJSON, err := json.Marshal(note.Data)
	if err != nil {
		return err
	}
	_, err = n.pool.Exec(ctx, `INSERT INTO notifications (id, family_id, recipient_uid, type, title, body, data, read, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)`,
		note.ID, note.FamilyID, note.RecipientUID, note.Type, note.Title, note.Body, dataJSON, note.CreatedAt)
	if err != nil {
		return err
	}
	if n.queue != nil {
		if err := n.queue.EnqueueNotificationDelivery(ctx, note.ID); err != nil {
			n.logger.Warn("enqueue notification delivery", slog.String("notification_id", note.ID.String()), slog.Any("error", err))
		}
	}
	return nil
}

var nameCaser = cases.Title(language.English, cases.NoLower)

// TitleName normalises a person's display name for notification copy.
func TitleName(name string) string {
	return nameCaser.String(name)
}
