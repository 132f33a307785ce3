package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEntry represents a record appended to a family's activity feed.
type AuditEntry struct {
	FamilyID    uuid.UUID
	ActorUID    string
	Action      string
	Description string
	Meta        map[string]any
	At          time.Time
}

// AuditLogger writes append-only records into audit_log.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the entry. Callers treat failures as non-fatal: the state
// transition that produced the entry is already committed.
func (l *AuditLogger) Record(ctx context.Context, entry AuditEntry) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if entry.FamilyID == uuid.Nil {
		return errors.New("audit entry requires family id")
	}
	if entry.Action == "" {
		return errors.New("audit entry requires action")
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_log (family_id, actor_uid, action, description, meta, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.FamilyID, entry.ActorUID, entry.Action, entry.Description, metaJSON, at)
	return err
}

// List returns a family's audit entries, newest first.
func (l *AuditLogger) List(ctx context.Context, familyID uuid.UUID, limit int) ([]AuditEntry, error) {
	if l == nil {
		return nil, errors.New("audit logger not initialised")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx, `SELECT family_id, actor_uid, action, description, meta, created_at
FROM audit_log WHERE family_id=$1 ORDER BY created_at DESC LIMIT $2`, familyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var metaJSON []byte
		if err := rows.Scan(&e.FamilyID, &e.ActorUID, &e.Action, &e.Description, &metaJSON, &e.At); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &e.Meta); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
