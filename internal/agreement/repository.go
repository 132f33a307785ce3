package agreement

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations available inside the activation
// transaction. Reads through it lock the rows they touch so concurrent
// activations serialize.
type TxRepository interface {
	Get(ctx context.Context, familyID, id uuid.UUID) (Agreement, error)
	FindActive(ctx context.Context, familyID uuid.UUID) (Agreement, bool, error)
	ListVersions(ctx context.Context, familyID uuid.UUID) ([]string, error)
	MarkSuperseded(ctx context.Context, id, supersededBy uuid.UUID, at time.Time) error
	MarkActive(ctx context.Context, id uuid.UUID, version string, at time.Time) error
	CountActive(ctx context.Context, familyID uuid.UUID) (int, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const agreementColumns = `id, family_id, status, version, signing, terms, activated_at, archived_at, archive_reason, superseded_by, expiry_date, last_review_date, created_at`

func scanAgreement(row pgx.Row) (Agreement, error) {
	var a Agreement
	var signingJSON []byte
	var status string
	var version, reason *string
	err := row.Scan(&a.ID, &a.FamilyID, &status, &version, &signingJSON, &a.Terms,
		&a.ActivatedAt, &a.ArchivedAt, &reason, &a.SupersededBy, &a.ExpiryDate, &a.LastReviewDate, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agreement{}, ErrNotFound
		}
		return Agreement{}, err
	}
	a.Status = Status(status)
	if version != nil {
		a.Version = *version
	}
	if reason != nil {
		a.ArchiveReason = ArchiveReason(*reason)
	}
	if len(signingJSON) > 0 {
		if err := json.Unmarshal(signingJSON, &a.Signing); err != nil {
			return Agreement{}, err
		}
	}
	return a, nil
}

// CreateDraft inserts a new draft agreement.
func (r *Repository) CreateDraft(ctx context.Context, a Agreement) error {
	signingJSON, err := json.Marshal(a.Signing)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO agreements (id, family_id, status, signing, terms, expiry_date, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.FamilyID, string(StatusDraft), signingJSON, a.Terms, a.ExpiryDate, a.CreatedAt)
	return err
}

// Get fetches one agreement scoped to a family.
func (r *Repository) Get(ctx context.Context, familyID, id uuid.UUID) (Agreement, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+agreementColumns+` FROM agreements WHERE family_id=$1 AND id=$2`, familyID, id)
	return scanAgreement(row)
}

// FindActive returns the family's active agreement, ErrNotFound when none.
func (r *Repository) FindActive(ctx context.Context, familyID uuid.UUID) (Agreement, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+agreementColumns+` FROM agreements WHERE family_id=$1 AND status=$2`, familyID, string(StatusActive))
	return scanAgreement(row)
}

// History lists the family's agreements ordered by activation, newest first.
// Never-activated drafts sort last.
func (r *Repository) History(ctx context.Context, familyID uuid.UUID) ([]Agreement, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+agreementColumns+` FROM agreements
WHERE family_id=$1 ORDER BY activated_at DESC NULLS LAST, created_at DESC`, familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateSigning replaces the signing envelope on a draft.
func (r *Repository) UpdateSigning(ctx context.Context, familyID, id uuid.UUID, signing SigningStatus) error {
	signingJSON, err := json.Marshal(signing)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE agreements SET signing=$1 WHERE family_id=$2 AND id=$3`, signingJSON, familyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateExpiry applies a renewed expiry date and review timestamp.
func (r *Repository) UpdateExpiry(ctx context.Context, familyID, id uuid.UUID, expiry *time.Time, reviewedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE agreements SET expiry_date=$1, last_review_date=$2 WHERE family_id=$3 AND id=$4`,
		expiry, reviewedAt, familyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkArchived performs the single-document archive write.
func (r *Repository) MarkArchived(ctx context.Context, id uuid.UUID, status Status, reason ArchiveReason, supersededBy *uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE agreements SET status=$1, archived_at=$2, archive_reason=$3, superseded_by=$4 WHERE id=$5`,
		string(status), at, string(reason), supersededBy, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) Get(ctx context.Context, familyID, id uuid.UUID) (Agreement, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+agreementColumns+` FROM agreements WHERE family_id=$1 AND id=$2 FOR UPDATE`, familyID, id)
	return scanAgreement(row)
}

func (t *txRepo) FindActive(ctx context.Context, familyID uuid.UUID) (Agreement, bool, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+agreementColumns+` FROM agreements WHERE family_id=$1 AND status=$2 FOR UPDATE`, familyID, string(StatusActive))
	a, err := scanAgreement(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Agreement{}, false, nil
		}
		return Agreement{}, false, err
	}
	return a, true, nil
}

func (t *txRepo) ListVersions(ctx context.Context, familyID uuid.UUID) ([]string, error) {
	rows, err := t.tx.Query(ctx, `SELECT version FROM agreements WHERE family_id=$1 AND version IS NOT NULL`, familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return versions, nil
}

func (t *txRepo) MarkSuperseded(ctx context.Context, id, supersededBy uuid.UUID, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE agreements SET status=$1, archived_at=$2, archive_reason=$3, superseded_by=$4 WHERE id=$5`,
		string(StatusSuperseded), at, string(ReasonNewVersion), supersededBy, id)
	return err
}

func (t *txRepo) MarkActive(ctx context.Context, id uuid.UUID, version string, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE agreements SET status=$1, version=$2, activated_at=$3 WHERE id=$4`,
		string(StatusActive), version, at, id)
	return err
}

func (t *txRepo) CountActive(ctx context.Context, familyID uuid.UUID) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM agreements WHERE family_id=$1 AND status=$2`, familyID, string(StatusActive)).Scan(&n)
	return n, err
}
