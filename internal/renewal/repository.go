package renewal

import (
	"context"
	"encoding/json"
	"errors"

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

const renewalColumns = `id, agreement_id, family_id, initiated_by, child_uid, mode, status, parent_consent, child_consent, new_expiry_date, completed_at, cancelled_at, created_at`

func scanRenewal(row pgx.Row) (Renewal, error) {
	var r Renewal
	var mode, status string
	var parentJSON, childJSON []byte
	err := row.Scan(&r.ID, &r.AgreementID, &r.FamilyID, &r.InitiatedByUID, &r.ChildUID, &mode, &status, &parentJSON, &childJSON,
		&r.NewExpiryDate, &r.CompletedAt, &r.CancelledAt, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Renewal{}, ErrNotFound
		}
		return Renewal{}, err
	}
	r.Mode = Mode(mode)
	r.Status = Status(status)
	if len(parentJSON) > 0 {
		var c Consent
		if err := json.Unmarshal(parentJSON, &c); err != nil {
			return Renewal{}, err
		}
		r.ParentConsent = &c
	}
	if len(childJSON) > 0 {
		var c Consent
		if err := json.Unmarshal(childJSON, &c); err != nil {
			return Renewal{}, err
		}
		r.ChildConsent = &c
	}
	return r, nil
}

// Create inserts a new renewal.
func (repo *Repository) Create(ctx context.Context, r Renewal) error {
	_, err := repo.pool.Exec(ctx, `INSERT INTO renewals (id, agreement_id, family_id, initiated_by, child_uid, mode, status, new_expiry_date, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.AgreementID, r.FamilyID, r.InitiatedByUID, r.ChildUID, string(r.Mode), string(r.Status), r.NewExpiryDate, r.CreatedAt)
	return err
}

// Get fetches one renewal.
func (repo *Repository) Get(ctx context.Context, id uuid.UUID) (Renewal, error) {
	row := repo.pool.QueryRow(ctx, `SELECT `+renewalColumns+` FROM renewals WHERE id=$1`, id)
	return scanRenewal(row)
}

// Update persists the renewal's consent and status fields.
func (repo *Repository) Update(ctx context.Context, r Renewal) error {
	var parentJSON, childJSON []byte
	var err error
	if r.ParentConsent != nil {
		if parentJSON, err = json.Marshal(r.ParentConsent); err != nil {
			return err
		}
	}
	if r.ChildConsent != nil {
		if childJSON, err = json.Marshal(r.ChildConsent); err != nil {
			return err
		}
	}
	tag, err := repo.pool.Exec(ctx, `UPDATE renewals SET status=$1, parent_consent=$2, child_consent=$3, completed_at=$4, cancelled_at=$5 WHERE id=$6`,
		string(r.Status), parentJSON, childJSON, r.CompletedAt, r.CancelledAt, r.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
