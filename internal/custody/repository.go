package custody

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed custody lookups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Arrangement loads a child's custody type and guardian list.
func (r *Repository) Arrangement(ctx context.Context, childUID string) (Arrangement, error) {
	var arr Arrangement
	var custodyType string
	err := r.pool.QueryRow(ctx, `SELECT child_uid, family_id, display_name, custody_type
FROM children WHERE child_uid=$1`, childUID).Scan(&arr.ChildUID, &arr.FamilyID, &arr.ChildName, &custodyType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Arrangement{}, ErrUnknownChild
		}
		return Arrangement{}, err
	}
	arr.Type = Type(custodyType)

	rows, err := r.pool.Query(ctx, `SELECT guardian_uid, display_name
FROM guardianships WHERE child_uid=$1 ORDER BY created_at ASC`, childUID)
	if err != nil {
		return Arrangement{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var g Guardian
		if err := rows.Scan(&g.UID, &g.DisplayName); err != nil {
			return Arrangement{}, err
		}
		arr.Guardians = append(arr.Guardians, g)
	}
	if err := rows.Err(); err != nil {
		return Arrangement{}, err
	}
	return arr, nil
}
