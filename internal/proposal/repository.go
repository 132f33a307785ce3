package proposal

import (
	"context"
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

const proposalColumns = `id, family_id, child_uid, agreement_id, proposer_uid, proposer_name, proposer_type, summary, status,
coparent_required, coparent_status, coparent_approved_by, coparent_approved_at, coparent_decline_reason,
decline_reason, responded_by, responded_at, expires_at, created_at`

func scanProposal(row pgx.Row) (Proposal, error) {
	var p Proposal
	var proposerType, status string
	var approvedBy, respondedBy *string
	var approvalStatus *string
	err := row.Scan(&p.ID, &p.FamilyID, &p.ChildUID, &p.AgreementID, &p.ProposerUID, &p.ProposerName, &proposerType, &p.Summary, &status,
		&p.CoParentApprovalRequired, &approvalStatus, &approvedBy, &p.CoParentApprovedAt, &p.CoParentDeclineReason,
		&p.DeclineReason, &respondedBy, &p.RespondedAt, &p.ExpiresAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Proposal{}, ErrNotFound
		}
		return Proposal{}, err
	}
	p.ProposerType = ProposerType(proposerType)
	p.Status = Status(status)
	if approvalStatus != nil {
		p.CoParentApprovalStatus = ApprovalStatus(*approvalStatus)
	}
	if approvedBy != nil {
		p.CoParentApprovedByUID = *approvedBy
	}
	if respondedBy != nil {
		p.RespondedBy = *respondedBy
	}
	return p, nil
}

// Create inserts a new proposal.
func (r *Repository) Create(ctx context.Context, p Proposal) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO proposals
(id, family_id, child_uid, agreement_id, proposer_uid, proposer_name, proposer_type, summary, status, coparent_required, coparent_status, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13)`,
		p.ID, p.FamilyID, p.ChildUID, p.AgreementID, p.ProposerUID, p.ProposerName, string(p.ProposerType), p.Summary, string(p.Status),
		p.CoParentApprovalRequired, string(p.CoParentApprovalStatus), p.ExpiresAt, p.CreatedAt)
	return err
}

// Get fetches one proposal.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Proposal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id=$1`, id)
	return scanProposal(row)
}

// ListForFamily returns a family's proposals, newest first.
func (r *Repository) ListForFamily(ctx context.Context, familyID uuid.UUID) ([]Proposal, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE family_id=$1 ORDER BY created_at DESC`, familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// UpdateResponse writes the responding party's outcome.
func (r *Repository) UpdateResponse(ctx context.Context, p Proposal) error {
	tag, err := r.pool.Exec(ctx, `UPDATE proposals SET status=$1, decline_reason=$2, responded_by=$3, responded_at=$4 WHERE id=$5`,
		string(p.Status), p.DeclineReason, nullable(p.RespondedBy), p.RespondedAt, p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateCoParentGate writes the co-parent gate outcome.
func (r *Repository) UpdateCoParentGate(ctx context.Context, p Proposal) error {
	tag, err := r.pool.Exec(ctx, `UPDATE proposals SET status=$1, coparent_status=$2, coparent_approved_by=$3, coparent_approved_at=$4,
coparent_decline_reason=$5, responded_by=$6, responded_at=$7 WHERE id=$8`,
		string(p.Status), string(p.CoParentApprovalStatus), nullable(p.CoParentApprovedByUID), p.CoParentApprovedAt,
		p.CoParentDeclineReason, nullable(p.RespondedBy), p.RespondedAt, p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDue returns a family's unresolved proposals past their window.
func (r *Repository) ListDue(ctx context.Context, familyID uuid.UUID, now time.Time) ([]Proposal, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+proposalColumns+` FROM proposals
WHERE family_id=$1 AND status IN ($2, $3) AND expires_at <= $4`,
		familyID, string(StatusPending), string(StatusPendingCoParent), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// MarkExpired retires a proposal, guarded so only still-open rows transition.
// The guard is what makes the sweep idempotent.
func (r *Repository) MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE proposals SET status=$1, responded_at=$2
WHERE id=$3 AND status IN ($4, $5)`,
		string(StatusExpired), now, id, string(StatusPending), string(StatusPendingCoParent))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListFamiliesDue returns families holding at least one past-due open proposal.
func (r *Repository) ListFamiliesDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT family_id FROM proposals
WHERE status IN ($1, $2) AND expires_at <= $3`,
		string(StatusPending), string(StatusPendingCoParent), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var families []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		families = append(families, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return families, nil
}

// RecordRejection upserts the child's rejection tally and returns the new total.
func (r *Repository) RecordRejection(ctx context.Context, familyID uuid.UUID, childUID string, proposalID uuid.UUID) (RejectionPattern, error) {
	pattern := RejectionPattern{ChildUID: childUID, FamilyID: familyID}
	err := r.pool.QueryRow(ctx, `INSERT INTO rejection_patterns (child_uid, family_id, total_rejections, last_proposal_id, updated_at)
VALUES ($1, $2, 1, $3, NOW())
ON CONFLICT (child_uid) DO UPDATE SET total_rejections = rejection_patterns.total_rejections + 1, last_proposal_id = $3, updated_at = NOW()
RETURNING total_rejections`, childUID, familyID, proposalID).Scan(&pattern.TotalRejections)
	if err != nil {
		return RejectionPattern{}, err
	}
	return pattern, nil
}

func collect(rows pgx.Rows) ([]Proposal, error) {
	var out []Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
