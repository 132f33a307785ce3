package agreement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/homepact/homepact/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateDraft(ctx context.Context, a Agreement) error
	Get(ctx context.Context, familyID, id uuid.UUID) (Agreement, error)
	FindActive(ctx context.Context, familyID uuid.UUID) (Agreement, error)
	History(ctx context.Context, familyID uuid.UUID) ([]Agreement, error)
	UpdateSigning(ctx context.Context, familyID, id uuid.UUID, signing SigningStatus) error
	UpdateExpiry(ctx context.Context, familyID, id uuid.UUID, expiry *time.Time, reviewedAt time.Time) error
	MarkArchived(ctx context.Context, id uuid.UUID, status Status, reason ArchiveReason, supersededBy *uuid.UUID, at time.Time) error
}

// AuditPort appends entries to the family activity feed.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// CachePort caches the per-family active agreement.
type CachePort interface {
	GetActive(ctx context.Context, familyID uuid.UUID) (Agreement, bool)
	SetActive(ctx context.Context, a Agreement)
	Invalidate(ctx context.Context, familyID uuid.UUID)
}

// Service is the activation engine for family agreements.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	cache  CachePort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the agreement service. audit and cache may be nil.
func NewService(repo RepositoryPort, audit AuditPort, cache CachePort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cache: cache, logger: logger, now: time.Now}
}

// WithClock overrides the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateDraftInput describes a new draft agreement.
type CreateDraftInput struct {
	FamilyID   uuid.UUID
	Terms      string
	Required   []string
	ExpiryDate *time.Time
}

// CreateDraft persists a new draft awaiting signatures.
func (s *Service) CreateDraft(ctx context.Context, input CreateDraftInput, actorUID string) (Agreement, error) {
	a := Agreement{
		ID:         uuid.New(),
		FamilyID:   input.FamilyID,
		Status:     StatusDraft,
		Terms:      input.Terms,
		Signing:    SigningStatus{Required: input.Required, Signatures: map[string]Signature{}},
		ExpiryDate: input.ExpiryDate,
		CreatedAt:  s.now(),
	}
	if err := s.repo.CreateDraft(ctx, a); err != nil {
		return Agreement{}, err
	}
	s.recordAudit(ctx, a.FamilyID, actorUID, "agreement_drafted", "New agreement draft created", map[string]any{"agreement_id": a.ID.String()})
	return a, nil
}

// Sign records a signature for a role on a draft. The recorded digest ties
// the signature to the exact terms text at signing time.
func (s *Service) Sign(ctx context.Context, familyID, agreementID uuid.UUID, role, actorUID string) (Agreement, error) {
	a, err := s.repo.Get(ctx, familyID, agreementID)
	if err != nil {
		return Agreement{}, err
	}
	if a.Status != StatusDraft {
		if a.Terminal() {
			return Agreement{}, ErrAlreadyArchived
		}
		return Agreement{}, ErrAlreadyActive
	}
	if a.Signing.Signatures == nil {
		a.Signing.Signatures = map[string]Signature{}
	}
	a.Signing.Signatures[role] = Signature{SignedAt: s.now(), TermsDigest: TermsDigest(a.Terms)}
	if err := s.repo.UpdateSigning(ctx, familyID, agreementID, a.Signing); err != nil {
		return Agreement{}, err
	}
	s.recordAudit(ctx, familyID, actorUID, "agreement_signed", fmt.Sprintf("Agreement signed as %s", role), map[string]any{"agreement_id": agreementID.String(), "role": role})
	return a, nil
}

// Activate transitions a draft to active, superseding any current active
// agreement in the same atomic unit. Preconditions (existence, not already
// active, signatures complete) are checked inside the transaction so a
// concurrent activation observes committed state.
func (s *Service) Activate(ctx context.Context, familyID, agreementID uuid.UUID, actorUID string) (Agreement, error) {
	var activated Agreement
	var supersededID *uuid.UUID
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		target, err := tx.Get(ctx, familyID, agreementID)
		if err != nil {
			return err
		}
		if target.Status == StatusActive {
			return ErrAlreadyActive
		}
		// Terminal states are never re-entered: a superseded or archived
		// agreement stays retired and its version is gone for good.
		if target.Terminal() {
			return ErrAlreadyArchived
		}
		if !target.Signing.Complete() {
			return ErrSignaturesIncomplete
		}
		now := s.now()
		current, ok, err := tx.FindActive(ctx, familyID)
		if err != nil {
			return err
		}
		if ok && current.ID != target.ID {
			if err := tx.MarkSuperseded(ctx, current.ID, target.ID, now); err != nil {
				return err
			}
			id := current.ID
			supersededID = &id
		}
		versions, err := tx.ListVersions(ctx, familyID)
		if err != nil {
			return err
		}
		next := NextVersion(versions)
		if err := tx.MarkActive(ctx, target.ID, next, now); err != nil {
			return err
		}
		// Re-check the single-active invariant before commit; the
		// transaction is its only enforcer.
		n, err := tx.CountActive(ctx, familyID)
		if err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("agreement: activation would leave %d active agreements in family %s", n, familyID)
		}
		activated = target
		activated.Status = StatusActive
		activated.Version = next
		activated.ActivatedAt = &now
		return nil
	})
	if err != nil {
		return Agreement{}, err
	}
	s.invalidate(ctx, familyID)
	meta := map[string]any{"agreement_id": activated.ID.String(), "version": activated.Version}
	if supersededID != nil {
		meta["superseded"] = supersededID.String()
	}
	s.recordAudit(ctx, familyID, actorUID, "agreement_activated", fmt.Sprintf("Agreement version %s activated", activated.Version), meta)
	return activated, nil
}

// Archive retires an agreement outside the activation path. It is a single
// document read-then-write: it never contends with activation of a different
// agreement, and a concurrent activation superseding the same document is an
// accepted last-write-wins race at human pace.
func (s *Service) Archive(ctx context.Context, familyID, agreementID uuid.UUID, reason ArchiveReason, supersededBy *uuid.UUID, actorUID string) (Agreement, error) {
	a, err := s.repo.Get(ctx, familyID, agreementID)
	if err != nil {
		return Agreement{}, err
	}
	if a.Status == StatusArchived || a.Status == StatusSuperseded {
		return Agreement{}, ErrAlreadyArchived
	}
	status := StatusArchived
	action := "agreement_archived"
	if reason == ReasonNewVersion {
		status = StatusSuperseded
		action = "agreement_superseded"
	}
	now := s.now()
	if err := s.repo.MarkArchived(ctx, agreementID, status, reason, supersededBy, now); err != nil {
		return Agreement{}, err
	}
	a.Status = status
	a.ArchivedAt = &now
	a.ArchiveReason = reason
	a.SupersededBy = supersededBy
	s.invalidate(ctx, familyID)
	s.recordAudit(ctx, familyID, actorUID, action, fmt.Sprintf("Agreement archived (%s)", reason), map[string]any{"agreement_id": agreementID.String()})
	return a, nil
}

// ExtendExpiry applies a completed renewal's expiry to the agreement and
// resets the annual-review clock.
func (s *Service) ExtendExpiry(ctx context.Context, familyID, agreementID uuid.UUID, newExpiry *time.Time, reviewedAt time.Time) error {
	if err := s.repo.UpdateExpiry(ctx, familyID, agreementID, newExpiry, reviewedAt); err != nil {
		return err
	}
	s.invalidate(ctx, familyID)
	return nil
}

// GetActive returns the family's active agreement.
func (s *Service) GetActive(ctx context.Context, familyID uuid.UUID) (Agreement, error) {
	if s.cache != nil {
		if a, ok := s.cache.GetActive(ctx, familyID); ok {
			return a, nil
		}
	}
	a, err := s.repo.FindActive(ctx, familyID)
	if err != nil {
		return Agreement{}, err
	}
	if s.cache != nil {
		s.cache.SetActive(ctx, a)
	}
	return a, nil
}

// GetHistory returns the family's agreements newest first, archived included.
func (s *Service) GetHistory(ctx context.Context, familyID uuid.UUID) ([]Agreement, error) {
	return s.repo.History(ctx, familyID)
}

// ExpiryOutlook is the read-only expiry projection for one agreement.
type ExpiryOutlook struct {
	DaysUntilExpiry *int         `json:"days_until_expiry"`
	WarningLevel    WarningLevel `json:"warning_level"`
	GraceStatus     GraceStatus  `json:"grace_status"`
	AnnualReviewDue bool         `json:"annual_review_due"`
}

// Outlook computes the expiry projection for an agreement.
func (s *Service) Outlook(ctx context.Context, familyID, agreementID uuid.UUID) (ExpiryOutlook, error) {
	a, err := s.repo.Get(ctx, familyID, agreementID)
	if err != nil {
		return ExpiryOutlook{}, err
	}
	now := s.now()
	out := ExpiryOutlook{
		WarningLevel:    WarningLevelAt(a.ExpiryDate, now),
		GraceStatus:     GracePeriodStatusAt(a.ExpiryDate, now),
		AnnualReviewDue: AnnualReviewDue(a, now),
	}
	if a.ExpiryDate != nil {
		days := DaysUntilExpiry(*a.ExpiryDate, now)
		out.DaysUntilExpiry = &days
	}
	return out, nil
}

func (s *Service) invalidate(ctx context.Context, familyID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, familyID)
	}
}

func (s *Service) recordAudit(ctx context.Context, familyID uuid.UUID, actorUID, action, description string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditEntry{FamilyID: familyID, ActorUID: actorUID, Action: action, Description: description, Meta: meta, At: s.now()}); err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}
