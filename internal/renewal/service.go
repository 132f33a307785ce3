package renewal

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/homepact/homepact/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, r Renewal) error
	Get(ctx context.Context, id uuid.UUID) (Renewal, error)
	Update(ctx context.Context, r Renewal) error
}

// AgreementExtender applies a completed renewal's expiry to the agreement.
type AgreementExtender interface {
	ExtendExpiry(ctx context.Context, familyID, agreementID uuid.UUID, newExpiry *time.Time, reviewedAt time.Time) error
}

// NotifierPort dispatches notification records, best effort.
type NotifierPort interface {
	Notify(ctx context.Context, note shared.Notification) error
}

// AuditPort appends entries to the family activity feed.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// Service orchestrates the renewal consent flow.
type Service struct {
	repo       RepositoryPort
	agreements AgreementExtender
	notifier   NotifierPort
	audit      AuditPort
	logger     *slog.Logger
	now        func() time.Time
}

// NewService constructs the renewal service. agreements, notifier and audit
// may be nil.
func NewService(repo RepositoryPort, agreements AgreementExtender, notifier NotifierPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, agreements: agreements, notifier: notifier, audit: audit, logger: logger, now: time.Now}
}

// WithClock overrides the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// InitiateInput describes a new renewal.
type InitiateInput struct {
	AgreementID   uuid.UUID
	FamilyID      uuid.UUID
	ChildUID      string
	Mode          Mode
	Duration      Duration
	CurrentExpiry *time.Time
}

// Initiate opens the renewal flow. The target expiry is computed once here
// and fixed for the renewal's lifetime.
func (s *Service) Initiate(ctx context.Context, input InitiateInput, actorUID string) (Renewal, error) {
	now := s.now()
	r := Renewal{
		ID:             uuid.New(),
		AgreementID:    input.AgreementID,
		FamilyID:       input.FamilyID,
		InitiatedByUID: actorUID,
		ChildUID:       input.ChildUID,
		Mode:           input.Mode,
		Status:         StatusParentInitiated,
		NewExpiryDate:  ComputeExpiry(input.CurrentExpiry, input.Duration, now),
		CreatedAt:      now,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return Renewal{}, err
	}
	s.recordAudit(ctx, r.FamilyID, actorUID, "renewal_initiated", "Agreement renewal started", map[string]any{"renewal_id": r.ID.String(), "mode": string(r.Mode)})
	return r, nil
}

// Get fetches one renewal.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Renewal, error) {
	return s.repo.Get(ctx, id)
}

// ParentConsent records the parent's signature; write-once.
func (s *Service) ParentConsent(ctx context.Context, id uuid.UUID, signature string) (Renewal, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return Renewal{}, err
	}
	updated := ApplyParentConsent(r, signature, s.now())
	if updated.ParentConsent == r.ParentConsent {
		return r, nil
	}
	if err := s.repo.Update(ctx, updated); err != nil {
		return Renewal{}, err
	}
	s.notify(ctx, shared.Notification{
		FamilyID:     updated.FamilyID,
		RecipientUID: updated.ChildUID,
		Type:         "renewal_child_consent_needed",
		Title:        "Your agreement is being renewed",
		Body:         "A parent signed the renewal. It's your turn to review and sign so the agreement can continue.",
		Data:         map[string]any{"renewal_id": updated.ID.String()},
	})
	s.recordAudit(ctx, updated.FamilyID, updated.InitiatedByUID, "renewal_parent_signed", "Parent signed the renewal", map[string]any{"renewal_id": updated.ID.String()})
	return updated, nil
}

// ChildConsent records the child's signature. A no-op while the parent has
// not signed, and once the child already has.
func (s *Service) ChildConsent(ctx context.Context, id uuid.UUID, signature string) (Renewal, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return Renewal{}, err
	}
	updated := ApplyChildConsent(r, signature, s.now())
	if updated.ChildConsent == r.ChildConsent {
		return r, nil
	}
	if err := s.repo.Update(ctx, updated); err != nil {
		return Renewal{}, err
	}
	s.recordAudit(ctx, updated.FamilyID, updated.ChildUID, "renewal_child_signed", "Child signed the renewal", map[string]any{"renewal_id": updated.ID.String()})
	return updated, nil
}

// Complete finalises the renewal and pushes the new expiry onto the
// agreement. A no-op unless both consents are present.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (Renewal, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return Renewal{}, err
	}
	now := s.now()
	updated := Complete(r, now)
	if updated.Status == r.Status {
		return r, nil
	}
	if err := s.repo.Update(ctx, updated); err != nil {
		return Renewal{}, err
	}
	if s.agreements != nil {
		if err := s.agreements.ExtendExpiry(ctx, updated.FamilyID, updated.AgreementID, updated.NewExpiryDate, now); err != nil {
			s.logger.Warn("extend agreement expiry", slog.String("renewal_id", updated.ID.String()), slog.Any("error", err))
		}
	}
	s.notify(ctx, shared.Notification{
		FamilyID:     updated.FamilyID,
		RecipientUID: updated.InitiatedByUID,
		Type:         "renewal_completed",
		Title:        "The agreement was renewed",
		Body:         "Both of you signed. The agreement continues under its renewed terms.",
		Data:         map[string]any{"renewal_id": updated.ID.String()},
	})
	s.recordAudit(ctx, updated.FamilyID, updated.InitiatedByUID, "renewal_completed", "Agreement renewal completed", map[string]any{"renewal_id": updated.ID.String()})
	return updated, nil
}

// Cancel abandons the renewal; a no-op once completed.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actorUID string) (Renewal, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return Renewal{}, err
	}
	updated := Cancel(r, s.now())
	if updated.Status == r.Status {
		return r, nil
	}
	if err := s.repo.Update(ctx, updated); err != nil {
		return Renewal{}, err
	}
	s.recordAudit(ctx, updated.FamilyID, actorUID, "renewal_cancelled", "Agreement renewal cancelled", map[string]any{"renewal_id": updated.ID.String()})
	return updated, nil
}

// NextStep derives the UI guidance for a stored renewal.
func (s *Service) NextStep(ctx context.Context, id uuid.UUID) (Step, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return NextStep(r), nil
}

func (s *Service) notify(ctx context.Context, note shared.Notification) {
	if s.notifier == nil || note.RecipientUID == "" {
		return
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Warn("send notification", slog.String("type", note.Type), slog.Any("error", err))
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
