package proposal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/homepact/homepact/internal/agreement"
	"github.com/homepact/homepact/internal/custody"
	"github.com/homepact/homepact/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, p Proposal) error
	Get(ctx context.Context, id uuid.UUID) (Proposal, error)
	ListForFamily(ctx context.Context, familyID uuid.UUID) ([]Proposal, error)
	UpdateResponse(ctx context.Context, p Proposal) error
	UpdateCoParentGate(ctx context.Context, p Proposal) error
	ListDue(ctx context.Context, familyID uuid.UUID, now time.Time) ([]Proposal, error)
	MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	ListFamiliesDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// AgreementActivator triggers activation of the draft a proposal references.
type AgreementActivator interface {
	Activate(ctx context.Context, familyID, agreementID uuid.UUID, actorUID string) (agreement.Agreement, error)
}

// NotifierPort dispatches notification records, best effort.
type NotifierPort interface {
	Notify(ctx context.Context, note shared.Notification) error
}

// AuditPort appends entries to the family activity feed.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// Service orchestrates the proposal workflow.
type Service struct {
	repo      RepositoryPort
	custody   custody.LookupPort
	activator AgreementActivator
	tracker   *Tracker
	notifier  NotifierPort
	audit     AuditPort
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the proposal service. tracker, notifier and audit
// may be nil.
func NewService(repo RepositoryPort, lookup custody.LookupPort, activator AgreementActivator, tracker *Tracker, notifier NotifierPort, audit AuditPort, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, custody: lookup, activator: activator, tracker: tracker, notifier: notifier, audit: audit, ttl: ttl, logger: logger, now: time.Now}
}

// WithClock overrides the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateInput describes a new proposal.
type CreateInput struct {
	FamilyID     uuid.UUID
	ChildUID     string
	AgreementID  uuid.UUID
	ProposerUID  string
	ProposerName string
	ProposerType ProposerType
	Summary      string
}

// Create opens a proposal. Shared custody routes it through the co-parent
// gate first; sole custody and unknown children go straight to the child.
// The gating decision is fixed at creation time.
func (s *Service) Create(ctx context.Context, input CreateInput) (Proposal, error) {
	arr, err := s.custody.Arrangement(ctx, input.ChildUID)
	if err != nil && !errors.Is(err, custody.ErrUnknownChild) {
		return Proposal{}, err
	}
	decision := RequiresApproval(arr, input.ProposerUID)

	now := s.now()
	p := Proposal{
		ID:           uuid.New(),
		FamilyID:     input.FamilyID,
		ChildUID:     input.ChildUID,
		AgreementID:  input.AgreementID,
		ProposerUID:  input.ProposerUID,
		ProposerName: input.ProposerName,
		ProposerType: input.ProposerType,
		Summary:      input.Summary,
		Status:       StatusPending,
		ExpiresAt:    now.Add(s.ttl),
		CreatedAt:    now,
	}
	if decision.Required {
		p.Status = StatusPendingCoParent
		p.CoParentApprovalRequired = true
		p.CoParentApprovalStatus = ApprovalPending
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Proposal{}, err
	}

	if decision.Required && decision.OtherParentUID != "" {
		s.notify(ctx, shared.Notification{
			FamilyID:     p.FamilyID,
			RecipientUID: decision.OtherParentUID,
			Type:         "proposal_approval_needed",
			Title:        "A proposed change needs your approval",
			Body:         fmt.Sprintf("%s proposed a change to the family agreement. Because you share custody, it needs your approval before %s can respond.", shared.TitleName(p.ProposerName), shared.TitleName(arr.ChildName)),
			Data:         map[string]any{"proposal_id": p.ID.String()},
		})
	} else {
		s.notify(ctx, shared.Notification{
			FamilyID:     p.FamilyID,
			RecipientUID: s.responderUID(ctx, p),
			Type:         "proposal_created",
			Title:        "A new agreement change was proposed",
			Body:         fmt.Sprintf("%s proposed a change to the family agreement. Take a look and respond when you're ready.", shared.TitleName(p.ProposerName)),
			Data:         map[string]any{"proposal_id": p.ID.String()},
		})
	}
	s.recordAudit(ctx, p.FamilyID, p.ProposerUID, "proposal_created", "Agreement change proposed", map[string]any{"proposal_id": p.ID.String(), "gated": decision.Required})
	return p, nil
}

// Get fetches one proposal.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Proposal, error) {
	return s.repo.Get(ctx, id)
}

// ListForFamily returns a family's proposals, newest first.
func (s *Service) ListForFamily(ctx context.Context, familyID uuid.UUID) ([]Proposal, error) {
	return s.repo.ListForFamily(ctx, familyID)
}

// Respond records the responding party's decision. Accepting activates the
// referenced draft agreement before the proposal is marked accepted, so a
// failed activation leaves the proposal open.
func (s *Service) Respond(ctx context.Context, proposalID uuid.UUID, responderUID string, action Action, reason *string) (Proposal, error) {
	p, err := s.repo.Get(ctx, proposalID)
	if err != nil {
		return Proposal{}, err
	}
	if p.Terminal() {
		return Proposal{}, ErrNotPending
	}
	if !CanChildRespond(p) {
		return Proposal{}, ErrCoParentApprovalPending
	}
	now := s.now()
	if now.After(p.ExpiresAt) {
		return Proposal{}, ErrProposalExpired
	}

	switch action {
	case ActionAccept:
		if _, err := s.activator.Activate(ctx, p.FamilyID, p.AgreementID, responderUID); err != nil {
			return Proposal{}, err
		}
		p.Status = StatusAccepted
		p.RespondedBy = responderUID
		p.RespondedAt = &now
		if err := s.repo.UpdateResponse(ctx, p); err != nil {
			return Proposal{}, err
		}
		s.notify(ctx, shared.Notification{
			FamilyID:     p.FamilyID,
			RecipientUID: p.ProposerUID,
			Type:         "proposal_accepted",
			Title:        "Your proposal was accepted",
			Body:         "The change you proposed was accepted and the new agreement version is now active.",
			Data:         map[string]any{"proposal_id": p.ID.String()},
		})
		s.notify(ctx, shared.Notification{
			FamilyID:     p.FamilyID,
			RecipientUID: responderUID,
			Type:         "agreement_updated",
			Title:        "The family agreement was updated",
			Body:         "The agreement you accepted is now in effect.",
			Data:         map[string]any{"proposal_id": p.ID.String()},
		})
		s.recordAudit(ctx, p.FamilyID, responderUID, "proposal_accepted", "Proposed agreement change accepted", map[string]any{"proposal_id": p.ID.String()})
	case ActionDecline:
		p.Status = StatusDeclined
		p.DeclineReason = reason
		p.RespondedBy = responderUID
		p.RespondedAt = &now
		if err := s.repo.UpdateResponse(ctx, p); err != nil {
			return Proposal{}, err
		}
		s.notify(ctx, shared.Notification{
			FamilyID:     p.FamilyID,
			RecipientUID: p.ProposerUID,
			Type:         "proposal_declined",
			Title:        "Your proposal wasn't accepted this time",
			Body:         "That's okay — it can be a starting point for a conversation. You can talk about it together and try a new proposal.",
			Data:         map[string]any{"proposal_id": p.ID.String()},
		})
		s.recordAudit(ctx, p.FamilyID, responderUID, "proposal_declined", "Proposed agreement change declined", map[string]any{"proposal_id": p.ID.String()})
		if s.tracker != nil && responderUID == p.ChildUID {
			s.tracker.handleChildRejection(ctx, p.FamilyID, p.ChildUID, p.ID)
		}
	case ActionCounter:
		// A counter keeps the proposal open; the counter terms travel in
		// the notification and the parties continue the conversation.
		s.notify(ctx, shared.Notification{
			FamilyID:     p.FamilyID,
			RecipientUID: p.ProposerUID,
			Type:         "proposal_countered",
			Title:        "A counter-proposal came back",
			Body:         counterBody(reason),
			Data:         map[string]any{"proposal_id": p.ID.String()},
		})
		s.recordAudit(ctx, p.FamilyID, responderUID, "proposal_countered", "Counter-proposal offered", map[string]any{"proposal_id": p.ID.String()})
	default:
		return Proposal{}, fmt.Errorf("proposal: unknown action %q", action)
	}
	return p, nil
}

// Withdraw retires a proposal; only the original proposer may do so.
func (s *Service) Withdraw(ctx context.Context, proposalID uuid.UUID, byUID string) (Proposal, error) {
	p, err := s.repo.Get(ctx, proposalID)
	if err != nil {
		return Proposal{}, err
	}
	if byUID != p.ProposerUID {
		return Proposal{}, ErrNotAuthorized
	}
	if p.Terminal() {
		return Proposal{}, ErrNotPending
	}
	now := s.now()
	p.Status = StatusWithdrawn
	p.RespondedBy = byUID
	p.RespondedAt = &now
	if err := s.repo.UpdateResponse(ctx, p); err != nil {
		return Proposal{}, err
	}
	s.recordAudit(ctx, p.FamilyID, byUID, "proposal_withdrawn", "Proposal withdrawn by its proposer", map[string]any{"proposal_id": p.ID.String()})
	return p, nil
}

// ExpireSweep retires the family's past-due open proposals and notifies each
// proposer. It returns the number transitioned and is safe to re-run: the
// guarded update only moves rows still open.
func (s *Service) ExpireSweep(ctx context.Context, familyID uuid.UUID) (int, error) {
	now := s.now()
	due, err := s.repo.ListDue(ctx, familyID, now)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, p := range due {
		moved, err := s.repo.MarkExpired(ctx, p.ID, now)
		if err != nil {
			return count, err
		}
		if !moved {
			continue
		}
		count++
		s.notify(ctx, shared.Notification{
			FamilyID:     p.FamilyID,
			RecipientUID: p.ProposerUID,
			Type:         "proposal_expired",
			Title:        "A proposal expired",
			Body:         "Your proposed agreement change wasn't answered within 14 days, so it expired. You can propose it again anytime.",
			Data:         map[string]any{"proposal_id": p.ID.String()},
		})
	}
	return count, nil
}

// FamiliesDue lists families with at least one past-due open proposal; the
// background sweep fans out over this list.
func (s *Service) FamiliesDue(ctx context.Context) ([]uuid.UUID, error) {
	return s.repo.ListFamiliesDue(ctx, s.now())
}

func (s *Service) responderUID(ctx context.Context, p Proposal) string {
	if p.ProposerType == ProposerChild {
		// A child-raised proposal is answered by a guardian.
		if arr, err := s.custody.Arrangement(ctx, p.ChildUID); err == nil {
			for _, g := range arr.Guardians {
				if g.UID != p.ProposerUID {
					return g.UID
				}
			}
		}
		return p.ProposerUID
	}
	return p.ChildUID
}

func (s *Service) childName(ctx context.Context, childUID string) string {
	if arr, err := s.custody.Arrangement(ctx, childUID); err == nil && arr.ChildName != "" {
		return arr.ChildName
	}
	return "your child"
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

func counterBody(terms *string) string {
	if terms == nil || *terms == "" {
		return "A counter-proposal was offered. Open the app to see the suggested change."
	}
	return "A counter-proposal was offered: " + *terms
}
