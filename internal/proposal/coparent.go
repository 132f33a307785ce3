package proposal

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/homepact/homepact/internal/custody"
	"github.com/homepact/homepact/internal/shared"
)

// GateDecision is the outcome of the co-parent approval check at proposal
// creation time.
type GateDecision struct {
	Required        bool
	OtherParentUID  string
	OtherParentName string
}

// RequiresApproval decides whether a second guardian must sign off before the
// child may respond. Approval is required exactly when custody is shared; the
// other parent is the first guardian whose uid differs from the requester.
// Arrangements with more than two guardians keep that first-match rule, a
// deliberate simplification.
func RequiresApproval(arr custody.Arrangement, requestingParentUID string) GateDecision {
	if arr.Type != custody.TypeShared {
		return GateDecision{}
	}
	decision := GateDecision{Required: true}
	for _, g := range arr.Guardians {
		if g.UID != requestingParentUID {
			decision.OtherParentUID = g.UID
			decision.OtherParentName = g.DisplayName
			break
		}
	}
	return decision
}

// CanChildRespond reports whether the gate allows the child to answer.
func CanChildRespond(p Proposal) bool {
	return !p.CoParentApprovalRequired || p.CoParentApprovalStatus == ApprovalApproved
}

// ApproveAsCoParent records the second guardian's sign-off and returns the
// proposal to the child's queue. The self-approval guard applies regardless
// of proposal state.
func (s *Service) ApproveAsCoParent(ctx context.Context, proposalID uuid.UUID, approverUID, approverName string) (Proposal, error) {
	p, err := s.repo.Get(ctx, proposalID)
	if err != nil {
		return Proposal{}, err
	}
	if approverUID == p.ProposerUID {
		return Proposal{}, ErrSelfApproval
	}
	if p.Status != StatusPendingCoParent {
		return Proposal{}, ErrNotAwaitingApproval
	}
	now := s.now()
	if now.After(p.ExpiresAt) {
		return Proposal{}, ErrProposalExpired
	}
	p.Status = StatusPending
	p.CoParentApprovalStatus = ApprovalApproved
	p.CoParentApprovedByUID = approverUID
	p.CoParentApprovedAt = &now
	if err := s.repo.UpdateCoParentGate(ctx, p); err != nil {
		return Proposal{}, err
	}
	s.notify(ctx, shared.Notification{
		FamilyID:     p.FamilyID,
		RecipientUID: p.ProposerUID,
		Type:         "proposal_coparent_approved",
		Title:        "Your proposal moved forward",
		Body:         fmt.Sprintf("%s approved your proposed change. It is now waiting for %s to respond.", shared.TitleName(approverName), shared.TitleName(s.childName(ctx, p.ChildUID))),
		Data:         map[string]any{"proposal_id": p.ID.String()},
	})
	s.recordAudit(ctx, p.FamilyID, approverUID, "proposal_coparent_approved", "Co-parent approved a proposed agreement change", map[string]any{"proposal_id": p.ID.String()})
	return p, nil
}

// DeclineAsCoParent records the second guardian's refusal, which ends the
// proposal. reason may be nil.
func (s *Service) DeclineAsCoParent(ctx context.Context, proposalID uuid.UUID, declinerUID, declinerName string, reason *string) (Proposal, error) {
	p, err := s.repo.Get(ctx, proposalID)
	if err != nil {
		return Proposal{}, err
	}
	if declinerUID == p.ProposerUID {
		return Proposal{}, ErrSelfApproval
	}
	if p.Status != StatusPendingCoParent {
		return Proposal{}, ErrNotAwaitingApproval
	}
	now := s.now()
	if now.After(p.ExpiresAt) {
		return Proposal{}, ErrProposalExpired
	}
	p.Status = StatusDeclined
	p.CoParentApprovalStatus = ApprovalDeclined
	p.CoParentDeclineReason = reason
	p.RespondedBy = declinerUID
	p.RespondedAt = &now
	if err := s.repo.UpdateCoParentGate(ctx, p); err != nil {
		return Proposal{}, err
	}
	s.notify(ctx, shared.Notification{
		FamilyID:     p.FamilyID,
		RecipientUID: p.ProposerUID,
		Type:         "proposal_coparent_declined",
		Title:        "Your proposal needs another look",
		Body:         fmt.Sprintf("%s wasn't ready to approve this change yet. You can talk it through together and propose again.", shared.TitleName(declinerName)),
		Data:         map[string]any{"proposal_id": p.ID.String()},
	})
	s.recordAudit(ctx, p.FamilyID, declinerUID, "proposal_coparent_declined", "Co-parent declined a proposed agreement change", map[string]any{"proposal_id": p.ID.String()})
	return p, nil
}
