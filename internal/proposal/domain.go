package proposal

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Proposal lifecycle statuses.
type Status string

const (
	StatusPending         Status = "pending"
	StatusPendingCoParent Status = "pending_coparent_approval"
	StatusAccepted        Status = "accepted"
	StatusDeclined        Status = "declined"
	StatusWithdrawn       Status = "withdrawn"
	StatusExpired         Status = "expired"
)

// ApprovalStatus tracks the co-parent gate, meaningful only when approval is
// required.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalDeclined ApprovalStatus = "declined"
)

// ProposerType distinguishes who raised the proposal.
type ProposerType string

const (
	ProposerParent ProposerType = "parent"
	ProposerChild  ProposerType = "child"
)

// Action is the responding party's choice.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
	ActionCounter Action = "counter"
)

// DefaultTTL is the window a proposal stays open before the expiry sweep
// retires it.
const DefaultTTL = 14 * 24 * time.Hour

// Proposal is a request to change the family's active agreement. It is a
// separate aggregate from the agreement it references; acceptance triggers
// activation of the draft but never the other way around.
type Proposal struct {
	ID           uuid.UUID
	FamilyID     uuid.UUID
	ChildUID     string
	AgreementID  uuid.UUID
	ProposerUID  string
	ProposerName string
	ProposerType ProposerType
	Summary      string
	Status       Status

	CoParentApprovalRequired bool
	CoParentApprovalStatus   ApprovalStatus
	CoParentApprovedByUID    string
	CoParentApprovedAt       *time.Time
	CoParentDeclineReason    *string

	DeclineReason *string
	RespondedBy   string
	RespondedAt   *time.Time

	ExpiresAt time.Time
	CreatedAt time.Time
}

// Terminal reports whether the proposal reached a final state.
func (p Proposal) Terminal() bool {
	switch p.Status {
	case StatusAccepted, StatusDeclined, StatusWithdrawn, StatusExpired:
		return true
	}
	return false
}

var (
	// ErrNotFound indicates the proposal does not exist.
	ErrNotFound = errors.New("proposal: not found")
	// ErrSelfApproval occurs when a proposer tries to approve or decline
	// their own proposal through the co-parent gate.
	ErrSelfApproval = errors.New("proposal: proposer cannot act as co-parent; withdraw the proposal instead")
	// ErrNotAwaitingApproval occurs when a gate action targets a proposal
	// that is not waiting on co-parent approval.
	ErrNotAwaitingApproval = errors.New("proposal: not awaiting co-parent approval")
	// ErrProposalExpired occurs when acting on a proposal past its window.
	ErrProposalExpired = errors.New("proposal: expired")
	// ErrNotAuthorized occurs when someone other than the proposer withdraws.
	ErrNotAuthorized = errors.New("proposal: not authorized")
	// ErrCoParentApprovalPending blocks a child response while the gate is open.
	ErrCoParentApprovalPending = errors.New("proposal: awaiting co-parent approval before the child can respond")
	// ErrNotPending occurs when responding to a proposal in a terminal state.
	ErrNotPending = errors.New("proposal: no longer pending")
)
