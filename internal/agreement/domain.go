package agreement

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Agreement lifecycle statuses.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusActive     Status = "active"
	StatusSuperseded Status = "superseded"
	StatusArchived   Status = "archived"
	StatusExpired    Status = "expired"
)

// ArchiveReason describes why an agreement left the active state.
type ArchiveReason string

const (
	ReasonNewVersion ArchiveReason = "new_version"
	ReasonManual     ArchiveReason = "manual"
	ReasonExpired    ArchiveReason = "expired"
)

// Agreement is a versioned, family-scoped behavioral contract. At most one
// agreement per family is active at any instant; the activation transaction
// is the sole enforcer of that invariant.
type Agreement struct {
	ID             uuid.UUID
	FamilyID       uuid.UUID
	Status         Status
	Version        string
	Signing        SigningStatus
	Terms          string
	ActivatedAt    *time.Time
	ArchivedAt     *time.Time
	ArchiveReason  ArchiveReason
	SupersededBy   *uuid.UUID
	ExpiryDate     *time.Time
	LastReviewDate *time.Time
	CreatedAt      time.Time
}

// Terminal reports whether the agreement can no longer change status.
func (a Agreement) Terminal() bool {
	switch a.Status {
	case StatusSuperseded, StatusArchived, StatusExpired:
		return true
	}
	return false
}

var (
	// ErrNotFound indicates the agreement does not exist.
	ErrNotFound = errors.New("agreement: not found")
	// ErrAlreadyActive occurs when activating an agreement that is active.
	ErrAlreadyActive = errors.New("agreement: already active")
	// ErrAlreadyArchived occurs when archiving an archived or superseded agreement.
	ErrAlreadyArchived = errors.New("agreement: already archived")
	// ErrSignaturesIncomplete occurs when activation is attempted before all
	// required signatures are present.
	ErrSignaturesIncomplete = errors.New("agreement: signatures incomplete")
)
