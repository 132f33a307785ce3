package renewal

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Mode describes what renewal carries forward.
type Mode string

const (
	ModeAsIs        Mode = "renew-as-is"
	ModeWithChanges Mode = "renew-with-changes"
)

// Status is the renewal's position in the two-party consent flow.
type Status string

const (
	StatusParentInitiated Status = "parent-initiated"
	StatusChildConsenting Status = "child-consenting"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// Duration selects the extension window.
type Duration string

const (
	DurationThreeMonths Duration = "3-months"
	DurationSixMonths   Duration = "6-months"
	DurationOneYear     Duration = "1-year"
	DurationNoExpiry    Duration = "no-expiry"
)

// Step is the UI guidance derived from a renewal's state.
type Step string

const (
	StepParentSign   Step = "parent-sign"
	StepChildConsent Step = "child-consent"
	StepComplete     Step = "complete"
	StepDone         Step = "done"
	StepCancelled    Step = "cancelled"
)

// Consent is one party's signature. Once set it is immutable.
type Consent struct {
	Signature string    `json:"signature"`
	SignedAt  time.Time `json:"signed_at"`
}

// Renewal extends an agreement's expiry with both parties' consent. Parent
// consent must land before the child's; completed and cancelled are terminal.
type Renewal struct {
	ID             uuid.UUID
	AgreementID    uuid.UUID
	FamilyID       uuid.UUID
	InitiatedByUID string
	ChildUID       string
	Mode           Mode
	Status         Status
	ParentConsent  *Consent
	ChildConsent   *Consent
	NewExpiryDate  *time.Time
	CompletedAt    *time.Time
	CancelledAt    *time.Time
	CreatedAt      time.Time
}

// ErrNotFound indicates the renewal does not exist.
var ErrNotFound = errors.New("renewal: not found")

// ComputeExpiry fixes the renewal's target expiry at initiation: the chosen
// duration added to the current expiry, or to now when none exists. The
// no-expiry duration yields a nil date.
func ComputeExpiry(current *time.Time, d Duration, now time.Time) *time.Time {
	if d == DurationNoExpiry {
		return nil
	}
	base := now
	if current != nil {
		base = *current
	}
	var next time.Time
	switch d {
	case DurationThreeMonths:
		next = base.AddDate(0, 3, 0)
	case DurationSixMonths:
		next = base.AddDate(0, 6, 0)
	case DurationOneYear:
		next = base.AddDate(1, 0, 0)
	default:
		next = base.AddDate(1, 0, 0)
	}
	return &next
}

// ApplyParentConsent records the parent's signature and advances the flow.
// Consent is write-once: a second call returns the renewal unchanged.
func ApplyParentConsent(r Renewal, signature string, now time.Time) Renewal {
	if r.ParentConsent != nil {
		return r
	}
	r.ParentConsent = &Consent{Signature: signature, SignedAt: now}
	r.Status = StatusChildConsenting
	return r
}

// ApplyChildConsent records the child's signature. The child cannot consent
// before the parent, and consent is write-once.
func ApplyChildConsent(r Renewal, signature string, now time.Time) Renewal {
	if r.ParentConsent == nil || r.ChildConsent != nil {
		return r
	}
	r.ChildConsent = &Consent{Signature: signature, SignedAt: now}
	return r
}

// CanComplete reports whether both consents are present.
func CanComplete(r Renewal) bool {
	return r.ParentConsent != nil && r.ChildConsent != nil
}

// Complete finalises the renewal; a no-op unless both consents are present.
func Complete(r Renewal, now time.Time) Renewal {
	if !CanComplete(r) {
		return r
	}
	r.Status = StatusCompleted
	r.CompletedAt = &now
	return r
}

// Cancel abandons the renewal; a no-op once completed.
func Cancel(r Renewal, now time.Time) Renewal {
	if r.Status == StatusCompleted {
		return r
	}
	r.Status = StatusCancelled
	r.CancelledAt = &now
	return r
}

// NextStep derives the UI guidance for a renewal.
func NextStep(r Renewal) Step {
	switch {
	case r.Status == StatusCompleted:
		return StepDone
	case r.Status == StatusCancelled:
		return StepCancelled
	case CanComplete(r):
		return StepComplete
	case r.ParentConsent != nil:
		return StepChildConsent
	default:
		return StepParentSign
	}
}
