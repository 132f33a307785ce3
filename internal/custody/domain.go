package custody

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Type describes a child's custody arrangement.
type Type string

const (
	// TypeShared means two guardians hold equal standing and both must
	// consent to agreement changes.
	TypeShared Type = "shared"
	// TypeSole means a single guardian decides alone.
	TypeSole Type = "sole"
)

// Guardian identifies one guardian in a child's arrangement.
type Guardian struct {
	UID         string
	DisplayName string
}

// Arrangement is the custody record consumed by the co-parent approval gate.
type Arrangement struct {
	ChildUID  string
	FamilyID  uuid.UUID
	ChildName string
	Type      Type
	Guardians []Guardian
}

// ErrUnknownChild indicates no custody record exists for the child. Callers
// treat this as "no co-parent approval required".
var ErrUnknownChild = errors.New("custody: unknown child")

// LookupPort resolves a child's custody arrangement.
type LookupPort interface {
	Arrangement(ctx context.Context, childUID string) (Arrangement, error)
}
