package orgunit

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("org unit not found")

// Unit is a node in the org tree. SupervisorID is the escalation target for
// assignments in the unit; the root unit has no parent.
type Unit struct {
	ID           uuid.UUID
	Name         string
	ParentID     *uuid.UUID
	SupervisorID *uuid.UUID
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Unit, error)
	// SupervisorOf walks up from the unit until it finds a supervisor that
	// differs from exclude; ok is false when the chain is exhausted.
	SupervisorOf(ctx context.Context, unitID uuid.UUID, exclude uuid.UUID) (uuid.UUID, bool, error)
	// SubtreeIDs returns the unit and all descendant unit ids.
	SubtreeIDs(ctx context.Context, unitID uuid.UUID) ([]uuid.UUID, error)
}
