package staff

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("staff profile not found")

// Profile is the assignable-capacity view of a user. Skills are free-form
// tags matched against a work item's required skills.
type Profile struct {
	UserID                 uuid.UUID
	UnitID                 uuid.UUID
	Role                   string
	Skills                 []string
	AssignmentLimit        int
	CurrentAssignmentCount int
	Available              bool
	UnavailableUntil       *time.Time
	UpdatedAt              time.Time
}

// HasSkill reports whether the profile carries the given skill tag.
func (p Profile) HasSkill(skill string) bool {
	for _, s := range p.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// AtCapacity reports whether the profile has no free assignment slots.
func (p Profile) AtCapacity() bool {
	return p.CurrentAssignmentCount >= p.AssignmentLimit
}

// Directory reads and mutates staff capacity.
type Directory interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (Profile, error)
	// ListEligible returns available profiles in the unit's org subtree that
	// carry every required skill and still have free capacity.
	ListEligible(ctx context.Context, unitID uuid.UUID, requiredSkills []string) ([]Profile, error)
	// ClaimSlot atomically increments the assignment count if it is still
	// below the limit; the bool reports whether the claim won.
	ClaimSlot(ctx context.Context, userID uuid.UUID) (bool, error)
	// ReleaseSlot decrements the assignment count, never below zero.
	ReleaseSlot(ctx context.Context, userID uuid.UUID) error
}
