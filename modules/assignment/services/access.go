package services

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/aggregates/assignment"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/staff"
	"github.com/iota-uz/assignment-engine/pkg/composables"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// canAccess reports whether the actor may read or act on the assignment:
// admins, the assignee, the assigner, the escalation recipient, observers,
// and supervisors of the assignment's unit.
func canAccess(ctx context.Context, repo assignment.Repository, directory staff.Directory, a assignment.Assignment, actor composables.Actor) (bool, error) {
	if actor.Role == RoleAdmin {
		return true, nil
	}
	if a.AssigneeID() == actor.ID || a.AssignedBy() == actor.ID {
		return true, nil
	}
	if r := a.EscalationRecipientID(); r != nil && *r == actor.ID {
		return true, nil
	}

	observer, err := repo.IsObserver(ctx, a.ID(), actor.ID)
	if err != nil {
		return false, err
	}
	if observer {
		return true, nil
	}

	if actor.Role == RoleManager {
		profile, err := directory.GetByUserID(ctx, actor.ID)
		if err != nil {
			if errors.Is(err, staff.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		return profile.UnitID == a.UnitID(), nil
	}
	return false, nil
}
