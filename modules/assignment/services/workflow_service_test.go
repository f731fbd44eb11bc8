package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/aggregates/assignment"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/orgunit"
	"github.com/iota-uz/assignment-engine/pkg/composables"
)

// seedAssignmentFor creates an assignment owned by the given actor.
func seedAssignmentFor(t *testing.T, f *fixture, unitID uuid.UUID, owner composables.Actor) assignment.Assignment {
	t.Helper()
	p := profileWith(unitID, nil, 5, 0)
	p.UserID = owner.ID
	f.directory.add(p)

	manager := composables.Actor{ID: uuid.New(), Role: RoleManager}
	result, err := f.admission.SubmitWorkItem(testContext(manager), SubmitParams{
		WorkItemID:   uuid.New(),
		WorkItemType: assignment.WorkItemTask,
		UnitID:       unitID,
		Priority:     assignment.PriorityNormal,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Assigned)
	require.Equal(t, owner.ID, result.Assigned.AssigneeID())
	return *result.Assigned
}

func TestMoveStage(t *testing.T) {
	supervisor := uuid.New()
	unitID := uuid.New()
	unit := orgunit.Unit{ID: unitID, Name: "audit", SupervisorID: &supervisor}

	t.Run("assignee advances one step at a time", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		a := seedAssignmentFor(t, f, unitID, owner)

		moved, err := f.workflow.MoveStage(testContext(owner), a.ID(), assignment.StageInProgress, a.Version())
		require.NoError(t, err)
		require.Equal(t, assignment.StageInProgress, moved.Stage())
		require.Equal(t, assignment.StatusInProgress, moved.Status())
		require.Equal(t, a.Version()+1, moved.Version())
		require.NotNil(t, moved.StageSLADeadline())

		history, err := f.assignments.ListStageHistory(testContext(owner), a.ID())
		require.NoError(t, err)
		require.Len(t, history, 1)
		require.Equal(t, assignment.StageTodo, history[0].FromStage)
		require.Equal(t, assignment.StageInProgress, history[0].ToStage)
	})

	t.Run("assignee may not skip stages", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		a := seedAssignmentFor(t, f, unitID, owner)

		_, err := f.workflow.MoveStage(testContext(owner), a.ID(), assignment.StageReview, a.Version())
		var serviceErr *ServiceError
		require.ErrorAs(t, err, &serviceErr)
		require.Equal(t, "ASSIGNMENT_FORBIDDEN", serviceErr.Code)
	})

	t.Run("other staff may not move the assignment", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		a := seedAssignmentFor(t, f, unitID, owner)

		stranger := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		_, err := f.workflow.MoveStage(testContext(stranger), a.ID(), assignment.StageInProgress, a.Version())
		var serviceErr *ServiceError
		require.ErrorAs(t, err, &serviceErr)
		require.Equal(t, "ASSIGNMENT_FORBIDDEN", serviceErr.Code)
	})

	t.Run("assignee may cancel their own assignment from any open stage", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		a := seedAssignmentFor(t, f, unitID, owner)

		inProgress, err := f.workflow.MoveStage(testContext(owner), a.ID(), assignment.StageInProgress, a.Version())
		require.NoError(t, err)

		moved, err := f.workflow.MoveStage(testContext(owner), a.ID(), assignment.StageCancelled, inProgress.Version())
		require.NoError(t, err)
		require.Equal(t, assignment.StageCancelled, moved.Stage())
		require.Equal(t, assignment.StatusCancelled, moved.Status())

		p, err := f.directory.GetByUserID(testContext(owner), owner.ID)
		require.NoError(t, err)
		require.Equal(t, 0, p.CurrentAssignmentCount)
	})

	t.Run("admin may jump straight to cancelled", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		a := seedAssignmentFor(t, f, unitID, owner)

		admin := composables.Actor{ID: uuid.New(), Role: RoleAdmin}
		moved, err := f.workflow.MoveStage(testContext(admin), a.ID(), assignment.StageCancelled, a.Version())
		require.NoError(t, err)
		require.Equal(t, assignment.StatusCancelled, moved.Status())
		require.Nil(t, moved.StageSLADeadline())
	})

	t.Run("reaching done completes and frees the slot", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		a := seedAssignmentFor(t, f, unitID, owner)

		admin := composables.Actor{ID: uuid.New(), Role: RoleAdmin}
		moved, err := f.workflow.MoveStage(testContext(admin), a.ID(), assignment.StageDone, a.Version())
		require.NoError(t, err)
		require.Equal(t, assignment.StatusCompleted, moved.Status())
		require.NotNil(t, moved.CompletedAt())

		p, err := f.directory.GetByUserID(testContext(admin), owner.ID)
		require.NoError(t, err)
		require.Equal(t, 0, p.CurrentAssignmentCount)

		var sawCompleted bool
		for _, ev := range f.bus.Events() {
			if _, ok := ev.(assignment.CompletedEvent); ok {
				sawCompleted = true
			}
		}
		require.True(t, sawCompleted)
	})

	t.Run("terminal assignments stay closed", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		a := seedAssignmentFor(t, f, unitID, owner)

		admin := composables.Actor{ID: uuid.New(), Role: RoleAdmin}
		done, err := f.workflow.MoveStage(testContext(admin), a.ID(), assignment.StageDone, a.Version())
		require.NoError(t, err)

		_, err = f.workflow.MoveStage(testContext(admin), a.ID(), assignment.StageTodo, done.Version())
		var serviceErr *ServiceError
		require.ErrorAs(t, err, &serviceErr)
		require.Equal(t, "ASSIGNMENT_CONFLICT", serviceErr.Code)
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		a := seedAssignmentFor(t, f, unitID, owner)

		_, err := f.workflow.MoveStage(testContext(owner), a.ID(), assignment.StageInProgress, a.Version())
		require.NoError(t, err)

		// second writer still holds the old version
		_, err = f.workflow.MoveStage(testContext(owner), a.ID(), assignment.StageReview, a.Version())
		var serviceErr *ServiceError
		require.ErrorAs(t, err, &serviceErr)
		require.Equal(t, "ASSIGNMENT_CONFLICT", serviceErr.Code)
	})

	t.Run("manager outside the unit is rejected", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		a := seedAssignmentFor(t, f, unitID, owner)

		outsider := composables.Actor{ID: uuid.New(), Role: RoleManager}
		otherUnit := profileWith(uuid.New(), nil, 5, 0)
		otherUnit.UserID = outsider.ID
		f.directory.add(otherUnit)

		_, err := f.workflow.MoveStage(testContext(outsider), a.ID(), assignment.StageCancelled, a.Version())
		var serviceErr *ServiceError
		require.ErrorAs(t, err, &serviceErr)
		require.Equal(t, "ASSIGNMENT_FORBIDDEN", serviceErr.Code)
	})

	t.Run("unknown assignment yields not found", func(t *testing.T) {
		f := newFixture(t, unit)
		admin := composables.Actor{ID: uuid.New(), Role: RoleAdmin}
		_, err := f.workflow.MoveStage(testContext(admin), uuid.New(), assignment.StageDone, 1)
		var serviceErr *ServiceError
		require.ErrorAs(t, err, &serviceErr)
		require.Equal(t, "ASSIGNMENT_NOT_FOUND", serviceErr.Code)
	})
}
