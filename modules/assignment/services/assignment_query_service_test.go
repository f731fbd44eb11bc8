package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/aggregates/assignment"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/orgunit"
	"github.com/iota-uz/assignment-engine/pkg/composables"
)

func seedEngagementAssignment(t *testing.T, f *fixture, unitID uuid.UUID, owner composables.Actor, engagementID uuid.UUID) assignment.Assignment {
	t.Helper()
	p := profileWith(unitID, nil, 50, 0)
	p.UserID = owner.ID
	f.directory.add(p)

	manager := composables.Actor{ID: uuid.New(), Role: RoleManager}
	result, err := f.admission.SubmitWorkItem(testContext(manager), SubmitParams{
		WorkItemID:   uuid.New(),
		WorkItemType: assignment.WorkItemTask,
		UnitID:       unitID,
		EngagementID: &engagementID,
		Priority:     assignment.PriorityNormal,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Assigned)
	return *result.Assigned
}

func TestMyAssignments(t *testing.T) {
	supervisor := uuid.New()
	unitID := uuid.New()
	unit := orgunit.Unit{ID: unitID, Name: "audit", SupervisorID: &supervisor}

	t.Run("summarizes the caller's workload", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		a := seedAssignmentFor(t, f, unitID, owner)

		admin := composables.Actor{ID: uuid.New(), Role: RoleAdmin}
		manager := composables.Actor{ID: uuid.New(), Role: RoleManager}

		// a second assignment, moved into progress
		second, err := f.admission.SubmitWorkItem(testContext(manager), SubmitParams{
			WorkItemID:   uuid.New(),
			WorkItemType: assignment.WorkItemTask,
			UnitID:       unitID,
			Priority:     assignment.PriorityUrgent,
		})
		require.NoError(t, err)
		require.NotNil(t, second.Assigned)
		_, err = f.workflow.MoveStage(testContext(admin), second.Assigned.ID(), assignment.StageInProgress, second.Assigned.Version())
		require.NoError(t, err)

		// a third, completed
		third, err := f.admission.SubmitWorkItem(testContext(manager), SubmitParams{
			WorkItemID:   uuid.New(),
			WorkItemType: assignment.WorkItemTask,
			UnitID:       unitID,
			Priority:     assignment.PriorityNormal,
		})
		require.NoError(t, err)
		require.NotNil(t, third.Assigned)
		_, err = f.workflow.MoveStage(testContext(admin), third.Assigned.ID(), assignment.StageDone, third.Assigned.Version())
		require.NoError(t, err)

		result, err := f.query.MyAssignments(testContext(owner), MyAssignmentsFilter{IncludeCompleted: true})
		require.NoError(t, err)
		require.Len(t, result.Items, 3)
		require.Equal(t, 3, result.Summary.Total)
		require.Equal(t, 2, result.Summary.Active)
		require.Equal(t, 1, result.Summary.Pending)
		require.Equal(t, 1, result.Summary.InProgress)
		require.Equal(t, 1, result.Summary.Completed)
		require.Zero(t, result.Summary.AtRisk)
		require.Zero(t, result.Summary.Overdue)

		for _, item := range result.Items {
			require.Equal(t, owner.ID, item.Assignment.AssigneeID())
			require.Equal(t, HealthOnTrack, item.Health)
			if item.Assignment.ID() == a.ID() {
				require.Greater(t, item.TimeRemaining, time.Duration(0))
			}
		}

		// the summary covers the full workload even when items are filtered
		open, err := f.query.MyAssignments(testContext(owner), MyAssignmentsFilter{})
		require.NoError(t, err)
		require.Len(t, open.Items, 2)
		require.Equal(t, 3, open.Summary.Total)
		require.Equal(t, 1, open.Summary.Completed)
	})

	t.Run("status filter narrows the item list", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		a := seedAssignmentFor(t, f, unitID, owner)

		admin := composables.Actor{ID: uuid.New(), Role: RoleAdmin}
		manager := composables.Actor{ID: uuid.New(), Role: RoleManager}
		second, err := f.admission.SubmitWorkItem(testContext(manager), SubmitParams{
			WorkItemID:   uuid.New(),
			WorkItemType: assignment.WorkItemTask,
			UnitID:       unitID,
			Priority:     assignment.PriorityUrgent,
		})
		require.NoError(t, err)
		require.NotNil(t, second.Assigned)
		_, err = f.workflow.MoveStage(testContext(admin), second.Assigned.ID(), assignment.StageInProgress, second.Assigned.Version())
		require.NoError(t, err)

		result, err := f.query.MyAssignments(testContext(owner), MyAssignmentsFilter{Status: assignment.StatusPending})
		require.NoError(t, err)
		require.Len(t, result.Items, 1)
		require.Equal(t, a.ID(), result.Items[0].Assignment.ID())
		require.Equal(t, 2, result.Summary.Total)

		_, err = f.query.MyAssignments(testContext(owner), MyAssignmentsFilter{Status: "bogus"})
		var serviceErr *ServiceError
		require.ErrorAs(t, err, &serviceErr)
		require.Equal(t, "ASSIGNMENT_INVALID_BODY", serviceErr.Code)
	})

	t.Run("summary counts at-risk and overdue work", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}

		now := time.Now()
		atRisk := assignment.Hydrate(assignment.HydrateParams{
			ID:          uuid.New(),
			WorkItemID:  uuid.New(),
			AssigneeID:  owner.ID,
			AssignedBy:  uuid.New(),
			UnitID:      unitID,
			Priority:    assignment.PriorityNormal,
			Status:      assignment.StatusInProgress,
			Stage:       assignment.StageInProgress,
			AssignedAt:  now.Add(-40 * time.Hour),
			SLADeadline: now.Add(8 * time.Hour),
			Version:     1,
		})
		overdue := assignment.Hydrate(assignment.HydrateParams{
			ID:          uuid.New(),
			WorkItemID:  uuid.New(),
			AssigneeID:  owner.ID,
			AssignedBy:  uuid.New(),
			UnitID:      unitID,
			Priority:    assignment.PriorityNormal,
			Status:      assignment.StatusInProgress,
			Stage:       assignment.StageInProgress,
			AssignedAt:  now.Add(-50 * time.Hour),
			SLADeadline: now.Add(-2 * time.Hour),
			Version:     1,
		})
		f.assignments.mu.Lock()
		f.assignments.assignments[atRisk.ID()] = atRisk
		f.assignments.assignments[overdue.ID()] = overdue
		f.assignments.mu.Unlock()

		result, err := f.query.MyAssignments(testContext(owner), MyAssignmentsFilter{})
		require.NoError(t, err)
		require.Equal(t, 2, result.Summary.Total)
		require.Equal(t, 2, result.Summary.Active)
		require.Equal(t, 1, result.Summary.AtRisk)
		require.Equal(t, 1, result.Summary.Overdue)
	})

	t.Run("empty workload is an empty list, not an error", func(t *testing.T) {
		f := newFixture(t, unit)
		nobody := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		result, err := f.query.MyAssignments(testContext(nobody), MyAssignmentsFilter{})
		require.NoError(t, err)
		require.Empty(t, result.Items)
		require.Zero(t, result.Summary.Total)
	})
}

func TestRelatedAssignments(t *testing.T) {
	supervisor := uuid.New()
	unitID := uuid.New()
	unit := orgunit.Unit{ID: unitID, Name: "audit", SupervisorID: &supervisor}
	engagementID := uuid.New()

	t.Run("rolls up engagement progress", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		anchor := seedEngagementAssignment(t, f, unitID, owner, engagementID)

		manager := composables.Actor{ID: uuid.New(), Role: RoleManager}
		for i := 0; i < 3; i++ {
			result, err := f.admission.SubmitWorkItem(testContext(manager), SubmitParams{
				WorkItemID:   uuid.New(),
				WorkItemType: assignment.WorkItemTask,
				UnitID:       unitID,
				EngagementID: &engagementID,
				Priority:     assignment.PriorityNormal,
			})
			require.NoError(t, err)
			require.NotNil(t, result.Assigned)
			if i == 0 {
				admin := composables.Actor{ID: uuid.New(), Role: RoleAdmin}
				_, err = f.workflow.MoveStage(testContext(admin), result.Assigned.ID(), assignment.StageDone, result.Assigned.Version())
				require.NoError(t, err)
			}
		}

		result, err := f.query.RelatedAssignments(testContext(owner), anchor.ID())
		require.NoError(t, err)
		require.Len(t, result.Items, 4)
		require.Equal(t, 4, result.Progress.Total)
		require.Equal(t, 1, result.Progress.Completed)
		require.InDelta(t, 25.0, result.Progress.Percent, 1e-9)
	})

	t.Run("assignment without an engagement returns itself", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		a := seedAssignmentFor(t, f, unitID, owner)

		result, err := f.query.RelatedAssignments(testContext(owner), a.ID())
		require.NoError(t, err)
		require.Len(t, result.Items, 1)
		require.Equal(t, 1, result.Progress.Total)
	})

	t.Run("strangers are rejected", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		anchor := seedEngagementAssignment(t, f, unitID, owner, engagementID)

		stranger := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		_, err := f.query.RelatedAssignments(testContext(stranger), anchor.ID())
		var serviceErr *ServiceError
		require.ErrorAs(t, err, &serviceErr)
		require.Equal(t, "ASSIGNMENT_FORBIDDEN", serviceErr.Code)
	})

	t.Run("same-unit manager may read", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		anchor := seedEngagementAssignment(t, f, unitID, owner, engagementID)

		peer := composables.Actor{ID: uuid.New(), Role: RoleManager}
		peerProfile := profileWith(unitID, nil, 5, 0)
		peerProfile.UserID = peer.ID
		peerProfile.Role = RoleManager
		f.directory.add(peerProfile)

		result, err := f.query.RelatedAssignments(testContext(peer), anchor.ID())
		require.NoError(t, err)
		require.NotEmpty(t, result.Items)
	})
}

func TestAddObserver(t *testing.T) {
	supervisor := uuid.New()
	unitID := uuid.New()
	unit := orgunit.Unit{ID: unitID, Name: "audit", SupervisorID: &supervisor}

	t.Run("observer gains read access and duplicates are silent", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		a := seedAssignmentFor(t, f, unitID, owner)

		watcher := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		require.NoError(t, f.query.AddObserver(testContext(owner), a.ID(), watcher.ID))
		require.NoError(t, f.query.AddObserver(testContext(owner), a.ID(), watcher.ID))

		observers, err := f.assignments.ListObservers(testContext(owner), a.ID())
		require.NoError(t, err)
		require.Len(t, observers, 1)

		_, err = f.query.Timeline(testContext(watcher), a.ID())
		require.NoError(t, err)
	})

	t.Run("strangers may not add observers", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		a := seedAssignmentFor(t, f, unitID, owner)

		stranger := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		err := f.query.AddObserver(testContext(stranger), a.ID(), stranger.ID)
		var serviceErr *ServiceError
		require.ErrorAs(t, err, &serviceErr)
		require.Equal(t, "ASSIGNMENT_FORBIDDEN", serviceErr.Code)
	})
}
