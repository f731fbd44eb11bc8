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

func TestDeadlineFor(t *testing.T) {
	f := newFixture(t)
	from := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		priority assignment.Priority
		budget   time.Duration
	}{
		{assignment.PriorityUrgent, 8 * time.Hour},
		{assignment.PriorityHigh, 24 * time.Hour},
		{assignment.PriorityNormal, 48 * time.Hour},
		{assignment.PriorityLow, 120 * time.Hour},
	}
	for _, tc := range cases {
		require.Equal(t, from.Add(tc.budget), f.sla.DeadlineFor(tc.priority, from), string(tc.priority))
	}
}

func TestStageDeadlineFor(t *testing.T) {
	f := newFixture(t)
	from := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	todo := f.sla.StageDeadlineFor(assignment.StageTodo, from)
	require.NotNil(t, todo)
	require.Equal(t, from.Add(24*time.Hour), *todo)

	review := f.sla.StageDeadlineFor(assignment.StageReview, from)
	require.NotNil(t, review)
	require.Equal(t, from.Add(12*time.Hour), *review)

	require.Nil(t, f.sla.StageDeadlineFor(assignment.StageDone, from))
	require.Nil(t, f.sla.StageDeadlineFor(assignment.StageCancelled, from))
}

func hydratedAt(assignedAt time.Time, budget time.Duration, status assignment.Status) assignment.Assignment {
	return assignment.Hydrate(assignment.HydrateParams{
		ID:          uuid.New(),
		WorkItemID:  uuid.New(),
		AssigneeID:  uuid.New(),
		AssignedBy:  uuid.New(),
		UnitID:      uuid.New(),
		Priority:    assignment.PriorityNormal,
		Status:      status,
		Stage:       assignment.StageTodo,
		AssignedAt:  assignedAt,
		SLADeadline: assignedAt.Add(budget),
		Version:     1,
	})
}

func TestClassify(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	t.Run("fresh assignment is on track", func(t *testing.T) {
		a := hydratedAt(now.Add(-time.Hour), 48*time.Hour, assignment.StatusPending)
		require.Equal(t, HealthOnTrack, f.sla.Classify(a, now))
	})

	t.Run("past the at-risk fraction is at risk", func(t *testing.T) {
		a := hydratedAt(now.Add(-40*time.Hour), 48*time.Hour, assignment.StatusInProgress)
		require.Equal(t, HealthAtRisk, f.sla.Classify(a, now))
	})

	t.Run("past the deadline is breached", func(t *testing.T) {
		a := hydratedAt(now.Add(-50*time.Hour), 48*time.Hour, assignment.StatusInProgress)
		require.Equal(t, HealthBreached, f.sla.Classify(a, now))
	})

	t.Run("just below the fraction stays on track", func(t *testing.T) {
		a := hydratedAt(now.Add(-35*time.Hour), 48*time.Hour, assignment.StatusPending)
		require.Equal(t, HealthOnTrack, f.sla.Classify(a, now))
	})

	t.Run("terminal assignments are never flagged", func(t *testing.T) {
		a := hydratedAt(now.Add(-200*time.Hour), 48*time.Hour, assignment.StatusCompleted)
		require.Equal(t, HealthOnTrack, f.sla.Classify(a, now))
	})
}

func TestSweep(t *testing.T) {
	supervisor := uuid.New()
	unitID := uuid.New()
	unit := orgunit.Unit{ID: unitID, Name: "audit", SupervisorID: &supervisor}
	ctx := testContext(composables.Actor{ID: uuid.New(), Role: RoleAdmin})

	t.Run("warns once per assignment", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		a := seedAssignmentFor(t, f, unitID, owner)

		// 80% of the normal 48h budget consumed
		at := a.AssignedAt().Add(time.Duration(float64(48*time.Hour) * 0.8))
		warned, escalated, err := f.sla.Sweep(ctx, at)
		require.NoError(t, err)
		require.Equal(t, 1, warned)
		require.Zero(t, escalated)

		fresh, err := f.assignments.GetByID(ctx, a.ID())
		require.NoError(t, err)
		require.NotNil(t, fresh.WarningSentAt())

		warned, escalated, err = f.sla.Sweep(ctx, at.Add(time.Minute))
		require.NoError(t, err)
		require.Zero(t, warned)
		require.Zero(t, escalated)
	})

	t.Run("escalates breached assignments automatically", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		a := seedAssignmentFor(t, f, unitID, owner)

		after := a.SLADeadline().Add(time.Minute)
		warned, escalated, err := f.sla.Sweep(ctx, after)
		require.NoError(t, err)
		require.Zero(t, warned)
		require.Equal(t, 1, escalated)

		fresh, err := f.assignments.GetByID(ctx, a.ID())
		require.NoError(t, err)
		require.NotNil(t, fresh.EscalatedAt())
		require.Equal(t, supervisor, *fresh.EscalationRecipientID())

		var auto bool
		for _, ev := range f.bus.Events() {
			if esc, ok := ev.(assignment.EscalatedEvent); ok {
				auto = esc.Automatic
			}
		}
		require.True(t, auto)

		// already escalated assignments are left alone on the next pass
		warned, escalated, err = f.sla.Sweep(ctx, after.Add(time.Minute))
		require.NoError(t, err)
		require.Zero(t, warned)
		require.Zero(t, escalated)
	})

	t.Run("terminal assignments are skipped", func(t *testing.T) {
		f := newFixture(t, unit)
		owner := composables.Actor{ID: uuid.New(), Role: RoleStaff}
		a := seedAssignmentFor(t, f, unitID, owner)

		admin := composables.Actor{ID: uuid.New(), Role: RoleAdmin}
		_, err := f.workflow.MoveStage(testContext(admin), a.ID(), assignment.StageDone, a.Version())
		require.NoError(t, err)

		warned, escalated, err := f.sla.Sweep(ctx, a.SLADeadline().Add(time.Hour))
		require.NoError(t, err)
		require.Zero(t, warned)
		require.Zero(t, escalated)
	})
}
