package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/aggregates/assignment"
	"github.com/iota-uz/assignment-engine/modules/assignment/infrastructure/persistence/models"
	"github.com/iota-uz/assignment-engine/pkg/composables"
)

const (
	selectAssignmentSQL = `
		SELECT id, work_item_id, work_item_type, assignee_id, assigned_by, unit_id,
			engagement_id, required_skills, priority, status, stage, assigned_at,
			sla_deadline, stage_sla_deadline, warning_sent_at, escalated_at,
			escalation_recipient_id, completed_at, version
		FROM assignments`

	insertAssignmentSQL = `
		INSERT INTO assignments (work_item_id, work_item_type, assignee_id, assigned_by,
			unit_id, engagement_id, required_skills, priority, status, stage,
			assigned_at, sla_deadline, stage_sla_deadline, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	updateAssignmentSQL = `
		UPDATE assignments
		SET status = $1, stage = $2, stage_sla_deadline = $3, warning_sent_at = $4,
			escalated_at = $5, escalation_recipient_id = $6, completed_at = $7,
			version = version + 1
		WHERE id = $8 AND version = $9`

	insertEventSQL = `
		INSERT INTO assignment_events (assignment_id, kind, actor_id, recipient_id, note)
		VALUES ($1, $2, $3, $4, $5)`

	insertEscalatedEventSQL = `
		INSERT INTO assignment_events (assignment_id, kind, actor_id, recipient_id, note)
		SELECT $1, 'escalated', $2, $3, $4
		WHERE NOT EXISTS (
			SELECT 1 FROM assignment_events
			WHERE assignment_id = $1 AND kind = 'escalated' AND created_at > now() - $5::interval
		)`

	selectEventsSQL = `
		SELECT id, assignment_id, kind, actor_id, recipient_id, note, created_at
		FROM assignment_events
		WHERE assignment_id = $1
		ORDER BY created_at`

	insertObserverSQL = `
		INSERT INTO assignment_observers (assignment_id, user_id, added_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (assignment_id, user_id) DO NOTHING`

	insertStageHistorySQL = `
		INSERT INTO assignment_stage_history (assignment_id, from_stage, to_stage, moved_by)
		VALUES ($1, $2, $3, $4)`
)

type AssignmentRepository struct{}

func NewAssignmentRepository() *AssignmentRepository {
	return &AssignmentRepository{}
}

func (r *AssignmentRepository) queryAssignments(ctx context.Context, query string, args ...interface{}) ([]assignment.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query assignments")
	}
	defer rows.Close()

	out := make([]assignment.Assignment, 0)
	for rows.Next() {
		var m models.Assignment
		if err := rows.Scan(
			&m.ID,
			&m.WorkItemID,
			&m.WorkItemType,
			&m.AssigneeID,
			&m.AssignedBy,
			&m.UnitID,
			&m.EngagementID,
			&m.RequiredSkills,
			&m.Priority,
			&m.Status,
			&m.Stage,
			&m.AssignedAt,
			&m.SLADeadline,
			&m.StageSLADeadline,
			&m.WarningSentAt,
			&m.EscalatedAt,
			&m.EscalationRecipientID,
			&m.CompletedAt,
			&m.Version,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan assignment")
		}
		out = append(out, toDomainAssignment(m))
	}
	return out, rows.Err()
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (assignment.Assignment, error) {
	found, err := r.queryAssignments(ctx, selectAssignmentSQL+" WHERE id = $1", id)
	if err != nil {
		return assignment.Assignment{}, err
	}
	if len(found) == 0 {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return found[0], nil
}

func (r *AssignmentRepository) ListByAssignee(ctx context.Context, assigneeID uuid.UUID) ([]assignment.Assignment, error) {
	return r.queryAssignments(ctx, selectAssignmentSQL+" WHERE assignee_id = $1 ORDER BY sla_deadline", assigneeID)
}

func (r *AssignmentRepository) ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]assignment.Assignment, error) {
	return r.queryAssignments(ctx, selectAssignmentSQL+" WHERE engagement_id = $1 ORDER BY assigned_at", engagementID)
}

func (r *AssignmentRepository) ListActive(ctx context.Context) ([]assignment.Assignment, error) {
	return r.queryAssignments(ctx, selectAssignmentSQL+" WHERE status IN ('pending', 'in_progress') ORDER BY sla_deadline")
}

func (r *AssignmentRepository) Create(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return assignment.Assignment{}, err
	}

	m := toDBAssignment(a)
	var id uuid.UUID
	if err := tx.QueryRow(
		ctx,
		insertAssignmentSQL,
		m.WorkItemID,
		m.WorkItemType,
		m.AssigneeID,
		m.AssignedBy,
		m.UnitID,
		m.EngagementID,
		m.RequiredSkills,
		m.Priority,
		m.Status,
		m.Stage,
		m.AssignedAt,
		m.SLADeadline,
		m.StageSLADeadline,
		m.Version,
	).Scan(&id); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "failed to insert assignment")
	}
	return r.GetByID(ctx, id)
}

func (r *AssignmentRepository) UpdateVersioned(ctx context.Context, a assignment.Assignment, expected int64) (assignment.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return assignment.Assignment{}, err
	}

	m := toDBAssignment(a)
	tag, err := tx.Exec(
		ctx,
		updateAssignmentSQL,
		m.Status,
		m.Stage,
		m.StageSLADeadline,
		m.WarningSentAt,
		m.EscalatedAt,
		m.EscalationRecipientID,
		m.CompletedAt,
		m.ID,
		expected,
	)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "failed to update assignment")
	}
	if tag.RowsAffected() == 0 {
		// Distinguish missing from stale.
		if _, err := r.GetByID(ctx, m.ID); err != nil {
			return assignment.Assignment{}, err
		}
		return assignment.Assignment{}, assignment.ErrStaleVersion
	}
	return r.GetByID(ctx, m.ID)
}

func (r *AssignmentRepository) AppendEvent(ctx context.Context, ev assignment.TimelineEvent) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, insertEventSQL, ev.AssignmentID, ev.Kind, ev.ActorID, ev.RecipientID, ev.Note)
	return errors.Wrap(err, "failed to insert assignment event")
}

func (r *AssignmentRepository) AppendEscalatedEvent(ctx context.Context, ev assignment.TimelineEvent, window time.Duration) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, insertEscalatedEventSQL, ev.AssignmentID, ev.ActorID, ev.RecipientID, ev.Note, window.String())
	if err != nil {
		return false, errors.Wrap(err, "failed to insert escalation event")
	}
	return tag.RowsAffected() > 0, nil
}

func (r *AssignmentRepository) LastEscalatedAt(ctx context.Context, assignmentID uuid.UUID) (*time.Time, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var at time.Time
	err = tx.QueryRow(
		ctx,
		`SELECT created_at FROM assignment_events
		 WHERE assignment_id = $1 AND kind = 'escalated'
		 ORDER BY created_at DESC LIMIT 1`,
		assignmentID,
	).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query last escalation")
	}
	return &at, nil
}

func (r *AssignmentRepository) ListTimeline(ctx context.Context, assignmentID uuid.UUID) ([]assignment.TimelineEvent, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, selectEventsSQL, assignmentID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query timeline")
	}
	defer rows.Close()

	out := make([]assignment.TimelineEvent, 0)
	for rows.Next() {
		var m models.AssignmentEvent
		if err := rows.Scan(&m.ID, &m.AssignmentID, &m.Kind, &m.ActorID, &m.RecipientID, &m.Note, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan timeline event")
		}
		out = append(out, toDomainTimelineEvent(m))
	}
	return out, rows.Err()
}

func (r *AssignmentRepository) AddObserver(ctx context.Context, o assignment.Observer) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, insertObserverSQL, o.AssignmentID, o.UserID, o.AddedBy)
	if err != nil {
		return false, errors.Wrap(err, "failed to insert observer")
	}
	return tag.RowsAffected() == 0, nil
}

func (r *AssignmentRepository) ListObservers(ctx context.Context, assignmentID uuid.UUID) ([]assignment.Observer, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(
		ctx,
		`SELECT assignment_id, user_id, added_by, created_at
		 FROM assignment_observers WHERE assignment_id = $1 ORDER BY created_at`,
		assignmentID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query observers")
	}
	defer rows.Close()

	out := make([]assignment.Observer, 0)
	for rows.Next() {
		var m models.AssignmentObserver
		if err := rows.Scan(&m.AssignmentID, &m.UserID, &m.AddedBy, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan observer")
		}
		out = append(out, toDomainObserver(m))
	}
	return out, rows.Err()
}

func (r *AssignmentRepository) IsObserver(ctx context.Context, assignmentID, userID uuid.UUID) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	err = tx.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM assignment_observers WHERE assignment_id = $1 AND user_id = $2)`,
		assignmentID, userID,
	).Scan(&exists)
	return exists, errors.Wrap(err, "failed to query observer")
}

func (r *AssignmentRepository) AppendStageHistory(ctx context.Context, tr assignment.StageTransition) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, insertStageHistorySQL, tr.AssignmentID, tr.FromStage, tr.ToStage, tr.MovedBy)
	return errors.Wrap(err, "failed to insert stage history")
}

func (r *AssignmentRepository) ListStageHistory(ctx context.Context, assignmentID uuid.UUID) ([]assignment.StageTransition, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(
		ctx,
		`SELECT id, assignment_id, from_stage, to_stage, moved_by, created_at
		 FROM assignment_stage_history WHERE assignment_id = $1 ORDER BY created_at`,
		assignmentID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query stage history")
	}
	defer rows.Close()

	out := make([]assignment.StageTransition, 0)
	for rows.Next() {
		var m models.StageHistory
		if err := rows.Scan(&m.ID, &m.AssignmentID, &m.FromStage, &m.ToStage, &m.MovedBy, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan stage transition")
		}
		out = append(out, toDomainStageTransition(m))
	}
	return out, rows.Err()
}
