package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/queueentry"
	"github.com/iota-uz/assignment-engine/modules/assignment/infrastructure/persistence/models"
	"github.com/iota-uz/assignment-engine/pkg/composables"
	"github.com/iota-uz/assignment-engine/pkg/repo"
)

const (
	selectQueueSQL = `
		SELECT id, work_item_id, work_item_type, unit_id, engagement_id,
			required_skills, priority, requested_by, attempts, queued_at
		FROM assignment_queue`

	// Drain order: priority rank descending, then FIFO within a priority.
	queueOrderSQL = `
		ORDER BY CASE priority
			WHEN 'urgent' THEN 4
			WHEN 'high' THEN 3
			WHEN 'normal' THEN 2
			ELSE 1
		END DESC, queued_at`

	insertQueueSQL = `
		INSERT INTO assignment_queue (work_item_id, work_item_type, unit_id,
			engagement_id, required_skills, priority, requested_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, queued_at`

	queuePositionSQL = `
		WITH ranked AS (
			SELECT id, row_number() OVER (` + queueOrderSQL + `) AS pos
			FROM assignment_queue
			WHERE unit_id = (SELECT unit_id FROM assignment_queue WHERE id = $1)
		)
		SELECT pos FROM ranked WHERE id = $1`
)

type QueueRepository struct{}

func NewQueueRepository() *QueueRepository {
	return &QueueRepository{}
}

func (r *QueueRepository) queryEntries(ctx context.Context, query string, args ...interface{}) ([]queueentry.Entry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query queue entries")
	}
	defer rows.Close()

	out := make([]queueentry.Entry, 0)
	for rows.Next() {
		var m models.QueueEntry
		if err := rows.Scan(
			&m.ID,
			&m.WorkItemID,
			&m.WorkItemType,
			&m.UnitID,
			&m.EngagementID,
			&m.RequiredSkills,
			&m.Priority,
			&m.RequestedBy,
			&m.Attempts,
			&m.QueuedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan queue entry")
		}
		out = append(out, toDomainQueueEntry(m))
	}
	return out, rows.Err()
}

func (r *QueueRepository) Insert(ctx context.Context, e queueentry.Entry) (queueentry.Entry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return queueentry.Entry{}, err
	}

	skills := e.RequiredSkills
	if skills == nil {
		skills = []string{}
	}
	if err := tx.QueryRow(
		ctx,
		insertQueueSQL,
		e.WorkItemID,
		string(e.WorkItemType),
		e.UnitID,
		e.EngagementID,
		skills,
		string(e.Priority),
		e.RequestedBy,
	).Scan(&e.ID, &e.QueuedAt); err != nil {
		return queueentry.Entry{}, errors.Wrap(err, "failed to insert queue entry")
	}
	return e, nil
}

func (r *QueueRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, "DELETE FROM assignment_queue WHERE id = $1", id)
	return errors.Wrap(err, "failed to delete queue entry")
}

func (r *QueueRepository) GetByID(ctx context.Context, id uuid.UUID) (queueentry.Entry, error) {
	found, err := r.queryEntries(ctx, selectQueueSQL+" WHERE id = $1", id)
	if err != nil {
		return queueentry.Entry{}, err
	}
	if len(found) == 0 {
		return queueentry.Entry{}, queueentry.ErrNotFound
	}
	return found[0], nil
}

func (r *QueueRepository) Position(ctx context.Context, id uuid.UUID) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var pos int
	if err := tx.QueryRow(ctx, queuePositionSQL, id).Scan(&pos); err != nil {
		return 0, errors.Wrap(err, "failed to query queue position")
	}
	return pos, nil
}

func (r *QueueRepository) ListPending(ctx context.Context, unitID uuid.UUID, limit int) ([]queueentry.Entry, error) {
	query := selectQueueSQL + " WHERE unit_id = $1 " + queueOrderSQL + " " + repo.FormatLimitOffset(limit, 0)
	return r.queryEntries(ctx, query, unitID)
}

func (r *QueueRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, "UPDATE assignment_queue SET attempts = attempts + 1 WHERE id = $1", id)
	return errors.Wrap(err, "failed to increment queue attempts")
}
