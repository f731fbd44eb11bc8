package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/escalation"
	"github.com/iota-uz/assignment-engine/modules/assignment/infrastructure/persistence/models"
	"github.com/iota-uz/assignment-engine/pkg/composables"
)

const (
	selectEscalationSQL = `
		SELECT id, assignment_id, raised_by, recipient_id, reason, automatic,
			status, acknowledged_by, acknowledged_at, resolved_by, resolved_at,
			resolution_note, created_at
		FROM assignment_escalations`

	insertEscalationSQL = `
		INSERT INTO assignment_escalations (assignment_id, raised_by,
			recipient_id, reason, automatic, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	updateEscalationSQL = `
		UPDATE assignment_escalations
		SET status = $2,
			acknowledged_by = $3,
			acknowledged_at = $4,
			resolved_by = $5,
			resolved_at = $6,
			resolution_note = $7
		WHERE id = $1`
)

type EscalationRepository struct{}

func NewEscalationRepository() *EscalationRepository {
	return &EscalationRepository{}
}

func (r *EscalationRepository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]escalation.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query escalations")
	}
	defer rows.Close()

	out := make([]escalation.Record, 0)
	for rows.Next() {
		var m models.AssignmentEscalation
		if err := rows.Scan(
			&m.ID,
			&m.AssignmentID,
			&m.RaisedBy,
			&m.RecipientID,
			&m.Reason,
			&m.Automatic,
			&m.Status,
			&m.AcknowledgedBy,
			&m.AcknowledgedAt,
			&m.ResolvedBy,
			&m.ResolvedAt,
			&m.ResolutionNote,
			&m.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan escalation")
		}
		out = append(out, toDomainEscalation(m))
	}
	return out, rows.Err()
}

func (r *EscalationRepository) Insert(ctx context.Context, rec escalation.Record) (escalation.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return escalation.Record{}, err
	}

	if rec.Status == "" {
		rec.Status = escalation.StatusPending
	}
	if err := tx.QueryRow(
		ctx,
		insertEscalationSQL,
		rec.AssignmentID,
		rec.RaisedBy,
		rec.RecipientID,
		rec.Reason,
		rec.Automatic,
		string(rec.Status),
	).Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return escalation.Record{}, errors.Wrap(err, "failed to insert escalation")
	}
	return rec, nil
}

func (r *EscalationRepository) GetByID(ctx context.Context, id uuid.UUID) (escalation.Record, error) {
	found, err := r.queryRecords(ctx, selectEscalationSQL+" WHERE id = $1", id)
	if err != nil {
		return escalation.Record{}, err
	}
	if len(found) == 0 {
		return escalation.Record{}, escalation.ErrNotFound
	}
	return found[0], nil
}

func (r *EscalationRepository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]escalation.Record, error) {
	return r.queryRecords(ctx, selectEscalationSQL+" WHERE assignment_id = $1 ORDER BY created_at DESC", assignmentID)
}

func (r *EscalationRepository) Update(ctx context.Context, rec escalation.Record) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(
		ctx,
		updateEscalationSQL,
		rec.ID,
		string(rec.Status),
		rec.AcknowledgedBy,
		rec.AcknowledgedAt,
		rec.ResolvedBy,
		rec.ResolvedAt,
		rec.ResolutionNote,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update escalation")
	}
	if tag.RowsAffected() == 0 {
		return escalation.ErrNotFound
	}
	return nil
}
