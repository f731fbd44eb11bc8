package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/staff"
	"github.com/iota-uz/assignment-engine/modules/assignment/infrastructure/persistence/models"
	"github.com/iota-uz/assignment-engine/pkg/composables"
)

const (
	selectStaffSQL = `
		SELECT user_id, unit_id, role, skills, assignment_limit,
			current_assignment_count, available, unavailable_until, updated_at
		FROM staff_profiles`

	// Eligibility is skill containment plus availability plus free capacity,
	// scoped to the unit's org subtree.
	selectEligibleSQL = selectStaffSQL + `
		WHERE unit_id = ANY (
			WITH RECURSIVE subtree AS (
				SELECT id FROM org_units WHERE id = $1
				UNION ALL
				SELECT u.id FROM org_units u JOIN subtree s ON u.parent_id = s.id
			)
			SELECT id FROM subtree
		)
		AND available
		AND (unavailable_until IS NULL OR unavailable_until <= now())
		AND skills @> $2
		AND current_assignment_count < assignment_limit`

	claimSlotSQL = `
		UPDATE staff_profiles
		SET current_assignment_count = current_assignment_count + 1, updated_at = now()
		WHERE user_id = $1 AND current_assignment_count < assignment_limit`

	releaseSlotSQL = `
		UPDATE staff_profiles
		SET current_assignment_count = GREATEST(current_assignment_count - 1, 0), updated_at = now()
		WHERE user_id = $1`
)

type StaffRepository struct{}

func NewStaffRepository() *StaffRepository {
	return &StaffRepository{}
}

func (r *StaffRepository) scanProfiles(rows pgx.Rows) ([]staff.Profile, error) {
	defer rows.Close()

	out := make([]staff.Profile, 0)
	for rows.Next() {
		var m models.StaffProfile
		if err := rows.Scan(
			&m.UserID,
			&m.UnitID,
			&m.Role,
			&m.Skills,
			&m.AssignmentLimit,
			&m.CurrentAssignmentCount,
			&m.Available,
			&m.UnavailableUntil,
			&m.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan staff profile")
		}
		out = append(out, toDomainProfile(m))
	}
	return out, rows.Err()
}

func (r *StaffRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (staff.Profile, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return staff.Profile{}, err
	}

	rows, err := tx.Query(ctx, selectStaffSQL+" WHERE user_id = $1", userID)
	if err != nil {
		return staff.Profile{}, errors.Wrap(err, "failed to query staff profile")
	}
	found, err := r.scanProfiles(rows)
	if err != nil {
		return staff.Profile{}, err
	}
	if len(found) == 0 {
		return staff.Profile{}, staff.ErrNotFound
	}
	return found[0], nil
}

func (r *StaffRepository) ListEligible(ctx context.Context, unitID uuid.UUID, requiredSkills []string) ([]staff.Profile, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	if requiredSkills == nil {
		requiredSkills = []string{}
	}
	rows, err := tx.Query(ctx, selectEligibleSQL, unitID, requiredSkills)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query eligible staff")
	}
	return r.scanProfiles(rows)
}

func (r *StaffRepository) ClaimSlot(ctx context.Context, userID uuid.UUID) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, claimSlotSQL, userID)
	if err != nil {
		return false, errors.Wrap(err, "failed to claim assignment slot")
	}
	return tag.RowsAffected() > 0, nil
}

func (r *StaffRepository) ReleaseSlot(ctx context.Context, userID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, releaseSlotSQL, userID)
	return errors.Wrap(err, "failed to release assignment slot")
}
