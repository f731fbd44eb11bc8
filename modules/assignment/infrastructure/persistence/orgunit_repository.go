package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/orgunit"
	"github.com/iota-uz/assignment-engine/modules/assignment/infrastructure/persistence/models"
	"github.com/iota-uz/assignment-engine/pkg/composables"
)

const selectUnitSQL = `
	SELECT id, name, parent_id, supervisor_id
	FROM org_units`

type OrgUnitRepository struct{}

func NewOrgUnitRepository() *OrgUnitRepository {
	return &OrgUnitRepository{}
}

func (r *OrgUnitRepository) GetByID(ctx context.Context, id uuid.UUID) (orgunit.Unit, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return orgunit.Unit{}, err
	}

	var m models.OrgUnit
	err = tx.QueryRow(ctx, selectUnitSQL+" WHERE id = $1", id).Scan(&m.ID, &m.Name, &m.ParentID, &m.SupervisorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return orgunit.Unit{}, orgunit.ErrNotFound
	}
	if err != nil {
		return orgunit.Unit{}, errors.Wrap(err, "failed to query org unit")
	}
	return toDomainUnit(m), nil
}

func (r *OrgUnitRepository) SupervisorOf(ctx context.Context, unitID uuid.UUID, exclude uuid.UUID) (uuid.UUID, bool, error) {
	current := unitID
	// Bounded walk; org trees are shallow and cycles are a data error.
	for i := 0; i < 32; i++ {
		unit, err := r.GetByID(ctx, current)
		if err != nil {
			return uuid.Nil, false, err
		}
		if unit.SupervisorID != nil && *unit.SupervisorID != exclude {
			return *unit.SupervisorID, true, nil
		}
		if unit.ParentID == nil {
			return uuid.Nil, false, nil
		}
		current = *unit.ParentID
	}
	return uuid.Nil, false, nil
}

func (r *OrgUnitRepository) SubtreeIDs(ctx context.Context, unitID uuid.UUID) ([]uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(
		ctx,
		`WITH RECURSIVE subtree AS (
			SELECT id FROM org_units WHERE id = $1
			UNION ALL
			SELECT u.id FROM org_units u JOIN subtree s ON u.parent_id = s.id
		)
		SELECT id FROM subtree`,
		unitID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query org subtree")
	}
	defer rows.Close()

	out := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan unit id")
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
