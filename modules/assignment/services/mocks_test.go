package services

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/aggregates/assignment"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/escalation"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/orgunit"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/queueentry"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/staff"
	"github.com/iota-uz/assignment-engine/pkg/composables"
	"github.com/iota-uz/assignment-engine/pkg/eventbus"
)

// stubTx satisfies the transaction interface without a database; repositories
// in these tests are in-memory and never touch it.
type stubTx struct {
	pgx.Tx
}

func testContext(actor composables.Actor) context.Context {
	ctx := composables.WithTx(context.Background(), stubTx{})
	return composables.WithActor(ctx, actor)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// recordingBus wraps the real publisher so tests can assert on what was
// published while still exercising signature matching.
type recordingBus struct {
	eventbus.EventBus
	mu     sync.Mutex
	events []interface{}
}

func newRecordingBus() *recordingBus {
	return &recordingBus{EventBus: eventbus.NewEventPublisher(nil)}
}

func (b *recordingBus) Publish(args ...interface{}) {
	b.mu.Lock()
	b.events = append(b.events, args...)
	b.mu.Unlock()
	b.EventBus.Publish(args...)
}

func (b *recordingBus) Events() []interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]interface{}, len(b.events))
	copy(out, b.events)
	return out
}

type memAssignmentRepo struct {
	mu           sync.Mutex
	assignments  map[uuid.UUID]assignment.Assignment
	timeline     map[uuid.UUID][]assignment.TimelineEvent
	observers    map[uuid.UUID][]assignment.Observer
	stageHistory map[uuid.UUID][]assignment.StageTransition
}

func newMemAssignmentRepo() *memAssignmentRepo {
	return &memAssignmentRepo{
		assignments:  make(map[uuid.UUID]assignment.Assignment),
		timeline:     make(map[uuid.UUID][]assignment.TimelineEvent),
		observers:    make(map[uuid.UUID][]assignment.Observer),
		stageHistory: make(map[uuid.UUID][]assignment.StageTransition),
	}
}

func (r *memAssignmentRepo) GetByID(_ context.Context, id uuid.UUID) (assignment.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[id]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return a, nil
}

func (r *memAssignmentRepo) ListByAssignee(_ context.Context, assigneeID uuid.UUID) ([]assignment.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []assignment.Assignment
	for _, a := range r.assignments {
		if a.AssigneeID() == assigneeID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SLADeadline().Before(out[j].SLADeadline()) })
	return out, nil
}

func (r *memAssignmentRepo) ListByEngagement(_ context.Context, engagementID uuid.UUID) ([]assignment.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []assignment.Assignment
	for _, a := range r.assignments {
		if eng := a.EngagementID(); eng != nil && *eng == engagementID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt().Before(out[j].AssignedAt()) })
	return out, nil
}

func (r *memAssignmentRepo) ListActive(_ context.Context) ([]assignment.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []assignment.Assignment
	for _, a := range r.assignments {
		if !a.Status().Terminal() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SLADeadline().Before(out[j].SLADeadline()) })
	return out, nil
}

func (r *memAssignmentRepo) Create(_ context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := assignment.Hydrate(assignment.HydrateParams{
		ID:               uuid.New(),
		WorkItemID:       a.WorkItemID(),
		WorkItemType:     a.WorkItemType(),
		AssigneeID:       a.AssigneeID(),
		AssignedBy:       a.AssignedBy(),
		UnitID:           a.UnitID(),
		EngagementID:     a.EngagementID(),
		RequiredSkills:   a.RequiredSkills(),
		Priority:         a.Priority(),
		Status:           a.Status(),
		Stage:            a.Stage(),
		AssignedAt:       a.AssignedAt(),
		SLADeadline:      a.SLADeadline(),
		StageSLADeadline: a.StageSLADeadline(),
		Version:          1,
	})
	r.assignments[stored.ID()] = stored
	return stored, nil
}

func (r *memAssignmentRepo) UpdateVersioned(_ context.Context, a assignment.Assignment, expected int64) (assignment.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.assignments[a.ID()]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	if current.Version() != expected {
		return assignment.Assignment{}, assignment.ErrStaleVersion
	}
	updated := assignment.Hydrate(assignment.HydrateParams{
		ID:                    a.ID(),
		WorkItemID:            a.WorkItemID(),
		WorkItemType:          a.WorkItemType(),
		AssigneeID:            a.AssigneeID(),
		AssignedBy:            a.AssignedBy(),
		UnitID:                a.UnitID(),
		EngagementID:          a.EngagementID(),
		RequiredSkills:        a.RequiredSkills(),
		Priority:              a.Priority(),
		Status:                a.Status(),
		Stage:                 a.Stage(),
		AssignedAt:            a.AssignedAt(),
		SLADeadline:           a.SLADeadline(),
		StageSLADeadline:      a.StageSLADeadline(),
		WarningSentAt:         a.WarningSentAt(),
		EscalatedAt:           a.EscalatedAt(),
		EscalationRecipientID: a.EscalationRecipientID(),
		CompletedAt:           a.CompletedAt(),
		Version:               expected + 1,
	})
	r.assignments[a.ID()] = updated
	return updated, nil
}

func (r *memAssignmentRepo) AppendEvent(_ context.Context, ev assignment.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = uuid.New()
	ev.CreatedAt = time.Now()
	r.timeline[ev.AssignmentID] = append(r.timeline[ev.AssignmentID], ev)
	return nil
}

func (r *memAssignmentRepo) AppendEscalatedEvent(_ context.Context, ev assignment.TimelineEvent, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-window)
	for _, existing := range r.timeline[ev.AssignmentID] {
		if existing.Kind == "escalated" && existing.CreatedAt.After(cutoff) {
			return false, nil
		}
	}
	ev.ID = uuid.New()
	ev.CreatedAt = time.Now()
	r.timeline[ev.AssignmentID] = append(r.timeline[ev.AssignmentID], ev)
	return true, nil
}

func (r *memAssignmentRepo) LastEscalatedAt(_ context.Context, assignmentID uuid.UUID) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last *time.Time
	for _, ev := range r.timeline[assignmentID] {
		if ev.Kind == "escalated" {
			at := ev.CreatedAt
			if last == nil || at.After(*last) {
				last = &at
			}
		}
	}
	return last, nil
}

func (r *memAssignmentRepo) ListTimeline(_ context.Context, assignmentID uuid.UUID) ([]assignment.TimelineEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]assignment.TimelineEvent(nil), r.timeline[assignmentID]...), nil
}

func (r *memAssignmentRepo) AddObserver(_ context.Context, o assignment.Observer) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.observers[o.AssignmentID] {
		if existing.UserID == o.UserID {
			return true, nil
		}
	}
	o.CreatedAt = time.Now()
	r.observers[o.AssignmentID] = append(r.observers[o.AssignmentID], o)
	return false, nil
}

func (r *memAssignmentRepo) ListObservers(_ context.Context, assignmentID uuid.UUID) ([]assignment.Observer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]assignment.Observer(nil), r.observers[assignmentID]...), nil
}

func (r *memAssignmentRepo) IsObserver(_ context.Context, assignmentID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.observers[assignmentID] {
		if o.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAssignmentRepo) AppendStageHistory(_ context.Context, tr assignment.StageTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tr.ID = uuid.New()
	tr.CreatedAt = time.Now()
	r.stageHistory[tr.AssignmentID] = append(r.stageHistory[tr.AssignmentID], tr)
	return nil
}

func (r *memAssignmentRepo) ListStageHistory(_ context.Context, assignmentID uuid.UUID) ([]assignment.StageTransition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]assignment.StageTransition(nil), r.stageHistory[assignmentID]...), nil
}

type memEscalationRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]escalation.Record
}

func newMemEscalationRepo() *memEscalationRepo {
	return &memEscalationRepo{records: make(map[uuid.UUID]escalation.Record)}
}

func (r *memEscalationRepo) Insert(_ context.Context, rec escalation.Record) (escalation.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = uuid.New()
	if rec.Status == "" {
		rec.Status = escalation.StatusPending
	}
	rec.CreatedAt = time.Now()
	r.records[rec.ID] = rec
	return rec, nil
}

func (r *memEscalationRepo) GetByID(_ context.Context, id uuid.UUID) (escalation.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return escalation.Record{}, escalation.ErrNotFound
	}
	return rec, nil
}

func (r *memEscalationRepo) ListByAssignment(_ context.Context, assignmentID uuid.UUID) ([]escalation.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []escalation.Record
	for _, rec := range r.records {
		if rec.AssignmentID == assignmentID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memEscalationRepo) Update(_ context.Context, rec escalation.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; !ok {
		return escalation.ErrNotFound
	}
	r.records[rec.ID] = rec
	return nil
}

type memStaffDirectory struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*staff.Profile
	subtree  map[uuid.UUID][]uuid.UUID // unit -> units whose staff are eligible
}

func newMemStaffDirectory() *memStaffDirectory {
	return &memStaffDirectory{
		profiles: make(map[uuid.UUID]*staff.Profile),
		subtree:  make(map[uuid.UUID][]uuid.UUID),
	}
}

func (d *memStaffDirectory) add(p staff.Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := p
	d.profiles[p.UserID] = &cp
}

// linkSubtree marks child units whose staff count as eligible for parent.
func (d *memStaffDirectory) linkSubtree(parent uuid.UUID, children ...uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subtree[parent] = append(d.subtree[parent], children...)
}

func (d *memStaffDirectory) GetByUserID(_ context.Context, userID uuid.UUID) (staff.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.profiles[userID]
	if !ok {
		return staff.Profile{}, staff.ErrNotFound
	}
	return *p, nil
}

func (d *memStaffDirectory) eligibleUnits(unitID uuid.UUID) map[uuid.UUID]struct{} {
	units := map[uuid.UUID]struct{}{unitID: {}}
	for _, id := range d.subtree[unitID] {
		units[id] = struct{}{}
	}
	return units
}

func (d *memStaffDirectory) ListEligible(_ context.Context, unitID uuid.UUID, requiredSkills []string) ([]staff.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	units := d.eligibleUnits(unitID)
	var out []staff.Profile
	for _, p := range d.profiles {
		if _, ok := units[p.UnitID]; !ok {
			continue
		}
		if !p.Available || p.AtCapacity() {
			continue
		}
		hasAll := true
		for _, s := range requiredSkills {
			if !p.HasSkill(s) {
				hasAll = false
				break
			}
		}
		if hasAll {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (d *memStaffDirectory) ClaimSlot(_ context.Context, userID uuid.UUID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.profiles[userID]
	if !ok {
		return false, staff.ErrNotFound
	}
	if p.CurrentAssignmentCount >= p.AssignmentLimit {
		return false, nil
	}
	p.CurrentAssignmentCount++
	return true, nil
}

func (d *memStaffDirectory) ReleaseSlot(_ context.Context, userID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.profiles[userID]; ok && p.CurrentAssignmentCount > 0 {
		p.CurrentAssignmentCount--
	}
	return nil
}

type memQueueRepo struct {
	mu      sync.Mutex
	entries []queueentry.Entry
}

func newMemQueueRepo() *memQueueRepo {
	return &memQueueRepo{}
}

func priorityRank(p assignment.Priority) int { return p.Rank() }

func (r *memQueueRepo) ordered(unitID uuid.UUID) []queueentry.Entry {
	var out []queueentry.Entry
	for _, e := range r.entries {
		if e.UnitID == unitID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if priorityRank(out[i].Priority) != priorityRank(out[j].Priority) {
			return priorityRank(out[i].Priority) > priorityRank(out[j].Priority)
		}
		return out[i].QueuedAt.Before(out[j].QueuedAt)
	})
	return out
}

func (r *memQueueRepo) Insert(_ context.Context, e queueentry.Entry) (queueentry.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = uuid.New()
	if e.QueuedAt.IsZero() {
		e.QueuedAt = time.Now()
	}
	r.entries = append(r.entries, e)
	return e, nil
}

func (r *memQueueRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *memQueueRepo) GetByID(_ context.Context, id uuid.UUID) (queueentry.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return queueentry.Entry{}, queueentry.ErrNotFound
}

func (r *memQueueRepo) Position(_ context.Context, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var unitID uuid.UUID
	for _, e := range r.entries {
		if e.ID == id {
			unitID = e.UnitID
		}
	}
	for i, e := range r.ordered(unitID) {
		if e.ID == id {
			return i + 1, nil
		}
	}
	return 0, queueentry.ErrNotFound
}

func (r *memQueueRepo) ListPending(_ context.Context, unitID uuid.UUID, limit int) ([]queueentry.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.ordered(unitID)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memQueueRepo) IncrementAttempts(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == id {
			r.entries[i].Attempts++
		}
	}
	return nil
}

type memOrgUnitRepo struct {
	units map[uuid.UUID]orgunit.Unit
}

func newMemOrgUnitRepo(units ...orgunit.Unit) *memOrgUnitRepo {
	r := &memOrgUnitRepo{units: make(map[uuid.UUID]orgunit.Unit)}
	for _, u := range units {
		r.units[u.ID] = u
	}
	return r
}

func (r *memOrgUnitRepo) GetByID(_ context.Context, id uuid.UUID) (orgunit.Unit, error) {
	u, ok := r.units[id]
	if !ok {
		return orgunit.Unit{}, orgunit.ErrNotFound
	}
	return u, nil
}

func (r *memOrgUnitRepo) SupervisorOf(_ context.Context, unitID uuid.UUID, exclude uuid.UUID) (uuid.UUID, bool, error) {
	current := unitID
	for i := 0; i < 32; i++ {
		u, ok := r.units[current]
		if !ok {
			return uuid.Nil, false, orgunit.ErrNotFound
		}
		if u.SupervisorID != nil && *u.SupervisorID != exclude {
			return *u.SupervisorID, true, nil
		}
		if u.ParentID == nil {
			return uuid.Nil, false, nil
		}
		current = *u.ParentID
	}
	return uuid.Nil, false, nil
}

func (r *memOrgUnitRepo) SubtreeIDs(_ context.Context, unitID uuid.UUID) ([]uuid.UUID, error) {
	out := []uuid.UUID{unitID}
	for id, u := range r.units {
		if u.ParentID != nil && *u.ParentID == unitID {
			out = append(out, id)
		}
	}
	return out, nil
}
