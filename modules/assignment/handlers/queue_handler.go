package handlers

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/aggregates/assignment"
	"github.com/iota-uz/assignment-engine/modules/assignment/services"
	"github.com/iota-uz/assignment-engine/pkg/composables"
	"github.com/iota-uz/assignment-engine/pkg/eventbus"
)

// QueueHandler drains the pending queue whenever a completed assignment
// frees a capacity slot.
type QueueHandler struct {
	pool      *pgxpool.Pool
	queue     *services.QueueService
	admission *services.AdmissionService
	logger    *logrus.Logger
}

func RegisterQueueHandler(
	bus eventbus.EventBus,
	pool *pgxpool.Pool,
	queue *services.QueueService,
	admission *services.AdmissionService,
	logger *logrus.Logger,
) *QueueHandler {
	h := &QueueHandler{pool: pool, queue: queue, admission: admission, logger: logger}
	bus.Subscribe(h.onCompleted)
	return h
}

func (h *QueueHandler) onCompleted(ev assignment.CompletedEvent) {
	// Handlers run outside the request; build a fresh context over the pool.
	ctx := composables.WithPool(context.Background(), h.pool)
	if err := h.queue.DrainUnit(ctx, ev.Assignment.UnitID(), h.admission.AssignQueued); err != nil {
		h.logger.WithError(err).WithField("unit_id", ev.Assignment.UnitID()).
			Error("queue drain after completion failed")
	}
}
