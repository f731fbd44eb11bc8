package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/aggregates/assignment"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/queueentry"
	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/staff"
	"github.com/iota-uz/assignment-engine/pkg/composables"
	"github.com/iota-uz/assignment-engine/pkg/eventbus"
)

// QueueService parks work items that found no capacity and drains them once
// capacity frees up.
type QueueService struct {
	repo      queueentry.Repository
	directory staff.Directory
	publisher eventbus.EventBus
	logger    *logrus.Logger
}

func NewQueueService(
	repo queueentry.Repository,
	directory staff.Directory,
	publisher eventbus.EventBus,
	logger *logrus.Logger,
) *QueueService {
	return &QueueService{
		repo:      repo,
		directory: directory,
		publisher: publisher,
		logger:    logger,
	}
}

// Enqueue inserts the entry and reports its 1-based drain position.
func (s *QueueService) Enqueue(ctx context.Context, e queueentry.Entry) (queueentry.Entry, int, error) {
	inserted, err := s.repo.Insert(ctx, e)
	if err != nil {
		return queueentry.Entry{}, 0, err
	}
	position, err := s.repo.Position(ctx, inserted.ID)
	if err != nil {
		return queueentry.Entry{}, 0, err
	}

	workItemsQueuedTotal.WithLabelValues(string(inserted.Priority)).Inc()
	s.publisher.Publish(queueentry.QueuedEvent{
		Entry:     inserted,
		Position:  position,
		Timestamp: time.Now(),
	})
	return inserted, position, nil
}

// ListPending returns the unit's queue in drain order.
func (s *QueueService) ListPending(ctx context.Context, unitID uuid.UUID, limit int) ([]queueentry.Entry, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) ([]queueentry.Entry, error) {
		return s.repo.ListPending(txCtx, unitID, limit)
	})
}

// DrainUnit retries queued entries for the unit against the admission
// assign step. It is triggered when an assignment completes and a capacity
// slot frees up; entries that still find no capacity stay queued with a
// bumped attempt counter.
func (s *QueueService) DrainUnit(ctx context.Context, unitID uuid.UUID, tryAssign func(context.Context, queueentry.Entry) (*assignment.Assignment, error)) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		pending, err := s.repo.ListPending(txCtx, unitID, 0)
		if err != nil {
			return err
		}

		for _, entry := range pending {
			assigned, err := tryAssign(txCtx, entry)
			if err != nil {
				return err
			}
			if assigned == nil {
				if err := s.repo.IncrementAttempts(txCtx, entry.ID); err != nil {
					return err
				}
				// Drain order is strict: if the head entry cannot be placed,
				// nothing behind it may jump the line.
				return nil
			}

			if err := s.repo.Delete(txCtx, entry.ID); err != nil {
				return err
			}
			queueDrainedTotal.Inc()
			s.publisher.Publish(queueentry.DrainedEvent{
				Entry:      entry,
				Assignment: *assigned,
				Timestamp:  time.Now(),
			})
		}
		return nil
	})
}
