package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrRelayExhausted = errors.New("realtime: relay exhausted reconnect attempts")

type RelayOptions struct {
	Channel       string
	MaxReconnects int
	MaxBackoff    time.Duration
}

func (o *RelayOptions) setDefaults() {
	if o.Channel == "" {
		o.Channel = "assignment-engine:events"
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 10
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 30 * time.Second
	}
}

// RedisRelay bridges events across processes: Publish pushes local events to
// a redis pub/sub channel, Run feeds remote events into the local notifier.
// The subscription loop owns its reconnect state; after MaxReconnects failed
// attempts it emits a stale marker to local clients and stops.
type RedisRelay struct {
	client *redis.Client
	local  Notifier
	logger *logrus.Logger
	opts   RelayOptions
}

func NewRedisRelay(client *redis.Client, local Notifier, logger *logrus.Logger, opts RelayOptions) *RedisRelay {
	opts.setDefaults()
	return &RedisRelay{
		client: client,
		local:  local,
		logger: logger,
		opts:   opts,
	}
}

func (r *RedisRelay) Publish(channel string, event Event) error {
	event.Channel = channel
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(context.Background(), r.opts.Channel, data).Err()
}

func (r *RedisRelay) Run(ctx context.Context) error {
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := r.consume(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			attempts++
			if attempts > r.opts.MaxReconnects {
				r.markStale()
				return ErrRelayExhausted
			}
			wait := backoff(attempts, r.opts.MaxBackoff)
			r.logger.WithError(err).WithFields(logrus.Fields{
				"attempt": attempts,
				"backoff": wait.String(),
			}).Warn("realtime: relay subscription lost, reconnecting")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		// consume only returns nil on context cancellation
		return ctx.Err()
	}
}

func (r *RedisRelay) consume(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.opts.Channel)
	defer func() { _ = pubsub.Close() }()

	// confirm the subscription before declaring the link healthy
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("realtime: pubsub channel closed")
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.WithError(err).Warn("realtime: dropping malformed relay event")
				continue
			}
			if err := r.local.Publish(event.Channel, event); err != nil {
				r.logger.WithError(err).Warn("realtime: local delivery failed")
			}
		}
	}
}

func (r *RedisRelay) markStale() {
	event, err := NewEvent(EventStale, "", map[string]string{
		"reason": "realtime connection lost, refresh to resync",
	})
	if err != nil {
		return
	}
	if err := r.local.Publish("", event); err != nil {
		r.logger.WithError(err).Error("realtime: failed to surface stale state")
	}
	r.logger.Error("realtime: relay gave up reconnecting, clients marked stale")
}
