package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// FixedWindow is a generic fixed-window limiter: at most Limit hits per key
// per Window. It backs both the escalation cooldown and request throttling.
type FixedWindow struct {
	inner *limiter.Limiter
}

type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

func NewFixedWindow(store limiter.Store, window time.Duration, limit int64) *FixedWindow {
	return &FixedWindow{
		inner: limiter.New(store, limiter.Rate{Period: window, Limit: limit}),
	}
}

// Allow consumes one hit for key and reports whether it fit in the window.
// When blocked, RetryAfter is the time until the window resets.
func (f *FixedWindow) Allow(ctx context.Context, key string) (Result, error) {
	lctx, err := f.inner.Get(ctx, key)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Allowed:   !lctx.Reached,
		Remaining: lctx.Remaining,
	}
	if lctx.Reached {
		reset := time.Unix(lctx.Reset, 0)
		if d := time.Until(reset); d > 0 {
			res.RetryAfter = d
		}
	}
	return res, nil
}

// Peek reports the window state for key without consuming a hit.
func (f *FixedWindow) Peek(ctx context.Context, key string) (Result, error) {
	lctx, err := f.inner.Peek(ctx, key)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Allowed:   !lctx.Reached,
		Remaining: lctx.Remaining,
	}
	if lctx.Reached {
		reset := time.Unix(lctx.Reset, 0)
		if d := time.Until(reset); d > 0 {
			res.RetryAfter = d
		}
	}
	return res, nil
}

func NewMemoryStore() limiter.Store {
	return memory.NewStore()
}

func NewRedisStore(redisURL string) (limiter.Store, error) {
	client := redis.NewClient(&redis.Options{Addr: redisURL})
	return sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: "assignment-engine:ratelimit",
	})
}
