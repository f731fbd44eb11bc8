package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/iota-uz/assignment-engine/pkg/composables"
	"github.com/iota-uz/assignment-engine/pkg/configuration"
	"github.com/iota-uz/assignment-engine/pkg/httpapi"
	"github.com/iota-uz/assignment-engine/pkg/ratelimit"
)

type RateLimitConfig struct {
	RequestsPerPeriod int
	Period            time.Duration
	Limiter           *ratelimit.FixedWindow
}

// RateLimit throttles requests per client IP with a fixed window.
func RateLimit(conf *configuration.Configuration, cfg RateLimitConfig) mux.MiddlewareFunc {
	limiter := cfg.Limiter
	if limiter == nil {
		period := cfg.Period
		if period <= 0 {
			period = time.Second
		}
		limiter = ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), period, int64(cfg.RequestsPerPeriod))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), getRealIP(r, conf))
			if err != nil {
				composables.UseLogger(r.Context()).WithError(err).Warn("rate limit store unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				retryAfter := int(res.RetryAfter.Seconds())
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				_ = httpapi.WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", map[string]string{
					"retry_after_seconds": strconv.Itoa(retryAfter),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
