package server

import (
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/assignment-engine/pkg/application"
	"github.com/iota-uz/assignment-engine/pkg/configuration"
	"github.com/iota-uz/assignment-engine/pkg/constants"
	"github.com/iota-uz/assignment-engine/pkg/metrics"
	"github.com/iota-uz/assignment-engine/pkg/middleware"
	"github.com/iota-uz/assignment-engine/pkg/ratelimit"
	"github.com/iota-uz/assignment-engine/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
	Pool          *pgxpool.Pool
}

// Default assembles the HTTP server: shared middleware stack first, then
// every controller the modules registered.
func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	app := options.Application
	conf := options.Configuration

	middlewares := []mux.MiddlewareFunc{
		middleware.WithLogger(options.Logger, conf),
		middleware.Provide(constants.AppKey, app),
		middleware.Provide(constants.PoolKey, options.Pool),
		middleware.Cors("http://localhost:3000", "ws://localhost:3000"),
	}

	if conf.RateLimit.Enabled {
		store := ratelimit.NewMemoryStore()
		if conf.RateLimit.Storage == "redis" {
			redisStore, err := ratelimit.NewRedisStore(conf.RateLimit.RedisURL)
			if err != nil {
				options.Logger.WithError(err).Warn("failed to create redis store for rate limiting, falling back to memory")
			} else {
				store = redisStore
			}
		}
		middlewares = append(middlewares, middleware.RateLimit(conf, middleware.RateLimitConfig{
			Limiter: ratelimit.NewFixedWindow(store, time.Second, int64(conf.RateLimit.GlobalRPS)),
		}))
	}

	app.RegisterMiddleware(middlewares...)

	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	return server.NewHTTPServer(app), nil
}
