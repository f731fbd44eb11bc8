package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/assignment-engine/internal/server"
	"github.com/iota-uz/assignment-engine/modules"
	"github.com/iota-uz/assignment-engine/modules/assignment/presentation/controllers"
	"github.com/iota-uz/assignment-engine/modules/assignment/services"
	"github.com/iota-uz/assignment-engine/pkg/application"
	"github.com/iota-uz/assignment-engine/pkg/composables"
	"github.com/iota-uz/assignment-engine/pkg/configuration"
	"github.com/iota-uz/assignment-engine/pkg/eventbus"
	"github.com/iota-uz/assignment-engine/pkg/realtime"
	"github.com/iota-uz/assignment-engine/pkg/ws"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	poolCtx, cancelPool := context.WithTimeout(context.Background(), time.Second*5)
	defer cancelPool()
	pool, err := pgxpool.New(poolCtx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
		Hub: ws.NewHub(&ws.HubOptions{
			Logger: logger,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			OnConnect: controllers.ConnectHook,
		}),
	})
	if err := modules.Load(app); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	defer cancelMigrate()
	if err := app.Migrations().Apply(migrateCtx); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}

	serverInstance, err := server.Default(&server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Pool:          pool,
	})
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startBackground(runCtx, app, pool, conf, logger)

	go func() {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := serverInstance.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("graceful shutdown failed")
		}
	}()

	logger.WithFields(logrus.Fields{
		"address": conf.SocketAddress,
	}).Info("assignment engine listening")
	if err := serverInstance.Start(conf.SocketAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server stopped: %v", err)
	}
}

func startBackground(ctx context.Context, app application.Application, pool *pgxpool.Pool, conf *configuration.Configuration, logger *logrus.Logger) {
	if conf.SLA.SweepEnabled {
		sla := app.Service(services.SLAService{}).(*services.SLAService)
		go sla.Run(composables.WithPool(ctx, pool))
	}

	if relay := modules.Assignment.Relay(); relay != nil {
		go func() {
			err := relay.Run(ctx)
			switch {
			case err == nil, errors.Is(err, context.Canceled):
			case errors.Is(err, realtime.ErrRelayExhausted):
				logger.Error("realtime relay gave up; restart the process to resume fan-out")
			default:
				logger.WithError(err).Error("realtime relay stopped")
			}
		}()
	}
}
