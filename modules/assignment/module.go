package assignment

import (
	"embed"

	"github.com/redis/go-redis/v9"

	"github.com/iota-uz/assignment-engine/modules/assignment/handlers"
	"github.com/iota-uz/assignment-engine/modules/assignment/infrastructure/persistence"
	"github.com/iota-uz/assignment-engine/modules/assignment/presentation/controllers"
	"github.com/iota-uz/assignment-engine/modules/assignment/services"
	"github.com/iota-uz/assignment-engine/pkg/application"
	"github.com/iota-uz/assignment-engine/pkg/configuration"
	"github.com/iota-uz/assignment-engine/pkg/ratelimit"
	"github.com/iota-uz/assignment-engine/pkg/realtime"
)

//go:embed infrastructure/persistence/schema/assignment-schema.sql
var migrationFS embed.FS

type Module struct {
	relay *realtime.RedisRelay
}

func NewModule() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return "assignment"
}

// Relay is non-nil when the cross-process redis bridge is enabled; the
// caller owns its Run lifecycle.
func (m *Module) Relay() *realtime.RedisRelay {
	return m.relay
}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()
	logger := app.Logger()
	bus := app.EventPublisher()

	assignmentRepo := persistence.NewAssignmentRepository()
	escalationRepo := persistence.NewEscalationRepository()
	staffRepo := persistence.NewStaffRepository()
	queueRepo := persistence.NewQueueRepository()
	unitRepo := persistence.NewOrgUnitRepository()

	store := ratelimit.NewMemoryStore()
	if conf.RateLimit.Storage == "redis" {
		redisStore, err := ratelimit.NewRedisStore(conf.RateLimit.RedisURL)
		if err != nil {
			return err
		}
		store = redisStore
	}
	escalationLimiter := ratelimit.NewFixedWindow(store, conf.Escalation.CooldownWindow, 1)

	escalationService := services.NewEscalationService(
		assignmentRepo, escalationRepo, staffRepo, unitRepo, escalationLimiter, bus, conf.Escalation, logger,
	)
	slaService := services.NewSLAService(assignmentRepo, escalationService, bus, conf.SLA, logger)
	queueService := services.NewQueueService(queueRepo, staffRepo, bus, logger)
	admissionService := services.NewAdmissionService(
		assignmentRepo, staffRepo, unitRepo, queueService, slaService, bus, logger,
	)
	queryService := services.NewAssignmentQueryService(assignmentRepo, staffRepo, slaService)
	workflowService := services.NewWorkflowService(assignmentRepo, staffRepo, bus, slaService, logger)

	app.RegisterServices(
		escalationService,
		slaService,
		queueService,
		admissionService,
		queryService,
		workflowService,
	)

	local := realtime.NewHubNotifier(app.Websocket(), logger)
	var notifier realtime.Notifier = local
	if conf.Realtime.RedisRelayEnabled {
		m.relay = realtime.NewRedisRelay(
			redis.NewClient(&redis.Options{Addr: conf.RedisURL}),
			local,
			logger,
			realtime.RelayOptions{
				Channel:       conf.Realtime.RedisChannel,
				MaxReconnects: conf.Realtime.MaxReconnects,
				MaxBackoff:    conf.Realtime.MaxBackoff,
			},
		)
		notifier = m.relay
	}
	handlers.RegisterRealtimeHandler(bus, notifier, logger)
	handlers.RegisterQueueHandler(bus, app.DB(), queueService, admissionService, logger)

	app.RegisterControllers(
		controllers.NewAssignmentAPIController(app),
		controllers.NewRealtimeController(app),
	)

	app.Migrations().RegisterSchema(&migrationFS)
	return nil
}
