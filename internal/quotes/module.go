// Package quotes provides quote dispatch, supplier reminders and the public
// proposal intake.
package quotes

import (
	apphttp "procurement_backend/internal/http"
	"procurement_backend/internal/quotes/handler"
	"procurement_backend/internal/quotes/repository"
	"procurement_backend/internal/quotes/service"
	"procurement_backend/platform/config"
	"procurement_backend/platform/events"
	"procurement_backend/platform/httpkit"
	"procurement_backend/platform/logger"
	"procurement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// cronHeader carries the shared secret of scheduler-triggered routes.
const cronHeader = "X-Cron-Token"

// ModuleConfig is the configuration consumed by the quotes module.
type ModuleConfig interface {
	config.DispatchConfig
	config.WebhookConfig
}

// Collaborators are the cross-module dependencies of the quotes module.
type Collaborators struct {
	Messenger  service.Messenger
	Renderer   service.Renderer
	Targeter   service.Targeter
	LinkParser service.LinkParser
}

// Module represents the quotes domain module
type Module struct {
	handler    *handler.Handler
	service    *service.Service
	cronSecret string
}

// NewModule creates a new quotes module with all dependencies wired
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, cfg ModuleConfig, deps Collaborators, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(service.Deps{
		Repo:       repository.New(pool),
		Messenger:  deps.Messenger,
		Renderer:   deps.Renderer,
		Targeter:   deps.Targeter,
		LinkParser: deps.LinkParser,
		EventBus:   eventBus,
		Log:        log,
	}, cfg)

	return &Module{
		handler:    handler.New(svc, val),
		service:    svc,
		cronSecret: cfg.GetCronSecret(),
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "quotes"
}

// Service returns the service layer for the scheduler.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/quotes"))

	m.handler.RegisterPublicRoutes(ctx.Public.Group("/quotes"))

	internal := ctx.V1.Group("/internal", httpkit.SharedSecret(m.cronSecret, cronHeader))
	m.handler.RegisterInternalRoutes(internal)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
