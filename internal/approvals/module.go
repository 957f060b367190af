// Package approvals provides the approval workflow gate that decides
// whether an awarded proposal is binding or must wait for approvers.
package approvals

import (
	"procurement_backend/internal/approvals/handler"
	"procurement_backend/internal/approvals/repository"
	"procurement_backend/internal/approvals/service"
	apphttp "procurement_backend/internal/http"
	"procurement_backend/platform/events"
	"procurement_backend/platform/logger"
	"procurement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the approvals domain module
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new approvals module with all dependencies wired
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, auditor service.Auditor, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), nil, auditor, eventBus, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "approvals"
}

// Service returns the service layer.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterQuoteRoutes(ctx.Protected.Group("/quotes"))
	m.handler.RegisterRoutes(ctx.Protected.Group("/approvals"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
