// Package negotiation runs the AI-assisted negotiation with the best-priced
// supplier of a quote: analysis, the opening message, inbound reply
// classification and human overrides.
package negotiation

import (
	"fmt"

	"procurement_backend/internal/aiusage"
	apphttp "procurement_backend/internal/http"
	"procurement_backend/internal/negotiation/agent"
	"procurement_backend/internal/negotiation/handler"
	"procurement_backend/internal/negotiation/ports"
	"procurement_backend/internal/negotiation/repository"
	"procurement_backend/internal/negotiation/service"
	"procurement_backend/platform/config"
	"procurement_backend/platform/events"
	"procurement_backend/platform/httpkit"
	"procurement_backend/platform/logger"
	"procurement_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// webhookHeader is where the chat gateway sends its api key.
const webhookHeader = "apikey"

// ModuleConfig is the configuration consumed by the negotiation module.
type ModuleConfig interface {
	config.LLMConfig
	config.WebhookConfig
	GetDefaultCountryCode() string
}

// Collaborators are the cross-module dependencies of the negotiation module.
type Collaborators struct {
	Chat     ports.ChatSender
	Renderer service.Renderer
	Auditor  service.Auditor
	Usage    aiusage.Recorder
}

// Module represents the negotiation domain module
type Module struct {
	handler       *handler.Handler
	service       *service.Service
	webhookSecret string
}

// NewModule creates the negotiation module. The agents are only built when
// a model is configured; without them every step uses its fallback.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, cfg ModuleConfig, deps Collaborators, val *validator.Validator, log *logger.Logger) (*Module, error) {
	svcDeps := service.Deps{
		Repo:               repository.New(pool),
		Renderer:           deps.Renderer,
		Chat:               deps.Chat,
		Auditor:            deps.Auditor,
		EventBus:           eventBus,
		Log:                log,
		DefaultCountryCode: cfg.GetDefaultCountryCode(),
	}

	if cfg.IsLLMEnabled() {
		strategist, err := agent.NewStrategist(cfg, deps.Usage)
		if err != nil {
			return nil, fmt.Errorf("negotiation strategist: %w", err)
		}
		composer, err := agent.NewComposer(cfg, deps.Usage)
		if err != nil {
			return nil, fmt.Errorf("negotiation composer: %w", err)
		}
		classifier, err := agent.NewClassifier(cfg, deps.Usage)
		if err != nil {
			return nil, fmt.Errorf("intent classifier: %w", err)
		}
		svcDeps.Strategist = strategist
		svcDeps.Composer = composer
		svcDeps.Classifier = classifier
	} else {
		log.Warn("LLM not configured, negotiation uses deterministic fallbacks")
	}

	svc := service.New(svcDeps)
	return &Module{
		handler:       handler.New(svc, val),
		service:       svc,
		webhookSecret: cfg.GetWebhookSecret(),
	}, nil
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "negotiation"
}

// Service returns the service layer.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/negotiations"))

	var guards []gin.HandlerFunc
	if m.webhookSecret != "" {
		guards = append(guards, httpkit.SharedSecret(m.webhookSecret, webhookHeader))
	}
	m.handler.RegisterWebhookRoutes(ctx.V1.Group("/webhooks", guards...))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
