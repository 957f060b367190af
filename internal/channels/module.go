// Package channels provides the channel adapter used by every outbound
// flow and the admin endpoints that store channel integrations.
package channels

import (
	"procurement_backend/internal/channels/handler"
	"procurement_backend/internal/channels/repository"
	"procurement_backend/internal/channels/service"
	"procurement_backend/internal/email"
	apphttp "procurement_backend/internal/http"
	"procurement_backend/internal/whatsapp"
	"procurement_backend/platform/config"
	"procurement_backend/platform/logger"
	"procurement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ModuleConfig is the configuration consumed by the channels module.
type ModuleConfig interface {
	config.WhatsAppConfig
	config.EmailConfig
	config.SecretsConfig
}

// Module wires the chat gateway, the email service and stored integrations.
type Module struct {
	handler *handler.Handler
	service *service.Service
	adapter *Adapter
}

// NewModule creates the channels module. rdb may be nil, which disables
// the winning-strategy cache.
func NewModule(pool *pgxpool.Pool, rdb *redis.Client, cfg ModuleConfig, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), cfg.GetIntegrationEncryptionKey())
	chatLog := log.WithComponent("whatsapp")

	var cache whatsapp.StrategyCache
	if rdb != nil {
		cache = whatsapp.NewRedisStrategyCache(rdb, cfg.GetStrategyCacheTTL(), chatLog)
	}

	adapter := NewAdapter(
		whatsapp.NewConfigResolver(cfg, svc, chatLog),
		whatsapp.NewGateway(cfg, cache, chatLog),
		email.NewService(email.NewConfigResolver(cfg, svc, log.WithComponent("email")), nil, log.WithComponent("email")),
		log.WithComponent("channels"),
	)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		adapter: adapter,
	}
}

func (m *Module) Name() string {
	return "channels"
}

// Adapter returns the delivery façade for other modules.
func (m *Module) Adapter() *Adapter {
	return m.adapter
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/integrations"))
}

var _ apphttp.Module = (*Module)(nil)
