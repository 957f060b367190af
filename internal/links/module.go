package links

import (
	apphttp "procurement_backend/internal/http"
	"procurement_backend/platform/config"
	"procurement_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// Module owns link issuance and the public short-link routes.
type Module struct {
	issuer   *Issuer
	targeter *Targeter
	handler  *Handler
}

// NewModule wires the issuer and, when rdb is set, the Redis shortener.
func NewModule(cfg config.LinkConfig, rdb *redis.Client, log *logger.Logger) *Module {
	issuer := NewIssuer(cfg)

	m := &Module{issuer: issuer}
	if rdb == nil {
		m.targeter = NewTargeter(issuer, nil, log)
		return m
	}

	base := cfg.GetShortLinkBaseURL()
	if base == "" {
		base = cfg.GetAppBaseURL()
	}
	shortener := NewRedisShortener(rdb, base, cfg.GetResponseLinkTTL())
	m.targeter = NewTargeter(issuer, shortener, log)
	m.handler = NewHandler(shortener)
	return m
}

func (m *Module) Name() string {
	return "links"
}

func (m *Module) Issuer() *Issuer {
	return m.issuer
}

func (m *Module) Targeter() *Targeter {
	return m.targeter
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	if m.handler == nil {
		return
	}
	public := ctx.Engine.Group("")
	if ctx.PublicRateLimit != nil {
		public.Use(ctx.PublicRateLimit)
	}
	m.handler.RegisterRoutes(public)
}

var _ apphttp.Module = (*Module)(nil)
