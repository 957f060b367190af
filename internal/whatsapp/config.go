// Package whatsapp delivers chat messages through an Evolution-style
// gateway whose exact request contract is discovered by probing.
package whatsapp

import (
	"context"
	"strings"

	"procurement_backend/platform/config"
	"procurement_backend/platform/logger"

	"github.com/google/uuid"
)

// Scope tags where a gateway configuration came from.
type Scope string

const (
	ScopeEnv    Scope = "env"
	ScopeClient Scope = "client"
	ScopeGlobal Scope = "global"
	ScopeNone   Scope = "none"
)

// Config is a resolved gateway configuration.
type Config struct {
	BaseURL  string
	APIKey   string
	Instance string
	Scope    Scope
}

// Usable reports whether the config can be used to send.
func (c Config) Usable() bool {
	return strings.TrimSpace(c.BaseURL) != "" && strings.TrimSpace(c.APIKey) != ""
}

// IntegrationStore loads stored gateway integrations. A nil tenantID
// selects the global integration.
type IntegrationStore interface {
	FindWhatsApp(ctx context.Context, tenantID *uuid.UUID) (Config, bool, error)
}

type configSource struct {
	scope   Scope
	resolve func(ctx context.Context, tenantID uuid.UUID) (Config, bool, error)
}

// ConfigResolver walks configuration sources in priority order:
// environment, tenant integration, global integration.
type ConfigResolver struct {
	sources []configSource
	log     *logger.Logger
}

func NewConfigResolver(cfg config.WhatsAppConfig, store IntegrationStore, log *logger.Logger) *ConfigResolver {
	env := Config{
		BaseURL:  cfg.GetWhatsAppURL(),
		APIKey:   cfg.GetWhatsAppKey(),
		Instance: cfg.GetWhatsAppInstance(),
	}

	sources := []configSource{
		{scope: ScopeEnv, resolve: func(context.Context, uuid.UUID) (Config, bool, error) {
			return env, env.Usable(), nil
		}},
	}
	if store != nil {
		sources = append(sources,
			configSource{scope: ScopeClient, resolve: func(ctx context.Context, tenantID uuid.UUID) (Config, bool, error) {
				if tenantID == uuid.Nil {
					return Config{}, false, nil
				}
				return store.FindWhatsApp(ctx, &tenantID)
			}},
			configSource{scope: ScopeGlobal, resolve: func(ctx context.Context, _ uuid.UUID) (Config, bool, error) {
				return store.FindWhatsApp(ctx, nil)
			}},
		)
	}

	return &ConfigResolver{sources: sources, log: log}
}

// Resolve returns the first usable configuration. When nothing is
// configured the result has ScopeNone.
func (r *ConfigResolver) Resolve(ctx context.Context, tenantID uuid.UUID) Config {
	for _, src := range r.sources {
		if cfg, ok := r.try(ctx, src, tenantID); ok {
			return cfg
		}
	}
	return Config{Scope: ScopeNone}
}

// ResolveScope returns the configuration of a single scope.
func (r *ConfigResolver) ResolveScope(ctx context.Context, tenantID uuid.UUID, scope Scope) (Config, bool) {
	for _, src := range r.sources {
		if src.scope == scope {
			return r.try(ctx, src, tenantID)
		}
	}
	return Config{Scope: ScopeNone}, false
}

func (r *ConfigResolver) try(ctx context.Context, src configSource, tenantID uuid.UUID) (Config, bool) {
	cfg, ok, err := src.resolve(ctx, tenantID)
	if err != nil {
		r.log.WarnContext(ctx, "whatsapp config source failed", "scope", src.scope, "error", err)
		return Config{}, false
	}
	if !ok || !cfg.Usable() {
		return Config{}, false
	}
	cfg.Scope = src.scope
	return cfg, true
}
