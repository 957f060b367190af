package email

import (
	"context"

	"procurement_backend/platform/config"
	"procurement_backend/platform/logger"

	"github.com/google/uuid"
)

const defaultAPIURL = "https://api.brevo.com/v3/smtp/email"

type configSource struct {
	scope   Scope
	resolve func(ctx context.Context, tenantID uuid.UUID) (Config, bool, error)
}

// ConfigResolver walks tenant, global and environment configuration in
// that order.
type ConfigResolver struct {
	sources []configSource
	log     *logger.Logger
}

func NewConfigResolver(cfg config.EmailConfig, store ConfigStore, log *logger.Logger) *ConfigResolver {
	var sources []configSource
	if store != nil {
		sources = append(sources,
			configSource{scope: ScopeClient, resolve: func(ctx context.Context, tenantID uuid.UUID) (Config, bool, error) {
				if tenantID == uuid.Nil {
					return Config{}, false, nil
				}
				return store.FindEmail(ctx, &tenantID)
			}},
			configSource{scope: ScopeGlobal, resolve: func(ctx context.Context, _ uuid.UUID) (Config, bool, error) {
				return store.FindEmail(ctx, nil)
			}},
		)
	}

	env := Config{
		Provider:    ProviderHTTP,
		APIURL:      cfg.GetEmailAPIURL(),
		APIKey:      cfg.GetBrevoAPIKey(),
		FromAddress: cfg.GetEmailFromAddress(),
		FromName:    cfg.GetEmailFromName(),
	}
	enabled := cfg.GetEmailEnabled()
	sources = append(sources, configSource{scope: ScopeEnv, resolve: func(context.Context, uuid.UUID) (Config, bool, error) {
		return env, enabled, nil
	}})

	return &ConfigResolver{sources: sources, log: log}
}

// Resolve returns the first usable configuration or one with ScopeNone.
func (r *ConfigResolver) Resolve(ctx context.Context, tenantID uuid.UUID) Config {
	for _, src := range r.sources {
		cfg, ok, err := src.resolve(ctx, tenantID)
		if err != nil {
			r.log.WarnContext(ctx, "email config source failed", "scope", src.scope, "error", err)
			continue
		}
		if !ok || !cfg.Usable() {
			continue
		}
		cfg.Scope = src.scope
		if cfg.Provider == "" {
			cfg.Provider = ProviderHTTP
		}
		if cfg.Provider == ProviderHTTP && cfg.APIURL == "" {
			cfg.APIURL = defaultAPIURL
		}
		return cfg
	}
	return Config{Scope: ScopeNone}
}
