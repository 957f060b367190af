// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// WhatsAppConfig provides the environment-level chat gateway settings and
// the probing limits used by the gateway client.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppInstance() string
	GetDefaultCountryCode() string
	GetGatewayAttemptTimeout() time.Duration
	GetGatewayMaxAttempts() int
	GetStrategyCacheTTL() time.Duration
}

// EmailConfig provides the environment-level email provider settings.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetEmailAPIURL() string
	GetBrevoAPIKey() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// LLMConfig provides settings for the language model agents.
type LLMConfig interface {
	GetMoonshotAPIKey() string
	GetLLMModel() string
	GetLLMBaseURL() string
	IsLLMEnabled() bool
}

// LinkConfig provides settings for supplier response links.
type LinkConfig interface {
	GetAppBaseURL() string
	GetShortLinkBaseURL() string
	GetLinkTokenSecret() string
	GetResponseLinkTTL() time.Duration
}

// SchedulerConfig provides settings for the asynq worker and scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetReminderCron() string
	GetReminderAfterHours() int
}

// DispatchConfig provides fan-out limits for quote dispatch.
type DispatchConfig interface {
	GetDispatchConcurrency() int
	GetReminderAfterHours() int
}

// TelemetryConfig provides OpenTelemetry export settings.
type TelemetryConfig interface {
	GetOTelEndpoint() string
	GetOTelHeaders() string
	GetServiceName() string
	GetServiceVersion() string
	IsTelemetryEnabled() bool
}

// SecretsConfig provides the key used to encrypt stored integration secrets.
type SecretsConfig interface {
	GetIntegrationEncryptionKey() []byte
}

// WebhookConfig provides shared secrets for machine-to-machine endpoints.
type WebhookConfig interface {
	GetWebhookSecret() string
	GetCronSecret() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	JWTAccessSecret          string
	CORSAllowAll             bool
	CORSOrigins              []string
	CORSAllowCreds           bool
	AppBaseURL               string
	ShortLinkBaseURL         string
	LinkTokenSecret          string
	ResponseLinkTTL          time.Duration
	EmailEnabled             bool
	EmailAPIURL              string
	BrevoAPIKey              string
	EmailFromName            string
	EmailFromAddress         string
	WhatsAppURL              string
	WhatsAppKey              string
	WhatsAppInstance         string
	DefaultCountryCode       string
	GatewayAttemptTimeout    time.Duration
	GatewayMaxAttempts       int
	StrategyCacheTTL         time.Duration
	MoonshotAPIKey           string
	LLMModel                 string
	LLMBaseURL               string
	RedisURL                 string
	RedisTLSInsecure         bool
	AsynqQueueName           string
	AsynqConcurrency         int
	ReminderCron             string
	ReminderAfterHours       int
	DispatchConcurrency      int
	OTelEndpoint             string
	OTelHeaders              string
	ServiceName              string
	ServiceVersion           string
	IntegrationEncryptionKey []byte
	WebhookSecret            string
	CronSecret               string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string                  { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string                  { return c.WhatsAppKey }
func (c *Config) GetWhatsAppInstance() string             { return c.WhatsAppInstance }
func (c *Config) GetDefaultCountryCode() string           { return c.DefaultCountryCode }
func (c *Config) GetGatewayAttemptTimeout() time.Duration { return c.GatewayAttemptTimeout }
func (c *Config) GetGatewayMaxAttempts() int              { return c.GatewayMaxAttempts }
func (c *Config) GetStrategyCacheTTL() time.Duration      { return c.StrategyCacheTTL }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetEmailAPIURL() string      { return c.EmailAPIURL }
func (c *Config) GetBrevoAPIKey() string      { return c.BrevoAPIKey }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// LLMConfig implementation
func (c *Config) GetMoonshotAPIKey() string { return c.MoonshotAPIKey }
func (c *Config) GetLLMModel() string       { return c.LLMModel }
func (c *Config) GetLLMBaseURL() string     { return c.LLMBaseURL }
func (c *Config) IsLLMEnabled() bool        { return c.MoonshotAPIKey != "" }

// LinkConfig implementation
func (c *Config) GetAppBaseURL() string             { return c.AppBaseURL }
func (c *Config) GetShortLinkBaseURL() string       { return c.ShortLinkBaseURL }
func (c *Config) GetLinkTokenSecret() string        { return c.LinkTokenSecret }
func (c *Config) GetResponseLinkTTL() time.Duration { return c.ResponseLinkTTL }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) GetReminderCron() string    { return c.ReminderCron }
func (c *Config) GetReminderAfterHours() int { return c.ReminderAfterHours }

// DispatchConfig implementation
func (c *Config) GetDispatchConcurrency() int { return c.DispatchConcurrency }

// TelemetryConfig implementation
func (c *Config) GetOTelEndpoint() string   { return c.OTelEndpoint }
func (c *Config) GetOTelHeaders() string    { return c.OTelHeaders }
func (c *Config) GetServiceName() string    { return c.ServiceName }
func (c *Config) GetServiceVersion() string { return c.ServiceVersion }
func (c *Config) IsTelemetryEnabled() bool  { return c.OTelEndpoint != "" }

// SecretsConfig implementation
func (c *Config) GetIntegrationEncryptionKey() []byte { return c.IntegrationEncryptionKey }

// WebhookConfig implementation
func (c *Config) GetWebhookSecret() string { return c.WebhookSecret }
func (c *Config) GetCronSecret() string    { return c.CronSecret }

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool { return strings.EqualFold(c.Env, "production") }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	brevoAPIKey := getEnv("BREVO_API_KEY", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")
	appBaseURL := strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:4200"), "/")

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:            appBaseURL,
		ShortLinkBaseURL:      strings.TrimRight(getEnv("SHORT_LINK_BASE_URL", appBaseURL), "/"),
		LinkTokenSecret:       getEnv("LINK_TOKEN_SECRET", ""),
		ResponseLinkTTL:       mustDuration(getEnv("RESPONSE_LINK_TTL", "168h")),
		EmailEnabled:          emailEnabled && brevoAPIKey != "",
		EmailAPIURL:           getEnv("EMAIL_API_URL", "https://api.brevo.com/v3/smtp/email"),
		BrevoAPIKey:           brevoAPIKey,
		EmailFromName:         getEnv("EMAIL_FROM_NAME", "Compras"),
		EmailFromAddress:      getEnv("EMAIL_FROM_ADDRESS", ""),
		WhatsAppURL:           strings.TrimRight(getEnv("WHATSAPP_API_URL", ""), "/"),
		WhatsAppKey:           getEnv("WHATSAPP_API_KEY", ""),
		WhatsAppInstance:      getEnv("WHATSAPP_INSTANCE", ""),
		DefaultCountryCode:    getEnv("DEFAULT_COUNTRY_CODE", "55"),
		GatewayAttemptTimeout: mustDuration(getEnv("GATEWAY_ATTEMPT_TIMEOUT", "8s")),
		GatewayMaxAttempts:    mustInt(getEnv("GATEWAY_MAX_ATTEMPTS", "48")),
		StrategyCacheTTL:      mustDuration(getEnv("STRATEGY_CACHE_TTL", "24h")),
		MoonshotAPIKey:        getEnv("MOONSHOT_API_KEY", ""),
		LLMModel:              getEnv("LLM_MODEL", "kimi-k2.5"),
		LLMBaseURL:            getEnv("LLM_BASE_URL", "https://api.moonshot.ai/v1"),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "5")),
		ReminderCron:          getEnv("REMINDER_CRON", "@every 1h"),
		ReminderAfterHours:    mustInt(getEnv("REMINDER_AFTER_HOURS", "48")),
		DispatchConcurrency:   mustInt(getEnv("DISPATCH_CONCURRENCY", "5")),
		OTelEndpoint:          strings.TrimRight(getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""), "/"),
		OTelHeaders:           getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
		ServiceName:           getEnv("OTEL_SERVICE_NAME", "procurement-backend"),
		ServiceVersion:        getEnv("SERVICE_VERSION", "dev"),
		WebhookSecret:         getEnv("WEBHOOK_SECRET", ""),
		CronSecret:            getEnv("CRON_SECRET", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.LinkTokenSecret == "" {
		return nil, fmt.Errorf("LINK_TOKEN_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	if raw := strings.TrimSpace(getEnv("INTEGRATION_ENCRYPTION_KEY", "")); raw != "" {
		key, err := hex.DecodeString(raw)
		if err != nil || len(key) != 32 {
			return nil, fmt.Errorf("INTEGRATION_ENCRYPTION_KEY must be 64 hex characters")
		}
		cfg.IntegrationEncryptionKey = key
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
