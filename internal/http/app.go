// Package http holds what the composition root hands to the router: the
// modules, their shared route groups and the readiness checks.
package http

import (
	"context"

	"procurement_backend/platform/config"
	"procurement_backend/platform/logger"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
	config.TelemetryConfig
}

// HealthChecker is a dependency that must answer for the service to be ready.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is assembled by cmd/api and consumed by router.New.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health is keyed by dependency name ("postgres", "redis"); a failing
	// entry is named in the readiness response.
	Health  map[string]HealthChecker
	Modules []Module
}
