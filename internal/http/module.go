package http

import (
	"procurement_backend/platform/config"

	"github.com/gin-gonic/gin"
)

// Module is a bounded context that mounts its own routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is what modules mount on.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is /api/v1 without authentication. Machine routes (webhooks, cron
	// triggers) guard themselves with a shared secret.
	V1 *gin.RouterGroup
	// Public is /api/v1/public, rate limited per IP, for supplier-facing pages.
	Public *gin.RouterGroup
	// Protected requires a buyer access token.
	Protected *gin.RouterGroup
	// Admin additionally requires the admin role.
	Admin          *gin.RouterGroup
	Config         config.JWTConfig
	AuthMiddleware gin.HandlerFunc
	// PublicRateLimit is the limiter behind Public, for routes mounted
	// outside /api/v1 such as short links.
	PublicRateLimit gin.HandlerFunc
}
