package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apphttp "procurement_backend/internal/http"
	"procurement_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

type testConfig struct{}

func (testConfig) GetHTTPAddr() string        { return ":0" }
func (testConfig) GetCORSAllowAll() bool      { return true }
func (testConfig) GetCORSOrigins() []string   { return nil }
func (testConfig) GetCORSAllowCreds() bool    { return false }
func (testConfig) GetJWTAccessSecret() string { return "secret" }
func (testConfig) GetOTelEndpoint() string    { return "" }
func (testConfig) GetOTelHeaders() string     { return "" }
func (testConfig) GetServiceName() string     { return "procurement" }
func (testConfig) GetServiceVersion() string  { return "test" }
func (testConfig) IsTelemetryEnabled() bool   { return false }

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type probeModule struct {
	registered bool
}

func (m *probeModule) Name() string { return "probe" }

func (m *probeModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.registered = true
	ctx.Public.GET("/probe", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	ctx.Protected.GET("/secure", func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

func newTestApp(health map[string]apphttp.HealthChecker) (*apphttp.App, *probeModule) {
	gin.SetMode(gin.TestMode)
	module := &probeModule{}
	return &apphttp.App{
		Config:  testConfig{},
		Logger:  logger.Discard(),
		Health:  health,
		Modules: []apphttp.Module{module},
	}, module
}

func serve(engine *gin.Engine, method, path string) int {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec.Code
}

func TestNewRegistersModuleRoutes(t *testing.T) {
	app, module := newTestApp(nil)
	engine := New(app)

	if !module.registered {
		t.Fatal("module routes were not registered")
	}
	if code := serve(engine, http.MethodGet, "/api/v1/public/probe"); code != http.StatusNoContent {
		t.Fatalf("expected 204 from public route, got %d", code)
	}
	if code := serve(engine, http.MethodGet, "/api/v1/secure"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 from protected route, got %d", code)
	}
}

func TestReadinessReflectsHealthChecks(t *testing.T) {
	healthy := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("down") })

	app, _ := newTestApp(map[string]apphttp.HealthChecker{"postgres": healthy})
	if code := serve(New(app), http.MethodGet, "/api/ready"); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	app, _ = newTestApp(map[string]apphttp.HealthChecker{"postgres": healthy, "redis": down})
	rec := httptest.NewRecorder()
	New(app).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "redis") {
		t.Fatalf("expected failing dependency in body, got %s", rec.Body.String())
	}
}
