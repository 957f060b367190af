package telemetry

import (
	"context"
	"testing"
)

type disabledConfig struct{}

func (disabledConfig) GetOTelEndpoint() string   { return "" }
func (disabledConfig) GetOTelHeaders() string    { return "" }
func (disabledConfig) GetServiceName() string    { return "test" }
func (disabledConfig) GetServiceVersion() string { return "dev" }
func (disabledConfig) IsTelemetryEnabled() bool  { return false }

func TestSetupDisabledReturnsNil(t *testing.T) {
	tel, err := Setup(context.Background(), disabledConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tel != nil {
		t.Fatal("expected nil telemetry when endpoint is empty")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown on nil telemetry should be a no-op, got %v", err)
	}
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders("Authorization=Bearer abc, x-team = buyers,broken")
	if headers["Authorization"] != "Bearer abc" {
		t.Fatalf("unexpected authorization header %q", headers["Authorization"])
	}
	if headers["x-team"] != "buyers" {
		t.Fatalf("unexpected x-team header %q", headers["x-team"])
	}
	if len(headers) != 2 {
		t.Fatalf("expected 2 headers, got %d", len(headers))
	}
}
