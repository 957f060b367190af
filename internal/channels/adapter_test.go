package channels

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"procurement_backend/internal/email"
	"procurement_backend/internal/whatsapp"
	"procurement_backend/platform/logger"

	"github.com/google/uuid"
)

type chatConfig struct{}

func (chatConfig) GetWhatsAppURL() string                  { return "" }
func (chatConfig) GetWhatsAppKey() string                  { return "" }
func (chatConfig) GetWhatsAppInstance() string             { return "" }
func (chatConfig) GetDefaultCountryCode() string           { return "55" }
func (chatConfig) GetGatewayAttemptTimeout() time.Duration { return time.Second }
func (chatConfig) GetGatewayMaxAttempts() int              { return 3 }
func (chatConfig) GetStrategyCacheTTL() time.Duration      { return time.Hour }

type emailConfig struct{}

func (emailConfig) GetEmailEnabled() bool       { return false }
func (emailConfig) GetEmailAPIURL() string      { return "" }
func (emailConfig) GetBrevoAPIKey() string      { return "" }
func (emailConfig) GetEmailFromName() string    { return "" }
func (emailConfig) GetEmailFromAddress() string { return "" }

type stubStore struct {
	tenant *whatsapp.Config
	global *whatsapp.Config
}

func (s stubStore) FindWhatsApp(_ context.Context, tenantID *uuid.UUID) (whatsapp.Config, bool, error) {
	c := s.global
	if tenantID != nil {
		c = s.tenant
	}
	if c == nil {
		return whatsapp.Config{}, false, nil
	}
	return *c, true, nil
}

func newAdapter(store whatsapp.IntegrationStore) *Adapter {
	log := logger.Discard()
	return NewAdapter(
		whatsapp.NewConfigResolver(chatConfig{}, store, log),
		whatsapp.NewGateway(chatConfig{}, nil, log),
		email.NewService(email.NewConfigResolver(emailConfig{}, nil, log), nil, log),
		log,
	)
}

func TestSendChatWithScopesFallsBackToGlobal(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer working.Close()

	a := newAdapter(stubStore{
		tenant: &whatsapp.Config{BaseURL: broken.URL, APIKey: "t"},
		global: &whatsapp.Config{BaseURL: working.URL, APIKey: "g"},
	})

	res := a.SendChatWithScopes(context.Background(), uuid.New(), "11988887777", "oi",
		whatsapp.ScopeClient, whatsapp.ScopeGlobal, whatsapp.ScopeEnv)
	if !res.Success || res.Scope != string(whatsapp.ScopeGlobal) {
		t.Fatalf("expected global success, got %+v", res)
	}
	if !strings.HasPrefix(res.Endpoint, working.URL) {
		t.Fatalf("unexpected endpoint %q", res.Endpoint)
	}
	if len(res.Attempted) != 2 {
		t.Fatalf("attempts should span both scopes: %v", res.Attempted)
	}
}

func TestSendChatWithScopesNamesMissingConfig(t *testing.T) {
	a := newAdapter(stubStore{})
	res := a.SendChatWithScopes(context.Background(), uuid.New(), "11988887777", "oi", whatsapp.ScopeClient, whatsapp.ScopeGlobal)
	if res.Success || !strings.Contains(res.Error, "client, global") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSendEmailWithoutConfigIsStructuredFailure(t *testing.T) {
	a := newAdapter(stubStore{})
	res := a.SendEmail(context.Background(), uuid.New(), email.Message{To: "x@example.com", Subject: "s", Text: "t"})
	if res.Success || res.Channel != ChannelEmail || res.Scope != string(email.ScopeNone) || res.Error == "" {
		t.Fatalf("unexpected result %+v", res)
	}
}
