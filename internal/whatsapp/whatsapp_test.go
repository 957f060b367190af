package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"procurement_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type testConfig struct {
	url, key, instance string
	maxAttempts        int
}

func (c testConfig) GetWhatsAppURL() string                  { return c.url }
func (c testConfig) GetWhatsAppKey() string                  { return c.key }
func (c testConfig) GetWhatsAppInstance() string             { return c.instance }
func (c testConfig) GetDefaultCountryCode() string           { return "55" }
func (c testConfig) GetGatewayAttemptTimeout() time.Duration { return 2 * time.Second }
func (c testConfig) GetGatewayMaxAttempts() int              { return c.maxAttempts }
func (c testConfig) GetStrategyCacheTTL() time.Duration      { return time.Hour }

type memoryCache map[string]string

func (m memoryCache) Get(_ context.Context, key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m memoryCache) Set(_ context.Context, key, strategy string) { m[key] = strategy }

// chatSendServer accepts only POST /chat/send with a bearer token and a
// {to,message} payload.
func chatSendServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Path != "/chat/send" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["to"] != "5511988887777" || body["message"] != "hello" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad payload"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
}

func TestGatewayProbesUntilFirstSuccess(t *testing.T) {
	var hits int32
	srv := chatSendServer(t, &hits)
	defer srv.Close()

	cache := memoryCache{}
	g := NewGateway(testConfig{maxAttempts: 48}, cache, logger.Discard())
	cfg := Config{BaseURL: srv.URL, APIKey: "secret", Scope: ScopeEnv}

	res := g.Send(context.Background(), uuid.New(), cfg, "(11) 98888-7777", "hello")
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Endpoint != srv.URL+"/chat/send" {
		t.Fatalf("unexpected endpoint %q", res.Endpoint)
	}
	if res.Strategy != "/chat/send|bearer|to_message" {
		t.Fatalf("unexpected strategy %q", res.Strategy)
	}
	if res.Scope != ScopeEnv {
		t.Fatalf("scope not surfaced: %q", res.Scope)
	}
	// /message/send 404, apikey 401, four bearer payloads.
	if hits != 6 {
		t.Fatalf("expected 6 attempts, got %d", hits)
	}
	if len(res.Attempted) != 2 || !strings.HasSuffix(res.Attempted[0], "/message/send") {
		t.Fatalf("unexpected attempted list %v", res.Attempted)
	}
	if cache["whatsapp:strategy:env"] != res.Strategy {
		t.Fatalf("winning strategy not cached: %v", cache)
	}

	atomic.StoreInt32(&hits, 0)
	again := g.Send(context.Background(), uuid.New(), cfg, "11988887777", "hello")
	if !again.Success || hits != 1 {
		t.Fatalf("cached strategy should succeed first try, hits=%d res=%+v", hits, again)
	}
}

func TestGatewayMovesOnWhenEveryPayloadIsRejected(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad payload"}`))
	}))
	defer srv.Close()

	g := NewGateway(testConfig{maxAttempts: 48}, nil, logger.Discard())
	cfg := Config{BaseURL: srv.URL, APIKey: "k", Instance: "main", Scope: ScopeEnv}
	res := g.Send(context.Background(), uuid.Nil, cfg, "11988887777", "hi")

	if res.Success {
		t.Fatal("expected failure")
	}
	if len(res.Attempted) != len(endpointPaths) {
		t.Fatalf("expected every endpoint variant tried, got %d: %v", len(res.Attempted), res.Attempted)
	}
	if want := int32(len(endpointPaths) * len(payloadShapes)); hits != want {
		t.Fatalf("expected %d attempts, got %d", want, hits)
	}
}

func TestGatewayReportsFailureWithAttemptedEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	g := NewGateway(testConfig{maxAttempts: 5}, nil, logger.Discard())
	res := g.Send(context.Background(), uuid.Nil, Config{BaseURL: srv.URL, APIKey: "k", Scope: ScopeGlobal}, "11988887777", "hi")

	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "500") || !strings.Contains(res.Error, "upstream down") {
		t.Fatalf("last error not surfaced: %q", res.Error)
	}
	if len(res.Attempted) != 1 {
		t.Fatalf("expected only the first endpoint within 5 attempts, got %v", res.Attempted)
	}
}

func TestGatewayStopsOnUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	g := NewGateway(testConfig{maxAttempts: 48}, nil, logger.Discard())
	res := g.Send(context.Background(), uuid.Nil, Config{BaseURL: url, APIKey: "k", Scope: ScopeEnv}, "11988887777", "hi")
	if res.Success || len(res.Attempted) != 1 {
		t.Fatalf("expected a single failed attempt, got %+v", res)
	}
}

func TestGatewayNotConfigured(t *testing.T) {
	g := NewGateway(testConfig{}, nil, logger.Discard())
	res := g.Send(context.Background(), uuid.Nil, Config{Scope: ScopeNone}, "11988887777", "hi")
	if res.Success || res.Scope != ScopeNone || !strings.Contains(res.Error, "WHATSAPP_API_URL") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestStrategiesOrderAndInstanceFiltering(t *testing.T) {
	without := Strategies(Config{BaseURL: "http://gw", APIKey: "k"})
	if len(without) != 3*len(headerVariants)*len(payloadShapes) {
		t.Fatalf("unexpected count without instance: %d", len(without))
	}
	if without[0].Key() != "/message/send|apikey|number_text" {
		t.Fatalf("unexpected first strategy %q", without[0].Key())
	}

	with := Strategies(Config{BaseURL: "http://gw/", APIKey: "k", Instance: "main"})
	if len(with) != len(endpointPaths)*len(headerVariants)*len(payloadShapes) {
		t.Fatalf("unexpected count with instance: %d", len(with))
	}
	if got := with[0].URL(Config{BaseURL: "http://gw/", Instance: "main"}); got != "http://gw/message/sendText/main" {
		t.Fatalf("unexpected first url %q", got)
	}
	if with[1].Payload != "number_textMessage" || with[len(payloadShapes)].Header != "bearer" {
		t.Fatal("payload must vary fastest, then header")
	}
}

type fakeStore struct {
	tenant map[uuid.UUID]Config
	global *Config
	err    error
}

func (s fakeStore) FindWhatsApp(_ context.Context, tenantID *uuid.UUID) (Config, bool, error) {
	if s.err != nil {
		return Config{}, false, s.err
	}
	if tenantID == nil {
		if s.global == nil {
			return Config{}, false, nil
		}
		return *s.global, true, nil
	}
	cfg, ok := s.tenant[*tenantID]
	return cfg, ok, nil
}

func TestConfigResolverPriority(t *testing.T) {
	tenant := uuid.New()
	store := fakeStore{
		tenant: map[uuid.UUID]Config{tenant: {BaseURL: "http://tenant", APIKey: "t"}},
		global: &Config{BaseURL: "http://global", APIKey: "g"},
	}

	envFirst := NewConfigResolver(testConfig{url: "http://env", key: "e"}, store, logger.Discard())
	if cfg := envFirst.Resolve(context.Background(), tenant); cfg.Scope != ScopeEnv || cfg.BaseURL != "http://env" {
		t.Fatalf("env must win, got %+v", cfg)
	}

	r := NewConfigResolver(testConfig{}, store, logger.Discard())
	if cfg := r.Resolve(context.Background(), tenant); cfg.Scope != ScopeClient {
		t.Fatalf("tenant integration expected, got %+v", cfg)
	}
	if cfg := r.Resolve(context.Background(), uuid.New()); cfg.Scope != ScopeGlobal {
		t.Fatalf("global integration expected, got %+v", cfg)
	}
	if cfg, ok := r.ResolveScope(context.Background(), tenant, ScopeGlobal); !ok || cfg.BaseURL != "http://global" {
		t.Fatalf("explicit global scope failed: %+v", cfg)
	}

	broken := NewConfigResolver(testConfig{}, fakeStore{err: errors.New("db down")}, logger.Discard())
	if cfg := broken.Resolve(context.Background(), tenant); cfg.Scope != ScopeNone {
		t.Fatalf("expected none when store fails, got %+v", cfg)
	}
}

func TestRedisStrategyCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedisStrategyCache(client, time.Minute, logger.Discard())
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "whatsapp:strategy:env"); ok {
		t.Fatal("expected miss")
	}
	cache.Set(ctx, "whatsapp:strategy:env", "/chat/send|bearer|to_message")
	got, ok := cache.Get(ctx, "whatsapp:strategy:env")
	if !ok || got != "/chat/send|bearer|to_message" {
		t.Fatalf("unexpected cache value %q", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok := cache.Get(ctx, "whatsapp:strategy:env"); ok {
		t.Fatal("expected entry to expire")
	}
}
