package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"procurement_backend/platform/config"
	"procurement_backend/platform/logger"
	"procurement_backend/platform/phone"

	"github.com/google/uuid"
)

const (
	defaultAttemptTimeout = 8 * time.Second
	defaultMaxAttempts    = 48
	maxErrorBody          = 512
)

// Result is the outcome of one Send. It never carries a raw transport error.
type Result struct {
	Success    bool
	Scope      Scope
	Endpoint   string
	Strategy   string
	StatusCode int
	Attempted  []string
	Error      string
}

// StrategyCache remembers the strategy that last worked for a config scope.
type StrategyCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, strategy string)
}

// Gateway probes endpoint/header/payload strategies against a gateway.
type Gateway struct {
	http           *http.Client
	attemptTimeout time.Duration
	maxAttempts    int
	defaultCC      string
	cache          StrategyCache
	log            *logger.Logger
}

func NewGateway(cfg config.WhatsAppConfig, cache StrategyCache, log *logger.Logger) *Gateway {
	timeout := cfg.GetGatewayAttemptTimeout()
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	maxAttempts := cfg.GetGatewayMaxAttempts()
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Gateway{
		http:           &http.Client{},
		attemptTimeout: timeout,
		maxAttempts:    maxAttempts,
		defaultCC:      cfg.GetDefaultCountryCode(),
		cache:          cache,
		log:            log,
	}
}

// Send delivers text to phoneNumber using cfg, returning on the first 2xx.
func (g *Gateway) Send(ctx context.Context, tenantID uuid.UUID, cfg Config, phoneNumber, text string) Result {
	res := Result{Scope: cfg.Scope}
	if !cfg.Usable() {
		res.Scope = ScopeNone
		res.Error = "whatsapp gateway not configured: set WHATSAPP_API_URL and WHATSAPP_API_KEY or store a whatsapp integration"
		return res
	}

	number := phone.NormalizeDigits(phoneNumber, g.defaultCC)
	if number == "" {
		res.Error = "invalid phone number"
		return res
	}

	cacheKey := strategyCacheKey(cfg.Scope, tenantID)
	strategies := Strategies(cfg)
	if g.cache != nil {
		if key, ok := g.cache.Get(ctx, cacheKey); ok {
			strategies = preferStrategy(strategies, key)
		}
	}

	deadEndpoints := map[string]bool{}
	deniedHeaders := map[string]bool{}
	rejectedPayloads := map[string]int{}
	seenEndpoints := map[string]bool{}
	attempts := 0

	for _, s := range strategies {
		if attempts >= g.maxAttempts {
			break
		}
		if deadEndpoints[s.Path] || deniedHeaders[s.Path+"|"+s.Header] {
			continue
		}
		if err := ctx.Err(); err != nil {
			res.Error = err.Error()
			break
		}

		endpoint := s.URL(cfg)
		if !seenEndpoints[endpoint] {
			seenEndpoints[endpoint] = true
			res.Attempted = append(res.Attempted, endpoint)
		}
		attempts++

		status, err := g.attempt(ctx, s, cfg, number, text)
		res.StatusCode = status
		if err == nil {
			res.Success = true
			res.Endpoint = endpoint
			res.Strategy = s.Key()
			res.Error = ""
			if g.cache != nil {
				g.cache.Set(ctx, cacheKey, s.Key())
			}
			g.log.DebugContext(ctx, "whatsapp strategy succeeded", "endpoint", endpoint, "strategy", s.Key(), "attempts", attempts)
			return res
		}

		res.Error = err.Error()
		switch {
		case isUnreachable(err):
			// Every strategy shares the same host.
			return res
		case status == http.StatusNotFound || status == http.StatusMethodNotAllowed || status == 0:
			deadEndpoints[s.Path] = true
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			deniedHeaders[s.Path+"|"+s.Header] = true
		case status >= 400 && status < 500:
			// Authenticated but every payload shape refused: the endpoint
			// does not speak any shape we know.
			combo := s.Path + "|" + s.Header
			rejectedPayloads[combo]++
			if rejectedPayloads[combo] >= len(payloadShapes) {
				deadEndpoints[s.Path] = true
			}
		}
	}

	if res.Error == "" {
		res.Error = "no delivery strategy attempted"
	}
	return res
}

func (g *Gateway) attempt(ctx context.Context, s Strategy, cfg Config, number, text string) (int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
	defer cancel()

	req, err := s.Request(attemptCtx, cfg, number, text)
	if err != nil {
		return 0, err
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return resp.StatusCode, fmt.Errorf("whatsapp gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}

func isUnreachable(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func strategyCacheKey(scope Scope, tenantID uuid.UUID) string {
	if scope == ScopeClient {
		return "whatsapp:strategy:" + string(scope) + ":" + tenantID.String()
	}
	return "whatsapp:strategy:" + string(scope)
}
