package email

import (
	"context"
	"strings"

	"procurement_backend/platform/logger"

	"github.com/google/uuid"
)

// Result is the outcome of a Service send.
type Result struct {
	Success   bool
	Scope     Scope
	Provider  Provider
	MessageID string
	Error     string
}

// SenderFactory builds a Sender for a resolved config. Tests replace it.
type SenderFactory func(cfg Config) Sender

// DefaultSenderFactory picks SMTP or the HTTP provider by cfg.Provider.
func DefaultSenderFactory(cfg Config) Sender {
	if cfg.Provider == ProviderSMTP {
		return NewSMTPSender(cfg)
	}
	return NewHTTPProviderSender(cfg)
}

// Service resolves the sender for a tenant and sends once.
type Service struct {
	resolver *ConfigResolver
	factory  SenderFactory
	log      *logger.Logger
}

func NewService(resolver *ConfigResolver, factory SenderFactory, log *logger.Logger) *Service {
	if factory == nil {
		factory = DefaultSenderFactory
	}
	return &Service{resolver: resolver, factory: factory, log: log}
}

// Send delivers msg for tenantID. HTML is generated from Text when empty.
func (s *Service) Send(ctx context.Context, tenantID uuid.UUID, msg Message) Result {
	if strings.TrimSpace(msg.To) == "" {
		return Result{Scope: ScopeNone, Error: "recipient email is empty"}
	}

	cfg := s.resolver.Resolve(ctx, tenantID)
	if cfg.Scope == ScopeNone {
		return Result{
			Scope: ScopeNone,
			Error: "email sender not configured: set EMAIL_ENABLED with BREVO_API_KEY and EMAIL_FROM_ADDRESS or store an email integration",
		}
	}

	if msg.HTML == "" {
		html, err := RenderHTML(msg.Subject, cfg.FromName, msg.Text)
		if err != nil {
			return Result{Scope: cfg.Scope, Provider: cfg.Provider, Error: "render email: " + err.Error()}
		}
		msg.HTML = html
	}

	id, err := s.factory(cfg).Send(ctx, msg)
	res := Result{Scope: cfg.Scope, Provider: cfg.Provider, MessageID: id}
	if err != nil {
		res.Error = err.Error()
		s.log.DeliveryAttempt(ctx, "email", string(cfg.Scope), msg.To, false, res.Error)
		return res
	}
	res.Success = true
	s.log.DeliveryAttempt(ctx, "email", string(cfg.Scope), msg.To, true, "")
	return res
}
