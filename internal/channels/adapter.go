package channels

import (
	"context"
	"strings"

	"procurement_backend/internal/email"
	"procurement_backend/internal/whatsapp"
	"procurement_backend/platform/logger"

	"github.com/google/uuid"
)

// Channel names a delivery channel.
type Channel string

const (
	ChannelChat  Channel = "whatsapp"
	ChannelEmail Channel = "email"
)

// DeliveryResult is the uniform outcome of a send on either channel.
type DeliveryResult struct {
	Success   bool     `json:"success"`
	Channel   Channel  `json:"channel"`
	Scope     string   `json:"scope"`
	Endpoint  string   `json:"endpoint,omitempty"`
	Attempted []string `json:"attempted,omitempty"`
	MessageID string   `json:"messageId,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Adapter delivers text over chat or email for a tenant. It never persists
// anything and never returns transport errors; outcomes are in the result.
type Adapter struct {
	chatConfig *whatsapp.ConfigResolver
	gateway    *whatsapp.Gateway
	email      *email.Service
	log        *logger.Logger
}

func NewAdapter(chatConfig *whatsapp.ConfigResolver, gateway *whatsapp.Gateway, emailSvc *email.Service, log *logger.Logger) *Adapter {
	return &Adapter{chatConfig: chatConfig, gateway: gateway, email: emailSvc, log: log}
}

// SendChat sends over the highest priority chat configuration.
func (a *Adapter) SendChat(ctx context.Context, tenantID uuid.UUID, phoneNumber, text string) DeliveryResult {
	cfg := a.chatConfig.Resolve(ctx, tenantID)
	res := a.fromGateway(a.gateway.Send(ctx, tenantID, cfg, phoneNumber, text))
	a.log.DeliveryAttempt(ctx, string(ChannelChat), res.Scope, phoneNumber, res.Success, res.Error)
	return res
}

// SendChatWithScopes tries each configured scope in order and stops on the
// first success. Attempted endpoints accumulate across scopes.
func (a *Adapter) SendChatWithScopes(ctx context.Context, tenantID uuid.UUID, phoneNumber, text string, scopes ...whatsapp.Scope) DeliveryResult {
	var attempted []string
	var lastErrors []string
	tried := false

	for _, scope := range scopes {
		cfg, ok := a.chatConfig.ResolveScope(ctx, tenantID, scope)
		if !ok {
			continue
		}
		tried = true
		res := a.fromGateway(a.gateway.Send(ctx, tenantID, cfg, phoneNumber, text))
		a.log.DeliveryAttempt(ctx, string(ChannelChat), res.Scope, phoneNumber, res.Success, res.Error)
		attempted = append(attempted, res.Attempted...)
		if res.Success {
			res.Attempted = attempted
			return res
		}
		lastErrors = append(lastErrors, string(scope)+": "+res.Error)
	}

	if !tried {
		names := make([]string, len(scopes))
		for i, s := range scopes {
			names[i] = string(s)
		}
		return DeliveryResult{
			Channel: ChannelChat,
			Scope:   string(whatsapp.ScopeNone),
			Error:   "no whatsapp configuration available for scopes " + strings.Join(names, ", "),
		}
	}
	return DeliveryResult{
		Channel:   ChannelChat,
		Scope:     string(whatsapp.ScopeNone),
		Attempted: attempted,
		Error:     strings.Join(lastErrors, "; "),
	}
}

// SendEmail performs one synchronous send for the tenant.
func (a *Adapter) SendEmail(ctx context.Context, tenantID uuid.UUID, msg email.Message) DeliveryResult {
	res := a.email.Send(ctx, tenantID, msg)
	return DeliveryResult{
		Success:   res.Success,
		Channel:   ChannelEmail,
		Scope:     string(res.Scope),
		MessageID: res.MessageID,
		Error:     res.Error,
	}
}

func (a *Adapter) fromGateway(res whatsapp.Result) DeliveryResult {
	return DeliveryResult{
		Success:   res.Success,
		Channel:   ChannelChat,
		Scope:     string(res.Scope),
		Endpoint:  res.Endpoint,
		Attempted: res.Attempted,
		Error:     res.Error,
	}
}
