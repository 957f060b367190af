// Package notification reacts to procurement events by telling the people
// involved: suppliers over chat and email, buyers in the app.
// Domain modules publish events and never reach for a channel themselves.
package notification

import (
	"context"

	"procurement_backend/internal/channels"
	"procurement_backend/internal/email"
	"procurement_backend/internal/events"
	apphttp "procurement_backend/internal/http"
	notifhandler "procurement_backend/internal/notification/handler"
	"procurement_backend/internal/notification/inapp"
	"procurement_backend/internal/notification/sse"
	"procurement_backend/internal/templates"
	"procurement_backend/platform/httpkit"
	"procurement_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingNotifyRejected controls whether losing suppliers hear about an award.
const SettingNotifyRejected = "notify_rejected_suppliers"

// Messenger delivers supplier messages. Implemented by channels.Adapter.
type Messenger interface {
	SendChat(ctx context.Context, tenantID uuid.UUID, phoneNumber, text string) channels.DeliveryResult
	SendEmail(ctx context.Context, tenantID uuid.UUID, msg email.Message) channels.DeliveryResult
}

// Renderer renders a template purpose. Implemented by templates.Resolver.
type Renderer interface {
	Render(ctx context.Context, tenantID uuid.UUID, purpose templates.Purpose, vars map[string]any) (templates.Message, error)
}

// Directory looks up who to notify. Implemented by PgDirectory.
type Directory interface {
	ActiveUsers(ctx context.Context, tenantID uuid.UUID) ([]Recipient, error)
	Users(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Recipient, error)
	QuoteSummary(ctx context.Context, quoteID uuid.UUID) (QuoteSummary, error)
	Suppliers(ctx context.Context, ids []uuid.UUID) ([]SupplierContact, error)
	BoolSetting(ctx context.Context, tenantID uuid.UUID, key string) (value, found bool, err error)
}

// Config is the subset of configuration the module reads.
type Config interface {
	GetAppBaseURL() string
}

// Deps are the collaborators the module sends through.
type Deps struct {
	Messenger Messenger
	Renderer  Renderer
	Directory Directory
	InApp     *inapp.Service
	SSE       *sse.Service
}

// Module handles notification events and serves the in-app inbox.
type Module struct {
	messenger Messenger
	renderer  Renderer
	directory Directory
	inApp     *inapp.Service
	sse       *sse.Service
	handler   *notifhandler.HTTPHandler
	baseURL   string
	log       *logger.Logger
}

var _ apphttp.Module = (*Module)(nil)

// New wires the module over Postgres. Messenger and renderer come from the
// channels and templates modules.
func New(pool *pgxpool.Pool, messenger Messenger, renderer Renderer, cfg Config, log *logger.Logger) *Module {
	stream := sse.New(log)
	return NewWithDeps(Deps{
		Messenger: messenger,
		Renderer:  renderer,
		Directory: NewDirectory(pool),
		InApp:     inapp.NewService(inapp.NewRepository(pool), stream, log),
		SSE:       stream,
	}, cfg, log)
}

// NewWithDeps wires the module from explicit collaborators.
func NewWithDeps(deps Deps, cfg Config, log *logger.Logger) *Module {
	m := &Module{
		messenger: deps.Messenger,
		renderer:  deps.Renderer,
		directory: deps.Directory,
		inApp:     deps.InApp,
		sse:       deps.SSE,
		baseURL:   cfg.GetAppBaseURL(),
		log:       log.WithComponent("notification"),
	}

	var stream gin.HandlerFunc
	if deps.SSE != nil {
		stream = deps.SSE.Handler(streamUserID)
	}
	if deps.InApp != nil {
		m.handler = notifhandler.NewHTTPHandler(deps.InApp, stream)
	}
	return m
}

func streamUserID(c *gin.Context) (uuid.UUID, bool) {
	id := httpkit.GetIdentity(c)
	if !id.IsAuthenticated() {
		return uuid.Nil, false
	}
	return id.UserID(), true
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes registers notification API routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	if m.handler == nil {
		return
	}
	m.handler.RegisterRoutes(ctx.Protected.Group("/notifications"))
}

// InAppService exposes the in-app notification service.
func (m *Module) InAppService() *inapp.Service { return m.inApp }

// Close disconnects every live stream.
func (m *Module) Close() {
	if m.sse != nil {
		m.sse.Close()
	}
}

// RegisterHandlers subscribes to the procurement events the module reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.QuoteResponseReceived{}.EventName(), m)
	bus.Subscribe(events.NegotiationStatusChanged{}.EventName(), m)
	bus.Subscribe(events.ApprovalRequested{}.EventName(), m)
	bus.Subscribe(events.ProposalAwarded{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.QuoteResponseReceived:
		return m.handleResponseReceived(ctx, e)
	case events.NegotiationStatusChanged:
		return m.handleNegotiationStatusChanged(ctx, e)
	case events.ApprovalRequested:
		return m.handleApprovalRequested(ctx, e)
	case events.ProposalAwarded:
		return m.handleProposalAwarded(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}
