package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"procurement_backend/internal/channels"
	"procurement_backend/internal/email"
	"procurement_backend/internal/events"
	"procurement_backend/internal/links"
	"procurement_backend/internal/quotes/repository"
	"procurement_backend/internal/quotes/transport"
	"procurement_backend/internal/templates"
	"procurement_backend/platform/config"
	"procurement_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultConcurrency        = 5
	defaultReminderAfterHours = 48
)

// Repository is the persistence the quotes service needs.
type Repository interface {
	GetQuote(ctx context.Context, tenantID, quoteID uuid.UUID) (*repository.Quote, error)
	GetQuoteByID(ctx context.Context, quoteID uuid.UUID) (*repository.Quote, error)
	ListSuppliersForDispatch(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]repository.Supplier, error)
	GetSupplier(ctx context.Context, supplierID uuid.UUID) (*repository.Supplier, error)
	UpsertSupplierStatus(ctx context.Context, quoteID, supplierID uuid.UUID) error
	FinalizeDispatch(ctx context.Context, tenantID, quoteID uuid.UUID, at time.Time) (int, error)
	ListSupplierStatuses(ctx context.Context, tenantID, quoteID uuid.UUID) ([]repository.SupplierStatus, error)
	GetSupplierStatus(ctx context.Context, quoteID, supplierID uuid.UUID) (*repository.SupplierStatus, error)
	ListReminderCandidates(ctx context.Context, sentBefore, now time.Time) ([]repository.ReminderCandidate, error)
	MarkReminded(ctx context.Context, statusID uuid.UUID, observedCount int, now time.Time) (bool, error)
	ReleaseReminder(ctx context.Context, statusID uuid.UUID, claimedCount int, previous *time.Time) error
	SubmitResponse(ctx context.Context, p repository.SubmitParams) (*repository.Response, error)
	Decline(ctx context.Context, quoteID, supplierID uuid.UUID) error
	GetResponse(ctx context.Context, quoteID, supplierID uuid.UUID) (*repository.Response, error)
}

// Messenger delivers over chat and email. Implemented by channels.Adapter.
type Messenger interface {
	SendChat(ctx context.Context, tenantID uuid.UUID, phoneNumber, text string) channels.DeliveryResult
	SendEmail(ctx context.Context, tenantID uuid.UUID, msg email.Message) channels.DeliveryResult
}

// Renderer renders a template purpose. Implemented by templates.Resolver.
type Renderer interface {
	Render(ctx context.Context, tenantID uuid.UUID, purpose templates.Purpose, vars map[string]any) (templates.Message, error)
}

// Targeter issues per-supplier links. Implemented by links.Targeter.
type Targeter interface {
	ForDispatch(ctx context.Context, quoteID, supplierID uuid.UUID, registered bool) (links.Target, error)
	ForReminder(ctx context.Context, quoteID, supplierID uuid.UUID, registered bool) (links.Target, error)
}

// LinkParser verifies response link tokens. Implemented by links.Issuer.
type LinkParser interface {
	Parse(raw string) (*links.Claims, error)
}

// Service runs dispatch, reminders and the supplier response intake.
type Service struct {
	repo               Repository
	messenger          Messenger
	renderer           Renderer
	targeter           Targeter
	linkParser         LinkParser
	eventBus           events.Bus
	log                *logger.Logger
	concurrency        int
	reminderAfterHours int
	now                func() time.Time
}

// Deps groups the collaborators of New.
type Deps struct {
	Repo       Repository
	Messenger  Messenger
	Renderer   Renderer
	Targeter   Targeter
	LinkParser LinkParser
	EventBus   events.Bus
	Log        *logger.Logger
}

// New creates the quotes service.
func New(deps Deps, cfg config.DispatchConfig) *Service {
	concurrency := cfg.GetDispatchConcurrency()
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	after := cfg.GetReminderAfterHours()
	if after <= 0 {
		after = defaultReminderAfterHours
	}
	return &Service{
		repo:               deps.Repo,
		messenger:          deps.Messenger,
		renderer:           deps.Renderer,
		targeter:           deps.Targeter,
		linkParser:         deps.LinkParser,
		eventBus:           deps.EventBus,
		log:                deps.Log.WithComponent("quotes"),
		concurrency:        concurrency,
		reminderAfterHours: after,
		now:                time.Now,
	}
}

// ListSupplierStatuses returns the status row of every supplier a quote
// was dispatched to.
func (s *Service) ListSupplierStatuses(ctx context.Context, tenantID, quoteID uuid.UUID) ([]transport.SupplierStatusResponse, error) {
	if _, err := s.repo.GetQuote(ctx, tenantID, quoteID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListSupplierStatuses(ctx, tenantID, quoteID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.SupplierStatusResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, transport.SupplierStatusResponse{
			SupplierID:     r.Supplier.ID,
			SupplierName:   r.Supplier.Name,
			Status:         r.Status,
			ReminderCount:  r.ReminderCount,
			LastReminderAt: r.LastReminderAt,
			RespondedAt:    r.RespondedAt,
		})
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.eventBus != nil {
		s.eventBus.Publish(ctx, event)
	}
}

// deliver sends msg over the requested channels. Chat and email are
// independent: a failure on one never skips the other.
func (s *Service) deliver(ctx context.Context, tenantID uuid.UUID, sup repository.Supplier, msg templates.Message, chat, mail bool, out *transport.SupplierOutcome) {
	if chat {
		if number := sup.ChatNumber(); number == "" {
			out.Errors = append(out.Errors, "whatsapp: supplier has no phone number")
		} else {
			res := s.messenger.SendChat(ctx, tenantID, number, msg.Body)
			out.Chat = &res
			if res.Success {
				out.Success = true
			} else {
				out.Errors = append(out.Errors, "whatsapp: "+res.Error)
			}
		}
	}

	if mail {
		if strings.TrimSpace(sup.Email) == "" {
			out.Errors = append(out.Errors, "email: supplier has no email address")
		} else {
			res := s.messenger.SendEmail(ctx, tenantID, email.Message{
				To:      sup.Email,
				Subject: msg.Subject,
				Text:    msg.Body,
			})
			out.Email = &res
			if res.Success {
				out.Success = true
			} else {
				out.Errors = append(out.Errors, "email: "+res.Error)
			}
		}
	}
}

// messageVars builds the template variables shared by every supplier message.
func messageVars(q *repository.Quote, sup repository.Supplier, link, customMessage string) map[string]any {
	return map[string]any{
		"supplier_name":  sup.Name,
		"company_name":   q.OrganizationName,
		"quote_title":    q.Title,
		"items":          formatItems(q.Items),
		"deadline":       templates.Date(q.Deadline),
		"link":           link,
		"custom_message": strings.TrimSpace(customMessage),
	}
}

func formatItems(items []repository.Item) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		qty := formatQuantity(it.Quantity)
		if it.Unit != "" {
			qty += " " + it.Unit
		}
		lines = append(lines, fmt.Sprintf("- %s (%s)", name, qty))
	}
	return strings.Join(lines, "\n")
}

func formatQuantity(q float64) string {
	if q == float64(int64(q)) {
		return fmt.Sprintf("%d", int64(q))
	}
	return strings.Replace(fmt.Sprintf("%.2f", q), ".", ",", 1)
}
