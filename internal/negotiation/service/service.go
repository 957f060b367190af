package service

import (
	"context"
	"fmt"
	"strings"

	"procurement_backend/internal/audit"
	"procurement_backend/internal/events"
	"procurement_backend/internal/negotiation/ports"
	"procurement_backend/internal/negotiation/repository"
	"procurement_backend/internal/negotiation/transport"
	"procurement_backend/internal/templates"
	"procurement_backend/internal/whatsapp"
	"procurement_backend/platform/apperr"
	"procurement_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	strategySourceAI       = "ai"
	strategySourceFallback = "fallback"
	entityNegotiation      = "negotiation"
)

// initiationScopes is the order chat configurations are tried for an
// opening message.
var initiationScopes = []whatsapp.Scope{whatsapp.ScopeClient, whatsapp.ScopeGlobal, whatsapp.ScopeEnv}

// Repository is the persistence the negotiation service needs.
type Repository interface {
	GetQuote(ctx context.Context, tenantID, quoteID uuid.UUID) (*repository.Quote, error)
	ListProposals(ctx context.Context, quoteID uuid.UUID) ([]repository.Proposal, error)
	UpsertAnalysis(ctx context.Context, p repository.AnalysisParams) (*repository.Negotiation, error)
	Get(ctx context.Context, tenantID, negotiationID uuid.UUID) (*repository.Negotiation, error)
	GetSupplier(ctx context.Context, supplierID uuid.UUID) (*repository.Supplier, error)
	ListMessages(ctx context.Context, negotiationID uuid.UUID) ([]repository.Message, error)
	AppendMessage(ctx context.Context, negotiationID uuid.UUID, role, text, channel string) (int, error)
	SetMessageParsed(ctx context.Context, negotiationID uuid.UUID, seq int, parsed any) error
	Initiate(ctx context.Context, p repository.InitiationParams) (*repository.Negotiation, error)
	ListActive(ctx context.Context) ([]repository.Active, error)
	Transition(ctx context.Context, p repository.TransitionParams) (bool, error)
	SetStatus(ctx context.Context, tenantID, negotiationID uuid.UUID, status string) (string, error)
}

// Renderer renders a template purpose. Implemented by templates.Resolver.
type Renderer interface {
	Render(ctx context.Context, tenantID uuid.UUID, purpose templates.Purpose, vars map[string]any) (templates.Message, error)
}

// Auditor writes audit records. Implemented by audit.Repository.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Deps groups the collaborators of New. The agents are optional: without
// them analysis uses the fallback discount, openings use the template and
// inbound replies are logged without classification.
type Deps struct {
	Repo               Repository
	Strategist         ports.Strategist
	Composer           ports.Composer
	Classifier         ports.Classifier
	Renderer           Renderer
	Chat               ports.ChatSender
	Auditor            Auditor
	EventBus           events.Bus
	Log                *logger.Logger
	DefaultCountryCode string
}

// Service runs the negotiation state machine.
type Service struct {
	repo       Repository
	strategist ports.Strategist
	composer   ports.Composer
	classifier ports.Classifier
	renderer   Renderer
	chat       ports.ChatSender
	auditor    Auditor
	eventBus   events.Bus
	log        *logger.Logger
	policy     ViabilityPolicy
	defaultCC  string
}

func New(deps Deps) *Service {
	return &Service{
		repo:       deps.Repo,
		strategist: deps.Strategist,
		composer:   deps.Composer,
		classifier: deps.Classifier,
		renderer:   deps.Renderer,
		chat:       deps.Chat,
		auditor:    deps.Auditor,
		eventBus:   deps.EventBus,
		log:        deps.Log.WithComponent("negotiation"),
		policy:     DefaultViabilityPolicy,
		defaultCC:  deps.DefaultCountryCode,
	}
}

// Analyze computes whether the quote's proposals are worth negotiating and
// stores the result as an analyzed negotiation. Re-running refreshes the
// same record.
func (s *Service) Analyze(ctx context.Context, tenantID, quoteID uuid.UUID) (*transport.AnalyzeResponse, error) {
	quote, err := s.repo.GetQuote(ctx, tenantID, quoteID)
	if err != nil {
		return nil, err
	}
	proposals, err := s.repo.ListProposals(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if len(proposals) == 0 {
		return nil, apperr.Validation("quote has no proposals to analyze")
	}

	amounts := make([]float64, len(proposals))
	best := proposals[0]
	for i, p := range proposals {
		amounts[i] = p.Amount
		if p.Amount < best.Amount {
			best = p
		}
	}
	stats := s.policy.Evaluate(amounts)

	strategy := repository.Strategy{
		Viable:           stats.Viable,
		PotentialPercent: stats.Potential,
		LowestAmount:     stats.Lowest,
		MeanAmount:       round2(stats.Mean),
		ProposalCount:    stats.Count,
	}
	analysis := fmt.Sprintf("Lowest proposal %s against an average of %s: potential %.1f%%, not worth negotiating.",
		templates.Money(stats.Lowest), templates.Money(stats.Mean), stats.Potential)

	if stats.Viable {
		analysis, strategy = s.draftStrategy(ctx, quote, best, stats, strategy)
	}

	n, err := s.repo.UpsertAnalysis(ctx, repository.AnalysisParams{
		QuoteID:        quote.ID,
		OrganizationID: tenantID,
		SupplierID:     best.SupplierID,
		ResponseID:     best.ID,
		OriginalAmount: best.Amount,
		Strategy:       strategy,
		Analysis:       analysis,
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "negotiation analyzed",
		"quote_id", quoteID, "potential", stats.Potential, "viable", stats.Viable, "source", strategy.Source)
	return &transport.AnalyzeResponse{
		Negotiation:     toResponse(n, nil),
		ShouldNegotiate: stats.Viable,
		Analysis:        analysis,
	}, nil
}

// draftStrategy asks the strategist and falls back to a deterministic
// discount when it is missing or fails.
func (s *Service) draftStrategy(ctx context.Context, quote *repository.Quote, best repository.Proposal, stats MarketStats, strategy repository.Strategy) (string, repository.Strategy) {
	if s.strategist != nil {
		draft, err := s.strategist.DraftStrategy(ctx, quote.OrganizationID, ports.StrategyInput{
			QuoteTitle:       quote.Title,
			SupplierName:     best.SupplierName,
			LowestAmount:     stats.Lowest,
			MeanAmount:       stats.Mean,
			ProposalCount:    stats.Count,
			PotentialPercent: stats.Potential,
		})
		if err == nil {
			strategy.TargetDiscount = round2(clampDiscount(draft.TargetDiscount))
			strategy.Reasoning = draft.Strategy
			strategy.Source = strategySourceAI
			analysis := draft.Analysis
			if analysis == "" {
				analysis = draft.Strategy
			}
			return analysis, strategy
		}
		s.log.WarnContext(ctx, "strategist failed, using fallback discount", "quote_id", quote.ID, "error", err)
	}

	strategy.TargetDiscount = fallbackDiscount(stats.Potential)
	strategy.Source = strategySourceFallback
	strategy.Reasoning = fmt.Sprintf("Ask %s for a %.1f%% reduction on the lowest proposal.", best.SupplierName, strategy.TargetDiscount)
	analysis := fmt.Sprintf("Lowest proposal %s against an average of %s: potential %.1f%%, negotiation recommended.",
		templates.Money(stats.Lowest), templates.Money(stats.Mean), stats.Potential)
	return analysis, strategy
}

// Initiate sends the opening message and moves the negotiation to
// negotiating. Delivery failure across every configuration scope leaves the
// record untouched so the call can be retried.
func (s *Service) Initiate(ctx context.Context, tenantID, negotiationID uuid.UUID) (*transport.InitiateResponse, error) {
	n, err := s.repo.Get(ctx, tenantID, negotiationID)
	if err != nil {
		return nil, err
	}
	if n.Status != repository.StatusAnalyzed {
		return nil, apperr.Conflict("negotiation in status " + n.Status + " cannot be initiated")
	}
	if !n.Strategy.Viable {
		return nil, apperr.Conflict("negotiation was analyzed as not worth pursuing")
	}

	quote, err := s.repo.GetQuote(ctx, tenantID, n.QuoteID)
	if err != nil {
		return nil, err
	}
	supplier, err := s.repo.GetSupplier(ctx, n.SupplierID)
	if err != nil {
		return nil, err
	}
	number := supplier.WhatsApp
	if number == "" {
		number = supplier.Phone
	}
	if strings.TrimSpace(number) == "" {
		return nil, apperr.Validation("supplier has no chat number")
	}

	discount := clampDiscount(n.Strategy.TargetDiscount)
	proposed := proposedAmount(n.OriginalAmount, discount)
	text, err := s.openingMessage(ctx, quote, supplier, n, proposed)
	if err != nil {
		return nil, err
	}

	res := s.chat.SendChatWithScopes(ctx, tenantID, number, text, initiationScopes...)
	out := &transport.InitiateResponse{
		Success:         res.Success,
		MessageSent:     text,
		DeliveryChannel: string(res.Channel),
		Scope:           res.Scope,
		ProposedAmount:  proposed,
		Attempted:       res.Attempted,
	}
	if !res.Success {
		s.log.WarnContext(ctx, "opening message not delivered", "negotiation_id", n.ID, "error", res.Error)
		return out, apperr.Unavailable("opening message could not be delivered: " + res.Error).WithDetails(out)
	}

	if _, err := s.repo.Initiate(ctx, repository.InitiationParams{
		NegotiationID:  n.ID,
		QuoteID:        n.QuoteID,
		Message:        text,
		Channel:        string(res.Channel),
		Scope:          res.Scope,
		ProposedAmount: proposed,
		Discount:       round2(discount),
	}); err != nil {
		return out, err
	}

	s.record(ctx, audit.Entry{
		OrganizationID: &tenantID,
		Action:         audit.ActionNegotiationInitiated,
		EntityType:     entityNegotiation,
		EntityID:       &n.ID,
		Details: map[string]any{
			"supplierId":     supplier.ID,
			"scope":          res.Scope,
			"endpoint":       res.Endpoint,
			"proposedAmount": proposed,
		},
	})
	s.publish(ctx, events.NegotiationStatusChanged{
		BaseEvent:     events.NewBaseEvent(),
		NegotiationID: n.ID,
		QuoteID:       n.QuoteID,
		TenantID:      tenantID,
		Supplier:      supplier.Name,
		From:          repository.StatusAnalyzed,
		To:            repository.StatusNegotiating,
	})
	s.log.InfoContext(ctx, "negotiation initiated", "negotiation_id", n.ID, "scope", res.Scope)
	return out, nil
}

// openingMessage asks the composer and falls back to the
// negotiation_opening template.
func (s *Service) openingMessage(ctx context.Context, quote *repository.Quote, supplier *repository.Supplier, n *repository.Negotiation, proposed float64) (string, error) {
	if s.composer != nil {
		text, err := s.composer.ComposeOpening(ctx, quote.OrganizationID, ports.OpeningInput{
			CompanyName:    quote.OrganizationName,
			SupplierName:   supplier.Name,
			QuoteTitle:     quote.Title,
			OriginalAmount: n.OriginalAmount,
			ProposedAmount: proposed,
			Strategy:       n.Strategy.Reasoning,
		})
		if err == nil {
			return text, nil
		}
		s.log.WarnContext(ctx, "composer failed, using template", "negotiation_id", n.ID, "error", err)
	}

	msg, err := s.renderer.Render(ctx, quote.OrganizationID, templates.PurposeNegotiationOpening, map[string]any{
		"supplier_name":   supplier.Name,
		"company_name":    quote.OrganizationName,
		"quote_title":     quote.Title,
		"original_amount": templates.Money(n.OriginalAmount),
		"proposed_amount": templates.Money(proposed),
		"discount":        fmt.Sprintf("%.1f", n.Strategy.TargetDiscount),
	})
	if err != nil {
		return "", err
	}
	return msg.Body, nil
}

// Approve force-approves a negotiation.
func (s *Service) Approve(ctx context.Context, tenantID, actorID, negotiationID uuid.UUID, comments string) (*transport.NegotiationResponse, error) {
	return s.override(ctx, tenantID, actorID, negotiationID, repository.StatusApproved, comments)
}

// Reject force-rejects a negotiation.
func (s *Service) Reject(ctx context.Context, tenantID, actorID, negotiationID uuid.UUID, comments string) (*transport.NegotiationResponse, error) {
	return s.override(ctx, tenantID, actorID, negotiationID, repository.StatusRejected, comments)
}

// override is the unconditional human escape hatch.
func (s *Service) override(ctx context.Context, tenantID, actorID, negotiationID uuid.UUID, status, comments string) (*transport.NegotiationResponse, error) {
	previous, err := s.repo.SetStatus(ctx, tenantID, negotiationID, status)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.Entry{
		OrganizationID: &tenantID,
		ActorID:        &actorID,
		Action:         audit.ActionNegotiationOverride,
		EntityType:     entityNegotiation,
		EntityID:       &negotiationID,
		Severity:       audit.SeverityWarning,
		Details: map[string]any{
			"from":     previous,
			"to":       status,
			"comments": strings.TrimSpace(comments),
		},
	})

	n, err := s.repo.Get(ctx, tenantID, negotiationID)
	if err != nil {
		return nil, err
	}
	if previous != status {
		s.publish(ctx, events.NegotiationStatusChanged{
			BaseEvent:     events.NewBaseEvent(),
			NegotiationID: n.ID,
			QuoteID:       n.QuoteID,
			TenantID:      tenantID,
			From:          previous,
			To:            status,
		})
	}
	s.log.InfoContext(ctx, "negotiation overridden", "negotiation_id", negotiationID, "from", previous, "to", status)
	resp := toResponse(n, nil)
	return &resp, nil
}

// Get returns a negotiation with its conversation log.
func (s *Service) Get(ctx context.Context, tenantID, negotiationID uuid.UUID) (*transport.NegotiationResponse, error) {
	n, err := s.repo.Get(ctx, tenantID, negotiationID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, n.ID)
	if err != nil {
		return nil, err
	}
	resp := toResponse(n, msgs)
	return &resp, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.eventBus != nil {
		s.eventBus.Publish(ctx, event)
	}
}

// record writes an audit entry. Failures are logged only.
func (s *Service) record(ctx context.Context, e audit.Entry) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(ctx, e); err != nil {
		s.log.ErrorContext(ctx, "audit record failed", "action", e.Action, "error", err)
	}
}

func toResponse(n *repository.Negotiation, msgs []repository.Message) transport.NegotiationResponse {
	return transport.NegotiationResponse{
		ID:                 n.ID,
		QuoteID:            n.QuoteID,
		SupplierID:         n.SupplierID,
		ResponseID:         n.ResponseID,
		OriginalAmount:     n.OriginalAmount,
		NegotiatedAmount:   n.NegotiatedAmount,
		DiscountPercentage: n.DiscountPercentage,
		Status:             n.Status,
		Strategy:           n.Strategy,
		Analysis:           n.Analysis,
		ConversationLog:    msgs,
		CreatedAt:          n.CreatedAt,
		UpdatedAt:          n.UpdatedAt,
	}
}
