package service

import (
	"context"

	"procurement_backend/internal/audit"
	"procurement_backend/internal/events"
	"procurement_backend/internal/negotiation/ports"
	"procurement_backend/internal/negotiation/repository"
	"procurement_backend/internal/negotiation/transport"
	"procurement_backend/platform/phone"
)

const (
	reasonNotMessage = "not a text message event"
	reasonSelfSent   = "self-sent"
	reasonEmpty      = "missing sender or text"
	reasonUnmatched  = "no active negotiation for sender"
	reasonFailed     = "processing failed"

	channelWhatsApp = "whatsapp"
)

// Ingest routes an inbound chat message to the negotiation of its sender.
// It never returns an error: the webhook must always answer 200 so the
// gateway does not retry. The raw message is appended before
// classification so a failing classifier never loses it.
func (s *Service) Ingest(ctx context.Context, payload transport.EvolutionWebhook) transport.IngestResponse {
	msg, ok := payload.Inbound()
	if !ok {
		return ignored(reasonNotMessage)
	}
	if msg.FromMe {
		return ignored(reasonSelfSent)
	}
	sender := phone.NormalizeDigits(msg.Phone, s.defaultCC)
	if sender == "" || msg.Text == "" {
		return ignored(reasonEmpty)
	}

	active, err := s.repo.ListActive(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "inbound: list active negotiations failed", "error", err)
		return ignored(reasonFailed)
	}
	match := s.matchSender(active, sender)
	if match == nil {
		s.record(ctx, audit.Entry{
			Action:     audit.ActionInboundMessage,
			EntityType: entityNegotiation,
			Details: map[string]any{
				"phone":   sender,
				"message": msg.Text,
				"matched": false,
			},
		})
		return ignored(reasonUnmatched)
	}

	n := match.Negotiation
	seq, err := s.repo.AppendMessage(ctx, n.ID, repository.RoleSupplier, msg.Text, channelWhatsApp)
	if err != nil {
		s.log.ErrorContext(ctx, "inbound: append message failed", "negotiation_id", n.ID, "error", err)
		return ignored(reasonFailed)
	}

	result := transport.IngestResponse{Status: transport.IngestProcessed, MatchedNegotiationID: &n.ID, NewStatus: n.Status}
	details := map[string]any{
		"supplierId":   match.Supplier.ID,
		"supplierName": match.Supplier.Name,
		"phone":        sender,
		"message":      msg.Text,
		"matched":      true,
	}

	classification, ok := s.classify(ctx, n, msg.Text)
	if !ok {
		details["classification"] = nil
		details["resultingStatus"] = n.Status
		s.auditInbound(ctx, n, details)
		return result
	}
	details["classification"] = classification
	if err := s.repo.SetMessageParsed(ctx, n.ID, seq, classification); err != nil {
		s.log.WarnContext(ctx, "inbound: store classification failed", "negotiation_id", n.ID, "error", err)
	}

	t := decideTransition(n, classification)
	details["note"] = t.Note
	if t.Changed {
		applied, err := s.repo.Transition(ctx, repository.TransitionParams{
			NegotiationID:    n.ID,
			To:               t.To,
			NegotiatedAmount: t.NegotiatedAmount,
			Discount:         t.Discount,
		})
		switch {
		case err != nil:
			s.log.ErrorContext(ctx, "inbound: transition failed", "negotiation_id", n.ID, "error", err)
		case !applied:
			s.log.WarnContext(ctx, "inbound: negotiation left negotiating before transition", "negotiation_id", n.ID)
		default:
			result.NewStatus = t.To
			s.publish(ctx, events.NegotiationStatusChanged{
				BaseEvent:     events.NewBaseEvent(),
				NegotiationID: n.ID,
				QuoteID:       n.QuoteID,
				TenantID:      n.OrganizationID,
				Supplier:      match.Supplier.Name,
				From:          n.Status,
				To:            t.To,
			})
		}
	} else {
		s.log.InfoContext(ctx, "inbound: status unchanged", "negotiation_id", n.ID,
			"intent", classification.Intent, "confidence", classification.Confidence, "note", t.Note)
	}

	details["resultingStatus"] = result.NewStatus
	s.auditInbound(ctx, n, details)
	return result
}

// matchSender returns the newest active negotiation whose supplier's chat
// or phone number normalizes to sender.
func (s *Service) matchSender(active []repository.Active, sender string) *repository.Active {
	for i := range active {
		sup := active[i].Supplier
		for _, candidate := range []string{sup.WhatsApp, sup.Phone} {
			if candidate != "" && phone.NormalizeDigits(candidate, s.defaultCC) == sender {
				return &active[i]
			}
		}
	}
	return nil
}

func (s *Service) classify(ctx context.Context, n repository.Negotiation, text string) (ports.Classification, bool) {
	if s.classifier == nil {
		return ports.Classification{}, false
	}
	c, err := s.classifier.Classify(ctx, n.OrganizationID, text, n.OriginalAmount)
	if err != nil {
		s.log.WarnContext(ctx, "inbound: classification failed", "negotiation_id", n.ID, "error", err)
		return ports.Classification{}, false
	}
	return c, true
}

func (s *Service) auditInbound(ctx context.Context, n repository.Negotiation, details map[string]any) {
	s.record(ctx, audit.Entry{
		OrganizationID: &n.OrganizationID,
		Action:         audit.ActionInboundMessage,
		EntityType:     entityNegotiation,
		EntityID:       &n.ID,
		Details:        details,
	})
}

func ignored(reason string) transport.IngestResponse {
	return transport.IngestResponse{Status: transport.IngestIgnored, Reason: reason}
}
