package transport

import (
	"encoding/json"
	"strings"
	"time"

	"procurement_backend/internal/negotiation/repository"

	"github.com/google/uuid"
)

// ── Requests ──────────────────────────────────────────────────────────────────

// AnalyzeRequest selects the quote whose proposals are analyzed.
type AnalyzeRequest struct {
	QuoteID uuid.UUID `json:"quoteId" validate:"required"`
}

// OverrideRequest carries an optional note for a human override.
type OverrideRequest struct {
	Comments string `json:"comments" validate:"max=1000"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// NegotiationResponse is the API view of a negotiation.
type NegotiationResponse struct {
	ID                 uuid.UUID            `json:"id"`
	QuoteID            uuid.UUID            `json:"quoteId"`
	SupplierID         uuid.UUID            `json:"supplierId"`
	ResponseID         *uuid.UUID           `json:"responseId,omitempty"`
	OriginalAmount     float64              `json:"originalAmount"`
	NegotiatedAmount   *float64             `json:"negotiatedAmount,omitempty"`
	DiscountPercentage *float64             `json:"discountPercentage,omitempty"`
	Status             string               `json:"status"`
	Strategy           repository.Strategy  `json:"negotiationStrategy"`
	Analysis           string               `json:"analysis"`
	ConversationLog    []repository.Message `json:"conversationLog,omitempty"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt"`
}

// AnalyzeResponse is the result of AnalyzeNegotiation.
type AnalyzeResponse struct {
	Negotiation     NegotiationResponse `json:"negotiation"`
	ShouldNegotiate bool                `json:"shouldNegotiate"`
	Analysis        string              `json:"analysis"`
}

// InitiateResponse is the result of InitiateNegotiation.
type InitiateResponse struct {
	Success         bool     `json:"success"`
	MessageSent     string   `json:"messageSent"`
	DeliveryChannel string   `json:"deliveryChannel"`
	Scope           string   `json:"scope,omitempty"`
	ProposedAmount  float64  `json:"proposedAmount"`
	Attempted       []string `json:"attempted,omitempty"`
}

// Ingest outcomes.
const (
	IngestIgnored   = "ignored"
	IngestProcessed = "processed"
)

// IngestResponse is what the webhook answers. It is always sent with 200.
type IngestResponse struct {
	Status               string     `json:"status"`
	Reason               string     `json:"reason,omitempty"`
	MatchedNegotiationID *uuid.UUID `json:"matchedNegotiationId,omitempty"`
	NewStatus            string     `json:"newStatus,omitempty"`
}

// ── Inbound webhook ───────────────────────────────────────────────────────────

// EvolutionWebhook is an Evolution-style gateway callback.
type EvolutionWebhook struct {
	Event    string          `json:"event"`
	Instance string          `json:"instance"`
	Data     json.RawMessage `json:"data"`
}

type evolutionMessage struct {
	Key struct {
		RemoteJID string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
		ID        string `json:"id"`
	} `json:"key"`
	PushName string `json:"pushName"`
	Message  struct {
		Conversation        string `json:"conversation"`
		ExtendedTextMessage struct {
			Text string `json:"text"`
		} `json:"extendedTextMessage"`
		ImageMessage struct {
			Caption string `json:"caption"`
		} `json:"imageMessage"`
	} `json:"message"`
}

// InboundMessage is a text message received from a chat contact.
type InboundMessage struct {
	MessageID  string
	Phone      string
	SenderName string
	Text       string
	FromMe     bool
}

// Inbound extracts the text message of a messages.upsert event. The second
// result is false for any other event or an unreadable payload.
func (w EvolutionWebhook) Inbound() (InboundMessage, bool) {
	event := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(w.Event), "_", "."))
	if event != "messages.upsert" {
		return InboundMessage{}, false
	}

	var msg evolutionMessage
	if err := json.Unmarshal(w.Data, &msg); err != nil {
		var batch []evolutionMessage
		if err := json.Unmarshal(w.Data, &batch); err != nil || len(batch) == 0 {
			return InboundMessage{}, false
		}
		msg = batch[0]
	}

	jid := msg.Key.RemoteJID
	if strings.HasSuffix(jid, "@g.us") || strings.HasSuffix(jid, "@broadcast") {
		return InboundMessage{}, false
	}
	phone, _, _ := strings.Cut(jid, "@")
	phone, _, _ = strings.Cut(phone, ":")

	text := msg.Message.Conversation
	if text == "" {
		text = msg.Message.ExtendedTextMessage.Text
	}
	if text == "" {
		text = msg.Message.ImageMessage.Caption
	}

	return InboundMessage{
		MessageID:  msg.Key.ID,
		Phone:      strings.TrimSpace(phone),
		SenderName: strings.TrimSpace(msg.PushName),
		Text:       strings.TrimSpace(text),
		FromMe:     msg.Key.FromMe,
	}, true
}
