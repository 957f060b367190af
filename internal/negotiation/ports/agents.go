// Package ports defines the contracts the negotiation domain needs from the
// language-model agents and the messaging layer, so the service never
// depends on a concrete model or gateway.
package ports

import (
	"context"

	"procurement_backend/internal/channels"
	"procurement_backend/internal/whatsapp"

	"github.com/google/uuid"
)

// Intent is the classified meaning of a supplier reply.
type Intent string

const (
	IntentAccepted     Intent = "accepted"
	IntentCounterOffer Intent = "counter_offer"
	IntentRejected     Intent = "rejected"
	IntentQuestion     Intent = "question"
	IntentUnclear      Intent = "unclear"
)

// Valid reports whether i is one of the closed set of intents.
func (i Intent) Valid() bool {
	switch i {
	case IntentAccepted, IntentCounterOffer, IntentRejected, IntentQuestion, IntentUnclear:
		return true
	}
	return false
}

// StrategyInput is the market picture handed to the strategist.
type StrategyInput struct {
	QuoteTitle       string
	SupplierName     string
	LowestAmount     float64
	MeanAmount       float64
	ProposalCount    int
	PotentialPercent float64
}

// StrategyDraft is the strategist's answer before clamping.
type StrategyDraft struct {
	Analysis       string
	Strategy       string
	TargetDiscount float64
}

// OpeningInput carries what the composer may mention in an opening message.
type OpeningInput struct {
	CompanyName    string
	SupplierName   string
	QuoteTitle     string
	OriginalAmount float64
	ProposedAmount float64
	Strategy       string
}

// Classification is the parsed reading of one inbound message.
type Classification struct {
	Intent     Intent   `json:"intent"`
	Amount     *float64 `json:"amount,omitempty"`
	Confidence int      `json:"confidence"`
}

// Strategist sizes the counter-offer.
type Strategist interface {
	DraftStrategy(ctx context.Context, tenantID uuid.UUID, input StrategyInput) (StrategyDraft, error)
}

// Composer writes the opening negotiation message.
type Composer interface {
	ComposeOpening(ctx context.Context, tenantID uuid.UUID, input OpeningInput) (string, error)
}

// Classifier reads a supplier reply.
type Classifier interface {
	Classify(ctx context.Context, tenantID uuid.UUID, message string, originalAmount float64) (Classification, error)
}

// ChatSender delivers a chat message trying configuration scopes in order.
// Implemented by channels.Adapter.
type ChatSender interface {
	SendChatWithScopes(ctx context.Context, tenantID uuid.UUID, phoneNumber, text string, scopes ...whatsapp.Scope) channels.DeliveryResult
}
