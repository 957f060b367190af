// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"procurement_backend/platform/events"
	"procurement_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Quote Domain Events
// =============================================================================

// QuoteDispatched is published after a quote has been finalized as sent.
type QuoteDispatched struct {
	BaseEvent
	QuoteID   uuid.UUID `json:"quoteId"`
	TenantID  uuid.UUID `json:"tenantId"`
	SentCount int       `json:"sentCount"`
}

func (e QuoteDispatched) EventName() string { return "quotes.quote.dispatched" }

// QuoteResponseReceived is published when a supplier submits or declines.
type QuoteResponseReceived struct {
	BaseEvent
	QuoteID    uuid.UUID `json:"quoteId"`
	TenantID   uuid.UUID `json:"tenantId"`
	SupplierID uuid.UUID `json:"supplierId"`
	Supplier   string    `json:"supplier"`
	Declined   bool      `json:"declined"`
}

func (e QuoteResponseReceived) EventName() string { return "quotes.response.received" }

// =============================================================================
// Negotiation Domain Events
// =============================================================================

// NegotiationStatusChanged is published when an inbound supplier message
// moves a negotiation to a new status.
type NegotiationStatusChanged struct {
	BaseEvent
	NegotiationID uuid.UUID `json:"negotiationId"`
	QuoteID       uuid.UUID `json:"quoteId"`
	TenantID      uuid.UUID `json:"tenantId"`
	Supplier      string    `json:"supplier"`
	From          string    `json:"from"`
	To            string    `json:"to"`
}

func (e NegotiationStatusChanged) EventName() string { return "negotiation.status.changed" }

// =============================================================================
// Approval Domain Events
// =============================================================================

// PendingApproval pairs an approval row with the user who must decide it.
type PendingApproval struct {
	ApprovalID uuid.UUID `json:"approvalId"`
	ApproverID uuid.UUID `json:"approverId"`
}

// ApprovalRequested is published when a proposal is routed to approvers.
type ApprovalRequested struct {
	BaseEvent
	QuoteID      uuid.UUID         `json:"quoteId"`
	ResponseID   uuid.UUID         `json:"responseId"`
	TenantID     uuid.UUID         `json:"tenantId"`
	QuoteTitle   string            `json:"quoteTitle"`
	SupplierName string            `json:"supplierName"`
	Amount       float64           `json:"amount"`
	Approvals    []PendingApproval `json:"approvals"`
}

func (e ApprovalRequested) EventName() string { return "approvals.approval.requested" }

// ProposalAwarded is published after a response has been approved as the
// winner of its quote.
type ProposalAwarded struct {
	BaseEvent
	QuoteID          uuid.UUID   `json:"quoteId"`
	ResponseID       uuid.UUID   `json:"responseId"`
	TenantID         uuid.UUID   `json:"tenantId"`
	WinnerSupplierID uuid.UUID   `json:"winnerSupplierId"`
	Amount           float64     `json:"amount"`
	RejectedIDs      []uuid.UUID `json:"rejectedSupplierIds"`
	AutoApproved     bool        `json:"autoApproved"`
}

func (e ProposalAwarded) EventName() string { return "approvals.proposal.awarded" }
