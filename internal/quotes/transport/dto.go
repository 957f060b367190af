package transport

import (
	"time"

	"procurement_backend/internal/channels"

	"github.com/google/uuid"
)

// ── Requests ──────────────────────────────────────────────────────────────────

// DispatchRequest is the body of POST /quotes/:id/dispatch. An empty
// SupplierIDs list targets every active supplier visible to the tenant.
type DispatchRequest struct {
	SupplierIDs   []uuid.UUID `json:"supplierIds" validate:"omitempty,max=500,dive,required"`
	SendChat      bool        `json:"sendWhatsapp"`
	SendEmail     bool        `json:"sendEmail"`
	CustomMessage string      `json:"customMessage" validate:"max=2000"`
}

// RunRemindersRequest is the body of the reminder trigger.
type RunRemindersRequest struct {
	HoursSinceSent int `json:"hoursSinceSent" validate:"omitempty,min=1,max=2160"`
}

// SubmitProposalRequest is a supplier's proposal sent through a response link.
type SubmitProposalRequest struct {
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	DeliveryDays *int    `json:"deliveryDays" validate:"omitempty,min=0,max=3650"`
	Terms        string  `json:"terms" validate:"max=4000"`
}

// DeclineRequest optionally explains why a supplier declines.
type DeclineRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// SupplierOutcome is the per-supplier result of a dispatch or reminder.
type SupplierOutcome struct {
	SupplierID   uuid.UUID                `json:"supplierId"`
	SupplierName string                   `json:"supplierName"`
	Variant      string                   `json:"variant,omitempty"`
	Link         string                   `json:"link,omitempty"`
	Chat         *channels.DeliveryResult `json:"whatsapp,omitempty"`
	Email        *channels.DeliveryResult `json:"email,omitempty"`
	Success      bool                     `json:"success"`
	Errors       []string                 `json:"errors,omitempty"`
}

// DispatchResponse summarizes a dispatch.
type DispatchResponse struct {
	QuoteID uuid.UUID `json:"quoteId"`
	// SentCount is the number of suppliers reached by this dispatch.
	SentCount int `json:"sentCount"`
	// TotalReached is the recorded sent-supplier count across dispatches.
	TotalReached int               `json:"totalReached"`
	Outcomes     []SupplierOutcome `json:"perSupplierOutcomes"`
	Errors       []string          `json:"errors"`
}

// ReminderResponse summarizes one reminder run.
type ReminderResponse struct {
	RemindersSent int               `json:"remindersSent"`
	Skipped       int               `json:"skipped"`
	Results       []SupplierOutcome `json:"perSupplierResults"`
}

// SupplierStatusResponse is one row of GET /quotes/:id/suppliers.
type SupplierStatusResponse struct {
	SupplierID     uuid.UUID  `json:"supplierId"`
	SupplierName   string     `json:"supplierName"`
	Status         string     `json:"status"`
	ReminderCount  int        `json:"reminderCount"`
	LastReminderAt *time.Time `json:"lastReminderAt,omitempty"`
	RespondedAt    *time.Time `json:"respondedAt,omitempty"`
}

// PublicItem is a quote line shown to suppliers.
type PublicItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit,omitempty"`
}

// PublicProposal is the supplier's own proposal, when one exists.
type PublicProposal struct {
	ID           uuid.UUID `json:"id"`
	Amount       float64   `json:"amount"`
	DeliveryDays *int      `json:"deliveryDays,omitempty"`
	Terms        string    `json:"terms,omitempty"`
	Status       string    `json:"status"`
}

// PublicQuoteResponse is what a supplier sees behind a response link.
type PublicQuoteResponse struct {
	QuoteID        uuid.UUID       `json:"quoteId"`
	Title          string          `json:"title"`
	Company        string          `json:"company"`
	SupplierName   string          `json:"supplierName"`
	Items          []PublicItem    `json:"items"`
	Deadline       *time.Time      `json:"deadline,omitempty"`
	SupplierStatus string          `json:"supplierStatus"`
	AcceptsInput   bool            `json:"acceptsInput"`
	Proposal       *PublicProposal `json:"proposal,omitempty"`
}
