package transport

import "github.com/google/uuid"

// AwardRequest selects a proposal as the winner of its quote.
type AwardRequest struct {
	Comments string `json:"comments" validate:"max=1000"`
}

// AwardResponse tells the caller whether the award is binding yet.
type AwardResponse struct {
	QuoteID           uuid.UUID   `json:"quoteId"`
	ResponseID        uuid.UUID   `json:"responseId"`
	Amount            float64     `json:"amount"`
	ApprovalRequired  bool        `json:"approvalRequired"`
	AutoApproved      bool        `json:"autoApproved"`
	ApproversNotified int         `json:"approversNotified"`
	ApprovalIDs       []uuid.UUID `json:"approvalIds,omitempty"`
	Level             string      `json:"level,omitempty"`
	QuoteStatus       string      `json:"quoteStatus"`
	Warning           string      `json:"warning,omitempty"`
}

// DecisionRequest is an approver's vote.
type DecisionRequest struct {
	Approve  *bool  `json:"approve" validate:"required"`
	Comments string `json:"comments" validate:"max=1000"`
}

// DecisionResponse is the state after a vote.
type DecisionResponse struct {
	ApprovalID  uuid.UUID `json:"approvalId"`
	Status      string    `json:"status"`
	Remaining   int       `json:"remaining"`
	QuoteStatus string    `json:"quoteStatus"`
	Finalized   bool      `json:"finalized"`
}
