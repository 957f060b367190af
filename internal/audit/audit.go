// Package audit writes the append-only audit trail for supplier-facing
// automation: inbound messages, state transitions and approval fallbacks.
package audit

import (
	"context"
	"encoding/json"
	"strings"

	"procurement_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const opRecord = "audit.repository.record"

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Actions recorded by the pipeline.
const (
	ActionInboundMessage          = "INBOUND_MESSAGE"
	ActionNegotiationInitiated    = "NEGOTIATION_INITIATED"
	ActionNegotiationOverride     = "NEGOTIATION_OVERRIDE"
	ActionApprovalRequested       = "APPROVAL_REQUESTED"
	ActionApprovalDecided         = "APPROVAL_DECIDED"
	ActionProposalAwarded         = "PROPOSAL_AWARDED"
	ActionAutoApprovedNoApprovers = "AUTO_APPROVED_NO_APPROVERS"
)

// Entry is one audit record. OrganizationID and ActorID are optional; an
// inbound message that matched nothing has neither.
type Entry struct {
	OrganizationID *uuid.UUID
	ActorID        *uuid.UUID
	Action         string
	EntityType     string
	EntityID       *uuid.UUID
	Severity       Severity
	Details        map[string]any
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts e.
func (r *Repository) Record(ctx context.Context, e Entry) error {
	if r == nil || r.pool == nil {
		return apperr.Internal("audit repository not configured").WithOp(opRecord)
	}
	e, err := normalize(e)
	if err != nil {
		return err
	}
	details, err := json.Marshal(e.Details)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "encode audit details", err).WithOp(opRecord)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_logs (organization_id, actor_id, action, entity_type, entity_id, severity, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.OrganizationID, e.ActorID, e.Action, e.EntityType, e.EntityID, string(e.Severity), details,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "insert audit log", err).WithOp(opRecord)
	}
	return nil
}

func normalize(e Entry) (Entry, error) {
	e.Action = strings.TrimSpace(e.Action)
	e.EntityType = strings.TrimSpace(e.EntityType)
	if e.Action == "" || e.EntityType == "" {
		return e, apperr.Validation("audit action and entity type are required").WithOp(opRecord)
	}
	switch e.Severity {
	case SeverityInfo, SeverityWarning, SeverityCritical:
	case "":
		e.Severity = SeverityInfo
	default:
		return e, apperr.Validation("unknown audit severity " + string(e.Severity)).WithOp(opRecord)
	}
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	return e, nil
}
