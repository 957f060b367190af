package service

import (
	"context"
	"fmt"
	"strings"

	"procurement_backend/internal/approvals/repository"
	"procurement_backend/internal/approvals/transport"
	"procurement_backend/internal/audit"
	"procurement_backend/internal/events"
	"procurement_backend/platform/apperr"
	"procurement_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	entityQuote    = "quote"
	entityApproval = "approval"
)

// Repository is the persistence the approval gate needs.
type Repository interface {
	LevelStore
	GetCandidate(ctx context.Context, tenantID, quoteID, responseID uuid.UUID) (*repository.Candidate, error)
	ActiveUsers(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	Award(ctx context.Context, quoteID, responseID uuid.UUID) ([]uuid.UUID, error)
	RequestApproval(ctx context.Context, p repository.RequestParams) ([]repository.Approval, error)
	GetApproval(ctx context.Context, tenantID, approvalID uuid.UUID) (*repository.Approval, error)
	Decide(ctx context.Context, p repository.DecideParams) (*repository.Decision, error)
	RejectProposal(ctx context.Context, quoteID, responseID uuid.UUID) error
}

// Auditor writes audit records. Implemented by audit.Repository.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Service runs the approval workflow gate.
type Service struct {
	repo     Repository
	rules    RuleEvaluator
	auditor  Auditor
	eventBus events.Bus
	log      *logger.Logger
}

// New creates the approval service. A nil rules evaluator uses the
// tenant's stored approval levels.
func New(repo Repository, rules RuleEvaluator, auditor Auditor, eventBus events.Bus, log *logger.Logger) *Service {
	if rules == nil {
		rules = NewLevelRules(repo)
	}
	return &Service{
		repo:     repo,
		rules:    rules,
		auditor:  auditor,
		eventBus: eventBus,
		log:      log.WithComponent("approvals"),
	}
}

// SelectProposalForAward picks responseID as the winner of quoteID. Below
// every approval level the award is immediate; otherwise the proposal waits
// for the level's active approvers. A level whose approvers are all
// inactive or unknown is auto-approved with a critical audit entry and a
// warning in the result, so the quote never waits on nobody.
func (s *Service) SelectProposalForAward(ctx context.Context, tenantID, actorID, quoteID, responseID uuid.UUID, comments string) (*transport.AwardResponse, error) {
	c, err := s.repo.GetCandidate(ctx, tenantID, quoteID, responseID)
	if err != nil {
		return nil, err
	}
	switch c.QuoteStatus {
	case repository.QuoteStatusSent, repository.QuoteStatusAwaitingAIApproval:
	case repository.QuoteStatusPendingApproval:
		return nil, apperr.Conflict("quote is already awaiting approval")
	default:
		return nil, apperr.Conflict("quote in status " + c.QuoteStatus + " cannot be awarded")
	}
	if c.ResponseStatus != repository.ResponseStatusPending {
		return nil, apperr.Conflict("proposal in status " + c.ResponseStatus + " cannot be awarded")
	}

	level, err := s.rules.Evaluate(ctx, tenantID, c.Amount)
	if err != nil {
		return nil, err
	}
	comments = strings.TrimSpace(comments)
	out := &transport.AwardResponse{QuoteID: quoteID, ResponseID: responseID, Amount: c.Amount}

	if level == nil {
		if err := s.finalize(ctx, c, &actorID, false, comments); err != nil {
			return nil, err
		}
		out.QuoteStatus = repository.QuoteStatusApproved
		return out, nil
	}

	out.Level = level.Name
	approvers, err := s.validApprovers(ctx, tenantID, level)
	if err != nil {
		return nil, err
	}

	if len(approvers) == 0 {
		out.AutoApproved = true
		out.Warning = fmt.Sprintf("approval level %q has no active approvers; the proposal was approved automatically", level.Name)
		s.record(ctx, audit.Entry{
			OrganizationID: &tenantID,
			ActorID:        &actorID,
			Action:         audit.ActionAutoApprovedNoApprovers,
			EntityType:     entityQuote,
			EntityID:       &quoteID,
			Severity:       audit.SeverityCritical,
			Details: map[string]any{
				"responseId":          responseID,
				"amount":              c.Amount,
				"levelId":             level.ID,
				"levelName":           level.Name,
				"configuredApprovers": level.ApproverIDs,
			},
		})
		s.log.ErrorContext(ctx, "approval level without active approvers, auto-approving",
			"quote_id", quoteID, "level", level.Name)
		if err := s.finalize(ctx, c, &actorID, true, comments); err != nil {
			return nil, err
		}
		out.QuoteStatus = repository.QuoteStatusApproved
		return out, nil
	}

	approvals, err := s.repo.RequestApproval(ctx, repository.RequestParams{
		OrganizationID: tenantID,
		QuoteID:        quoteID,
		ResponseID:     responseID,
		LevelID:        level.ID,
		ApproverIDs:    approvers,
	})
	if err != nil {
		return nil, err
	}

	pending := make([]events.PendingApproval, len(approvals))
	for i, a := range approvals {
		out.ApprovalIDs = append(out.ApprovalIDs, a.ID)
		pending[i] = events.PendingApproval{ApprovalID: a.ID, ApproverID: a.ApproverID}
	}
	out.ApprovalRequired = true
	out.ApproversNotified = len(approvals)
	out.QuoteStatus = repository.QuoteStatusPendingApproval

	s.record(ctx, audit.Entry{
		OrganizationID: &tenantID,
		ActorID:        &actorID,
		Action:         audit.ActionApprovalRequested,
		EntityType:     entityQuote,
		EntityID:       &quoteID,
		Details: map[string]any{
			"responseId": responseID,
			"amount":     c.Amount,
			"levelName":  level.Name,
			"approvers":  approvers,
			"comments":   comments,
		},
	})
	s.publish(ctx, events.ApprovalRequested{
		BaseEvent:    events.NewBaseEvent(),
		QuoteID:      quoteID,
		ResponseID:   responseID,
		TenantID:     tenantID,
		QuoteTitle:   c.QuoteTitle,
		SupplierName: c.SupplierName,
		Amount:       c.Amount,
		Approvals:    pending,
	})
	s.log.InfoContext(ctx, "proposal routed to approval",
		"quote_id", quoteID, "level", level.Name, "approvers", len(approvals))
	return out, nil
}

// validApprovers keeps the level's approvers that are active users of the
// tenant, in configured order.
func (s *Service) validApprovers(ctx context.Context, tenantID uuid.UUID, level *repository.Level) ([]uuid.UUID, error) {
	active, err := s.repo.ActiveUsers(ctx, tenantID, level.ApproverIDs)
	if err != nil {
		return nil, err
	}
	ok := make(map[uuid.UUID]bool, len(active))
	for _, id := range active {
		ok[id] = true
	}

	var out []uuid.UUID
	seen := make(map[uuid.UUID]bool, len(level.ApproverIDs))
	for _, id := range level.ApproverIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if !ok[id] {
			s.log.WarnContext(ctx, "skipping approver that is not an active user",
				"approver_id", id, "level", level.Name)
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// DecideApproval records the caller's vote. Any rejection rejects the
// proposal and the quote; the last approval awards the proposal.
func (s *Service) DecideApproval(ctx context.Context, tenantID, actorID, approvalID uuid.UUID, approve bool, comments string) (*transport.DecisionResponse, error) {
	a, err := s.repo.GetApproval(ctx, tenantID, approvalID)
	if err != nil {
		return nil, err
	}
	if a.ApproverID != actorID {
		return nil, apperr.Forbidden("only the assigned approver can decide this approval")
	}

	status := repository.StatusRejected
	if approve {
		status = repository.StatusApproved
	}
	comments = strings.TrimSpace(comments)
	d, err := s.repo.Decide(ctx, repository.DecideParams{
		ApprovalID: approvalID,
		ApproverID: actorID,
		Status:     status,
		Comments:   comments,
	})
	if err != nil {
		return nil, err
	}

	out := &transport.DecisionResponse{
		ApprovalID:  approvalID,
		Status:      status,
		Remaining:   d.Remaining,
		QuoteStatus: repository.QuoteStatusPendingApproval,
	}
	s.record(ctx, audit.Entry{
		OrganizationID: &tenantID,
		ActorID:        &actorID,
		Action:         audit.ActionApprovalDecided,
		EntityType:     entityApproval,
		EntityID:       &approvalID,
		Details: map[string]any{
			"quoteId":    a.QuoteID,
			"responseId": a.ResponseID,
			"status":     status,
			"comments":   comments,
			"remaining":  d.Remaining,
		},
	})

	switch {
	case !approve:
		if err := s.repo.RejectProposal(ctx, a.QuoteID, a.ResponseID); err != nil {
			return nil, err
		}
		out.QuoteStatus = repository.QuoteStatusRejected
		out.Remaining = 0
		s.log.InfoContext(ctx, "proposal rejected by approver", "quote_id", a.QuoteID, "approval_id", approvalID)
	case d.Remaining == 0:
		c, err := s.repo.GetCandidate(ctx, tenantID, a.QuoteID, a.ResponseID)
		if err != nil {
			return nil, err
		}
		if err := s.finalize(ctx, c, &actorID, false, comments); err != nil {
			return nil, err
		}
		out.QuoteStatus = repository.QuoteStatusApproved
		out.Finalized = true
	}
	return out, nil
}

// finalize makes the award binding and announces it.
func (s *Service) finalize(ctx context.Context, c *repository.Candidate, actorID *uuid.UUID, autoApproved bool, comments string) error {
	rejected, err := s.repo.Award(ctx, c.QuoteID, c.ResponseID)
	if err != nil {
		return err
	}

	s.record(ctx, audit.Entry{
		OrganizationID: &c.OrganizationID,
		ActorID:        actorID,
		Action:         audit.ActionProposalAwarded,
		EntityType:     entityQuote,
		EntityID:       &c.QuoteID,
		Details: map[string]any{
			"responseId":        c.ResponseID,
			"supplierId":        c.SupplierID,
			"amount":            c.Amount,
			"autoApproved":      autoApproved,
			"rejectedSuppliers": rejected,
			"comments":          comments,
		},
	})
	s.publish(ctx, events.ProposalAwarded{
		BaseEvent:        events.NewBaseEvent(),
		QuoteID:          c.QuoteID,
		ResponseID:       c.ResponseID,
		TenantID:         c.OrganizationID,
		WinnerSupplierID: c.SupplierID,
		Amount:           c.Amount,
		RejectedIDs:      rejected,
		AutoApproved:     autoApproved,
	})
	s.log.InfoContext(ctx, "proposal awarded",
		"quote_id", c.QuoteID, "response_id", c.ResponseID, "rejected", len(rejected), "auto_approved", autoApproved)
	return nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.eventBus != nil {
		s.eventBus.Publish(ctx, event)
	}
}

func (s *Service) record(ctx context.Context, e audit.Entry) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(ctx, e); err != nil {
		s.log.ErrorContext(ctx, "audit record failed", "action", e.Action, "error", err)
	}
}
