package repository

import (
	"context"
	"errors"
	"time"

	"procurement_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ── Domain Models ─────────────────────────────────────────────────────────────

// Approval statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Response statuses touched by the gate.
const (
	ResponseStatusPending  = "pending"
	ResponseStatusSelected = "selected"
	ResponseStatusApproved = "approved"
	ResponseStatusRejected = "rejected"
)

// Quote statuses touched by the gate.
const (
	QuoteStatusSent               = "sent"
	QuoteStatusAwaitingAIApproval = "awaiting_ai_approval"
	QuoteStatusPendingApproval    = "pending_approval"
	QuoteStatusApproved           = "approved"
	QuoteStatusRejected           = "rejected"
)

// Candidate is a proposal being considered for award with its quote.
// Amount is the negotiated amount when a negotiation on the proposal
// settled, otherwise the proposal amount.
type Candidate struct {
	QuoteID        uuid.UUID
	OrganizationID uuid.UUID
	QuoteTitle     string
	QuoteStatus    string
	ResponseID     uuid.UUID
	ResponseStatus string
	SupplierID     uuid.UUID
	SupplierName   string
	Amount         float64
}

// Level is an approval level of a tenant.
type Level struct {
	ID          uuid.UUID
	Name        string
	MinAmount   float64
	MaxAmount   *float64
	ApproverIDs []uuid.UUID
}

// Approval is one approver's pending or decided vote on a proposal.
type Approval struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	QuoteID        uuid.UUID
	ResponseID     uuid.UUID
	LevelID        *uuid.UUID
	ApproverID     uuid.UUID
	Status         string
	Comments       string
	DecidedAt      *time.Time
	CreatedAt      time.Time
}

// RequestParams routes a proposal to its approvers.
type RequestParams struct {
	OrganizationID uuid.UUID
	QuoteID        uuid.UUID
	ResponseID     uuid.UUID
	LevelID        uuid.UUID
	ApproverIDs    []uuid.UUID
}

// DecideParams records one approver's vote.
type DecideParams struct {
	ApprovalID uuid.UUID
	ApproverID uuid.UUID
	Status     string
	Comments   string
}

// Decision is a recorded vote and how many votes are still open.
type Decision struct {
	Approval
	Remaining int
}

// ── Repository ────────────────────────────────────────────────────────────────

const (
	opGetCandidate   = "approvals.repository.get_candidate"
	opListLevels     = "approvals.repository.list_levels"
	opActiveUsers    = "approvals.repository.active_users"
	opAward          = "approvals.repository.award"
	opRequest        = "approvals.repository.request"
	opGetApproval    = "approvals.repository.get_approval"
	opDecide         = "approvals.repository.decide"
	opRejectProposal = "approvals.repository.reject_proposal"

	errNotConfigured    = "approvals repository not configured"
	approvalNotFoundMsg = "approval not found"
)

// Repository persists approval levels, approval rows and award outcomes.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new approvals repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetCandidate loads a tenant's proposal together with its quote.
func (r *Repository) GetCandidate(ctx context.Context, tenantID, quoteID, responseID uuid.UUID) (*Candidate, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errNotConfigured).WithOp(opGetCandidate)
	}
	var c Candidate
	err := r.pool.QueryRow(ctx, `
		SELECT q.id, q.organization_id, q.title, q.status,
		       qr.id, qr.status, s.id, s.name,
		       COALESCE((
		           SELECT n.negotiated_amount FROM negotiations n
		           WHERE n.response_id = qr.id AND n.status IN ('pending_approval', 'approved')
		             AND n.negotiated_amount IS NOT NULL
		       ), qr.amount)::float8
		FROM quote_responses qr
		JOIN quotes q ON q.id = qr.quote_id
		JOIN suppliers s ON s.id = qr.supplier_id
		WHERE qr.id = $1 AND q.id = $2 AND q.organization_id = $3`,
		responseID, quoteID, tenantID,
	).Scan(&c.QuoteID, &c.OrganizationID, &c.QuoteTitle, &c.QuoteStatus,
		&c.ResponseID, &c.ResponseStatus, &c.SupplierID, &c.SupplierName, &c.Amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("proposal not found for this quote").WithOp(opGetCandidate)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load proposal", err).WithOp(opGetCandidate)
	}
	return &c, nil
}

// ListActiveLevels returns the tenant's active approval levels.
func (r *Repository) ListActiveLevels(ctx context.Context, tenantID uuid.UUID) ([]Level, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errNotConfigured).WithOp(opListLevels)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, min_amount::float8, max_amount::float8, approver_ids
		FROM approval_levels
		WHERE organization_id = $1 AND is_active
		ORDER BY min_amount DESC, id`, tenantID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list approval levels", err).WithOp(opListLevels)
	}
	defer rows.Close()

	var out []Level
	for rows.Next() {
		var l Level
		if err := rows.Scan(&l.ID, &l.Name, &l.MinAmount, &l.MaxAmount, &l.ApproverIDs); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan approval level", err).WithOp(opListLevels)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list approval levels", err).WithOp(opListLevels)
	}
	return out, nil
}

// ActiveUsers returns the subset of ids that are active users of the tenant.
func (r *Repository) ActiveUsers(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errNotConfigured).WithOp(opActiveUsers)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM users
		WHERE organization_id = $1 AND is_active AND id = ANY($2::uuid[])`, tenantID, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "load approvers", err).WithOp(opActiveUsers)
	}
	defer rows.Close()

	out, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "load approvers", err).WithOp(opActiveUsers)
	}
	return out, nil
}

// Award approves the proposal and the quote and rejects every competing
// proposal that is still open, in one transaction. It returns the
// suppliers of the rejected proposals. The partial unique index on
// approved responses turns a concurrent second award into a conflict.
func (r *Repository) Award(ctx context.Context, quoteID, responseID uuid.UUID) ([]uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errNotConfigured).WithOp(opAward)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "begin transaction", err).WithOp(opAward)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE quote_responses SET status = 'approved', updated_at = now()
		WHERE id = $1 AND quote_id = $2 AND status IN ('pending', 'selected')`, responseID, quoteID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperr.Conflict("quote already has an approved proposal").WithOp(opAward)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "approve proposal", err).WithOp(opAward)
	}
	if tag.RowsAffected() != 1 {
		return nil, apperr.Conflict("proposal is no longer open for award").WithOp(opAward)
	}

	rows, err := tx.Query(ctx, `
		UPDATE quote_responses SET status = 'rejected', updated_at = now()
		WHERE quote_id = $1 AND id <> $2 AND status IN ('pending', 'selected')
		RETURNING supplier_id`, quoteID, responseID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "reject competing proposals", err).WithOp(opAward)
	}
	rejected, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "reject competing proposals", err).WithOp(opAward)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE quotes SET status = 'approved', updated_at = now() WHERE id = $1`, quoteID); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "approve quote", err).WithOp(opAward)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "commit award", err).WithOp(opAward)
	}
	return rejected, nil
}

// RequestApproval marks the proposal selected, moves the quote to
// pending_approval and opens one pending approval per approver. A repeated
// request for the same approver reopens that approver's row.
func (r *Repository) RequestApproval(ctx context.Context, p RequestParams) ([]Approval, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errNotConfigured).WithOp(opRequest)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "begin transaction", err).WithOp(opRequest)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE quote_responses SET status = 'selected', updated_at = now()
		WHERE id = $1 AND quote_id = $2 AND status IN ('pending', 'selected')`, p.ResponseID, p.QuoteID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "select proposal", err).WithOp(opRequest)
	}
	if tag.RowsAffected() != 1 {
		return nil, apperr.Conflict("proposal is no longer open for award").WithOp(opRequest)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE quotes SET status = 'pending_approval', updated_at = now() WHERE id = $1`, p.QuoteID); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "move quote to approval", err).WithOp(opRequest)
	}

	out := make([]Approval, 0, len(p.ApproverIDs))
	for _, approverID := range p.ApproverIDs {
		a, err := scanApproval(tx.QueryRow(ctx, `
			INSERT INTO approvals (organization_id, quote_id, response_id, level_id, approver_id)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (quote_id, approver_id) DO UPDATE
			SET response_id = EXCLUDED.response_id,
			    level_id = EXCLUDED.level_id,
			    status = 'pending',
			    comments = '',
			    decided_at = NULL
			RETURNING `+approvalColumns,
			p.OrganizationID, p.QuoteID, p.ResponseID, p.LevelID, approverID))
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "insert approval", err).WithOp(opRequest)
		}
		out = append(out, *a)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "commit approval request", err).WithOp(opRequest)
	}
	return out, nil
}

const approvalColumns = `
	id, organization_id, quote_id, response_id, level_id, approver_id, status, comments, decided_at, created_at`

func scanApproval(row pgx.Row) (*Approval, error) {
	var a Approval
	if err := row.Scan(&a.ID, &a.OrganizationID, &a.QuoteID, &a.ResponseID, &a.LevelID,
		&a.ApproverID, &a.Status, &a.Comments, &a.DecidedAt, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetApproval loads a tenant's approval row.
func (r *Repository) GetApproval(ctx context.Context, tenantID, approvalID uuid.UUID) (*Approval, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errNotConfigured).WithOp(opGetApproval)
	}
	a, err := scanApproval(r.pool.QueryRow(ctx, `
		SELECT `+approvalColumns+` FROM approvals WHERE id = $1 AND organization_id = $2`,
		approvalID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(approvalNotFoundMsg).WithOp(opGetApproval)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load approval", err).WithOp(opGetApproval)
	}
	return a, nil
}

// Decide records a vote on a pending approval owned by the approver and
// counts the votes still pending for the same proposal.
func (r *Repository) Decide(ctx context.Context, p DecideParams) (*Decision, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errNotConfigured).WithOp(opDecide)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "begin transaction", err).WithOp(opDecide)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a, err := scanApproval(tx.QueryRow(ctx, `
		UPDATE approvals
		SET status = $3, comments = $4, decided_at = now()
		WHERE id = $1 AND approver_id = $2 AND status = 'pending'
		RETURNING `+approvalColumns,
		p.ApprovalID, p.ApproverID, p.Status, p.Comments))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Conflict("approval already decided").WithOp(opDecide)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "record decision", err).WithOp(opDecide)
	}

	d := Decision{Approval: *a}
	if err := tx.QueryRow(ctx, `
		SELECT count(*) FROM approvals
		WHERE quote_id = $1 AND response_id = $2 AND status = 'pending'`,
		a.QuoteID, a.ResponseID).Scan(&d.Remaining); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "count open approvals", err).WithOp(opDecide)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "commit decision", err).WithOp(opDecide)
	}
	return &d, nil
}

// RejectProposal rejects a selected proposal and its quote and closes the
// votes still open on it.
func (r *Repository) RejectProposal(ctx context.Context, quoteID, responseID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errNotConfigured).WithOp(opRejectProposal)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "begin transaction", err).WithOp(opRejectProposal)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE quote_responses SET status = 'rejected', updated_at = now()
		WHERE id = $1 AND quote_id = $2 AND status = 'selected'`, responseID, quoteID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "reject proposal", err).WithOp(opRejectProposal)
	}
	if tag.RowsAffected() != 1 {
		return apperr.Conflict("proposal is no longer awaiting approval").WithOp(opRejectProposal)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE quotes SET status = 'rejected', updated_at = now()
		WHERE id = $1 AND status = 'pending_approval'`, quoteID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "reject quote", err).WithOp(opRejectProposal)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE approvals SET status = 'rejected', comments = 'closed after rejection', decided_at = now()
		WHERE quote_id = $1 AND response_id = $2 AND status = 'pending'`, quoteID, responseID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "close approvals", err).WithOp(opRejectProposal)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindInternal, "commit rejection", err).WithOp(opRejectProposal)
	}
	return nil
}
