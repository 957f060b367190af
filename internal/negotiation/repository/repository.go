package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"procurement_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ── Domain Models ─────────────────────────────────────────────────────────────

// Negotiation statuses.
const (
	StatusAnalyzed         = "analyzed"
	StatusNegotiating      = "negotiating"
	StatusAwaitingApproval = "awaiting_approval"
	StatusPendingApproval  = "pending_approval"
	StatusApproved         = "approved"
	StatusRejected         = "rejected"
	StatusFailed           = "failed"
)

// Message roles.
const (
	RoleAI       = "ai"
	RoleSupplier = "supplier"
)

const quoteStatusAwaitingAIApproval = "awaiting_ai_approval"

// Strategy is the stored outcome of the analysis step.
type Strategy struct {
	Viable           bool    `json:"viable"`
	PotentialPercent float64 `json:"potentialPercent"`
	TargetDiscount   float64 `json:"targetDiscount"`
	Reasoning        string  `json:"reasoning"`
	Source           string  `json:"source"`
	LowestAmount     float64 `json:"lowestAmount"`
	MeanAmount       float64 `json:"meanAmount"`
	ProposalCount    int     `json:"proposalCount"`
}

// Negotiation is the database model of a quote's negotiation.
type Negotiation struct {
	ID                 uuid.UUID
	QuoteID            uuid.UUID
	OrganizationID     uuid.UUID
	SupplierID         uuid.UUID
	ResponseID         *uuid.UUID
	OriginalAmount     float64
	NegotiatedAmount   *float64
	DiscountPercentage *float64
	Status             string
	Strategy           Strategy
	Analysis           string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Message is one entry of the append-only conversation log.
type Message struct {
	Seq       int             `json:"seq"`
	Role      string          `json:"role"`
	Message   string          `json:"message"`
	Channel   string          `json:"channel"`
	Scope     string          `json:"scope,omitempty"`
	Parsed    json.RawMessage `json:"parsed,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Quote is the slice of a quote the negotiation flow reads.
type Quote struct {
	ID               uuid.UUID
	OrganizationID   uuid.UUID
	OrganizationName string
	Title            string
	Status           string
}

// Proposal is a received quote response with its supplier name.
type Proposal struct {
	ID           uuid.UUID
	SupplierID   uuid.UUID
	SupplierName string
	Amount       float64
}

// Supplier is the contact view of the negotiation counterpart.
type Supplier struct {
	ID       uuid.UUID
	Name     string
	Phone    string
	WhatsApp string
}

// Active is a negotiating thread with what inbound matching needs.
type Active struct {
	Negotiation
	Supplier Supplier
}

// AnalysisParams is the outcome of Analyze to persist.
type AnalysisParams struct {
	QuoteID        uuid.UUID
	OrganizationID uuid.UUID
	SupplierID     uuid.UUID
	ResponseID     uuid.UUID
	OriginalAmount float64
	Strategy       Strategy
	Analysis       string
}

// InitiationParams records a successful opening message.
type InitiationParams struct {
	NegotiationID  uuid.UUID
	QuoteID        uuid.UUID
	Message        string
	Channel        string
	Scope          string
	ProposedAmount float64
	Discount       float64
}

// TransitionParams moves a negotiating thread after a classified reply.
type TransitionParams struct {
	NegotiationID    uuid.UUID
	To               string
	NegotiatedAmount *float64
	Discount         *float64
}

// ── Repository ────────────────────────────────────────────────────────────────

const (
	opGetQuote       = "negotiation.repository.get_quote"
	opListProposals  = "negotiation.repository.list_proposals"
	opUpsertAnalysis = "negotiation.repository.upsert_analysis"
	opGet            = "negotiation.repository.get"
	opGetSupplier    = "negotiation.repository.get_supplier"
	opListMessages   = "negotiation.repository.list_messages"
	opAppend         = "negotiation.repository.append_message"
	opSetParsed      = "negotiation.repository.set_parsed"
	opInitiate       = "negotiation.repository.initiate"
	opListActive     = "negotiation.repository.list_active"
	opTransition     = "negotiation.repository.transition"
	opSetStatus      = "negotiation.repository.set_status"
)

const negotiationColumns = `n.id, n.quote_id, n.organization_id, n.supplier_id, n.response_id,
	n.original_amount::float8, n.negotiated_amount::float8, n.discount_percentage::float8,
	n.status, n.strategy, n.analysis, n.created_at, n.updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ready(op string) error {
	if r == nil || r.pool == nil {
		return apperr.Internal("negotiation repository not configured").WithOp(op)
	}
	return nil
}

// GetQuote loads a tenant's quote.
func (r *Repository) GetQuote(ctx context.Context, tenantID, quoteID uuid.UUID) (*Quote, error) {
	if err := r.ready(opGetQuote); err != nil {
		return nil, err
	}
	var q Quote
	err := r.pool.QueryRow(ctx, `
		SELECT q.id, q.organization_id, o.name, q.title, q.status
		FROM quotes q
		JOIN organizations o ON o.id = q.organization_id
		WHERE q.id = $1 AND q.organization_id = $2`,
		quoteID, tenantID,
	).Scan(&q.ID, &q.OrganizationID, &q.OrganizationName, &q.Title, &q.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("quote not found").WithOp(opGetQuote)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load quote", err).WithOp(opGetQuote)
	}
	return &q, nil
}

// ListProposals returns every live proposal of a quote, cheapest first.
func (r *Repository) ListProposals(ctx context.Context, quoteID uuid.UUID) ([]Proposal, error) {
	if err := r.ready(opListProposals); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT qr.id, qr.supplier_id, s.name, qr.amount::float8
		FROM quote_responses qr
		JOIN suppliers s ON s.id = qr.supplier_id
		WHERE qr.quote_id = $1 AND qr.status IN ('pending', 'selected')
		ORDER BY qr.amount ASC, qr.created_at ASC`,
		quoteID,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list proposals", err).WithOp(opListProposals)
	}
	defer rows.Close()

	var out []Proposal
	for rows.Next() {
		var p Proposal
		if err := rows.Scan(&p.ID, &p.SupplierID, &p.SupplierName, &p.Amount); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to scan proposal", err).WithOp(opListProposals)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list proposals", err).WithOp(opListProposals)
	}
	return out, nil
}

// UpsertAnalysis creates the quote's negotiation or refreshes it while it
// is still only analyzed. A thread that already moved on is a Conflict.
func (r *Repository) UpsertAnalysis(ctx context.Context, p AnalysisParams) (*Negotiation, error) {
	if err := r.ready(opUpsertAnalysis); err != nil {
		return nil, err
	}
	strategy, err := json.Marshal(p.Strategy)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to encode strategy", err).WithOp(opUpsertAnalysis)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO negotiations AS n (quote_id, organization_id, supplier_id, response_id, original_amount, status, strategy, analysis)
		VALUES ($1, $2, $3, $4, $5, 'analyzed', $6, $7)
		ON CONFLICT (quote_id) DO UPDATE SET
			supplier_id = EXCLUDED.supplier_id,
			response_id = EXCLUDED.response_id,
			original_amount = EXCLUDED.original_amount,
			negotiated_amount = NULL,
			discount_percentage = NULL,
			strategy = EXCLUDED.strategy,
			analysis = EXCLUDED.analysis,
			updated_at = now()
		WHERE n.status = 'analyzed'
		RETURNING `+negotiationColumns,
		p.QuoteID, p.OrganizationID, p.SupplierID, p.ResponseID, p.OriginalAmount, strategy, p.Analysis,
	)
	n, err := scanNegotiation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Conflict("negotiation already started for this quote").WithOp(opUpsertAnalysis)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to save analysis", err).WithOp(opUpsertAnalysis)
	}
	return n, nil
}

// Get loads a tenant's negotiation.
func (r *Repository) Get(ctx context.Context, tenantID, negotiationID uuid.UUID) (*Negotiation, error) {
	if err := r.ready(opGet); err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `SELECT `+negotiationColumns+`
		FROM negotiations n
		WHERE n.id = $1 AND n.organization_id = $2`,
		negotiationID, tenantID,
	)
	n, err := scanNegotiation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("negotiation not found").WithOp(opGet)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load negotiation", err).WithOp(opGet)
	}
	return n, nil
}

// GetSupplier loads the contact fields of a supplier.
func (r *Repository) GetSupplier(ctx context.Context, supplierID uuid.UUID) (*Supplier, error) {
	if err := r.ready(opGetSupplier); err != nil {
		return nil, err
	}
	var s Supplier
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(whatsapp, '')
		FROM suppliers WHERE id = $1`,
		supplierID,
	).Scan(&s.ID, &s.Name, &s.Phone, &s.WhatsApp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("supplier not found").WithOp(opGetSupplier)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load supplier", err).WithOp(opGetSupplier)
	}
	return &s, nil
}

// ListMessages returns the conversation log in order.
func (r *Repository) ListMessages(ctx context.Context, negotiationID uuid.UUID) ([]Message, error) {
	if err := r.ready(opListMessages); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT seq, role, message, channel, COALESCE(scope, ''), parsed, created_at
		FROM negotiation_messages
		WHERE negotiation_id = $1
		ORDER BY seq ASC`,
		negotiationID,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list messages", err).WithOp(opListMessages)
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var m Message
		var parsed []byte
		if err := rows.Scan(&m.Seq, &m.Role, &m.Message, &m.Channel, &m.Scope, &parsed, &m.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to scan message", err).WithOp(opListMessages)
		}
		if len(parsed) > 0 {
			m.Parsed = parsed
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list messages", err).WithOp(opListMessages)
	}
	return out, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// appendSQL allocates the next sequence number under the parent row lock
// and inserts the message in the same statement.
const appendSQL = `
	WITH next AS (
		UPDATE negotiations
		SET message_seq = message_seq + 1, updated_at = now()
		WHERE id = $1
		RETURNING message_seq
	)
	INSERT INTO negotiation_messages (negotiation_id, seq, role, message, channel, scope)
	SELECT $1, next.message_seq, $2, $3, $4, NULLIF($5, '')
	FROM next
	RETURNING seq`

func appendMessage(ctx context.Context, q querier, negotiationID uuid.UUID, role, text, channel, scope string) (int, error) {
	var seq int
	err := q.QueryRow(ctx, appendSQL, negotiationID, role, text, channel, scope).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.NotFound("negotiation not found").WithOp(opAppend)
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "failed to append message", err).WithOp(opAppend)
	}
	return seq, nil
}

// AppendMessage adds a message to the end of the log and returns its seq.
func (r *Repository) AppendMessage(ctx context.Context, negotiationID uuid.UUID, role, text, channel string) (int, error) {
	if err := r.ready(opAppend); err != nil {
		return 0, err
	}
	return appendMessage(ctx, r.pool, negotiationID, role, text, channel, "")
}

// SetMessageParsed stores the classification of an appended message.
func (r *Repository) SetMessageParsed(ctx context.Context, negotiationID uuid.UUID, seq int, parsed any) error {
	if err := r.ready(opSetParsed); err != nil {
		return err
	}
	data, err := json.Marshal(parsed)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to encode classification", err).WithOp(opSetParsed)
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE negotiation_messages SET parsed = $3
		WHERE negotiation_id = $1 AND seq = $2`,
		negotiationID, seq, data,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to store classification", err).WithOp(opSetParsed)
	}
	return nil
}

// Initiate records the delivered opening message and moves the thread to
// negotiating and the quote to awaiting_ai_approval in one transaction.
// Only an analyzed negotiation can be initiated.
func (r *Repository) Initiate(ctx context.Context, p InitiationParams) (*Negotiation, error) {
	if err := r.ready(opInitiate); err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to begin transaction", err).WithOp(opInitiate)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE negotiations n SET
			status = 'negotiating',
			negotiated_amount = $2,
			discount_percentage = $3,
			updated_at = now()
		WHERE n.id = $1 AND n.status = 'analyzed'
		RETURNING `+negotiationColumns,
		p.NegotiationID, p.ProposedAmount, p.Discount,
	)
	n, err := scanNegotiation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Conflict("negotiation is no longer in analyzed status").WithOp(opInitiate)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to start negotiation", err).WithOp(opInitiate)
	}

	if _, err := appendMessage(ctx, tx, p.NegotiationID, RoleAI, p.Message, p.Channel, p.Scope); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE quotes SET status = $2, updated_at = now()
		WHERE id = $1 AND status IN ('sent', 'awaiting_ai_approval')`,
		p.QuoteID, quoteStatusAwaitingAIApproval,
	); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to update quote status", err).WithOp(opInitiate)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to commit negotiation start", err).WithOp(opInitiate)
	}
	return n, nil
}

// ListActive returns every negotiating thread with its supplier, newest first.
func (r *Repository) ListActive(ctx context.Context) ([]Active, error) {
	if err := r.ready(opListActive); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+negotiationColumns+`,
			s.id, s.name, COALESCE(s.phone, ''), COALESCE(s.whatsapp, '')
		FROM negotiations n
		JOIN suppliers s ON s.id = n.supplier_id
		WHERE n.status = 'negotiating'
		ORDER BY n.created_at DESC`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list active negotiations", err).WithOp(opListActive)
	}
	defer rows.Close()

	var out []Active
	for rows.Next() {
		var a Active
		var strategy []byte
		if err := rows.Scan(
			&a.ID, &a.QuoteID, &a.OrganizationID, &a.SupplierID, &a.ResponseID,
			&a.OriginalAmount, &a.NegotiatedAmount, &a.DiscountPercentage,
			&a.Status, &strategy, &a.Analysis, &a.CreatedAt, &a.UpdatedAt,
			&a.Supplier.ID, &a.Supplier.Name, &a.Supplier.Phone, &a.Supplier.WhatsApp,
		); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to scan negotiation", err).WithOp(opListActive)
		}
		_ = json.Unmarshal(strategy, &a.Strategy)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list active negotiations", err).WithOp(opListActive)
	}
	return out, nil
}

// Transition applies a reply-driven status change only while the thread is
// still negotiating. It reports whether the row changed.
func (r *Repository) Transition(ctx context.Context, p TransitionParams) (bool, error) {
	if err := r.ready(opTransition); err != nil {
		return false, err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE negotiations SET
			status = $2,
			negotiated_amount = COALESCE($3, negotiated_amount),
			discount_percentage = COALESCE($4, discount_percentage),
			updated_at = now()
		WHERE id = $1 AND status = 'negotiating'`,
		p.NegotiationID, p.To, p.NegotiatedAmount, p.Discount,
	)
	if err != nil {
		return false, apperr.Wrap(apperr.KindInternal, "failed to update negotiation", err).WithOp(opTransition)
	}
	return tag.RowsAffected() == 1, nil
}

// SetStatus writes status unconditionally for a tenant's negotiation and
// returns the previous status.
func (r *Repository) SetStatus(ctx context.Context, tenantID, negotiationID uuid.UUID, status string) (string, error) {
	if err := r.ready(opSetStatus); err != nil {
		return "", err
	}
	var previous string
	err := r.pool.QueryRow(ctx, `
		UPDATE negotiations n SET status = $3, updated_at = now()
		FROM negotiations old
		WHERE n.id = $1 AND n.organization_id = $2 AND old.id = n.id
		RETURNING old.status`,
		negotiationID, tenantID, status,
	).Scan(&previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.NotFound("negotiation not found").WithOp(opSetStatus)
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to update negotiation", err).WithOp(opSetStatus)
	}
	return previous, nil
}

func scanNegotiation(row pgx.Row) (*Negotiation, error) {
	var n Negotiation
	var strategy []byte
	if err := row.Scan(
		&n.ID, &n.QuoteID, &n.OrganizationID, &n.SupplierID, &n.ResponseID,
		&n.OriginalAmount, &n.NegotiatedAmount, &n.DiscountPercentage,
		&n.Status, &strategy, &n.Analysis, &n.CreatedAt, &n.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(strategy) > 0 {
		if err := json.Unmarshal(strategy, &n.Strategy); err != nil {
			return nil, err
		}
	}
	return &n, nil
}
