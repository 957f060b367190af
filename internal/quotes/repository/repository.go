package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"procurement_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ── Domain Models ─────────────────────────────────────────────────────────────

// Quote statuses.
const (
	QuoteStatusDraft              = "draft"
	QuoteStatusSent               = "sent"
	QuoteStatusPendingApproval    = "pending_approval"
	QuoteStatusAwaitingAIApproval = "awaiting_ai_approval"
	QuoteStatusApproved           = "approved"
	QuoteStatusRejected           = "rejected"
)

// Supplier status lattice: pending → reminded_once → reminded_twice, with
// responded and declined terminal.
const (
	SupplierStatusPending       = "pending"
	SupplierStatusRemindedOnce  = "reminded_once"
	SupplierStatusRemindedTwice = "reminded_twice"
	SupplierStatusResponded     = "responded"
	SupplierStatusDeclined      = "declined"
)

const (
	// MaxReminders caps reminders per (quote, supplier).
	MaxReminders = 2
	// ReminderCooldown is the minimum gap between two reminders to a pair.
	ReminderCooldown = 24 * time.Hour
)

// Quote is the database model for a request-for-quote.
type Quote struct {
	ID                uuid.UUID  `db:"id"`
	OrganizationID    uuid.UUID  `db:"organization_id"`
	OrganizationName  string     `db:"organization_name"`
	Title             string     `db:"title"`
	Status            string     `db:"status"`
	Items             []Item     `db:"items"`
	TargetAmount      *float64   `db:"target_amount"`
	Deadline          *time.Time `db:"deadline"`
	SentSupplierCount int        `db:"sent_supplier_count"`
	SentAt            *time.Time `db:"sent_at"`
	CreatedAt         time.Time  `db:"created_at"`
}

// Item is one requested line of a quote.
type Item struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit,omitempty"`
}

// Supplier is the contact view of a supplier.
type Supplier struct {
	ID                 uuid.UUID `db:"id"`
	Name               string    `db:"name"`
	Phone              string    `db:"phone"`
	WhatsApp           string    `db:"whatsapp"`
	Email              string    `db:"email"`
	IsCertified        bool      `db:"is_certified"`
	RegistrationStatus string    `db:"registration_status"`
}

// Registered reports whether the supplier completed onboarding.
func (s Supplier) Registered() bool {
	return s.RegistrationStatus == "active"
}

// ChatNumber returns the number to message, preferring the whatsapp field.
func (s Supplier) ChatNumber() string {
	if s.WhatsApp != "" {
		return s.WhatsApp
	}
	return s.Phone
}

// SupplierStatus is one Quote-Supplier-Status row joined with its supplier.
type SupplierStatus struct {
	ID             uuid.UUID  `db:"id"`
	QuoteID        uuid.UUID  `db:"quote_id"`
	Supplier       Supplier   `db:"supplier"`
	Status         string     `db:"status"`
	ReminderCount  int        `db:"reminder_count"`
	LastReminderAt *time.Time `db:"last_reminder_at"`
	RespondedAt    *time.Time `db:"responded_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// ReminderCandidate is a status row still waiting on a supplier, with the
// quote context needed to render a reminder.
type ReminderCandidate struct {
	SupplierStatus
	Quote Quote
}

// Response is a supplier's proposal.
type Response struct {
	ID           uuid.UUID `db:"id"`
	QuoteID      uuid.UUID `db:"quote_id"`
	SupplierID   uuid.UUID `db:"supplier_id"`
	Amount       float64   `db:"amount"`
	DeliveryDays *int      `db:"delivery_days"`
	Terms        string    `db:"terms"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
}

// SubmitParams carries a proposal submitted through a response link.
type SubmitParams struct {
	QuoteID      uuid.UUID
	SupplierID   uuid.UUID
	Amount       float64
	DeliveryDays *int
	Terms        string
}

// ── Repository ────────────────────────────────────────────────────────────────

const (
	opGetQuote          = "quotes.repository.get_quote"
	opListSuppliers     = "quotes.repository.list_suppliers"
	opGetSupplier       = "quotes.repository.get_supplier"
	opUpsertStatus      = "quotes.repository.upsert_status"
	opFinalize          = "quotes.repository.finalize"
	opListStatuses      = "quotes.repository.list_statuses"
	opReminderCands     = "quotes.repository.reminder_candidates"
	opMarkReminded      = "quotes.repository.mark_reminded"
	opReleaseReminder   = "quotes.repository.release_reminder"
	opSubmitResponse    = "quotes.repository.submit_response"
	opDecline           = "quotes.repository.decline"
	opGetSupplierStatus = "quotes.repository.get_supplier_status"
	opGetResponse       = "quotes.repository.get_response"

	quoteNotFoundMsg    = "quote not found"
	supplierNotFoundMsg = "supplier not found"
	errNotConfigured    = "quotes repository not configured"
)

// Repository provides database operations for dispatch and status tracking.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new quotes repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const quoteColumns = `
	q.id, q.organization_id, o.name, q.title, q.status, q.items, q.target_amount, q.deadline,
	q.sent_supplier_count, q.sent_at, q.created_at`

func scanQuote(row pgx.Row, q *Quote) error {
	var items []byte
	if err := row.Scan(
		&q.ID, &q.OrganizationID, &q.OrganizationName, &q.Title, &q.Status, &items, &q.TargetAmount,
		&q.Deadline, &q.SentSupplierCount, &q.SentAt, &q.CreatedAt,
	); err != nil {
		return err
	}
	return decodeItems(items, &q.Items)
}

func decodeItems(raw []byte, items *[]Item) error {
	if len(raw) == 0 {
		*items = nil
		return nil
	}
	return json.Unmarshal(raw, items)
}

// GetQuote loads a quote owned by tenantID.
func (r *Repository) GetQuote(ctx context.Context, tenantID, quoteID uuid.UUID) (*Quote, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errNotConfigured).WithOp(opGetQuote)
	}
	var q Quote
	err := scanQuote(r.pool.QueryRow(ctx, `
		SELECT `+quoteColumns+`
		FROM quotes q JOIN organizations o ON o.id = q.organization_id
		WHERE q.id = $1 AND q.organization_id = $2`, quoteID, tenantID), &q)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(quoteNotFoundMsg).WithOp(opGetQuote)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load quote", err).WithOp(opGetQuote)
	}
	return &q, nil
}

// GetQuoteByID loads a quote without tenant scoping; callers must have
// proven access some other way (a signed link).
func (r *Repository) GetQuoteByID(ctx context.Context, quoteID uuid.UUID) (*Quote, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errNotConfigured).WithOp(opGetQuote)
	}
	var q Quote
	err := scanQuote(r.pool.QueryRow(ctx, `
		SELECT `+quoteColumns+`
		FROM quotes q JOIN organizations o ON o.id = q.organization_id
		WHERE q.id = $1`, quoteID), &q)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(quoteNotFoundMsg).WithOp(opGetQuote)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load quote", err).WithOp(opGetQuote)
	}
	return &q, nil
}

const supplierColumns = `
	s.id, s.name, COALESCE(s.phone, ''), COALESCE(s.whatsapp, ''), COALESCE(s.email, ''),
	s.is_certified, s.registration_status`

func scanSupplier(row pgx.Row, s *Supplier) error {
	return row.Scan(&s.ID, &s.Name, &s.Phone, &s.WhatsApp, &s.Email, &s.IsCertified, &s.RegistrationStatus)
}

// ListSuppliersForDispatch returns active suppliers visible to the tenant
// (its own and global ones). An empty ids list selects all of them.
func (r *Repository) ListSuppliersForDispatch(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Supplier, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errNotConfigured).WithOp(opListSuppliers)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+supplierColumns+`
		FROM suppliers s
		WHERE s.is_active
		  AND (s.organization_id = $1 OR s.organization_id IS NULL)
		  AND (COALESCE(cardinality($2::uuid[]), 0) = 0 OR s.id = ANY($2::uuid[]))
		ORDER BY s.name, s.id`, tenantID, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list suppliers", err).WithOp(opListSuppliers)
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		var s Supplier
		if err := scanSupplier(rows, &s); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan supplier", err).WithOp(opListSuppliers)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list suppliers", err).WithOp(opListSuppliers)
	}
	return out, nil
}

// GetSupplier loads one supplier regardless of tenant.
func (r *Repository) GetSupplier(ctx context.Context, supplierID uuid.UUID) (*Supplier, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errNotConfigured).WithOp(opGetSupplier)
	}
	var s Supplier
	err := scanSupplier(r.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers s WHERE s.id = $1`, supplierID), &s)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(supplierNotFoundMsg).WithOp(opGetSupplier)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load supplier", err).WithOp(opGetSupplier)
	}
	return &s, nil
}

// UpsertSupplierStatus creates the status row for a dispatched pair. An
// existing row keeps its status so a re-dispatch never regresses it.
func (r *Repository) UpsertSupplierStatus(ctx context.Context, quoteID, supplierID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errNotConfigured).WithOp(opUpsertStatus)
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO quote_supplier_status (quote_id, supplier_id, status)
		VALUES ($1, $2, 'pending')
		ON CONFLICT (quote_id, supplier_id) DO UPDATE SET updated_at = now()`,
		quoteID, supplierID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "upsert supplier status", err).WithOp(opUpsertStatus)
	}
	return nil
}

// FinalizeDispatch marks the quote sent and records how many suppliers have
// been reached across every dispatch, which is the number of status rows.
// sent_at keeps the first dispatch time so reminder age stays stable.
func (r *Repository) FinalizeDispatch(ctx context.Context, tenantID, quoteID uuid.UUID, at time.Time) (int, error) {
	if r == nil || r.pool == nil {
		return 0, apperr.Internal(errNotConfigured).WithOp(opFinalize)
	}
	var count int
	err := r.pool.QueryRow(ctx, `
		UPDATE quotes
		SET status = 'sent',
		    sent_supplier_count = (SELECT count(*) FROM quote_supplier_status WHERE quote_id = $1),
		    sent_at = COALESCE(sent_at, $3),
		    updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND status IN ('draft', 'sent')
		RETURNING sent_supplier_count`,
		quoteID, tenantID, at).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperr.Conflict("quote is no longer open for dispatch").WithOp(opFinalize)
		}
		return 0, apperr.Wrap(apperr.KindInternal, "finalize dispatch", err).WithOp(opFinalize)
	}
	return count, nil
}

const statusColumns = `
	st.id, st.quote_id, ` + supplierColumns + `,
	st.status, st.reminder_count, st.last_reminder_at, st.responded_at, st.updated_at`

func scanStatus(row pgx.Row, st *SupplierStatus) error {
	s := &st.Supplier
	return row.Scan(
		&st.ID, &st.QuoteID, &s.ID, &s.Name, &s.Phone, &s.WhatsApp, &s.Email, &s.IsCertified, &s.RegistrationStatus,
		&st.Status, &st.ReminderCount, &st.LastReminderAt, &st.RespondedAt, &st.UpdatedAt,
	)
}

// ListSupplierStatuses returns every status row of a tenant's quote.
func (r *Repository) ListSupplierStatuses(ctx context.Context, tenantID, quoteID uuid.UUID) ([]SupplierStatus, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errNotConfigured).WithOp(opListStatuses)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+statusColumns+`
		FROM quote_supplier_status st
		JOIN quotes q ON q.id = st.quote_id
		JOIN suppliers s ON s.id = st.supplier_id
		WHERE st.quote_id = $1 AND q.organization_id = $2
		ORDER BY s.name, s.id`, quoteID, tenantID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list supplier statuses", err).WithOp(opListStatuses)
	}
	defer rows.Close()

	var out []SupplierStatus
	for rows.Next() {
		var st SupplierStatus
		if err := scanStatus(rows, &st); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan supplier status", err).WithOp(opListStatuses)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list supplier statuses", err).WithOp(opListStatuses)
	}
	return out, nil
}

// GetSupplierStatus returns the status row of one pair, or nil.
func (r *Repository) GetSupplierStatus(ctx context.Context, quoteID, supplierID uuid.UUID) (*SupplierStatus, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errNotConfigured).WithOp(opGetSupplierStatus)
	}
	var st SupplierStatus
	err := scanStatus(r.pool.QueryRow(ctx, `
		SELECT `+statusColumns+`
		FROM quote_supplier_status st
		JOIN suppliers s ON s.id = st.supplier_id
		WHERE st.quote_id = $1 AND st.supplier_id = $2`, quoteID, supplierID), &st)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load supplier status", err).WithOp(opGetSupplierStatus)
	}
	return &st, nil
}

// ListReminderCandidates returns non-terminal status rows of quotes sent
// at or before sentBefore that are below the reminder cap and outside the
// cooldown window at now.
func (r *Repository) ListReminderCandidates(ctx context.Context, sentBefore, now time.Time) ([]ReminderCandidate, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errNotConfigured).WithOp(opReminderCands)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+statusColumns+`, `+quoteColumns+`
		FROM quote_supplier_status st
		JOIN suppliers s ON s.id = st.supplier_id
		JOIN quotes q ON q.id = st.quote_id
		JOIN organizations o ON o.id = q.organization_id
		WHERE q.status = 'sent'
		  AND q.sent_at <= $1
		  AND st.status IN ('pending', 'reminded_once')
		  AND st.reminder_count < $2
		  AND (st.last_reminder_at IS NULL OR st.last_reminder_at <= $3)
		  AND s.is_active
		ORDER BY q.sent_at, st.id`,
		sentBefore, MaxReminders, now.Add(-ReminderCooldown))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list reminder candidates", err).WithOp(opReminderCands)
	}
	defer rows.Close()

	var out []ReminderCandidate
	for rows.Next() {
		var c ReminderCandidate
		s := &c.Supplier
		q := &c.Quote
		var items []byte
		if err := rows.Scan(
			&c.ID, &c.QuoteID, &s.ID, &s.Name, &s.Phone, &s.WhatsApp, &s.Email, &s.IsCertified, &s.RegistrationStatus,
			&c.Status, &c.ReminderCount, &c.LastReminderAt, &c.RespondedAt, &c.UpdatedAt,
			&q.ID, &q.OrganizationID, &q.OrganizationName, &q.Title, &q.Status, &items, &q.TargetAmount,
			&q.Deadline, &q.SentSupplierCount, &q.SentAt, &q.CreatedAt,
		); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan reminder candidate", err).WithOp(opReminderCands)
		}
		if err := decodeItems(items, &q.Items); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "decode quote items", err).WithOp(opReminderCands)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list reminder candidates", err).WithOp(opReminderCands)
	}
	return out, nil
}

// MarkReminded increments the reminder counter with a compare-and-set on
// the count the caller observed. It reports false when another run got
// there first or the row moved on (responded, declined, capped, cooling).
func (r *Repository) MarkReminded(ctx context.Context, statusID uuid.UUID, observedCount int, now time.Time) (bool, error) {
	if r == nil || r.pool == nil {
		return false, apperr.Internal(errNotConfigured).WithOp(opMarkReminded)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE quote_supplier_status
		SET reminder_count = reminder_count + 1,
		    status = CASE WHEN reminder_count + 1 >= $3 THEN 'reminded_twice' ELSE 'reminded_once' END,
		    last_reminder_at = $4,
		    updated_at = now()
		WHERE id = $1
		  AND reminder_count = $2
		  AND reminder_count < $3
		  AND status IN ('pending', 'reminded_once')
		  AND (last_reminder_at IS NULL OR last_reminder_at <= $5)`,
		statusID, observedCount, MaxReminders, now, now.Add(-ReminderCooldown))
	if err != nil {
		return false, apperr.Wrap(apperr.KindInternal, "mark reminded", err).WithOp(opMarkReminded)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseReminder undoes a MarkReminded claim whose delivery failed. It only
// applies while the row still holds claimedCount, so a response or a later
// claim is never rolled back.
func (r *Repository) ReleaseReminder(ctx context.Context, statusID uuid.UUID, claimedCount int, previous *time.Time) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errNotConfigured).WithOp(opReleaseReminder)
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE quote_supplier_status
		SET reminder_count = reminder_count - 1,
		    status = CASE WHEN reminder_count - 1 = 0 THEN 'pending' ELSE 'reminded_once' END,
		    last_reminder_at = $3,
		    updated_at = now()
		WHERE id = $1
		  AND reminder_count = $2
		  AND reminder_count > 0
		  AND status IN ('reminded_once', 'reminded_twice')`,
		statusID, claimedCount, previous)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "release reminder", err).WithOp(opReleaseReminder)
	}
	return nil
}

// SubmitResponse stores a proposal and moves the pair to responded in one
// transaction. A resubmission replaces a still-pending proposal.
func (r *Repository) SubmitResponse(ctx context.Context, p SubmitParams) (*Response, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errNotConfigured).WithOp(opSubmitResponse)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "begin transaction", err).WithOp(opSubmitResponse)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var resp Response
	err = tx.QueryRow(ctx, `
		INSERT INTO quote_responses (quote_id, supplier_id, amount, delivery_days, terms)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (quote_id, supplier_id) DO UPDATE
		SET amount = EXCLUDED.amount,
		    delivery_days = EXCLUDED.delivery_days,
		    terms = EXCLUDED.terms,
		    updated_at = now()
		WHERE quote_responses.status = 'pending'
		RETURNING id, quote_id, supplier_id, amount, delivery_days, terms, status, created_at`,
		p.QuoteID, p.SupplierID, p.Amount, p.DeliveryDays, p.Terms,
	).Scan(&resp.ID, &resp.QuoteID, &resp.SupplierID, &resp.Amount, &resp.DeliveryDays, &resp.Terms, &resp.Status, &resp.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Conflict("proposal is already under review").WithOp(opSubmitResponse)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return nil, apperr.Validation("amount must be positive").WithOp(opSubmitResponse)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "insert quote response", err).WithOp(opSubmitResponse)
	}

	if err := setTerminal(ctx, tx, p.QuoteID, p.SupplierID, SupplierStatusResponded); err != nil {
		return nil, err.WithOp(opSubmitResponse)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "commit quote response", err).WithOp(opSubmitResponse)
	}
	return &resp, nil
}

// Decline moves the pair to declined.
func (r *Repository) Decline(ctx context.Context, quoteID, supplierID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errNotConfigured).WithOp(opDecline)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "begin transaction", err).WithOp(opDecline)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := setTerminal(ctx, tx, quoteID, supplierID, SupplierStatusDeclined); err != nil {
		return err.WithOp(opDecline)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindInternal, "commit decline", err).WithOp(opDecline)
	}
	return nil
}

// setTerminal moves a pair into a terminal status. Terminal rows never
// change again; a row in the other terminal status is a conflict.
func setTerminal(ctx context.Context, tx pgx.Tx, quoteID, supplierID uuid.UUID, status string) *apperr.Error {
	var current string
	err := tx.QueryRow(ctx, `
		INSERT INTO quote_supplier_status (quote_id, supplier_id, status, responded_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (quote_id, supplier_id) DO UPDATE
		SET status = EXCLUDED.status, responded_at = now(), updated_at = now()
		WHERE quote_supplier_status.status NOT IN ('responded', 'declined')
		RETURNING status`, quoteID, supplierID, status).Scan(&current)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return apperr.Wrap(apperr.KindInternal, "update supplier status", err)
	}

	if err := tx.QueryRow(ctx, `
		SELECT status FROM quote_supplier_status WHERE quote_id = $1 AND supplier_id = $2`,
		quoteID, supplierID).Scan(&current); err != nil {
		return apperr.Wrap(apperr.KindInternal, "load supplier status", err)
	}
	if current == status {
		return nil
	}
	return apperr.Conflict("supplier already " + current)
}

// GetResponse returns the supplier's proposal for a quote, or nil.
func (r *Repository) GetResponse(ctx context.Context, quoteID, supplierID uuid.UUID) (*Response, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errNotConfigured).WithOp(opGetResponse)
	}
	var resp Response
	err := r.pool.QueryRow(ctx, `
		SELECT id, quote_id, supplier_id, amount, delivery_days, terms, status, created_at
		FROM quote_responses WHERE quote_id = $1 AND supplier_id = $2`, quoteID, supplierID,
	).Scan(&resp.ID, &resp.QuoteID, &resp.SupplierID, &resp.Amount, &resp.DeliveryDays, &resp.Terms, &resp.Status, &resp.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load quote response", err).WithOp(opGetResponse)
	}
	return &resp, nil
}
