package notification

import (
	"context"
	"encoding/json"
	"errors"

	"procurement_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opActiveUsers  = "notification.directory.active_users"
	opUsers        = "notification.directory.users"
	opQuoteSummary = "notification.directory.quote_summary"
	opSuppliers    = "notification.directory.suppliers"
	opSetting      = "notification.directory.setting"

	errDirectoryNotConfigured = "notification directory not configured"
)

// Recipient is a tenant user that can receive in-app notifications.
type Recipient struct {
	ID       uuid.UUID
	Email    string
	FullName string
}

// SupplierContact is how a supplier is reached outside the app.
type SupplierContact struct {
	ID       uuid.UUID
	Name     string
	Phone    string
	WhatsApp string
	Email    string
}

// ChatNumber is the number chat messages go to.
func (s SupplierContact) ChatNumber() string {
	if s.WhatsApp != "" {
		return s.WhatsApp
	}
	return s.Phone
}

// QuoteSummary is what award messages say about a quote.
type QuoteSummary struct {
	Title       string
	CompanyName string
}

// PgDirectory reads recipients and settings from Postgres.
type PgDirectory struct {
	pool *pgxpool.Pool
}

// NewDirectory creates the notification directory.
func NewDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func (d *PgDirectory) ActiveUsers(ctx context.Context, tenantID uuid.UUID) ([]Recipient, error) {
	if d == nil || d.pool == nil {
		return nil, apperr.Internal(errDirectoryNotConfigured).WithOp(opActiveUsers)
	}
	rows, err := d.pool.Query(ctx, `
		SELECT id, email, full_name FROM users
		WHERE organization_id = $1 AND is_active
		ORDER BY created_at, id`, tenantID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list tenant users", err).WithOp(opActiveUsers)
	}
	return collectRecipients(rows, opActiveUsers)
}

func (d *PgDirectory) Users(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Recipient, error) {
	if d == nil || d.pool == nil {
		return nil, apperr.Internal(errDirectoryNotConfigured).WithOp(opUsers)
	}
	rows, err := d.pool.Query(ctx, `
		SELECT id, email, full_name FROM users
		WHERE organization_id = $1 AND is_active AND id = ANY($2::uuid[])`, tenantID, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "load users", err).WithOp(opUsers)
	}
	return collectRecipients(rows, opUsers)
}

func collectRecipients(rows pgx.Rows, op string) ([]Recipient, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Recipient, error) {
		var r Recipient
		err := row.Scan(&r.ID, &r.Email, &r.FullName)
		return r, err
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "scan users", err).WithOp(op)
	}
	return out, nil
}

func (d *PgDirectory) QuoteSummary(ctx context.Context, quoteID uuid.UUID) (QuoteSummary, error) {
	if d == nil || d.pool == nil {
		return QuoteSummary{}, apperr.Internal(errDirectoryNotConfigured).WithOp(opQuoteSummary)
	}
	var q QuoteSummary
	err := d.pool.QueryRow(ctx, `
		SELECT q.title, o.name FROM quotes q JOIN organizations o ON o.id = q.organization_id
		WHERE q.id = $1`, quoteID).Scan(&q.Title, &q.CompanyName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return QuoteSummary{}, apperr.NotFound("quote not found").WithOp(opQuoteSummary)
		}
		return QuoteSummary{}, apperr.Wrap(apperr.KindInternal, "load quote", err).WithOp(opQuoteSummary)
	}
	return q, nil
}

func (d *PgDirectory) Suppliers(ctx context.Context, ids []uuid.UUID) ([]SupplierContact, error) {
	if d == nil || d.pool == nil {
		return nil, apperr.Internal(errDirectoryNotConfigured).WithOp(opSuppliers)
	}
	rows, err := d.pool.Query(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(whatsapp, ''), COALESCE(email, '')
		FROM suppliers WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "load suppliers", err).WithOp(opSuppliers)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SupplierContact, error) {
		var s SupplierContact
		err := row.Scan(&s.ID, &s.Name, &s.Phone, &s.WhatsApp, &s.Email)
		return s, err
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "scan suppliers", err).WithOp(opSuppliers)
	}
	return out, nil
}

// BoolSetting reads a boolean setting, preferring the tenant's value over
// the global one. found is false when neither is set.
func (d *PgDirectory) BoolSetting(ctx context.Context, tenantID uuid.UUID, key string) (value, found bool, err error) {
	if d == nil || d.pool == nil {
		return false, false, apperr.Internal(errDirectoryNotConfigured).WithOp(opSetting)
	}
	var raw []byte
	err = d.pool.QueryRow(ctx, `
		SELECT value FROM system_settings
		WHERE key = $2 AND (organization_id = $1 OR organization_id IS NULL)
		ORDER BY organization_id NULLS LAST
		LIMIT 1`, tenantID, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, false, nil
		}
		return false, false, apperr.Wrap(apperr.KindInternal, "load setting", err).WithOp(opSetting)
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return false, false, apperr.Validation("setting " + key + " is not a boolean").WithOp(opSetting)
	}
	return value, true, nil
}
