// Package repository persists channel integrations.
package repository

import (
	"context"
	"errors"
	"time"

	"procurement_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opFind   = "channels.repository.find"
	opUpsert = "channels.repository.upsert"
)

const (
	KindWhatsApp = "whatsapp"
	KindEmail    = "email"
)

// Integration is a stored channel configuration. OrganizationID nil marks
// the global integration for its kind.
type Integration struct {
	ID              uuid.UUID
	OrganizationID  *uuid.UUID
	Kind            string
	BaseURL         string
	Instance        string
	SecretEncrypted string
	FromAddress     string
	FromName        string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	IsActive        bool
	UpdatedAt       time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Find returns the active integration of kind for the organization, or
// the global one when orgID is nil.
func (r *Repository) Find(ctx context.Context, orgID *uuid.UUID, kind string) (*Integration, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal("integration repository not configured").WithOp(opFind)
	}

	query := `
		SELECT id, organization_id, kind, base_url, instance, secret_encrypted, from_address, from_name,
			smtp_host, smtp_port, smtp_username, is_active, updated_at
		FROM channel_integrations
		WHERE kind = $1 AND is_active
		  AND organization_id IS NOT DISTINCT FROM $2`

	var in Integration
	err := r.pool.QueryRow(ctx, query, kind, orgID).Scan(
		&in.ID, &in.OrganizationID, &in.Kind, &in.BaseURL, &in.Instance, &in.SecretEncrypted,
		&in.FromAddress, &in.FromName, &in.SMTPHost, &in.SMTPPort, &in.SMTPUsername, &in.IsActive, &in.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load integration", err).WithOp(opFind)
	}
	return &in, nil
}

// Upsert creates or replaces the integration for (organization, kind).
func (r *Repository) Upsert(ctx context.Context, in Integration) (*Integration, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal("integration repository not configured").WithOp(opUpsert)
	}

	query := `
		INSERT INTO channel_integrations (
			organization_id, kind, base_url, instance, secret_encrypted, from_address, from_name,
			smtp_host, smtp_port, smtp_username, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT ((COALESCE(organization_id, '00000000-0000-0000-0000-000000000000'::uuid)), kind)
		DO UPDATE SET
			base_url = EXCLUDED.base_url,
			instance = EXCLUDED.instance,
			secret_encrypted = EXCLUDED.secret_encrypted,
			from_address = EXCLUDED.from_address,
			from_name = EXCLUDED.from_name,
			smtp_host = EXCLUDED.smtp_host,
			smtp_port = EXCLUDED.smtp_port,
			smtp_username = EXCLUDED.smtp_username,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		RETURNING id, updated_at`

	err := r.pool.QueryRow(ctx, query,
		in.OrganizationID, in.Kind, in.BaseURL, in.Instance, in.SecretEncrypted, in.FromAddress, in.FromName,
		in.SMTPHost, in.SMTPPort, in.SMTPUsername, in.IsActive,
	).Scan(&in.ID, &in.UpdatedAt)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "save integration", err).WithOp(opUpsert)
	}
	return &in, nil
}
