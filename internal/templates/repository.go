package templates

import (
	"context"
	"errors"

	"procurement_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const opFind = "templates.repository.find"

// Repository reads message_templates.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) FindDefault(ctx context.Context, orgID *uuid.UUID, purpose Purpose) (*Template, error) {
	return r.find(ctx, orgID, purpose, true)
}

func (r *Repository) FindActive(ctx context.Context, orgID *uuid.UUID, purpose Purpose) (*Template, error) {
	return r.find(ctx, orgID, purpose, false)
}

func (r *Repository) find(ctx context.Context, orgID *uuid.UUID, purpose Purpose, defaultOnly bool) (*Template, error) {
	if r == nil || r.pool == nil {
		return nil, nil
	}

	query := `
		SELECT id, subject, body
		FROM message_templates
		WHERE purpose = $1
		  AND is_active
		  AND organization_id IS NOT DISTINCT FROM $2
		  AND ($3::boolean = false OR is_default)
		ORDER BY is_default DESC, updated_at DESC
		LIMIT 1`

	var (
		id  uuid.UUID
		tpl Template
	)
	err := r.pool.QueryRow(ctx, query, string(purpose), orgID, defaultOnly).Scan(&id, &tpl.Subject, &tpl.Body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load template", err).WithOp(opFind)
	}
	tpl.ID = &id
	return &tpl, nil
}
