// Package aiusage records language model token consumption per tenant and
// feature for cost accounting.
package aiusage

import (
	"context"
	"strings"

	"procurement_backend/platform/apperr"
	"procurement_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const opRecord = "aiusage.repository.record"

// Features that report usage.
const (
	FeatureNegotiationStrategy = "negotiation_strategy"
	FeatureNegotiationOpening  = "negotiation_opening"
	FeatureIntentClassifier    = "intent_classifier"
)

// Usage is the token count of one model call.
type Usage struct {
	OrganizationID   uuid.UUID
	Feature          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Recorder accepts usage reports. Implementations must not fail the caller.
type Recorder interface {
	Record(ctx context.Context, u Usage)
}

type Repository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewRepository(pool *pgxpool.Pool, log *logger.Logger) *Repository {
	return &Repository{pool: pool, log: log.WithComponent("aiusage")}
}

// Record stores u. Failures are logged, never returned: accounting must not
// break the call that consumed the tokens.
func (r *Repository) Record(ctx context.Context, u Usage) {
	if err := r.insert(ctx, u); err != nil {
		r.log.WarnContext(ctx, "ai usage not recorded", "feature", u.Feature, "error", err)
	}
}

func (r *Repository) insert(ctx context.Context, u Usage) error {
	if r == nil || r.pool == nil {
		return apperr.Internal("ai usage repository not configured").WithOp(opRecord)
	}
	if strings.TrimSpace(u.Feature) == "" {
		return apperr.Validation("feature is required").WithOp(opRecord)
	}
	if u.PromptTokens == 0 && u.CompletionTokens == 0 {
		return nil
	}

	var orgID *uuid.UUID
	if u.OrganizationID != uuid.Nil {
		orgID = &u.OrganizationID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ai_usage (organization_id, feature, model, prompt_tokens, completion_tokens)
		VALUES ($1, $2, $3, $4, $5)`,
		orgID, u.Feature, u.Model, u.PromptTokens, u.CompletionTokens,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "insert ai usage", err).WithOp(opRecord)
	}
	return nil
}

// Discard drops every report.
type Discard struct{}

func (Discard) Record(context.Context, Usage) {}
