package service

import (
	"context"

	"procurement_backend/internal/approvals/repository"

	"github.com/google/uuid"
)

// RuleEvaluator decides whether an amount needs human approval and which
// level applies. A nil level means no approval is required.
type RuleEvaluator interface {
	Evaluate(ctx context.Context, tenantID uuid.UUID, amount float64) (*repository.Level, error)
}

// LevelStore lists the approval levels of a tenant.
type LevelStore interface {
	ListActiveLevels(ctx context.Context, tenantID uuid.UUID) ([]repository.Level, error)
}

// LevelRules evaluates the tenant's configured approval levels.
type LevelRules struct {
	store LevelStore
}

// NewLevelRules creates a rule evaluator over stored approval levels.
func NewLevelRules(store LevelStore) *LevelRules {
	return &LevelRules{store: store}
}

func (r *LevelRules) Evaluate(ctx context.Context, tenantID uuid.UUID, amount float64) (*repository.Level, error) {
	levels, err := r.store.ListActiveLevels(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return selectLevel(levels, amount), nil
}

// selectLevel picks the level with the greatest min_amount not above amount
// whose max_amount, when set, is not below it.
func selectLevel(levels []repository.Level, amount float64) *repository.Level {
	var best *repository.Level
	for i := range levels {
		l := &levels[i]
		if l.MinAmount > amount || (l.MaxAmount != nil && *l.MaxAmount < amount) {
			continue
		}
		if best == nil || l.MinAmount > best.MinAmount {
			best = l
		}
	}
	return best
}
