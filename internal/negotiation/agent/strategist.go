package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"procurement_backend/internal/aiusage"
	"procurement_backend/internal/negotiation/ports"
	"procurement_backend/internal/templates"
	"procurement_backend/platform/config"

	"github.com/google/uuid"
)

// Strategist drafts the negotiation strategy for a viable quote.
type Strategist struct {
	agent *textAgent
}

// NewStrategist creates the strategy agent.
func NewStrategist(cfg config.LLMConfig, usage aiusage.Recorder) (*Strategist, error) {
	a, err := newTextAgent(cfg, usage, agentSpec{
		name:        "NegotiationStrategist",
		appName:     "negotiation-strategist",
		description: "Sizes a counter-offer for B2B procurement proposals.",
		instruction: strategistInstruction,
		feature:     aiusage.FeatureNegotiationStrategy,
	})
	if err != nil {
		return nil, err
	}
	return &Strategist{agent: a}, nil
}

// DraftStrategy asks the model for an analysis, a strategy and a discount.
// The discount is returned unclamped; bounding it is the caller's policy.
func (s *Strategist) DraftStrategy(ctx context.Context, tenantID uuid.UUID, input ports.StrategyInput) (ports.StrategyDraft, error) {
	text, err := s.agent.run(ctx, tenantID, buildStrategyPrompt(input))
	if err != nil {
		return ports.StrategyDraft{}, err
	}
	return parseStrategy(text)
}

type strategyPayload struct {
	Analysis       string   `json:"analysis"`
	Strategy       string   `json:"strategy"`
	TargetDiscount *float64 `json:"targetDiscount"`
}

func parseStrategy(text string) (ports.StrategyDraft, error) {
	raw, ok := extractJSON(text)
	if !ok {
		return ports.StrategyDraft{}, fmt.Errorf("strategist: no JSON object in response")
	}
	var p strategyPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return ports.StrategyDraft{}, fmt.Errorf("strategist: decode response: %w", err)
	}
	if p.TargetDiscount == nil {
		return ports.StrategyDraft{}, fmt.Errorf("strategist: missing targetDiscount")
	}
	return ports.StrategyDraft{
		Analysis:       strings.TrimSpace(p.Analysis),
		Strategy:       strings.TrimSpace(p.Strategy),
		TargetDiscount: *p.TargetDiscount,
	}, nil
}

func buildStrategyPrompt(in ports.StrategyInput) string {
	return fmt.Sprintf(`Quote: %s
Best supplier: %s
Proposals received: %d
Lowest proposal: %s
Average proposal: %s
Negotiation potential: %.1f%%

Task:
Recommend how to negotiate with the best supplier.
Respond with a single JSON object and nothing else:
{"analysis": "<two sentences on the price picture>", "strategy": "<one short paragraph>", "targetDiscount": <number between 3 and 15>}
`, in.QuoteTitle, in.SupplierName, in.ProposalCount,
		templates.Money(in.LowestAmount), templates.Money(in.MeanAmount), in.PotentialPercent)
}

const strategistInstruction = "You are a procurement negotiation analyst for Brazilian B2B purchases. " +
	"You answer in Portuguese inside a strict JSON object. Never invent prices that were not given."
