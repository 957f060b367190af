package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"procurement_backend/internal/aiusage"
	"procurement_backend/internal/negotiation/ports"
	"procurement_backend/internal/templates"
	"procurement_backend/platform/config"

	"github.com/google/uuid"
)

// Classifier reads supplier replies into one of the closed set of intents.
type Classifier struct {
	agent *textAgent
}

// NewClassifier creates the intent classification agent.
func NewClassifier(cfg config.LLMConfig, usage aiusage.Recorder) (*Classifier, error) {
	a, err := newTextAgent(cfg, usage, agentSpec{
		name:        "NegotiationIntentClassifier",
		appName:     "negotiation-classifier",
		description: "Classifies supplier replies in a price negotiation.",
		instruction: classifierInstruction,
		feature:     aiusage.FeatureIntentClassifier,
	})
	if err != nil {
		return nil, err
	}
	return &Classifier{agent: a}, nil
}

// Classify returns the intent, amount and confidence of message. An
// unparseable answer is an error so the caller can leave the thread as is.
func (c *Classifier) Classify(ctx context.Context, tenantID uuid.UUID, message string, originalAmount float64) (ports.Classification, error) {
	text, err := c.agent.run(ctx, tenantID, buildClassifierPrompt(message, originalAmount))
	if err != nil {
		return ports.Classification{}, err
	}
	return parseClassification(text)
}

type classificationPayload struct {
	Intent     string          `json:"intent"`
	Amount     json.RawMessage `json:"amount"`
	Confidence json.Number     `json:"confidence"`
}

func parseClassification(text string) (ports.Classification, error) {
	raw, ok := extractJSON(text)
	if !ok {
		return ports.Classification{}, fmt.Errorf("classifier: no JSON object in response")
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var p classificationPayload
	if err := dec.Decode(&p); err != nil {
		return ports.Classification{}, fmt.Errorf("classifier: decode response: %w", err)
	}

	intent := ports.Intent(strings.ToLower(strings.TrimSpace(p.Intent)))
	if !intent.Valid() {
		return ports.Classification{}, fmt.Errorf("classifier: unknown intent %q", p.Intent)
	}

	var confidence float64
	if p.Confidence != "" {
		v, err := p.Confidence.Float64()
		if err != nil {
			return ports.Classification{}, fmt.Errorf("classifier: invalid confidence: %w", err)
		}
		confidence = v
	}
	if confidence > 0 && confidence <= 1 {
		confidence *= 100
	}
	confidence = min(max(confidence, 0), 100)

	amount, err := parseAmount(p.Amount)
	if err != nil {
		return ports.Classification{}, err
	}

	return ports.Classification{
		Intent:     intent,
		Amount:     amount,
		Confidence: int(confidence + 0.5),
	}, nil
}

// parseAmount accepts a JSON number, null, or a string in either
// "1.234,56" or "1234.56" notation.
func parseAmount(raw json.RawMessage) (*float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = normalizeAmountText(unq)
		if s == "" {
			return nil, nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("classifier: invalid amount %q", string(raw))
	}
	if v <= 0 {
		return nil, nil
	}
	return &v, nil
}

func normalizeAmountText(s string) string {
	s = strings.TrimSpace(strings.NewReplacer("R$", "", " ", "").Replace(s))
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	return s
}

func buildClassifierPrompt(message string, originalAmount float64) string {
	return fmt.Sprintf(`Original proposal amount: %s

Supplier reply:
"""
%s
"""

Task:
Classify the reply. Respond with a single JSON object and nothing else:
{"intent": "accepted|counter_offer|rejected|question|unclear", "amount": <number or null>, "confidence": <0-100>}
Rules:
- "amount" is the price the supplier states, in reais, or null when none is stated.
- Use "counter_offer" when the supplier proposes a different price.
- Use "unclear" when unsure.
`, templates.Money(originalAmount), strings.TrimSpace(message))
}

const classifierInstruction = "You classify supplier replies in Brazilian Portuguese price negotiations. " +
	"Answer only with the requested JSON object."
