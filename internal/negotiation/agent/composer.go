package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"procurement_backend/internal/aiusage"
	"procurement_backend/internal/negotiation/ports"
	"procurement_backend/internal/templates"
	"procurement_backend/platform/config"

	"github.com/google/uuid"
)

const maxOpeningLength = 700

// Composer writes the first negotiation message to a supplier.
type Composer struct {
	agent *textAgent
}

// NewComposer creates the opening message agent.
func NewComposer(cfg config.LLMConfig, usage aiusage.Recorder) (*Composer, error) {
	a, err := newTextAgent(cfg, usage, agentSpec{
		name:        "NegotiationComposer",
		appName:     "negotiation-composer",
		description: "Writes short, professional price negotiation messages.",
		instruction: composerInstruction,
		feature:     aiusage.FeatureNegotiationOpening,
	})
	if err != nil {
		return nil, err
	}
	return &Composer{agent: a}, nil
}

// ComposeOpening returns a chat-ready opening message.
func (c *Composer) ComposeOpening(ctx context.Context, tenantID uuid.UUID, input ports.OpeningInput) (string, error) {
	text, err := c.agent.run(ctx, tenantID, buildOpeningPrompt(input))
	if err != nil {
		return "", err
	}
	return cleanOpening(text)
}

// cleanOpening strips quoting and fences the model sometimes adds and
// rejects empty or oversized output.
func cleanOpening(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.Trim(strings.TrimSpace(text), `"`)
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("composer: empty message")
	}
	if len([]rune(text)) > maxOpeningLength {
		return "", fmt.Errorf("composer: message exceeds %d characters", maxOpeningLength)
	}
	return text, nil
}

func buildOpeningPrompt(in ports.OpeningInput) string {
	return fmt.Sprintf(`Buyer: %s
Supplier contact: %s
Quote: %s
Supplier's proposal: %s
Price we propose: %s
Strategy: %s

Task:
Write the WhatsApp message that opens the negotiation.
Rules:
- Portuguese, professional and friendly.
- At most 4 short sentences.
- Mention the proposed price exactly as given.
- Ask the supplier to reply with acceptance or a counter-offer.
- Output only the message text.
`, in.CompanyName, in.SupplierName, in.QuoteTitle,
		templates.Money(in.OriginalAmount), templates.Money(in.ProposedAmount), in.Strategy)
}

const composerInstruction = "You write concise WhatsApp messages for a purchasing team negotiating prices with suppliers."
