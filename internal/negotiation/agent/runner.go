// Package agent holds the language-model agents of the negotiation flow:
// the strategist that sizes the counter-offer, the composer that writes the
// opening message and the classifier that reads supplier replies.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"procurement_backend/internal/aiusage"
	"procurement_backend/platform/ai/moonshot"
	"procurement_backend/platform/config"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

// textAgent runs a single-turn llmagent and returns its concatenated text.
type textAgent struct {
	agent          agent.Agent
	runner         *runner.Runner
	sessionService session.Service
	appName        string
	modelName      string
	feature        string
	usage          aiusage.Recorder
	runMu          sync.Mutex
}

type agentSpec struct {
	name        string
	appName     string
	description string
	instruction string
	feature     string
}

func newTextAgent(cfg config.LLMConfig, usage aiusage.Recorder, spec agentSpec) (*textAgent, error) {
	kimi := moonshot.NewModel(moonshot.Config{
		APIKey:          cfg.GetMoonshotAPIKey(),
		BaseURL:         cfg.GetLLMBaseURL(),
		Model:           cfg.GetLLMModel(),
		DisableThinking: true,
	})

	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        spec.name,
		Model:       kimi,
		Description: spec.description,
		Instruction: spec.instruction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s agent: %w", spec.name, err)
	}

	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        spec.appName,
		Agent:          adkAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s runner: %w", spec.name, err)
	}

	if usage == nil {
		usage = aiusage.Discard{}
	}
	return &textAgent{
		agent:          adkAgent,
		runner:         r,
		sessionService: sessionService,
		appName:        spec.appName,
		modelName:      kimi.Name(),
		feature:        spec.feature,
		usage:          usage,
	}, nil
}

// run sends prompt as a fresh session and reports token usage for tenantID.
func (a *textAgent) run(ctx context.Context, tenantID uuid.UUID, prompt string) (string, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	sessionID := uuid.New().String()
	userID := a.appName + "-" + tenantID.String()

	_, err := a.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   a.appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("%s: create session: %w", a.appName, err)
	}
	defer func() {
		_ = a.sessionService.Delete(ctx, &session.DeleteRequest{
			AppName:   a.appName,
			UserID:    userID,
			SessionID: sessionID,
		})
	}()

	userMessage := &genai.Content{
		Role: "user",
		Parts: []*genai.Part{{
			Text: prompt,
		}},
	}

	runConfig := agent.RunConfig{StreamingMode: agent.StreamingModeNone}

	var outputText strings.Builder
	var promptTokens, completionTokens int
	for event, err := range a.runner.Run(ctx, userID, sessionID, userMessage, runConfig) {
		if err != nil {
			a.report(ctx, tenantID, promptTokens, completionTokens)
			return "", fmt.Errorf("%s: run failed: %w", a.appName, err)
		}
		if event.UsageMetadata != nil {
			promptTokens += int(event.UsageMetadata.PromptTokenCount)
			completionTokens += int(event.UsageMetadata.CandidatesTokenCount)
		}
		if event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			outputText.WriteString(part.Text)
		}
	}
	a.report(ctx, tenantID, promptTokens, completionTokens)

	return strings.TrimSpace(outputText.String()), nil
}

func (a *textAgent) report(ctx context.Context, tenantID uuid.UUID, prompt, completion int) {
	a.usage.Record(ctx, aiusage.Usage{
		OrganizationID:   tenantID,
		Feature:          a.feature,
		Model:            a.modelName,
		PromptTokens:     prompt,
		CompletionTokens: completion,
	})
}

// extractJSON returns the first top-level JSON object in text, tolerating
// markdown fences and prose around it.
func extractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
