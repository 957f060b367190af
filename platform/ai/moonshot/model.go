// Package moonshot adapts Moonshot's OpenAI-compatible chat API to the ADK
// model.LLM interface so llmagent runners can drive it.
package moonshot

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const (
	defaultBaseURL   = "https://api.moonshot.ai/v1"
	defaultModel     = "kimi-k2-turbo-preview"
	defaultMaxTokens = 2048
)

// Config for Kimi
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	MaxTokens       int
	DisableThinking bool // kimi-k2.5 runs at a fixed temperature when thinking is off
}

// KimiModel adapts Moonshot to the ADK model.LLM interface
type KimiModel struct {
	config Config
	client openai.Client
}

func NewModel(cfg Config) *KimiModel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &KimiModel{
		config: cfg,
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
		),
	}
}

func (m *KimiModel) Name() string {
	return m.config.Model
}

// GenerateContent runs a single non-streaming chat completion. The stream
// flag is accepted for interface compatibility and ignored.
func (m *KimiModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

func (m *KimiModel) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	if req == nil {
		return nil, errors.New("kimi: nil request")
	}

	params := openai.ChatCompletionNewParams{
		Model:               m.config.Model,
		Messages:            convertMessages(req),
		MaxCompletionTokens: openai.Int(int64(m.config.MaxTokens)),
	}

	var opts []option.RequestOption
	if m.config.DisableThinking {
		opts = append(opts, option.WithJSONSet("thinking", map[string]string{"type": "disabled"}))
	} else if req.Config != nil && req.Config.Temperature != nil {
		params.Temperature = openai.Float(float64(*req.Config.Temperature))
	}

	resp, err := m.client.Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		return nil, fmt.Errorf("kimi chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("kimi api error: empty choices")
	}

	var parts []*genai.Part
	if text := strings.TrimSpace(resp.Choices[0].Message.Content); text != "" {
		parts = append(parts, genai.NewPartFromText(text))
	}

	return &model.LLMResponse{
		Content: &genai.Content{
			Role:  genai.RoleModel,
			Parts: parts,
		},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     int32(resp.Usage.PromptTokens),
			CandidatesTokenCount: int32(resp.Usage.CompletionTokens),
			TotalTokenCount:      int32(resp.Usage.TotalTokens),
		},
	}, nil
}

func convertMessages(req *model.LLMRequest) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Contents)+1)
	if req.Config != nil && req.Config.SystemInstruction != nil {
		if system := contentText(req.Config.SystemInstruction); system != "" {
			messages = append(messages, openai.SystemMessage(system))
		}
	}

	for _, content := range req.Contents {
		if content == nil {
			continue
		}
		text := contentText(content)
		if text == "" {
			continue
		}
		if content.Role == genai.RoleModel {
			messages = append(messages, openai.AssistantMessage(text))
			continue
		}
		messages = append(messages, openai.UserMessage(text))
	}
	return messages
}

func contentText(content *genai.Content) string {
	var b strings.Builder
	for _, part := range content.Parts {
		if part == nil || strings.TrimSpace(part.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String())
}
