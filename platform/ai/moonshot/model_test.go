package moonshot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func TestGenerateContentSendsSystemInstructionAndReportsUsage(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Thinking map[string]string `json:"thinking"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"kimi",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  olá  "}}],
			"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`))
	}))
	defer srv.Close()

	m := NewModel(Config{APIKey: "k", BaseURL: srv.URL, Model: "kimi", DisableThinking: true})
	req := &model.LLMRequest{
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText("be brief", genai.RoleUser),
		},
		Contents: []*genai.Content{genai.NewContentFromText("hello", genai.RoleUser)},
	}

	var resp *model.LLMResponse
	for r, err := range m.GenerateContent(context.Background(), req, false) {
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		resp = r
	}

	if got.Model != "kimi" || len(got.Messages) != 2 {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != "be brief" {
		t.Fatalf("system message not first: %+v", got.Messages)
	}
	if got.Thinking["type"] != "disabled" {
		t.Fatalf("thinking not disabled: %+v", got.Thinking)
	}
	if resp == nil || resp.Content == nil || len(resp.Content.Parts) != 1 || resp.Content.Parts[0].Text != "olá" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.UsageMetadata.PromptTokenCount != 12 || resp.UsageMetadata.CandidatesTokenCount != 3 {
		t.Fatalf("unexpected usage %+v", resp.UsageMetadata)
	}
}
