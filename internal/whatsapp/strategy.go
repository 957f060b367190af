package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const instancePlaceholder = "{instance}"

// Endpoint variants in probing order.
var endpointPaths = []string{
	"/message/sendText/{instance}",
	"/{instance}/message/sendText",
	"/message/send",
	"/{instance}/message/send",
	"/chat/send",
	"/{instance}/chat/send",
	"/sendMessage",
	"/{instance}/sendMessage",
}

type headerVariant struct {
	name  string
	apply func(h http.Header, key string)
}

var headerVariants = []headerVariant{
	{name: "apikey", apply: func(h http.Header, key string) { h.Set("apikey", key) }},
	{name: "bearer", apply: func(h http.Header, key string) { h.Set("Authorization", "Bearer "+key) }},
	{name: "x-api-key", apply: func(h http.Header, key string) { h.Set("X-Api-Key", key) }},
	{name: "api-key", apply: func(h http.Header, key string) { h.Set("Api-Key", key) }},
}

type payloadShape struct {
	name  string
	build func(number, text string) any
}

var payloadShapes = []payloadShape{
	{name: "number_text", build: func(n, t string) any {
		return map[string]any{"number": n, "text": t}
	}},
	{name: "number_textMessage", build: func(n, t string) any {
		return map[string]any{"number": n, "textMessage": map[string]string{"text": t}}
	}},
	{name: "phone_message", build: func(n, t string) any {
		return map[string]any{"phone": n, "message": t}
	}},
	{name: "to_message", build: func(n, t string) any {
		return map[string]any{"to": n, "message": t}
	}},
	{name: "chatId_message", build: func(n, t string) any {
		return map[string]any{"chatId": n, "message": t}
	}},
	{name: "recipient_body", build: func(n, t string) any {
		return map[string]any{"recipient": n, "body": t}
	}},
}

// Strategy is one endpoint/header/payload combination.
type Strategy struct {
	Path    string
	Header  string
	Payload string

	header  headerVariant
	payload payloadShape
}

// Key identifies the strategy in the strategy cache.
func (s Strategy) Key() string {
	return s.Path + "|" + s.Header + "|" + s.Payload
}

// URL resolves the endpoint for cfg.
func (s Strategy) URL(cfg Config) string {
	path := strings.ReplaceAll(s.Path, instancePlaceholder, cfg.Instance)
	return strings.TrimRight(cfg.BaseURL, "/") + path
}

// Request builds the HTTP request for this strategy. It has no side effects.
func (s Strategy) Request(ctx context.Context, cfg Config, number, text string) (*http.Request, error) {
	body, err := json.Marshal(s.payload.build(number, text))
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL(cfg), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	s.header.apply(req.Header, cfg.APIKey)
	return req, nil
}

// Strategies returns every combination for cfg in a fixed order: endpoint
// first, then header, then payload. Instance-scoped paths are skipped when
// no instance is configured.
func Strategies(cfg Config) []Strategy {
	out := make([]Strategy, 0, len(endpointPaths)*len(headerVariants)*len(payloadShapes))
	for _, path := range endpointPaths {
		if strings.Contains(path, instancePlaceholder) && strings.TrimSpace(cfg.Instance) == "" {
			continue
		}
		for _, h := range headerVariants {
			for _, p := range payloadShapes {
				out = append(out, Strategy{
					Path:    path,
					Header:  h.name,
					Payload: p.name,
					header:  h,
					payload: p,
				})
			}
		}
	}
	return out
}

// preferStrategy moves the strategy with key to the front, keeping the rest
// in order.
func preferStrategy(list []Strategy, key string) []Strategy {
	if key == "" {
		return list
	}
	for i, s := range list {
		if s.Key() != key {
			continue
		}
		out := make([]Strategy, 0, len(list))
		out = append(out, s)
		out = append(out, list[:i]...)
		return append(out, list[i+1:]...)
	}
	return list
}
