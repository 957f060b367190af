package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPProviderSender sends through a Brevo-compatible transactional API.
type HTTPProviderSender struct {
	url       string
	apiKey    string
	fromName  string
	fromEmail string
	client    *http.Client
}

type providerAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type providerRequest struct {
	Sender      providerAddress   `json:"sender"`
	To          []providerAddress `json:"to"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"htmlContent"`
	TextContent string            `json:"textContent,omitempty"`
}

type providerResponse struct {
	MessageID string `json:"messageId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func NewHTTPProviderSender(cfg Config) *HTTPProviderSender {
	return &HTTPProviderSender{
		url:       cfg.APIURL,
		apiKey:    cfg.APIKey,
		fromName:  cfg.FromName,
		fromEmail: cfg.FromAddress,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts msg to the provider. Provider error messages are returned verbatim.
func (s *HTTPProviderSender) Send(ctx context.Context, msg Message) (string, error) {
	payload := providerRequest{
		Sender:      providerAddress{Name: s.fromName, Email: s.fromEmail},
		To:          []providerAddress{{Email: msg.To}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
		TextContent: msg.Text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("api-key", s.apiKey)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("email provider request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var parsed providerResponse
	_ = json.Unmarshal(data, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsed.Message != "" {
			return "", fmt.Errorf("%s", parsed.Message)
		}
		return "", fmt.Errorf("email provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return parsed.MessageID, nil
}
