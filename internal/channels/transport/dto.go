package transport

import "time"

// SaveIntegrationRequest stores a chat gateway or email sender
// configuration. Scope "global" requires the admin role and applies to
// every tenant without its own integration.
type SaveIntegrationRequest struct {
	Scope        string `json:"scope" validate:"omitempty,oneof=client global"`
	BaseURL      string `json:"baseUrl" validate:"omitempty,url"`
	Instance     string `json:"instance" validate:"max=120"`
	APIKey       string `json:"apiKey" validate:"required,min=4,max=512"`
	FromAddress  string `json:"fromAddress" validate:"omitempty,email"`
	FromName     string `json:"fromName" validate:"max=120"`
	SMTPHost     string `json:"smtpHost" validate:"omitempty,hostname|ip"`
	SMTPPort     int    `json:"smtpPort" validate:"omitempty,min=1,max=65535"`
	SMTPUsername string `json:"smtpUsername" validate:"max=255"`
	IsActive     *bool  `json:"isActive"`
}

// IntegrationResponse never includes the stored secret.
type IntegrationResponse struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Scope       string    `json:"scope"`
	BaseURL     string    `json:"baseUrl,omitempty"`
	Instance    string    `json:"instance,omitempty"`
	FromAddress string    `json:"fromAddress,omitempty"`
	FromName    string    `json:"fromName,omitempty"`
	SMTPHost    string    `json:"smtpHost,omitempty"`
	SMTPPort    int       `json:"smtpPort,omitempty"`
	HasSecret   bool      `json:"hasSecret"`
	IsActive    bool      `json:"isActive"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
