// Package email delivers transactional email through an HTTP provider API
// or a tenant's own SMTP server.
package email

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Scope tags where an email configuration came from.
type Scope string

const (
	ScopeClient Scope = "client"
	ScopeGlobal Scope = "global"
	ScopeEnv    Scope = "env"
	ScopeNone   Scope = "none"
)

// Provider selects the transport of a Config.
type Provider string

const (
	ProviderHTTP Provider = "http"
	ProviderSMTP Provider = "smtp"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Config is a resolved sender configuration.
type Config struct {
	Provider     Provider
	APIURL       string
	APIKey       string
	FromAddress  string
	FromName     string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	Scope        Scope
}

// Usable reports whether the config has enough to send.
func (c Config) Usable() bool {
	if strings.TrimSpace(c.FromAddress) == "" || strings.TrimSpace(c.APIKey) == "" {
		return false
	}
	if c.Provider == ProviderSMTP {
		return c.SMTPHost != "" && c.SMTPPort > 0
	}
	return true
}

// Sender performs a single synchronous send and returns the provider's
// message id when it reports one.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// ConfigStore loads stored email integrations. A nil tenantID selects the
// global integration.
type ConfigStore interface {
	FindEmail(ctx context.Context, tenantID *uuid.UUID) (Config, bool, error)
}
