// Package templates selects the message template for a purpose and tenant
// and renders it with placeholder substitution.
package templates

import (
	"context"
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"procurement_backend/platform/apperr"
	"procurement_backend/platform/logger"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Purpose identifies what a message is for.
type Purpose string

const (
	PurposeQuoteNotification  Purpose = "quote_notification"
	PurposeRegistrationInvite Purpose = "registration_invite"
	PurposeQuoteReminder      Purpose = "quote_reminder"
	PurposeProposalApproved   Purpose = "proposal_approved"
	PurposeProposalRejected   Purpose = "proposal_rejected"
	PurposeNegotiationOpening Purpose = "negotiation_opening"
	PurposeApprovalRequest    Purpose = "approval_request"
)

// Source records which resolver produced a template.
type Source string

const (
	SourceTenantDefault Source = "tenant_default"
	SourceTenantActive  Source = "tenant_active"
	SourceGlobalDefault Source = "global_default"
	SourceGlobalActive  Source = "global_active"
	SourceFallback      Source = "fallback"
)

// Template is a selected, unrendered template.
type Template struct {
	ID      *uuid.UUID
	Subject string
	Body    string
	Source  Source
}

// Message is a rendered template.
type Message struct {
	Subject    string
	Body       string
	Source     Source
	Unresolved []string
}

// Store looks templates up by scope. A nil orgID means the global catalog.
// Implementations return nil, nil when nothing matches.
type Store interface {
	FindDefault(ctx context.Context, orgID *uuid.UUID, purpose Purpose) (*Template, error)
	FindActive(ctx context.Context, orgID *uuid.UUID, purpose Purpose) (*Template, error)
}

//go:embed fallbacks.yaml
var fallbackYAML []byte

type fallbackEntry struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

func loadFallbacks() (map[Purpose]fallbackEntry, error) {
	var raw map[string]fallbackEntry
	if err := yaml.Unmarshal(fallbackYAML, &raw); err != nil {
		return nil, fmt.Errorf("parse fallback templates: %w", err)
	}
	out := make(map[Purpose]fallbackEntry, len(raw))
	for k, v := range raw {
		out[Purpose(k)] = v
	}
	return out, nil
}

type resolverStep struct {
	source Source
	find   func(ctx context.Context, tenantID uuid.UUID, purpose Purpose) (*Template, error)
}

// Resolver walks tenant default, tenant active, global default, global
// active and the built-in fallback, in that order.
type Resolver struct {
	steps     []resolverStep
	fallbacks map[Purpose]fallbackEntry
	log       *logger.Logger
}

func NewResolver(store Store, log *logger.Logger) (*Resolver, error) {
	fallbacks, err := loadFallbacks()
	if err != nil {
		return nil, err
	}

	var steps []resolverStep
	if store != nil {
		tenantScoped := func(find func(context.Context, *uuid.UUID, Purpose) (*Template, error)) func(context.Context, uuid.UUID, Purpose) (*Template, error) {
			return func(ctx context.Context, tenantID uuid.UUID, purpose Purpose) (*Template, error) {
				if tenantID == uuid.Nil {
					return nil, nil
				}
				return find(ctx, &tenantID, purpose)
			}
		}
		global := func(find func(context.Context, *uuid.UUID, Purpose) (*Template, error)) func(context.Context, uuid.UUID, Purpose) (*Template, error) {
			return func(ctx context.Context, _ uuid.UUID, purpose Purpose) (*Template, error) {
				return find(ctx, nil, purpose)
			}
		}
		steps = []resolverStep{
			{source: SourceTenantDefault, find: tenantScoped(store.FindDefault)},
			{source: SourceTenantActive, find: tenantScoped(store.FindActive)},
			{source: SourceGlobalDefault, find: global(store.FindDefault)},
			{source: SourceGlobalActive, find: global(store.FindActive)},
		}
	}

	return &Resolver{steps: steps, fallbacks: fallbacks, log: log}, nil
}

// Resolve returns the most specific template for purpose. Store failures
// are logged and the next step is tried.
func (r *Resolver) Resolve(ctx context.Context, tenantID uuid.UUID, purpose Purpose) (Template, error) {
	for _, step := range r.steps {
		tpl, err := step.find(ctx, tenantID, purpose)
		if err != nil {
			r.log.WarnContext(ctx, "template lookup failed", "source", step.source, "purpose", purpose, "error", err)
			continue
		}
		if tpl == nil || strings.TrimSpace(tpl.Body) == "" {
			continue
		}
		tpl.Source = step.source
		return *tpl, nil
	}

	fb, ok := r.fallbacks[purpose]
	if !ok {
		return Template{}, apperr.NotFound("no template for purpose " + string(purpose))
	}
	return Template{Subject: fb.Subject, Body: fb.Body, Source: SourceFallback}, nil
}

var extraBlankLines = regexp.MustCompile(`\n{3,}`)

// Render resolves and renders the template for purpose. Unresolved
// placeholders are logged and returned, never treated as failure.
func (r *Resolver) Render(ctx context.Context, tenantID uuid.UUID, purpose Purpose, vars map[string]any) (Message, error) {
	tpl, err := r.Resolve(ctx, tenantID, purpose)
	if err != nil {
		return Message{}, err
	}

	subject := Render(tpl.Subject, vars)
	body := Render(tpl.Body, vars)

	msg := Message{
		Subject:    strings.TrimSpace(subject.Text),
		Body:       strings.TrimSpace(extraBlankLines.ReplaceAllString(body.Text, "\n\n")),
		Source:     tpl.Source,
		Unresolved: mergeNames(subject.Unresolved, body.Unresolved),
	}
	if len(msg.Unresolved) > 0 {
		r.log.WarnContext(ctx, "template placeholders unresolved",
			"purpose", purpose, "source", tpl.Source, "placeholders", msg.Unresolved)
	}
	return msg, nil
}

func mergeNames(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range [][]string{a, b} {
		for _, n := range list {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}
