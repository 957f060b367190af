package templates

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"procurement_backend/platform/logger"

	"github.com/google/uuid"
)

func TestRenderConditionalBlocks(t *testing.T) {
	tpl := "Olá {{name}}! {{#if urgent}}Urgente!{{/if}}"

	if got := Render(tpl, map[string]any{"name": "Ana"}).Text; got != "Olá Ana! " {
		t.Fatalf("got %q", got)
	}
	if got := Render(tpl, map[string]any{"name": "Ana", "urgent": true}).Text; got != "Olá Ana! Urgente!" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderNestedAndFalsyValues(t *testing.T) {
	tpl := "{{#if a}}A{{#if b}}B{{/if}}{{/if}}|{{#if zero}}Z{{/if}}|{{#if empty}}E{{/if}}|{{#if list}}L{{/if}}"
	got := Render(tpl, map[string]any{"a": "x", "b": 0, "zero": 0.0, "empty": "  ", "list": []string{"i"}}).Text
	if got != "A|||L" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderReportsUnresolvedPlaceholders(t *testing.T) {
	out := Render("{{ name }} {{missing}} {{supplier.name}} {{other}}", map[string]any{
		"name":     "Ana",
		"supplier": map[string]any{"name": "ACME"},
	})
	if out.Text != "Ana {{missing}} ACME {{other}}" {
		t.Fatalf("got %q", out.Text)
	}
	if !reflect.DeepEqual(out.Unresolved, []string{"missing", "other"}) {
		t.Fatalf("unexpected unresolved %v", out.Unresolved)
	}
}

type fakeStore struct {
	defaults map[string]*Template
	active   map[string]*Template
	err      error
}

func scopeKey(orgID *uuid.UUID, purpose Purpose) string {
	if orgID == nil {
		return "global|" + string(purpose)
	}
	return orgID.String() + "|" + string(purpose)
}

func (s fakeStore) FindDefault(_ context.Context, orgID *uuid.UUID, purpose Purpose) (*Template, error) {
	if s.err != nil {
		return nil, s.err
	}
	if t, ok := s.defaults[scopeKey(orgID, purpose)]; ok {
		c := *t
		return &c, nil
	}
	return nil, nil
}

func (s fakeStore) FindActive(_ context.Context, orgID *uuid.UUID, purpose Purpose) (*Template, error) {
	if s.err != nil {
		return nil, s.err
	}
	if t, ok := s.active[scopeKey(orgID, purpose)]; ok {
		c := *t
		return &c, nil
	}
	return nil, nil
}

func TestResolverSelectionOrder(t *testing.T) {
	tenant := uuid.New()
	p := PurposeQuoteReminder
	store := fakeStore{
		defaults: map[string]*Template{
			scopeKey(&tenant, p): {Body: "tenant default"},
			scopeKey(nil, p):     {Body: "global default"},
		},
		active: map[string]*Template{
			scopeKey(&tenant, p): {Body: "tenant active"},
			scopeKey(nil, p):     {Body: "global active"},
		},
	}

	cases := []struct {
		name   string
		mutate func(s *fakeStore)
		want   Source
	}{
		{"tenant default", func(*fakeStore) {}, SourceTenantDefault},
		{"tenant active", func(s *fakeStore) { delete(s.defaults, scopeKey(&tenant, p)) }, SourceTenantActive},
		{"global default", func(s *fakeStore) { delete(s.active, scopeKey(&tenant, p)) }, SourceGlobalDefault},
		{"global active", func(s *fakeStore) { delete(s.defaults, scopeKey(nil, p)) }, SourceGlobalActive},
		{"fallback", func(s *fakeStore) { delete(s.active, scopeKey(nil, p)) }, SourceFallback},
	}

	for _, tc := range cases {
		tc.mutate(&store)
		r, err := NewResolver(store, logger.Discard())
		if err != nil {
			t.Fatalf("new resolver: %v", err)
		}
		tpl, err := r.Resolve(context.Background(), tenant, p)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if tpl.Source != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, tpl.Source)
		}
	}
}

func TestResolverSkipsFailingStore(t *testing.T) {
	r, err := NewResolver(fakeStore{err: errors.New("db down")}, logger.Discard())
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	msg, err := r.Render(context.Background(), uuid.New(), PurposeProposalApproved, map[string]any{
		"supplier_name": "ACME",
		"quote_title":   "Parafusos",
		"amount":        "R$ 950,00",
		"company_name":  "Compras SA",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if msg.Source != SourceFallback || len(msg.Unresolved) != 0 {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !strings.Contains(msg.Body, "R$ 950,00") || !strings.Contains(msg.Subject, "Parafusos") {
		t.Fatalf("unexpected body %q", msg.Body)
	}
}

func TestEveryPurposeHasFallback(t *testing.T) {
	fallbacks, err := loadFallbacks()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, p := range []Purpose{
		PurposeQuoteNotification, PurposeRegistrationInvite, PurposeQuoteReminder,
		PurposeProposalApproved, PurposeProposalRejected, PurposeNegotiationOpening, PurposeApprovalRequest,
	} {
		if strings.TrimSpace(fallbacks[p].Body) == "" {
			t.Fatalf("missing fallback for %s", p)
		}
	}
}

func TestRenderDropsEmptyOptionalSections(t *testing.T) {
	r, _ := NewResolver(nil, logger.Discard())
	msg, err := r.Render(context.Background(), uuid.Nil, PurposeQuoteNotification, map[string]any{
		"supplier_name": "ACME", "company_name": "Compras SA", "quote_title": "Parafusos",
		"items": "- Parafuso M8 x 100", "link": "https://x/r",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(msg.Body, "\n\n\n") || strings.Contains(msg.Body, "Prazo") {
		t.Fatalf("optional sections not removed cleanly: %q", msg.Body)
	}
}
