package audit

import (
	"testing"

	"procurement_backend/platform/apperr"
)

func TestNormalizeDefaultsSeverityAndDetails(t *testing.T) {
	e, err := normalize(Entry{Action: " INBOUND_MESSAGE ", EntityType: "negotiation"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Action != ActionInboundMessage {
		t.Fatalf("expected trimmed action, got %q", e.Action)
	}
	if e.Severity != SeverityInfo {
		t.Fatalf("expected info severity, got %q", e.Severity)
	}
	if e.Details == nil {
		t.Fatal("expected empty details map")
	}
}

func TestNormalizeRejectsIncompleteEntries(t *testing.T) {
	cases := []Entry{
		{EntityType: "quote"},
		{Action: ActionProposalAwarded},
		{Action: ActionProposalAwarded, EntityType: "quote", Severity: "fatal"},
	}
	for _, c := range cases {
		if _, err := normalize(c); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("expected validation error for %+v, got %v", c, err)
		}
	}
}
