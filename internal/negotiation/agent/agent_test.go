package agent

import (
	"testing"

	"procurement_backend/internal/negotiation/ports"
)

func TestParseClassification(t *testing.T) {
	cases := []struct {
		name       string
		text       string
		intent     ports.Intent
		amount     float64
		hasAmount  bool
		confidence int
	}{
		{
			name:       "plain JSON",
			text:       `{"intent":"counter_offer","amount":950,"confidence":88}`,
			intent:     ports.IntentCounterOffer,
			amount:     950,
			hasAmount:  true,
			confidence: 88,
		},
		{
			name:       "fenced with prose",
			text:       "Claro:\n```json\n{\"intent\":\"ACCEPTED\",\"amount\":null,\"confidence\":0.92}\n```",
			intent:     ports.IntentAccepted,
			confidence: 92,
		},
		{
			name:       "brazilian amount string",
			text:       `{"intent":"counter_offer","amount":"R$ 1.234,50","confidence":75}`,
			intent:     ports.IntentCounterOffer,
			amount:     1234.5,
			hasAmount:  true,
			confidence: 75,
		},
		{
			name:       "missing confidence",
			text:       `{"intent":"question"}`,
			intent:     ports.IntentQuestion,
			confidence: 0,
		},
	}
	for _, tc := range cases {
		got, err := parseClassification(tc.text)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got.Intent != tc.intent || got.Confidence != tc.confidence {
			t.Fatalf("%s: got %+v", tc.name, got)
		}
		if tc.hasAmount != (got.Amount != nil) {
			t.Fatalf("%s: amount presence mismatch: %+v", tc.name, got)
		}
		if tc.hasAmount && *got.Amount != tc.amount {
			t.Fatalf("%s: expected amount %v, got %v", tc.name, tc.amount, *got.Amount)
		}
	}
}

func TestParseClassificationRejectsGarbage(t *testing.T) {
	for _, text := range []string{
		"I think they accepted",
		`{"intent":"maybe","confidence":50}`,
		`{"intent":"accepted","amount":"lots","confidence":90}`,
	} {
		if _, err := parseClassification(text); err == nil {
			t.Fatalf("expected error for %q", text)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	got, err := parseStrategy("```json\n{\"analysis\":\" Preço alto \",\"strategy\":\"Pedir 8%\",\"targetDiscount\":8}\n```")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Analysis != "Preço alto" || got.Strategy != "Pedir 8%" || got.TargetDiscount != 8 {
		t.Fatalf("unexpected draft: %+v", got)
	}

	if _, err := parseStrategy(`{"analysis":"x","strategy":"y"}`); err == nil {
		t.Fatal("missing discount must fail so the caller falls back")
	}
}

func TestCleanOpening(t *testing.T) {
	got, err := cleanOpening("\"Olá Ana, podemos fechar por R$ 900,00?\"\n")
	if err != nil || got != "Olá Ana, podemos fechar por R$ 900,00?" {
		t.Fatalf("unexpected: %q, %v", got, err)
	}
	if _, err := cleanOpening("   "); err == nil {
		t.Fatal("empty output must fail")
	}
}
