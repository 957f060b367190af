package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestMaskTarget(t *testing.T) {
	cases := map[string]string{
		"5511988887777":         "*********7777",
		"+55 (11) 98888-7777":   "*********7777",
		"compras@fornecedor.br": "c***@fornecedor.br",
		"123":                   "****",
		"":                      "",
	}
	for in, want := range cases {
		if got := MaskTarget(in); got != want {
			t.Fatalf("MaskTarget(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeliveryAttemptDoesNotLogFullRecipient(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter("production", &buf)

	log.DeliveryAttempt(context.Background(), "whatsapp", "env", "5511988887777", false, "gateway down")
	log.DeliveryAttempt(context.Background(), "email", "env", "compras@fornecedor.br", true, "")

	out := buf.String()
	if strings.Contains(out, "5511988887777") || strings.Contains(out, "compras@") {
		t.Fatalf("recipient leaked into logs: %s", out)
	}
	if !strings.Contains(out, "*********7777") || !strings.Contains(out, "c***@fornecedor.br") {
		t.Fatalf("expected masked recipients, got %s", out)
	}
}
