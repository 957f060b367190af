package transport

import (
	"encoding/json"
	"testing"
)

func TestInboundExtractsText(t *testing.T) {
	cases := []struct {
		name  string
		event string
		data  string
		phone string
		text  string
	}{
		{
			name:  "conversation",
			event: "messages.upsert",
			data:  `{"key":{"remoteJid":"5511988887777@s.whatsapp.net","id":"A1"},"pushName":"Ana","message":{"conversation":" aceito "}}`,
			phone: "5511988887777",
			text:  "aceito",
		},
		{
			name:  "extended text with device suffix",
			event: "MESSAGES_UPSERT",
			data:  `{"key":{"remoteJid":"5511988887777:12@s.whatsapp.net"},"message":{"extendedTextMessage":{"text":"fecho por 950"}}}`,
			phone: "5511988887777",
			text:  "fecho por 950",
		},
		{
			name:  "batched image caption",
			event: "messages.upsert",
			data:  `[{"key":{"remoteJid":"5511988887777@s.whatsapp.net"},"message":{"imageMessage":{"caption":"segue proposta"}}}]`,
			phone: "5511988887777",
			text:  "segue proposta",
		},
	}
	for _, tc := range cases {
		msg, ok := EvolutionWebhook{Event: tc.event, Data: json.RawMessage(tc.data)}.Inbound()
		if !ok {
			t.Fatalf("%s: expected a message", tc.name)
		}
		if msg.Phone != tc.phone || msg.Text != tc.text {
			t.Fatalf("%s: got phone=%q text=%q", tc.name, msg.Phone, msg.Text)
		}
	}
}

func TestInboundRejectsOtherPayloads(t *testing.T) {
	cases := []EvolutionWebhook{
		{Event: "connection.update", Data: json.RawMessage(`{"state":"open"}`)},
		{Event: "messages.upsert", Data: json.RawMessage(`{"key":{"remoteJid":"1203630@g.us"},"message":{"conversation":"oi"}}`)},
		{Event: "messages.upsert", Data: json.RawMessage(`{"key":{"remoteJid":"status@broadcast"},"message":{"conversation":"oi"}}`)},
		{Event: "messages.upsert", Data: json.RawMessage(`"nope"`)},
		{Event: "messages.upsert", Data: json.RawMessage(`[]`)},
	}
	for i, w := range cases {
		if _, ok := w.Inbound(); ok {
			t.Fatalf("case %d: expected payload to be rejected", i)
		}
	}
}

func TestInboundKeepsFromMe(t *testing.T) {
	msg, ok := EvolutionWebhook{
		Event: "messages.upsert",
		Data:  json.RawMessage(`{"key":{"remoteJid":"5511988887777@s.whatsapp.net","fromMe":true},"message":{"conversation":"oi"}}`),
	}.Inbound()
	if !ok || !msg.FromMe {
		t.Fatalf("expected self-sent flag, got %+v ok=%v", msg, ok)
	}
}
