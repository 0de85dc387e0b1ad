package model

import (
	"encoding/json"
	"testing"
)

func TestMessageWireFormat(t *testing.T) {
	b, err := json.Marshal(&Message{Text: "hello", IsSelf: true})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var raw map[string]any
	if err = json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(raw) != 2 {
		t.Errorf("expected exactly 2 wire fields, got %d: %v", len(raw), raw)
	}
	if raw["text"] != "hello" {
		t.Errorf("unexpected text field: %v", raw["text"])
	}
	if raw["is_self"] != true {
		t.Errorf("unexpected is_self field: %v", raw["is_self"])
	}

	msg, err := DecodeMessage(b)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.Text != "hello" || !msg.IsSelf {
		t.Errorf("round trip mismatch: %+v", msg)
	}
}

func TestDecodeMessageRejectsUnknownFields(t *testing.T) {
	_, err := DecodeMessage([]byte(`{"text":"hi","is_self":false,"extra":1}`))
	if err == nil {
		t.Error("expected decode error for unknown field, got nil")
	}
}

func TestNewWire(t *testing.T) {
	wire := NewWire()
	if wire.RX == nil || wire.TX == nil || wire.Done == nil {
		t.Errorf("wire channels not initialized: %+v", wire)
	}
}
