package model

import (
	"bytes"
	"encoding/json"
)

// Message is the wire format delivered to chat clients. The schema is
// closed: exactly these two fields, nothing else.
type Message struct {
	Text   string `json:"text"`
	IsSelf bool   `json:"is_self"`
}

// DecodeMessage parses b into a Message, rejecting unknown fields so that
// foreign producers cannot widen the wire contract unnoticed.
func DecodeMessage(b []byte) (Message, error) {
	var msg Message
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Wire is the per-connection channel pair owned by a chat session.
// RX carries raw inbound text frames from the client, TX carries outbound
// messages towards it. Done is closed by the registry when the session is
// replaced by a newer connection with the same participant id.
//
// Wire values are comparable; the registry relies on channel identity to
// tell two sessions of the same participant apart.
type Wire struct {
	RX   chan string
	TX   chan Message
	Done chan struct{}
}

func NewWire() Wire {
	return Wire{
		RX:   make(chan string),
		TX:   make(chan Message),
		Done: make(chan struct{}),
	}
}
