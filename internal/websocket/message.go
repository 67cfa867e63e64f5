package websocket

import (
	"encoding/json"
	"time"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
)

type MessageType string

const (
	// TypeEvent carries a domain event fanned out to the identities it
	// concerns. Delivery is best effort; clients reconcile through the
	// REST surface after a reconnect.
	TypeEvent MessageType = "event"
	TypeAck   MessageType = "ack"
	TypePing  MessageType = "ping"
	TypePong  MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type AckPayload struct {
	MessageID string `json:"message_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}

func NewEventMessage(event domain.Event) (*Message, error) {
	return NewMessage(TypeEvent, event)
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
