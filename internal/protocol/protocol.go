// Package protocol defines the typed message envelope shared by both peers.
// Payloads are plain structs over primitive and associative types only, so
// every message round-trips exactly through JSON.
package protocol

import (
	"encoding/json"
)

type Type string

const (
	TypeHello            Type = "Hello"
	TypeWelcome          Type = "Welcome"
	TypeCommand          Type = "Command"
	TypeCommandAccepted  Type = "CommandAccepted"
	TypeCommandRejected  Type = "CommandRejected"
	TypeStateSync        Type = "StateSync"
	TypePhaseChanged     Type = "PhaseChanged"
	TypeCombatCheckpoint Type = "CombatCheckpoint"
	TypeMatchOver        Type = "MatchOver"
	TypeError            Type = "Error"
	TypePing             Type = "Ping"
	TypePong             Type = "Pong"
)

var knownTypes = map[Type]bool{
	TypeHello:            true,
	TypeWelcome:          true,
	TypeCommand:          true,
	TypeCommandAccepted:  true,
	TypeCommandRejected:  true,
	TypeStateSync:        true,
	TypePhaseChanged:     true,
	TypeCombatCheckpoint: true,
	TypeMatchOver:        true,
	TypeError:            true,
	TypePing:             true,
	TypePong:             true,
}

// Message is the wire envelope. Payload is kept raw so the envelope decodes
// without knowing the payload shape; DecodePayload recovers the typed form.
type Message struct {
	Type     Type            `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	SenderID string          `json:"sender_id,omitempty"`
}

// Error means a malformed or unknown message arrived. The session layer
// treats it as fatal for the connection: a peer speaking a different dialect
// can only desynchronize us.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return "protocol: " + e.Reason }

// Encode builds a serialized envelope around a payload struct.
func Encode(t Type, payload any, senderID string) ([]byte, error) {
	m := Message{Type: t, SenderID: senderID}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, &Error{Reason: "encode payload: " + err.Error()}
		}
		m.Payload = raw
	}
	return json.Marshal(m)
}

// Decode parses an envelope and rejects unknown message types outright
// rather than defaulting.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, &Error{Reason: "malformed envelope: " + err.Error()}
	}
	if !knownTypes[m.Type] {
		return Message{}, &Error{Reason: "unknown message type " + string(m.Type)}
	}
	return m, nil
}

// DecodePayload unmarshals the envelope payload into the expected shape.
func DecodePayload[T any](m Message) (T, error) {
	var out T
	if len(m.Payload) == 0 {
		return out, &Error{Reason: "empty payload for " + string(m.Type)}
	}
	if err := json.Unmarshal(m.Payload, &out); err != nil {
		return out, &Error{Reason: "payload for " + string(m.Type) + ": " + err.Error()}
	}
	return out, nil
}
