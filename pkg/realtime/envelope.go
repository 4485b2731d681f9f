package realtime

import (
	"encoding/json"
	"time"
)

// Frame types exchanged with the chat relay.
const (
	TypeMessage = "message"
	TypeAck     = "ack"
	TypeError   = "error"
)

// Envelope is one JSON frame on the chat connection.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	SentAt  time.Time       `json:"sent_at,omitzero"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type MessagePayload struct {
	Content string `json:"content"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// NewMessage builds a direct message frame addressed to a user.
func NewMessage(to, content string) (Envelope, error) {
	payload, err := json.Marshal(MessagePayload{Content: content})
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: TypeMessage, To: to, Payload: payload}, nil
}

// NewError builds an error frame.
func NewError(message string) Envelope {
	payload, _ := json.Marshal(ErrorPayload{Message: message})
	return Envelope{Type: TypeError, Payload: payload}
}

func (e Envelope) DecodePayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}
