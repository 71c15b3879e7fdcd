package domain

import (
	"encoding/json"
	"time"
)

// Inbound event types.
const (
	EventAuth           = "auth"
	EventSendMessage    = "send_message"
	EventTyping         = "typing"
	EventMarkRead       = "mark_read"
	EventUpdateLocation = "update_location"
)

// Outbound event types. EventTyping is used in both directions.
const (
	EventReady           = "ready"
	EventNewMessage      = "new_message"
	EventPresenceChanged = "presence_changed"
	EventNotification    = "notification"
	EventMessagesRead    = "messages_read"
	EventError           = "error"
)

// Envelope is the frame exchanged on a gateway connection.
type Envelope struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is an outbound event before encoding.
type Event struct {
	Type    string `json:"type"`
	Ref     string `json:"ref,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// ReadyPayload is pushed once a connection becomes Active.
type ReadyPayload struct {
	UserID string `json:"user_id"`
	ConnID string `json:"conn_id"`
}

type TypingPayload struct {
	FromUserID string `json:"from_user_id"`
	IsTyping   bool   `json:"is_typing"`
}

type PresencePayload struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

type MessagesReadPayload struct {
	ReaderID      string    `json:"reader_id"`
	CounterpartID string    `json:"counterpart_id"`
	Count         int       `json:"count"`
	ReadAt        time.Time `json:"read_at"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorEvent builds an error event referring to the inbound event ref.
func NewErrorEvent(ref, code, msg string) Event {
	return Event{Type: EventError, Ref: ref, Payload: ErrorPayload{Code: code, Message: msg}}
}
