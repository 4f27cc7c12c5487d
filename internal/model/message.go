package model

import (
	"strings"
	"time"
)

// MessageType enumerates the chat payload kinds the hub relays.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageAudio MessageType = "audio"
)

// Message is a chat payload routed between two users. For image and audio
// messages Content holds a blob reference rather than the bytes themselves.
type Message struct {
	UUID            string      `json:"uuid"`
	SenderID        string      `json:"sender_id"`
	ReceiverID      string      `json:"receiver_id"`
	Type            MessageType `json:"type"`
	Content         string      `json:"content"`
	MimeType        string      `json:"mime_type,omitempty"`
	Width           int         `json:"width,omitempty"`
	Height          int         `json:"height,omitempty"`
	DurationSeconds float64     `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	ConversationKey string      `json:"conversation_key"`
}

// ConversationKey derives the order-independent identifier for a 1:1
// conversation: the two participant ids sorted and joined, so both
// directions of the same conversation map to one key.
func ConversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// PushEventType maps a message type to the outbound event name used when the
// message is pushed live, so clients dispatch on the event name alone.
func (t MessageType) PushEventType() string {
	switch t {
	case MessageImage:
		return EventNewImageMessage
	case MessageAudio:
		return EventNewVoiceMessage
	default:
		return EventNewTextMessage
	}
}

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageAudio:
		return true
	}
	return false
}

// TrimmedEmpty reports whether a text body is empty after whitespace
// trimming.
func TrimmedEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}
