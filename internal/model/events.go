package model

import (
	"encoding/json"
	"time"
)

// Inbound event types (client -> hub)
const (
	EventRegister     = "register"
	EventSendText     = "send_text"
	EventSendImage    = "send_image"
	EventSendVoice    = "send_voice"
	EventCallOffer    = "call_offer"
	EventCallAnswer   = "call_answer"
	EventICECandidate = "ice_candidate"
	EventCallReject   = "call_reject"
	EventCallHangup   = "call_hangup"
	EventLivenessAck  = "liveness_ack"
)

// Outbound event types (hub -> client)
const (
	EventWelcome         = "welcome"
	EventNewTextMessage  = "new_text_message"
	EventNewImageMessage = "new_image_message"
	EventNewVoiceMessage = "new_voice_message"
	EventSendAck         = "send_ack"
	EventCallFailed      = "call_failed"
	EventLivenessProbe   = "liveness_probe"
	EventError           = "error"
)

// Failure reasons carried by call_failed events
const (
	ReasonUserOffline = "user_offline"
	ReasonBusy        = "busy"
	ReasonPeerLeft    = "peer_left"
)

// Envelope is the minimal view of an inbound event, decoded first to pick
// the concrete payload struct for the event type.
type Envelope struct {
	Type string `json:"type"`
}

// RegisterEvent binds a connection to a user identity. It must be the first
// event on every connection.
type RegisterEvent struct {
	UserID        string `json:"user_id" validate:"required"`
	DisplayHandle string `json:"display_handle"`
}

// SendTextEvent carries a text message to another user.
type SendTextEvent struct {
	To      string `json:"to" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// SendImageEvent carries an image message. Bytes arrive base64-encoded in
// the JSON payload.
type SendImageEvent struct {
	To         string `json:"to" validate:"required"`
	ImageBytes []byte `json:"image_bytes" validate:"required"`
	MimeType   string `json:"mime_type" validate:"required"`
	Width      int    `json:"width" validate:"gte=0"`
	Height     int    `json:"height" validate:"gte=0"`
}

// SendVoiceEvent carries a voice message.
type SendVoiceEvent struct {
	To              string  `json:"to" validate:"required"`
	AudioBytes      []byte  `json:"audio_bytes" validate:"required"`
	DurationSeconds float64 `json:"duration_seconds" validate:"gte=0"`
	MimeType        string  `json:"mime_type" validate:"required"`
}

// CallOfferEvent starts a call attempt. The offer payload is an opaque blob;
// the hub forwards it without inspecting it.
type CallOfferEvent struct {
	To           string          `json:"to" validate:"required"`
	OfferPayload json.RawMessage `json:"offer_payload" validate:"required"`
	CallerMeta   json.RawMessage `json:"caller_meta"`
}

// CallAnswerEvent accepts a pending call.
type CallAnswerEvent struct {
	To            string          `json:"to" validate:"required"`
	AnswerPayload json.RawMessage `json:"answer_payload" validate:"required"`
}

// ICECandidateEvent relays one ICE candidate to the other call participant.
type ICECandidateEvent struct {
	To               string          `json:"to" validate:"required"`
	CandidatePayload json.RawMessage `json:"candidate_payload" validate:"required"`
}

// CallControlEvent is the shared shape of call_reject and call_hangup.
type CallControlEvent struct {
	To string `json:"to" validate:"required"`
}

// WelcomeEvent greets a freshly registered connection.
type WelcomeEvent struct {
	Type          string `json:"type"`
	UserID        string `json:"user_id"`
	DisplayHandle string `json:"display_handle,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// NewMessageEvent is pushed to a recipient when a message for them arrives
// while they are connected.
type NewMessageEvent struct {
	Type            string    `json:"type"`
	UUID            string    `json:"uuid"`
	From            string    `json:"from"`
	Content         string    `json:"content"`
	MimeType        string    `json:"mime_type,omitempty"`
	Width           int       `json:"width,omitempty"`
	Height          int       `json:"height,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Delivery outcomes reported in send_ack events.
const (
	OutcomeDelivered     = "delivered"
	OutcomeQueuedOffline = "queued_offline"
	OutcomeFailed        = "failed"
)

// SendAckEvent confirms receipt of a send_* event to the sender.
type SendAckEvent struct {
	Type      string    `json:"type"`
	UUID      string    `json:"uuid,omitempty"`
	Outcome   string    `json:"outcome"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// CallSignalEvent is the outbound form of every forwarded or synthesized
// call event. Payload and CallerMeta pass through untouched.
type CallSignalEvent struct {
	Type       string          `json:"type"`
	From       string          `json:"from,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CallerMeta json.RawMessage `json:"caller_meta,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// LivenessProbeEvent asks the client to respond with liveness_ack.
type LivenessProbeEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorEvent reports a rejected inbound event back to its sender.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
