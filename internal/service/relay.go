package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/parlor-social/realtime-hub/internal/hub"
	"github.com/parlor-social/realtime-hub/internal/model"
)

// storeTimeout bounds each synchronous persistence call.
const storeTimeout = 5 * time.Second

func (s *Service) handleSendText(sess *Session, raw []byte) {
	var ev model.SendTextEvent
	if err := s.decode(raw, &ev); err != nil {
		s.rejectMessage(sess.client, model.MessageText, "send_text requires to and content")
		return
	}
	if model.TrimmedEmpty(ev.Content) {
		s.rejectMessage(sess.client, model.MessageText, "message content is empty")
		return
	}

	s.relay(sess.client, &model.Message{
		ReceiverID: ev.To,
		Type:       model.MessageText,
		Content:    ev.Content,
	})
}

func (s *Service) handleSendImage(sess *Session, raw []byte) {
	var ev model.SendImageEvent
	if err := s.decode(raw, &ev); err != nil {
		s.rejectMessage(sess.client, model.MessageImage, "send_image requires to, image_bytes and mime_type")
		return
	}
	if len(ev.ImageBytes) == 0 {
		s.rejectMessage(sess.client, model.MessageImage, "image payload is empty")
		return
	}

	ref, err := s.blobs.Save("image", ev.ImageBytes, ev.MimeType)
	if err != nil {
		log.Printf("Failed to save image blob from %s: %v", sess.client.UserID(), err)
		s.push(sess.client, model.SendAckEvent{Type: model.EventSendAck, Outcome: model.OutcomeFailed})
		return
	}

	s.relay(sess.client, &model.Message{
		ReceiverID: ev.To,
		Type:       model.MessageImage,
		Content:    ref,
		MimeType:   ev.MimeType,
		Width:      ev.Width,
		Height:     ev.Height,
	})
}

func (s *Service) handleSendVoice(sess *Session, raw []byte) {
	var ev model.SendVoiceEvent
	if err := s.decode(raw, &ev); err != nil {
		s.rejectMessage(sess.client, model.MessageAudio, "send_voice requires to, audio_bytes and mime_type")
		return
	}
	if len(ev.AudioBytes) == 0 {
		s.rejectMessage(sess.client, model.MessageAudio, "voice payload is empty")
		return
	}

	ref, err := s.blobs.Save("voice", ev.AudioBytes, ev.MimeType)
	if err != nil {
		log.Printf("Failed to save voice blob from %s: %v", sess.client.UserID(), err)
		s.push(sess.client, model.SendAckEvent{Type: model.EventSendAck, Outcome: model.OutcomeFailed})
		return
	}

	s.relay(sess.client, &model.Message{
		ReceiverID:      ev.To,
		Type:            model.MessageAudio,
		Content:         ref,
		MimeType:        ev.MimeType,
		DurationSeconds: ev.DurationSeconds,
	})
}

// relay persists an accepted message, pushes it to the recipient if they
// are connected, and acknowledges the sender. Persistence always happens
// before the live push; there is no retry on any step.
func (s *Service) relay(sender *hub.Client, msg *model.Message) {
	msg.UUID = uuid.NewString()
	msg.CreatedAt = time.Now().UTC()
	msg.SenderID = sender.UserID()
	msg.ConversationKey = model.ConversationKey(msg.SenderID, msg.ReceiverID)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		log.Printf("Failed to persist message %s: %v", msg.UUID, err)
		s.metrics.MessageRejected(string(msg.Type), "store_error")
		s.push(sender, model.SendAckEvent{
			Type:    model.EventSendAck,
			UUID:    msg.UUID,
			Outcome: model.OutcomeFailed,
		})
		return
	}

	// Best effort: at most one push, no redelivery. An offline recipient
	// sees the message on their next history fetch.
	outcome := model.OutcomeQueuedOffline
	if recipient, ok := s.hub.Lookup(msg.ReceiverID); ok {
		s.push(recipient, model.NewMessageEvent{
			Type:            msg.Type.PushEventType(),
			UUID:            msg.UUID,
			From:            msg.SenderID,
			Content:         msg.Content,
			MimeType:        msg.MimeType,
			Width:           msg.Width,
			Height:          msg.Height,
			DurationSeconds: msg.DurationSeconds,
			CreatedAt:       msg.CreatedAt,
		})
		outcome = model.OutcomeDelivered
	}

	s.metrics.MessageRelayed(string(msg.Type), outcome)
	s.push(sender, model.SendAckEvent{
		Type:      model.EventSendAck,
		UUID:      msg.UUID,
		Outcome:   outcome,
		CreatedAt: msg.CreatedAt,
	})
}

func (s *Service) rejectMessage(c *hub.Client, msgType model.MessageType, message string) {
	s.metrics.MessageRejected(string(msgType), "invalid_payload")
	s.push(c, model.ErrorEvent{Type: model.EventError, Message: message})
}

func nowMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
