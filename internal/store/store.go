// Package store persists chat messages and media payloads. The hub calls
// it synchronously from event handlers; there are no retries.
package store

import (
	"context"

	"github.com/parlor-social/realtime-hub/internal/model"
)

// MessageStore is the persistence collaborator consumed by the message
// relay. Conversation serves the history fetch used by the HTTP layer.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *model.Message) error
	Conversation(ctx context.Context, userA, userB string, limit int) ([]model.Message, error)
	Close() error
}

// BlobStore holds image and voice payload bytes; messages carry only the
// reference it returns.
type BlobStore interface {
	Save(kind string, data []byte, mimeType string) (ref string, err error)
}
