package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/parlor-social/realtime-hub/internal/model"
)

// timeLayout is RFC3339 with a fixed-width fraction so the TEXT column
// sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite implements MessageStore on a local sqlite database.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (and if needed initializes) the message database.
func OpenSQLite(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open message store: %w", err)
	}

	s := &SQLite{conn: conn}
	if err := s.init(); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

func (s *SQLite) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			uuid TEXT PRIMARY KEY,
			sender TEXT NOT NULL,
			receiver TEXT NOT NULL,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			mime_type TEXT NOT NULL DEFAULT '',
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			duration_seconds REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			conversation_key TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_key, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver
			ON messages(receiver, created_at)`,
	}

	for _, query := range queries {
		if _, err := s.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to initialize message store: %w", err)
		}
	}

	return nil
}

// AppendMessage inserts one message row. Messages are immutable; there is
// no update path.
func (s *SQLite) AppendMessage(ctx context.Context, msg *model.Message) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO messages
			(uuid, sender, receiver, type, content, mime_type, width, height, duration_seconds, created_at, conversation_key)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.UUID, msg.SenderID, msg.ReceiverID, string(msg.Type), msg.Content,
		msg.MimeType, msg.Width, msg.Height, msg.DurationSeconds,
		msg.CreatedAt.UTC().Format(timeLayout), msg.ConversationKey,
	)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// Conversation returns up to limit most recent messages between two users,
// oldest first.
func (s *SQLite) Conversation(ctx context.Context, userA, userB string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	key := model.ConversationKey(userA, userB)
	rows, err := s.conn.QueryContext(ctx,
		`SELECT uuid, sender, receiver, type, content, mime_type, width, height, duration_seconds, created_at
		 FROM (
			SELECT * FROM messages
			WHERE conversation_key = ?
			ORDER BY created_at DESC
			LIMIT ?
		 ) ORDER BY created_at ASC`,
		key, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var msg model.Message
		var msgType, createdAt string
		if err := rows.Scan(&msg.UUID, &msg.SenderID, &msg.ReceiverID, &msgType,
			&msg.Content, &msg.MimeType, &msg.Width, &msg.Height,
			&msg.DurationSeconds, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Type = model.MessageType(msgType)
		msg.ConversationKey = key
		if t, err := time.Parse(timeLayout, createdAt); err == nil {
			msg.CreatedAt = t
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
