package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	// RoleUser is a message sent by the end user.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the model.
	RoleAssistant Role = "assistant"
)

// ChatMessage is a single persisted turn in a chat session.
type ChatMessage struct {
	// SessionID groups messages into one conversation.
	SessionID string
	// DocumentID is the document the conversation is about.
	DocumentID string
	// Role is the author of the message.
	Role Role
	// Content is the text of the message.
	Content string
	// Sources holds the retrieved chunk excerpts that grounded an assistant
	// message. Empty for user messages.
	Sources []string
	// CreatedAt is when the message was persisted.
	CreatedAt time.Time
}

// ConversationStore persists and retrieves chat history keyed by session.
// Implementations must be safe for concurrent use.
type ConversationStore interface {
	// EnsureSession records the session if it is not already known.
	EnsureSession(ctx context.Context, sessionID, documentID string) error
	// AppendMessage persists a single message.
	AppendMessage(ctx context.Context, msg *ChatMessage) error
	// RecentMessages returns the most recent n messages for the session,
	// ordered oldest-first so they can be fed to the model directly.
	RecentMessages(ctx context.Context, sessionID string, n int) ([]ChatMessage, error)
	// SessionHistory returns every message in the session, oldest-first.
	SessionHistory(ctx context.Context, sessionID string) ([]ChatMessage, error)
}

// EnsureSession records the session if it is not already known.
func (s *SQLiteStore) EnsureSession(ctx context.Context, sessionID, documentID string) error {
	const q = `INSERT OR IGNORE INTO chat_sessions (id, document_id, created_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, sessionID, documentID, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: ensure session: %w", err)
	}
	return nil
}

// AppendMessage persists a single message.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *ChatMessage) error {
	sources := msg.Sources
	if sources == nil {
		sources = []string{}
	}
	encoded, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("store: encode sources: %w", err)
	}
	const q = `
INSERT INTO chat_messages (session_id, document_id, role, content, sources, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		msg.SessionID, msg.DocumentID, string(msg.Role), msg.Content, string(encoded), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}
	return nil
}

// RecentMessages returns the most recent n messages for the session, ordered
// oldest-first. Uses a subquery to select the tail then re-order for injection.
func (s *SQLiteStore) RecentMessages(ctx context.Context, sessionID string, n int) ([]ChatMessage, error) {
	const q = `
SELECT session_id, document_id, role, content, sources, created_at FROM (
    SELECT id, session_id, document_id, role, content, sources, created_at
    FROM   chat_messages
    WHERE  session_id = ?
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY created_at ASC, id ASC`
	return s.queryMessages(ctx, q, sessionID, n)
}

// SessionHistory returns every message in the session, oldest-first.
func (s *SQLiteStore) SessionHistory(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	const q = `
SELECT session_id, document_id, role, content, sources, created_at
FROM   chat_messages
WHERE  session_id = ?
ORDER  BY created_at ASC, id ASC`
	return s.queryMessages(ctx, q, sessionID)
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query messages: %w", err)
	}
	defer rows.Close()

	var msgs []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var role, sources string
		var ts int64
		if err := rows.Scan(&m.SessionID, &m.DocumentID, &role, &m.Content, &sources, &ts); err != nil {
			return nil, fmt.Errorf("store: message scan: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt = time.Unix(ts, 0)
		if err := json.Unmarshal([]byte(sources), &m.Sources); err != nil {
			return nil, fmt.Errorf("store: decode sources: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: message rows: %w", err)
	}
	return msgs, nil
}
