package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/germanamz/parley/pkg/chats/message"
	"github.com/germanamz/parley/pkg/chats/role"
	"github.com/google/uuid"

	// Pure Go SQLite driver.
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
`

// SQLite is a History persisted in a SQLite database. Many conversations can
// share one database file, keyed by conversation ID. Reopening a store with
// the same conversation ID restores the full record.
type SQLite struct {
	db             *sql.DB
	conversationID string
}

var _ History = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path and binds the
// store to conversationID. An empty conversationID starts a fresh
// conversation under a new random ID.
func OpenSQLite(path, conversationID string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("history: create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}

	// SQLite supports a single writer; keep one connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("history: set pragma: %w", err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}

	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	return &SQLite{db: db, conversationID: conversationID}, nil
}

// ConversationID returns the ID this store reads and writes under.
func (s *SQLite) ConversationID() string { return s.conversationID }

// Append inserts one or more messages in a single transaction.
func (s *SQLite) Append(msgs ...message.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("history: begin tx: %w", err)
	}

	for _, m := range msgs {
		if _, err := tx.Exec(
			"INSERT INTO messages (conversation_id, role, content) VALUES (?, ?, ?)",
			s.conversationID, m.Role.String(), m.Content,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("history: insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}

	return nil
}

// Messages returns all messages for the conversation, oldest first.
func (s *SQLite) Messages() ([]message.Message, error) {
	rows, err := s.db.Query(
		"SELECT role, content FROM messages WHERE conversation_id = ? ORDER BY id",
		s.conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []message.Message
	for rows.Next() {
		var r, content string
		if err := rows.Scan(&r, &content); err != nil {
			return nil, fmt.Errorf("history: scan message: %w", err)
		}
		msgs = append(msgs, message.New(role.Role(r), content))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate messages: %w", err)
	}

	return msgs, nil
}

// Len returns the number of messages in the conversation.
func (s *SQLite) Len() (int, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM messages WHERE conversation_id = ?",
		s.conversationID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("history: count messages: %w", err)
	}
	return n, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
