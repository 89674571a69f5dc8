package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens a SQLite database with the given DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL for the conversation store schema.
func Migrate(db *sql.DB) error {
	stmts := []string{
		// Users (participant directory)
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			email VARCHAR(100) UNIQUE,
			hashed_password VARCHAR(255) NOT NULL,
			is_active BOOLEAN DEFAULT TRUE,
			unread_notifications INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_seen DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		// Conversations; last_seq is the per-conversation message counter
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY,
			kind VARCHAR(10) NOT NULL DEFAULT 'direct',
			name VARCHAR(100),
			description TEXT,
			owner_id INTEGER REFERENCES users(id),
			is_private BOOLEAN NOT NULL DEFAULT FALSE,
			allow_member_invites BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_seq INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		// Memberships with roles
		`CREATE TABLE IF NOT EXISTS conversation_members (
			conversation_id INTEGER NOT NULL REFERENCES conversations(id),
			user_id INTEGER NOT NULL REFERENCES users(id),
			role VARCHAR(10) NOT NULL DEFAULT 'member',
			joined_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (conversation_id, user_id)
		);`,
		// Messages: seq is unique per conversation and assigned at insert
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY,
			conversation_id INTEGER NOT NULL REFERENCES conversations(id),
			sender_id INTEGER NOT NULL REFERENCES users(id),
			seq INTEGER NOT NULL,
			content TEXT NOT NULL,
			file_path TEXT DEFAULT NULL,
			file_type TEXT DEFAULT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			edited_at DATETIME DEFAULT NULL,
			is_deleted BOOLEAN NOT NULL DEFAULT 0,
			UNIQUE (conversation_id, seq)
		);`,
		// Per-recipient delivery/read markers
		`CREATE TABLE IF NOT EXISTS read_marks (
			message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL REFERENCES users(id),
			delivered_at DATETIME DEFAULT NULL,
			read_at DATETIME DEFAULT NULL,
			is_starred BOOLEAN NOT NULL DEFAULT 0,
			PRIMARY KEY (message_id, user_id)
		);`,
		// Notifications with the dedup lookup key
		`CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY,
			recipient_id INTEGER NOT NULL REFERENCES users(id),
			sender_id INTEGER NOT NULL REFERENCES users(id),
			type VARCHAR(20) NOT NULL,
			related_id INTEGER DEFAULT NULL,
			body TEXT NOT NULL DEFAULT '',
			is_read BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_kind ON conversations(kind);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_conv_members_user ON conversation_members(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_conv_members_conv ON conversation_members(conversation_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_seq ON messages(conversation_id, seq DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id);`,
		`CREATE INDEX IF NOT EXISTS idx_read_marks_user ON read_marks(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, is_read);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_dedup
			ON notifications(recipient_id, type, sender_id, related_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
