package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL for the conversation store schema on PostgreSQL.
func Migrate(db *sql.DB) error {
	stmts := []string{
		// Users (participant directory)
		`CREATE TABLE IF NOT EXISTS users (
			id                   BIGSERIAL    PRIMARY KEY,
			username             VARCHAR(50)  UNIQUE NOT NULL,
			email                VARCHAR(100) UNIQUE,
			hashed_password      VARCHAR(255) NOT NULL,
			is_active            BOOLEAN      NOT NULL DEFAULT TRUE,
			unread_notifications INTEGER      NOT NULL DEFAULT 0,
			created_at           TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			last_seen            TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		// Conversations; last_seq is the per-conversation message counter
		`CREATE TABLE IF NOT EXISTS conversations (
			id                   BIGSERIAL    PRIMARY KEY,
			kind                 VARCHAR(10)  NOT NULL DEFAULT 'direct',
			name                 VARCHAR(100),
			description          TEXT,
			owner_id             BIGINT       REFERENCES users(id),
			is_private           BOOLEAN      NOT NULL DEFAULT FALSE,
			allow_member_invites BOOLEAN      NOT NULL DEFAULT FALSE,
			is_active            BOOLEAN      NOT NULL DEFAULT TRUE,
			last_seq             BIGINT       NOT NULL DEFAULT 0,
			created_at           TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at           TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		// Memberships with roles
		`CREATE TABLE IF NOT EXISTS conversation_members (
			conversation_id BIGINT      NOT NULL REFERENCES conversations(id),
			user_id         BIGINT      NOT NULL REFERENCES users(id),
			role            VARCHAR(10) NOT NULL DEFAULT 'member',
			joined_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (conversation_id, user_id)
		)`,

		// Messages: seq is unique per conversation and assigned at insert
		`CREATE TABLE IF NOT EXISTS messages (
			id              BIGSERIAL   PRIMARY KEY,
			conversation_id BIGINT      NOT NULL REFERENCES conversations(id),
			sender_id       BIGINT      NOT NULL REFERENCES users(id),
			seq             BIGINT      NOT NULL,
			content         TEXT        NOT NULL,
			file_path       TEXT,
			file_type       TEXT,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			edited_at       TIMESTAMPTZ,
			is_deleted      BOOLEAN     NOT NULL DEFAULT FALSE,
			UNIQUE (conversation_id, seq)
		)`,

		// Per-recipient delivery/read markers
		`CREATE TABLE IF NOT EXISTS read_marks (
			message_id   BIGINT      NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			user_id      BIGINT      NOT NULL REFERENCES users(id),
			delivered_at TIMESTAMPTZ,
			read_at      TIMESTAMPTZ,
			is_starred   BOOLEAN     NOT NULL DEFAULT FALSE,
			PRIMARY KEY (message_id, user_id)
		)`,

		// Notifications with the dedup lookup key
		`CREATE TABLE IF NOT EXISTS notifications (
			id           BIGSERIAL   PRIMARY KEY,
			recipient_id BIGINT      NOT NULL REFERENCES users(id),
			sender_id    BIGINT      NOT NULL REFERENCES users(id),
			type         VARCHAR(20) NOT NULL,
			related_id   BIGINT,
			body         TEXT        NOT NULL DEFAULT '',
			is_read      BOOLEAN     NOT NULL DEFAULT FALSE,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_kind ON conversations(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_conv_members_user ON conversation_members(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conv_members_conv ON conversation_members(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_seq ON messages(conversation_id, seq DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id)`,
		`CREATE INDEX IF NOT EXISTS idx_read_marks_user ON read_marks(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, is_read)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_dedup
			ON notifications(recipient_id, type, sender_id, related_id, created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}
