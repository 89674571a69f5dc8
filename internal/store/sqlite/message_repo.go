package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"realtime_go/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

const messageColumns = `id, conversation_id, sender_id, seq, content, file_path, file_type, created_at, edited_at, is_deleted`

func scanMessage(row interface{ Scan(...any) error }) (*domain.Message, error) {
	m := &domain.Message{}
	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.SenderID,
		&m.Seq,
		&m.Content,
		&m.FilePath,
		&m.FileType,
		&m.CreatedAt,
		&m.EditedAt,
		&m.IsDeleted,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Create bumps the conversation's sequence counter and inserts the message in
// one transaction, so seq is monotonic per conversation regardless of
// wall-clock skew across callers.
func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET last_seq = last_seq + 1, updated_at = ? WHERE id = ?
	`, now, m.ConversationID); err != nil {
		return fmt.Errorf("bump sequence: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `
		SELECT last_seq FROM conversations WHERE id = ?
	`, m.ConversationID).Scan(&seq); err != nil {
		return fmt.Errorf("read sequence: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, seq, content, file_path, file_type, created_at, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	`, m.ConversationID, m.SenderID, seq, m.Content, m.FilePath, m.FileType, now)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	m.ID = id
	m.Seq = seq
	m.CreatedAt = now
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+` FROM messages WHERE id = ?
	`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (r *MessageRepo) UpdateContent(ctx context.Context, m *domain.Message) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE messages SET content = ?, edited_at = ? WHERE id = ?
	`, m.Content, m.EditedAt, m.ID); err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

func (r *MessageRepo) SoftDelete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE messages SET content = '', is_deleted = 1 WHERE id = ?
	`, id); err != nil {
		return fmt.Errorf("soft delete message: %w", err)
	}
	return nil
}

func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID int64, limit int) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r *MessageRepo) ListUnreadIDs(ctx context.Context, conversationID, userID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id
		FROM messages m
		LEFT JOIN read_marks rm ON rm.message_id = m.id AND rm.user_id = ?
		WHERE m.conversation_id = ? AND m.sender_id <> ? AND rm.read_at IS NULL
		ORDER BY m.seq ASC
	`, userID, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
