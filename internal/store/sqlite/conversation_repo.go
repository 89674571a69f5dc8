package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"realtime_go/internal/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

const conversationColumns = `id, kind, name, description, owner_id, is_private, allow_member_invites, is_active, last_seq, created_at, updated_at`

func scanConversation(row interface{ Scan(...any) error }) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := row.Scan(
		&c.ID,
		&c.Kind,
		&c.Name,
		&c.Description,
		&c.OwnerID,
		&c.IsPrivate,
		&c.AllowMemberInvites,
		&c.IsActive,
		&c.LastSeq,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ConversationRepo) Create(ctx context.Context, c *domain.Conversation, members []*domain.Membership) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (kind, name, description, owner_id, is_private, allow_member_invites, is_active, last_seq, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, TRUE, 0, ?, ?)
	`, c.Kind, c.Name, c.Description, c.OwnerID, c.IsPrivate, c.AllowMemberInvites, now, now)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	c.IsActive = true
	c.CreatedAt = now
	c.UpdatedAt = now

	for _, m := range members {
		m.ConversationID = id
		m.JoinedAt = now
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_members (conversation_id, user_id, role, joined_at)
			VALUES (?, ?, ?, ?)
		`, id, m.UserID, m.Role, now); err != nil {
			return fmt.Errorf("insert membership: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations WHERE id = ?
	`, id)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) FindDirect(ctx context.Context, userA, userB int64) (*domain.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+prefixedConversationColumns("c")+`
		FROM conversations c
		JOIN conversation_members m1 ON m1.conversation_id = c.id AND m1.user_id = ?
		JOIN conversation_members m2 ON m2.conversation_id = c.id AND m2.user_id = ?
		WHERE c.kind = 'direct' AND c.is_active = TRUE
		LIMIT 1
	`, userA, userB)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find direct conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prefixedConversationColumns("c")+`
		FROM conversations c
		JOIN conversation_members m ON m.conversation_id = c.id
		WHERE m.user_id = ? AND c.is_active = TRUE
		ORDER BY c.updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// Delete removes all memberships and deactivates the conversation. The row is
// kept because messages still reference it.
func (r *ConversationRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM conversation_members WHERE conversation_id = ?
	`, id); err != nil {
		return fmt.Errorf("delete memberships: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET is_active = FALSE, owner_id = NULL, updated_at = ? WHERE id = ?
	`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("deactivate conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func prefixedConversationColumns(alias string) string {
	return alias + `.id, ` + alias + `.kind, ` + alias + `.name, ` + alias + `.description, ` +
		alias + `.owner_id, ` + alias + `.is_private, ` + alias + `.allow_member_invites, ` +
		alias + `.is_active, ` + alias + `.last_seq, ` + alias + `.created_at, ` + alias + `.updated_at`
}
