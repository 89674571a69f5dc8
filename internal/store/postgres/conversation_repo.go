package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"realtime_go/internal/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

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

const conversationColumns = `id, kind, name, description, owner_id, is_private, allow_member_invites, is_active, last_seq, created_at, updated_at`

func (r *ConversationRepo) Create(ctx context.Context, c *domain.Conversation, members []*domain.Membership) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO conversations (kind, name, description, owner_id, is_private, allow_member_invites)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_active, last_seq, created_at, updated_at
	`, c.Kind, c.Name, c.Description, c.OwnerID, c.IsPrivate, c.AllowMemberInvites).Scan(
		&c.ID, &c.IsActive, &c.LastSeq, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}

	for _, m := range members {
		m.ConversationID = c.ID
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO conversation_members (conversation_id, user_id, role)
			VALUES ($1, $2, $3)
			RETURNING joined_at
		`, c.ID, m.UserID, m.Role).Scan(&m.JoinedAt); err != nil {
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
		SELECT `+conversationColumns+` FROM conversations WHERE id = $1
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
		SELECT c.id, c.kind, c.name, c.description, c.owner_id, c.is_private, c.allow_member_invites,
		       c.is_active, c.last_seq, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_members m1 ON m1.conversation_id = c.id AND m1.user_id = $1
		JOIN conversation_members m2 ON m2.conversation_id = c.id AND m2.user_id = $2
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
		SELECT c.id, c.kind, c.name, c.description, c.owner_id, c.is_private, c.allow_member_invites,
		       c.is_active, c.last_seq, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_members m ON m.conversation_id = c.id
		WHERE m.user_id = $1 AND c.is_active = TRUE
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

func (r *ConversationRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM conversation_members WHERE conversation_id = $1
	`, id); err != nil {
		return fmt.Errorf("delete memberships: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET is_active = FALSE, owner_id = NULL, updated_at = NOW() WHERE id = $1
	`, id); err != nil {
		return fmt.Errorf("deactivate conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
