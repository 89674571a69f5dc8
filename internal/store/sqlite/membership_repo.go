package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"realtime_go/internal/domain"
)

type MembershipRepo struct {
	db *sql.DB
}

func NewMembershipRepo(db *sql.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

var _ domain.MembershipRepository = (*MembershipRepo)(nil)

func (r *MembershipRepo) Add(ctx context.Context, m *domain.Membership) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO conversation_members (conversation_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?)
	`, m.ConversationID, m.UserID, m.Role, now)
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrAlreadyMember
	}
	m.JoinedAt = now
	return nil
}

func (r *MembershipRepo) Remove(ctx context.Context, conversationID, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM conversation_members WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID); err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}
	return nil
}

func (r *MembershipRepo) Get(ctx context.Context, conversationID, userID int64) (*domain.Membership, error) {
	m := &domain.Membership{}
	err := r.db.QueryRowContext(ctx, `
		SELECT conversation_id, user_id, role, joined_at
		FROM conversation_members
		WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID).Scan(
		&m.ConversationID,
		&m.UserID,
		&m.Role,
		&m.JoinedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

func (r *MembershipRepo) List(ctx context.Context, conversationID int64) ([]*domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT conversation_id, user_id, role, joined_at
		FROM conversation_members
		WHERE conversation_id = ?
		ORDER BY joined_at ASC, user_id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var res []*domain.Membership
	for rows.Next() {
		m := &domain.Membership{}
		if err := rows.Scan(
			&m.ConversationID,
			&m.UserID,
			&m.Role,
			&m.JoinedAt,
		); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r *MembershipRepo) SetRole(ctx context.Context, conversationID, userID int64, role domain.Role) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE conversation_members SET role = ? WHERE conversation_id = ? AND user_id = ?
	`, role, conversationID, userID); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}
