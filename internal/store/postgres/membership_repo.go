package postgres

import (
	"context"
	"database/sql"
	"fmt"

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
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO conversation_members (conversation_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (conversation_id, user_id) DO NOTHING
	`, m.ConversationID, m.UserID, m.Role)
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
	return nil
}

func (r *MembershipRepo) Remove(ctx context.Context, conversationID, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM conversation_members WHERE conversation_id = $1 AND user_id = $2
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
		WHERE conversation_id = $1 AND user_id = $2
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
		WHERE conversation_id = $1
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
		UPDATE conversation_members SET role = $1 WHERE conversation_id = $2 AND user_id = $3
	`, role, conversationID, userID); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}
