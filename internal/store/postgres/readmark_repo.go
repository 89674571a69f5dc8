package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"realtime_go/internal/domain"
)

type ReadMarkRepo struct {
	db *sql.DB
}

func NewReadMarkRepo(db *sql.DB) *ReadMarkRepo {
	return &ReadMarkRepo{db: db}
}

var _ domain.ReadMarkRepository = (*ReadMarkRepo)(nil)

func (r *ReadMarkRepo) Get(ctx context.Context, messageID, userID int64) (*domain.ReadMark, error) {
	m := &domain.ReadMark{}
	err := r.db.QueryRowContext(ctx, `
		SELECT message_id, user_id, delivered_at, read_at, is_starred
		FROM read_marks
		WHERE message_id = $1 AND user_id = $2
	`, messageID, userID).Scan(
		&m.MessageID,
		&m.UserID,
		&m.DeliveredAt,
		&m.ReadAt,
		&m.IsStarred,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get read mark: %w", err)
	}
	return m, nil
}

// Upsert merges the mark. COALESCE keeps the first timestamp ever written, so
// repeated delivery/read acknowledgements are idempotent and never regress.
func (r *ReadMarkRepo) Upsert(ctx context.Context, mark *domain.ReadMark) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO read_marks (message_id, user_id, delivered_at, read_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, user_id) DO UPDATE SET
			delivered_at = COALESCE(read_marks.delivered_at, EXCLUDED.delivered_at),
			read_at      = COALESCE(read_marks.read_at, EXCLUDED.read_at)
	`, mark.MessageID, mark.UserID, mark.DeliveredAt, mark.ReadAt); err != nil {
		return fmt.Errorf("upsert read mark: %w", err)
	}
	return nil
}

// SetStarred flips the viewer's star flag, creating the mark row when the
// message has not been acknowledged yet.
func (r *ReadMarkRepo) SetStarred(ctx context.Context, messageID, userID int64, starred bool) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO read_marks (message_id, user_id, is_starred)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id) DO UPDATE SET
			is_starred = EXCLUDED.is_starred
	`, messageID, userID, starred); err != nil {
		return fmt.Errorf("set starred: %w", err)
	}
	return nil
}
