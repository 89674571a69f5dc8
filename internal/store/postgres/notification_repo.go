package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"realtime_go/internal/domain"
)

type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

var _ domain.NotificationRepository = (*NotificationRepo)(nil)

const notificationColumns = `id, recipient_id, sender_id, type, related_id, body, is_read, created_at`

func scanNotification(row interface{ Scan(...any) error }) (*domain.Notification, error) {
	n := &domain.Notification{}
	err := row.Scan(
		&n.ID,
		&n.RecipientID,
		&n.SenderID,
		&n.Type,
		&n.RelatedID,
		&n.Body,
		&n.IsRead,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO notifications (recipient_id, sender_id, type, related_id, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_read, created_at
	`, n.RecipientID, n.SenderID, n.Type, n.RelatedID, n.Body).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET unread_notifications = unread_notifications + 1 WHERE id = $1
	`, n.RecipientID); err != nil {
		return fmt.Errorf("increment unread counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *NotificationRepo) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications WHERE id = $1
	`, id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (r *NotificationRepo) ExistsRecent(ctx context.Context, typ domain.NotificationType, senderID, recipientID int64, relatedID *int64, since time.Time) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE recipient_id = $1 AND type = $2 AND sender_id = $3 AND created_at >= $4
	`
	args := []any{recipientID, typ, senderID, since}
	if relatedID != nil {
		query += ` AND related_id = $5`
		args = append(args, *relatedID)
	} else {
		query += ` AND related_id IS NULL`
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("count recent notifications: %w", err)
	}
	return count > 0, nil
}

func (r *NotificationRepo) ListForRecipient(ctx context.Context, recipientID int64, limit int) ([]*domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var res []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r *NotificationRepo) MarkRead(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var recipientID int64
	err = tx.QueryRowContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND is_read = FALSE
		RETURNING recipient_id
	`, id).Scan(&recipientID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET unread_notifications = GREATEST(unread_notifications - 1, 0) WHERE id = $1
	`, recipientID); err != nil {
		return fmt.Errorf("decrement unread counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, recipientID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND is_read = FALSE
	`, recipientID); err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET unread_notifications = 0 WHERE id = $1
	`, recipientID); err != nil {
		return fmt.Errorf("reset unread counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *NotificationRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var recipientID int64
	var isRead bool
	err = tx.QueryRowContext(ctx, `
		DELETE FROM notifications WHERE id = $1
		RETURNING recipient_id, is_read
	`, id).Scan(&recipientID, &isRead)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}

	if !isRead {
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET unread_notifications = GREATEST(unread_notifications - 1, 0) WHERE id = $1
		`, recipientID); err != nil {
			return fmt.Errorf("decrement unread counter: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *NotificationRepo) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE
	`, recipientID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}
