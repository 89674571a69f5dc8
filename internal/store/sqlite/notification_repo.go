package sqlite

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

// Create inserts the notification and increments the recipient's unread
// counter in the same transaction.
func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO notifications (recipient_id, sender_id, type, related_id, body, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`, n.RecipientID, n.SenderID, n.Type, n.RelatedID, n.Body, now)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET unread_notifications = unread_notifications + 1 WHERE id = ?
	`, n.RecipientID); err != nil {
		return fmt.Errorf("increment unread counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	n.ID = id
	n.IsRead = false
	n.CreatedAt = now
	return nil
}

func (r *NotificationRepo) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications WHERE id = ?
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
		WHERE recipient_id = ? AND type = ? AND sender_id = ? AND created_at >= ?
	`
	args := []any{recipientID, typ, senderID, since}
	if relatedID != nil {
		query += ` AND related_id = ?`
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
		WHERE recipient_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
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

	res, err := tx.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1 WHERE id = ? AND is_read = 0
	`, id)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET unread_notifications = MAX(unread_notifications - 1, 0)
			WHERE id = (SELECT recipient_id FROM notifications WHERE id = ?)
		`, id); err != nil {
			return fmt.Errorf("decrement unread counter: %w", err)
		}
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
		UPDATE notifications SET is_read = 1 WHERE recipient_id = ? AND is_read = 0
	`, recipientID); err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET unread_notifications = 0 WHERE id = ?
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
		SELECT recipient_id, is_read FROM notifications WHERE id = ?
	`, id).Scan(&recipientID, &isRead)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get notification: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM notifications WHERE id = ?
	`, id); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if !isRead {
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET unread_notifications = MAX(unread_notifications - 1, 0) WHERE id = ?
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
		SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0
	`, recipientID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}
