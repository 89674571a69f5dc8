package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"realtime_go/internal/domain"
	"realtime_go/internal/presence"
)

// dedupLocks is a fixed pool of mutexes sharded by dedup key, so the
// lookup-then-insert pair in Notify is atomic per key. Distinct keys may
// share a shard.
type dedupLocks struct {
	shards [64]sync.Mutex
}

func (l *dedupLocks) get(typ domain.NotificationType, senderID, recipientID int64, relatedID *int64) *sync.Mutex {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%d", typ, senderID, recipientID)
	if relatedID != nil {
		fmt.Fprintf(h, "|%d", *relatedID)
	}
	return &l.shards[h.Sum64()%uint64(len(l.shards))]
}

// NotificationFanout converts domain events into deduplicated notification
// records and pushes them to connected recipients. Offline recipients rely on
// the persisted record plus the unread counter.
type NotificationFanout struct {
	notifs   domain.NotificationRepository
	registry *presence.Registry

	// Window is the rolling dedup window: a second notification with the
	// same (type, sender, recipient, related entity) inside it is suppressed.
	Window time.Duration

	locks dedupLocks
}

func NewNotificationFanout(notifs domain.NotificationRepository, registry *presence.Registry, window time.Duration) *NotificationFanout {
	return &NotificationFanout{
		notifs:   notifs,
		registry: registry,
		Window:   window,
	}
}

// Notify persists a notification unless an equivalent one exists within the
// dedup window. A suppressed notification is a normal outcome, reported as
// (nil, nil). The push to live connections is best-effort: a failed push
// never rolls back the persisted record.
func (f *NotificationFanout) Notify(
	ctx context.Context,
	typ domain.NotificationType,
	senderID, recipientID int64,
	relatedID *int64,
	body string,
) (*domain.Notification, error) {
	if senderID == recipientID {
		return nil, nil
	}

	// The dedup lookup and the insert run under a per-key lock so two
	// concurrent equivalent notifications collapse to one record.
	lock := f.locks.get(typ, senderID, recipientID, relatedID)
	lock.Lock()
	since := time.Now().UTC().Add(-f.Window)
	exists, err := f.notifs.ExistsRecent(ctx, typ, senderID, recipientID, relatedID, since)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}
	if exists {
		lock.Unlock()
		return nil, nil
	}

	n := &domain.Notification{
		RecipientID: recipientID,
		SenderID:    senderID,
		Type:        typ,
		RelatedID:   relatedID,
		Body:        body,
	}
	if err := f.notifs.Create(ctx, n); err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	lock.Unlock()

	unread, err := f.notifs.CountUnread(ctx, recipientID)
	if err != nil {
		log.Printf("fanout: count unread for %d: %v", recipientID, err)
	}
	f.registry.PushToUser(ctx, recipientID, domain.NotificationEvent{
		Type:         domain.EventNewNotification,
		Notification: n,
		UnreadCount:  unread,
	})
	return n, nil
}

// List returns the recipient's most recent notifications.
func (f *NotificationFanout) List(ctx context.Context, recipientID int64, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	return f.notifs.ListForRecipient(ctx, recipientID, limit)
}

// UnreadCount returns the recipient's unread notification count.
func (f *NotificationFanout) UnreadCount(ctx context.Context, recipientID int64) (int, error) {
	return f.notifs.CountUnread(ctx, recipientID)
}

// MarkRead marks one notification read. Only the recipient may do so;
// repeating the call is a no-op.
func (f *NotificationFanout) MarkRead(ctx context.Context, callerID, notificationID int64) error {
	n, err := f.notifs.GetByID(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("get notification: %w", err)
	}
	if n == nil {
		return domain.ErrNotFound
	}
	if n.RecipientID != callerID {
		return domain.ErrForbidden
	}
	if n.IsRead {
		return nil
	}
	return f.notifs.MarkRead(ctx, notificationID)
}

// MarkAllRead marks every unread notification of the caller read. Silently a
// no-op when there are none.
func (f *NotificationFanout) MarkAllRead(ctx context.Context, callerID int64) error {
	return f.notifs.MarkAllRead(ctx, callerID)
}

// Delete removes one notification, keeping the unread counter consistent.
// Only the recipient may delete their own notifications.
func (f *NotificationFanout) Delete(ctx context.Context, callerID, notificationID int64) error {
	n, err := f.notifs.GetByID(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("get notification: %w", err)
	}
	if n == nil {
		return domain.ErrNotFound
	}
	if n.RecipientID != callerID {
		return domain.ErrForbidden
	}
	return f.notifs.Delete(ctx, notificationID)
}
