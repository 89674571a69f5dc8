package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime_go/internal/domain"
	"realtime_go/internal/presence"
	"realtime_go/internal/service"
)

func TestNotify(t *testing.T) {
	ctx := context.Background()

	t.Run("SelfNotificationSuppressed", func(t *testing.T) {
		notifs := new(MockNotificationRepo)
		fanout := service.NewNotificationFanout(notifs, presence.NewRegistry(time.Second), 5*time.Second)

		n, err := fanout.Notify(ctx, domain.NotificationMessage, 1, 1, nil, "hello yourself")
		require.NoError(t, err)
		assert.Nil(t, n)
		notifs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("DuplicateWithinWindowSuppressed", func(t *testing.T) {
		notifs := new(MockNotificationRepo)
		fanout := service.NewNotificationFanout(notifs, presence.NewRegistry(time.Second), 5*time.Second)

		relatedID := int64(5)
		notifs.On("ExistsRecent", mock.Anything, domain.NotificationMessage, int64(1), int64(2), &relatedID, mock.MatchedBy(func(since time.Time) bool {
			// The lookup window reaches back roughly Window from now.
			return time.Since(since) < 10*time.Second
		})).Return(true, nil)

		n, err := fanout.Notify(ctx, domain.NotificationMessage, 1, 2, &relatedID, "New message")
		require.NoError(t, err)
		assert.Nil(t, n, "suppression is a normal outcome, not an error")
		notifs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("CreatesAndPushesToRecipient", func(t *testing.T) {
		notifs := new(MockNotificationRepo)
		reg := presence.NewRegistry(time.Second)
		fanout := service.NewNotificationFanout(notifs, reg, 5*time.Second)

		sink := connectUser(reg, 2)

		notifs.On("ExistsRecent", mock.Anything, domain.NotificationFollow, int64(1), int64(2), mock.Anything, mock.Anything).
			Return(false, nil)
		notifs.On("Create", mock.Anything, mock.AnythingOfType("*domain.Notification")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*domain.Notification).ID = 33
			}).Return(nil)
		notifs.On("CountUnread", mock.Anything, int64(2)).Return(4, nil)

		n, err := fanout.Notify(ctx, domain.NotificationFollow, 1, 2, nil, "alice followed you")
		require.NoError(t, err)
		require.NotNil(t, n)
		assert.Equal(t, int64(33), n.ID)

		events := sink.all()
		require.Len(t, events, 1)
		ev := events[0].(domain.NotificationEvent)
		assert.Equal(t, domain.EventNewNotification, ev.Type)
		assert.Equal(t, 4, ev.UnreadCount)
		assert.Equal(t, n, ev.Notification)
	})

	t.Run("OfflineRecipientStillPersisted", func(t *testing.T) {
		notifs := new(MockNotificationRepo)
		fanout := service.NewNotificationFanout(notifs, presence.NewRegistry(time.Second), 5*time.Second)

		notifs.On("ExistsRecent", mock.Anything, domain.NotificationMessage, int64(1), int64(2), mock.Anything, mock.Anything).
			Return(false, nil)
		notifs.On("Create", mock.Anything, mock.AnythingOfType("*domain.Notification")).Return(nil)
		notifs.On("CountUnread", mock.Anything, int64(2)).Return(1, nil)

		n, err := fanout.Notify(ctx, domain.NotificationMessage, 1, 2, nil, "New message")
		require.NoError(t, err)
		assert.NotNil(t, n, "durable record written even with no live connections")
	})
}

// memNotifRepo is an in-memory notification store whose dedup lookup yields
// between the scan and the caller's insert, the way a real store round-trips.
type memNotifRepo struct {
	mu   sync.Mutex
	rows []*domain.Notification
}

func (r *memNotifRepo) Create(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = int64(len(r.rows) + 1)
	n.CreatedAt = time.Now().UTC()
	r.rows = append(r.rows, n)
	return nil
}

func (r *memNotifRepo) ExistsRecent(ctx context.Context, typ domain.NotificationType, senderID, recipientID int64, relatedID *int64, since time.Time) (bool, error) {
	r.mu.Lock()
	found := false
	for _, n := range r.rows {
		if n.Type == typ && n.SenderID == senderID && n.RecipientID == recipientID && !n.CreatedAt.Before(since) {
			found = true
		}
	}
	r.mu.Unlock()
	time.Sleep(10 * time.Millisecond)
	return found, nil
}

func (r *memNotifRepo) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, nil
}

func (r *memNotifRepo) ListForRecipient(ctx context.Context, recipientID int64, limit int) ([]*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Notification
	for _, n := range r.rows {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *memNotifRepo) MarkRead(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.ID == id {
			n.IsRead = true
		}
	}
	return nil
}

func (r *memNotifRepo) MarkAllRead(ctx context.Context, recipientID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.RecipientID == recipientID {
			n.IsRead = true
		}
	}
	return nil
}

func (r *memNotifRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.rows {
		if n.ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memNotifRepo) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.rows {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func TestNotifyConcurrentDedup(t *testing.T) {
	ctx := context.Background()
	repo := &memNotifRepo{}
	fanout := service.NewNotificationFanout(repo, presence.NewRegistry(time.Second), time.Minute)

	relatedID := int64(7)
	var wg sync.WaitGroup
	results := make([]*domain.Notification, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := fanout.Notify(ctx, domain.NotificationLike, 1, 2, &relatedID, "liked your post")
			assert.NoError(t, err)
			results[i] = n
		}(i)
	}
	wg.Wait()

	created := 0
	for _, n := range results {
		if n != nil {
			created++
		}
	}
	assert.Equal(t, 1, created, "equivalent concurrent notifications collapse to one")
	assert.Len(t, repo.rows, 1)
}

func TestMarkReadOwnership(t *testing.T) {
	ctx := context.Background()

	t.Run("OnlyRecipientMayMarkRead", func(t *testing.T) {
		notifs := new(MockNotificationRepo)
		fanout := service.NewNotificationFanout(notifs, presence.NewRegistry(time.Second), 5*time.Second)

		notifs.On("GetByID", mock.Anything, int64(33)).
			Return(&domain.Notification{ID: 33, RecipientID: 2}, nil)

		err := fanout.MarkRead(ctx, 9, 33)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("RepeatMarkReadIsNoop", func(t *testing.T) {
		notifs := new(MockNotificationRepo)
		fanout := service.NewNotificationFanout(notifs, presence.NewRegistry(time.Second), 5*time.Second)

		notifs.On("GetByID", mock.Anything, int64(33)).
			Return(&domain.Notification{ID: 33, RecipientID: 2, IsRead: true}, nil)

		err := fanout.MarkRead(ctx, 2, 33)
		assert.NoError(t, err)
		notifs.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything)
	})

	t.Run("UnknownNotification", func(t *testing.T) {
		notifs := new(MockNotificationRepo)
		fanout := service.NewNotificationFanout(notifs, presence.NewRegistry(time.Second), 5*time.Second)

		notifs.On("GetByID", mock.Anything, int64(404)).Return(nil, nil)

		err := fanout.MarkRead(ctx, 2, 404)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestDeleteOwnership(t *testing.T) {
	ctx := context.Background()

	notifs := new(MockNotificationRepo)
	fanout := service.NewNotificationFanout(notifs, presence.NewRegistry(time.Second), 5*time.Second)

	notifs.On("GetByID", mock.Anything, int64(33)).
		Return(&domain.Notification{ID: 33, RecipientID: 2}, nil)
	notifs.On("Delete", mock.Anything, int64(33)).Return(nil)

	assert.ErrorIs(t, fanout.Delete(ctx, 9, 33), domain.ErrForbidden)
	assert.NoError(t, fanout.Delete(ctx, 2, 33))
}
