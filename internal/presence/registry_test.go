package presence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime_go/internal/presence"
)

// recordingSink collects every event it receives.
type recordingSink struct {
	mu     sync.Mutex
	events []any
	fail   bool
}

func (s *recordingSink) Send(ctx context.Context, event any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("connection gone")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestConnectDisconnect(t *testing.T) {
	reg := presence.NewRegistry(time.Second)

	t.Run("OnlineAfterConnect", func(t *testing.T) {
		conn := reg.Connect(1, &recordingSink{})
		require.NotEmpty(t, conn.ID)
		assert.True(t, reg.IsOnline(1))

		reg.Disconnect(conn.ID)
		assert.False(t, reg.IsOnline(1))
	})

	t.Run("MultiDevice", func(t *testing.T) {
		c1 := reg.Connect(2, &recordingSink{})
		c2 := reg.Connect(2, &recordingSink{})

		assert.Len(t, reg.ConnectionsFor(2), 2)

		reg.Disconnect(c1.ID)
		assert.True(t, reg.IsOnline(2), "still online with one connection left")

		reg.Disconnect(c2.ID)
		assert.False(t, reg.IsOnline(2))
	})

	t.Run("DisconnectIdempotent", func(t *testing.T) {
		conn := reg.Connect(3, &recordingSink{})
		reg.Disconnect(conn.ID)
		reg.Disconnect(conn.ID)
		reg.Disconnect("not-a-connection")
		assert.False(t, reg.IsOnline(3))
	})
}

func TestConnectionsForSnapshot(t *testing.T) {
	reg := presence.NewRegistry(time.Second)

	c1 := reg.Connect(7, &recordingSink{})
	c2 := reg.Connect(7, &recordingSink{})

	snapshot := reg.ConnectionsFor(7)
	require.Len(t, snapshot, 2)
	assert.Equal(t, c1.ID, snapshot[0].ID, "oldest connection first")
	assert.Equal(t, c2.ID, snapshot[1].ID)

	// Disconnecting after the snapshot must not mutate it.
	reg.Disconnect(c1.ID)
	assert.Len(t, snapshot, 2)
	assert.Len(t, reg.ConnectionsFor(7), 1)
}

func TestPushToUser(t *testing.T) {
	reg := presence.NewRegistry(time.Second)

	t.Run("DeliversToEveryConnection", func(t *testing.T) {
		s1 := &recordingSink{}
		s2 := &recordingSink{}
		reg.Connect(10, s1)
		reg.Connect(10, s2)

		delivered := reg.PushToUser(context.Background(), 10, "hello")
		assert.Equal(t, 2, delivered)
		assert.Equal(t, 1, s1.count())
		assert.Equal(t, 1, s2.count())
	})

	t.Run("OfflineUserZeroDeliveries", func(t *testing.T) {
		delivered := reg.PushToUser(context.Background(), 999, "hello")
		assert.Equal(t, 0, delivered)
	})

	t.Run("FailedSendSwallowed", func(t *testing.T) {
		good := &recordingSink{}
		bad := &recordingSink{fail: true}
		reg.Connect(11, bad)
		reg.Connect(11, good)

		delivered := reg.PushToUser(context.Background(), 11, "hello")
		assert.Equal(t, 1, delivered, "healthy connection still served")
		assert.Equal(t, 1, good.count())
	})
}

func TestBroadcast(t *testing.T) {
	reg := presence.NewRegistry(time.Second)

	s1 := &recordingSink{}
	s2 := &recordingSink{}
	reg.Connect(1, s1)
	reg.Connect(2, s2)

	reg.Broadcast(context.Background(), "everyone")
	assert.Equal(t, 1, s1.count())
	assert.Equal(t, 1, s2.count())

	ids := reg.OnlineUserIDs()
	assert.ElementsMatch(t, []int64{1, 2}, ids)
}

func TestConcurrentConnectDisconnect(t *testing.T) {
	reg := presence.NewRegistry(time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			conn := reg.Connect(uid%5, &recordingSink{})
			reg.PushToUser(context.Background(), uid%5, "ping")
			reg.Disconnect(conn.ID)
		}(int64(i))
	}
	wg.Wait()

	for uid := int64(0); uid < 5; uid++ {
		assert.False(t, reg.IsOnline(uid), "no dangling connections after churn")
	}
}
