package presence

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink is the write side of a live connection. Implementations must be safe
// for concurrent Send calls and must respect the context deadline.
type Sink interface {
	Send(ctx context.Context, event any) error
}

// Connection is one live socket of a user. A user may hold several at once
// (multi-device). Connections are never persisted; a process restart clears
// the registry.
type Connection struct {
	ID          string
	UserID      int64
	ConnectedAt time.Time

	sink Sink
}

// Send forwards an event to the connection's sink.
func (c *Connection) Send(ctx context.Context, event any) error {
	return c.sink.Send(ctx, event)
}

// Registry maps users to their live connections. It is the only shared
// mutable structure touched by concurrent tasks outside the store's
// transactions, so every access goes through the mutex. Per-user slices are
// kept ordered by connect time, oldest first, and ConnectionsFor hands out
// snapshot copies, so a disconnect is atomic with respect to concurrent
// queries and no caller can observe a dangling connection id.
type Registry struct {
	mu     sync.RWMutex
	byUser map[int64][]*Connection
	byID   map[string]*Connection

	pushTimeout time.Duration
}

func NewRegistry(pushTimeout time.Duration) *Registry {
	return &Registry{
		byUser:      make(map[int64][]*Connection),
		byID:        make(map[string]*Connection),
		pushTimeout: pushTimeout,
	}
}

// Connect registers a new connection for the user and returns it.
func (r *Registry) Connect(userID int64, sink Sink) *Connection {
	conn := &Connection{
		ID:          uuid.NewString(),
		UserID:      userID,
		ConnectedAt: time.Now(),
		sink:        sink,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = append(r.byUser[userID], conn)
	r.byID[conn.ID] = conn
	return conn
}

// Disconnect removes the connection. Unknown ids are a no-op, so repeated
// disconnects are safe.
func (r *Registry) Disconnect(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byID[connectionID]
	if !ok {
		return
	}
	delete(r.byID, connectionID)

	conns := r.byUser[conn.UserID]
	for i, c := range conns {
		if c.ID == connectionID {
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(r.byUser, conn.UserID)
	} else {
		r.byUser[conn.UserID] = conns
	}
}

// ConnectionsFor returns a snapshot of the user's live connections, ordered
// by connect time, oldest first. Callers may re-query at any time.
func (r *Registry) ConnectionsFor(userID int64) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[userID]
	out := make([]*Connection, len(conns))
	copy(out, conns)
	return out
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// OnlineUserIDs returns the ids of all users with live connections.
func (r *Registry) OnlineUserIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.byUser))
	for id := range r.byUser {
		ids = append(ids, id)
	}
	return ids
}

// PushToUser delivers the event to every live connection of the user, in
// connect order, each bounded by the push timeout. Failures are logged and
// swallowed: a timed-out push means the recipient is treated as offline, and
// durable state has already been written by the caller. Returns the number
// of connections that accepted the event.
func (r *Registry) PushToUser(ctx context.Context, userID int64, event any) int {
	delivered := 0
	for _, conn := range r.ConnectionsFor(userID) {
		pushCtx := ctx
		cancel := func() {}
		if r.pushTimeout > 0 {
			pushCtx, cancel = context.WithTimeout(ctx, r.pushTimeout)
		}
		err := conn.Send(pushCtx, event)
		cancel()
		if err != nil {
			log.Printf("presence: push to user %d conn %s: %v", userID, conn.ID, err)
			continue
		}
		delivered++
	}
	return delivered
}

// PushToUsers delivers the event to every listed user.
func (r *Registry) PushToUsers(ctx context.Context, userIDs []int64, event any) {
	for _, uid := range userIDs {
		r.PushToUser(ctx, uid, event)
	}
}

// Broadcast delivers the event to every connected user.
func (r *Registry) Broadcast(ctx context.Context, event any) {
	for _, uid := range r.OnlineUserIDs() {
		r.PushToUser(ctx, uid, event)
	}
}
