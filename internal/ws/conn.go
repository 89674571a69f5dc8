package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// connSink adapts a websocket connection to the presence registry's Sink.
// gorilla/websocket allows only one concurrent writer, so every write goes
// through the mutex.
type connSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newConnSink(conn *websocket.Conn) *connSink {
	return &connSink{conn: conn}
}

func (s *connSink) Send(ctx context.Context, event any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
	} else {
		_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}
	return s.conn.WriteJSON(event)
}
