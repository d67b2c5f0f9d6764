package websocket

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var _ contract.Connection = (*Conn)(nil)

const closeGracePeriod = time.Second

// Conn adapts a gorilla connection to contract.Connection.
// gorilla allows one concurrent writer, so data frames are serialised by writeMu.
// Control frames go through WriteControl, which is safe alongside them.
type Conn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
	closed       atomic.Bool
	closeOnce    sync.Once
	closeErr     error
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{
		id:           uuid.NewString(),
		ws:           ws,
		writeTimeout: writeTimeout,
	}
}

func (c *Conn) ID() string {
	return c.id
}

// Send writes evt as one JSON text frame.
func (c *Conn) Send(ctx context.Context, evt event.Outbound) error {
	if c.closed.Load() {
		return errors.ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrTransport, err)
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", errors.ErrTransport, evt.Event, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(c.deadline(ctx))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrTransport, err)
	}
	return nil
}

func (c *Conn) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return errors.ErrConnectionClosed
	}
	if err := c.ws.WriteControl(websocket.PingMessage, nil, c.deadline(ctx)); err != nil {
		return fmt.Errorf("%w: ping: %v", errors.ErrTransport, err)
	}
	return nil
}

// Close sends a normal closure frame and releases the socket.
// Only the first call does anything; a read loop blocked on this connection returns.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// deadline is the earliest of ctx's deadline and the write timeout.
func (c *Conn) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}
