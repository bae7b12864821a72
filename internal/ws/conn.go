package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/smstore/backend/internal/model"
)

const sendBuffer = 16

// Conn wraps one accepted websocket together with the identity it
// authenticated as. The identity is fixed at handshake time and reused on
// unregister without re-authentication.
type Conn struct {
	subjectID uint64
	role      model.Role

	sock *websocket.Conn
	send chan Envelope

	closeOnce sync.Once
	done      chan struct{}
}

// NewConn records the authenticated identity on the socket and starts its
// writer. The caller owns the read side.
func NewConn(subjectID uint64, role model.Role, sock *websocket.Conn) *Conn {
	c := &Conn{
		subjectID: subjectID,
		role:      role,
		sock:      sock,
		send:      make(chan Envelope, sendBuffer),
		done:      make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// SubjectID returns the identity recorded at handshake.
func (c *Conn) SubjectID() uint64 { return c.subjectID }

// Role returns the role recorded at handshake.
func (c *Conn) Role() model.Role { return c.role }

// Send offers an envelope to this connection alone, bypassing the hub.
// Used for per-connection traffic like the liveness probe response.
func (c *Conn) Send(env Envelope) bool { return c.enqueue(env) }

// enqueue offers an envelope to the writer without blocking. It reports
// false when the buffer is full or the connection is closing.
func (c *Conn) enqueue(env Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// writeLoop drains the send buffer onto the socket. Each write carries
// its own deadline so one dead peer cannot wedge the goroutine.
func (c *Conn) writeLoop() {
	for {
		select {
		case env := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := wsjson.Write(ctx, c.sock, env)
			cancel()
			if err != nil {
				c.Close(websocket.StatusAbnormalClosure, "write failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

// ReadEnvelope blocks for the next client message.
func (c *Conn) ReadEnvelope(ctx context.Context) (Envelope, error) {
	var env Envelope
	err := wsjson.Read(ctx, c.sock, &env)
	return env, err
}

// Close shuts the connection down once; later calls are no-ops.
func (c *Conn) Close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.sock.Close(code, reason)
	})
}
