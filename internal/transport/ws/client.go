package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nikhilsaini9909/edu-reporting-framework/internal/domain"
)

const writeWait = 5 * time.Second

// Client wraps one authenticated WebSocket connection. All writes go through
// a buffered channel drained by a single writer goroutine, so broadcasts and
// heartbeat pings never race on the underlying connection.
type Client struct {
	conn      *websocket.Conn
	principal domain.Principal
	frames    chan frame
	done      chan struct{}
	closeOnce sync.Once

	mu    sync.Mutex
	alive bool
}

type frame struct {
	messageType int
	data        []byte
}

func newClient(conn *websocket.Conn, principal domain.Principal) *Client {
	c := &Client{
		conn:      conn,
		principal: principal,
		frames:    make(chan frame, 32),
		done:      make(chan struct{}),
		alive:     true,
	}
	conn.SetPongHandler(func(string) error {
		c.markAlive()
		return nil
	})
	go c.writeLoop()
	return c
}

func (c *Client) writeLoop() {
	for {
		select {
		case f := <-c.frames:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(f.messageType, f.data); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// send enqueues a prepared text frame. A closed or backpressured client drops
// the message rather than blocking the caller; the heartbeat sweep reaps
// connections that stop draining.
func (c *Client) send(data []byte) bool {
	select {
	case c.frames <- frame{websocket.TextMessage, data}:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// sendJSON marshals and sends a message to this single client.
func (c *Client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if !c.send(data) {
		return websocket.ErrCloseSent
	}
	return nil
}

func (c *Client) ping() {
	select {
	case c.frames <- frame{websocket.PingMessage, nil}:
	case <-c.done:
	default:
	}
}

func (c *Client) markAlive() {
	c.mu.Lock()
	c.alive = true
	c.mu.Unlock()
}

// expire clears the liveness flag and reports whether the client had
// responded since the previous sweep.
func (c *Client) expire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	wasAlive := c.alive
	c.alive = false
	return wasAlive
}

// closeWith sends a close frame with the given code, then tears down the
// connection. Used for the distinct authentication close codes.
func (c *Client) closeWith(code int, reason string) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	c.Close()
}

// Close terminates the connection. Safe to call more than once; the read
// loop's error return is the single cleanup path afterwards.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
