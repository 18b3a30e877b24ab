package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const closeWriteWait = time.Second

// Inbound is one message read from the client.
type Inbound struct {
	Type int
	Data []byte
}

type readResult struct {
	msg Inbound
	err error
}

// Connection wraps a gorilla websocket connection. Writes are serialized;
// reads happen on a dedicated goroutine that performs exactly one
// ReadMessage per Receive request, so an idle timeout never touches the
// socket's read deadline.
type Connection struct {
	id         string
	clientID   string
	remoteAddr string
	socket     *websocket.Conn
	mu         sync.Mutex
	closed     atomic.Bool

	readerOnce sync.Once
	requests   chan struct{}
	results    chan readResult
	done       chan struct{}
	pending    bool
}

// NewConnection creates a tracked websocket connection. id must be unique
// within the hub; clientID is whatever the client called itself.
func NewConnection(id, clientID string, socket *websocket.Conn) *Connection {
	conn := &Connection{
		id:       id,
		clientID: clientID,
		socket:   socket,
		requests: make(chan struct{}),
		results:  make(chan readResult, 1),
		done:     make(chan struct{}),
	}
	if socket != nil && socket.RemoteAddr() != nil {
		conn.remoteAddr = socket.RemoteAddr().String()
	}
	return conn
}

// WriteMessage sends a message to the client.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return ErrConnectionClosed
	}

	return c.socket.WriteMessage(messageType, data)
}

// WriteJSON encodes v and sends it as a single text message.
func (c *Connection) WriteJSON(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

// Receive waits up to idle for the next message. On ErrIdleTimeout the
// outstanding read is kept and the next Receive continues waiting on it.
// Receive must not be called concurrently.
func (c *Connection) Receive(ctx context.Context, idle time.Duration) (Inbound, error) {
	c.readerOnce.Do(func() { go c.readLoop() })

	if !c.pending {
		select {
		case c.requests <- struct{}{}:
			c.pending = true
		case <-c.done:
			return Inbound{}, ErrConnectionClosed
		case <-ctx.Done():
			return Inbound{}, context.Cause(ctx)
		}
	}

	var timeout <-chan time.Time
	if idle > 0 {
		timer := time.NewTimer(idle)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-c.results:
		c.pending = false
		return res.msg, res.err
	case <-timeout:
		return Inbound{}, ErrIdleTimeout
	case <-c.done:
		return Inbound{}, ErrConnectionClosed
	case <-ctx.Done():
		return Inbound{}, context.Cause(ctx)
	}
}

func (c *Connection) readLoop() {
	for {
		select {
		case <-c.requests:
		case <-c.done:
			return
		}
		messageType, payload, err := c.socket.ReadMessage()
		c.results <- readResult{msg: Inbound{Type: messageType, Data: payload}, err: err}
		if err != nil {
			return
		}
	}
}

// Close sends a best-effort close frame and terminates the socket.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)

	// WriteControl may run concurrently with WriteMessage.
	_ = c.socket.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWriteWait),
	)
	return c.socket.Close()
}

// ID returns the server-assigned identifier the hub tracks the connection by.
func (c *Connection) ID() string {
	return c.id
}

// ClientID is the self-reported client identifier, empty when none was sent.
func (c *Connection) ClientID() string {
	return c.clientID
}

func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}
