package voiceclient

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrChannelClosed indicates a write was attempted while the channel
// is not open. Frame sends absorb it; control sends surface it.
var ErrChannelClosed = errors.New("channel closed")

// Channel wraps the WebSocket connection with a write lock (the
// transport allows one concurrent writer) and an open flag shared by
// the transmitter's send gate.
type Channel struct {
	mu   sync.Mutex
	conn *websocket.Conn
	open bool
}

// NewChannel wraps an established connection
func NewChannel(conn *websocket.Conn) *Channel {
	return &Channel{
		conn: conn,
		open: true,
	}
}

// Open reports whether the channel accepts writes
func (c *Channel) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// WriteJSON sends a control message as a text frame
func (c *Channel) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return ErrChannelClosed
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.open = false
		return err
	}
	return nil
}

// WriteBinary sends an audio frame
func (c *Channel) WriteBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return ErrChannelClosed
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		c.open = false
		return err
	}
	return nil
}

// MarkClosed flags the channel as unusable without closing the
// underlying connection; the read loop owns that.
func (c *Channel) MarkClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
}

// Close closes the underlying connection
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return c.conn.Close()
}
