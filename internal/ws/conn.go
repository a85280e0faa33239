package ws

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/gorilla/websocket"
)

// Handle is the live transport session registered for exactly one user.
type Handle interface {
	SendEnvelope(v any) error
	Close() error
}

// Conn is the gorilla-backed Handle. Writes are serialized because a
// websocket connection supports only one concurrent writer.
type Conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

// NewConn wraps an upgraded websocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// SendEnvelope writes a JSON envelope to the peer.
func (c *Conn) SendEnvelope(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// ReadMessage blocks until the next inbound frame or disconnect.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

// Close tears down the transport.
func (c *Conn) Close() error {
	return c.ws.Close()
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
