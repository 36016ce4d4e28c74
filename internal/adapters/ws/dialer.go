// Package ws adapts gorilla/websocket to the ports.Dialer and ports.Conn
// interfaces.
package ws

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wateringctl/wateringctl/internal/ports"
)

// DefaultHandshakeTimeout bounds the opening handshake. A device that
// accepts TCP but never upgrades is retried after this long.
const DefaultHandshakeTimeout = 1500 * time.Millisecond

// Dialer opens websocket connections.
type Dialer struct {
	dialer *websocket.Dialer
}

// NewDialer creates a dialer. handshake <= 0 uses DefaultHandshakeTimeout.
func NewDialer(handshake time.Duration) *Dialer {
	if handshake <= 0 {
		handshake = DefaultHandshakeTimeout
	}
	return &Dialer{
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshake,
		},
	}
}

// Dial implements ports.Dialer.
func (d *Dialer) Dial(ctx context.Context, url string) (ports.Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Conn{conn: conn}, nil
}

// Conn wraps a gorilla connection.
type Conn struct {
	conn *websocket.Conn
}

// NewConn wraps an established connection, e.g. one accepted by an
// upgrader.
func NewConn(conn *websocket.Conn) *Conn {
	return &Conn{conn: conn}
}

// ReadFrame implements ports.Conn. Control frames are handled by gorilla.
func (c *Conn) ReadFrame() (ports.Frame, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return ports.Frame{}, err
		}
		switch mt {
		case websocket.TextMessage:
			return ports.Frame{Type: ports.TextFrame, Data: data}, nil
		case websocket.BinaryMessage:
			return ports.Frame{Type: ports.BinaryFrame, Data: data}, nil
		}
	}
}

// WriteFrame implements ports.Conn.
func (c *Conn) WriteFrame(f ports.Frame) error {
	mt := websocket.BinaryMessage
	if f.Type == ports.TextFrame {
		mt = websocket.TextMessage
	}
	return c.conn.WriteMessage(mt, f.Data)
}

// Close implements ports.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}
