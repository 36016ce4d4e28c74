// Package fakeconn provides in-memory ports.Conn and ports.Dialer
// implementations for tests.
package fakeconn

import (
	"context"
	"errors"
	"sync"

	"github.com/wateringctl/wateringctl/internal/ports"
)

// ErrClosed is returned by a Conn after Close.
var ErrClosed = errors.New("fakeconn: closed")

// Conn is a scripted in-memory connection.
type Conn struct {
	in     chan ports.Frame
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written []ports.Frame

	// OnWrite, when set, is called synchronously from WriteFrame after the
	// frame is recorded. Tests use it to script device replies.
	OnWrite func(c *Conn, f ports.Frame)
}

// NewConn returns an open connection.
func NewConn() *Conn {
	return &Conn{
		in:     make(chan ports.Frame, 256),
		closed: make(chan struct{}),
	}
}

// ReadFrame blocks until a frame is pushed or the connection is closed.
func (c *Conn) ReadFrame() (ports.Frame, error) {
	select {
	case <-c.closed:
		return ports.Frame{}, ErrClosed
	default:
	}
	select {
	case f := <-c.in:
		return f, nil
	case <-c.closed:
		return ports.Frame{}, ErrClosed
	}
}

// WriteFrame records f.
func (c *Conn) WriteFrame(f ports.Frame) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	c.mu.Lock()
	c.written = append(c.written, f)
	hook := c.OnWrite
	c.mu.Unlock()

	if hook != nil {
		hook(c, f)
	}
	return nil
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// SetOnWrite replaces the write hook.
func (c *Conn) SetOnWrite(fn func(c *Conn, f ports.Frame)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.OnWrite = fn
}

// Push queues an inbound frame.
func (c *Conn) Push(f ports.Frame) {
	select {
	case c.in <- f:
	case <-c.closed:
	}
}

// PushText queues an inbound text frame.
func (c *Conn) PushText(s string) {
	c.Push(ports.Frame{Type: ports.TextFrame, Data: []byte(s)})
}

// PushBinary queues an inbound binary frame.
func (c *Conn) PushBinary(b []byte) {
	c.Push(ports.Frame{Type: ports.BinaryFrame, Data: b})
}

// Written returns a copy of every frame written so far.
func (c *Conn) Written() []ports.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ports.Frame(nil), c.written...)
}

// WrittenText returns the written frames as strings.
func (c *Conn) WrittenText() []string {
	frames := c.Written()
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = string(f.Data)
	}
	return out
}

// Closed is closed once Close has been called.
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Dialer hands out a fresh Conn on every Dial.
type Dialer struct {
	mu    sync.Mutex
	fail  error
	dials int
	last  *Conn

	// OnWrite is installed on every Conn this dialer creates.
	OnWrite func(c *Conn, f ports.Frame)

	// Conns receives every connection as it is created.
	Conns chan *Conn
}

// NewDialer returns a dialer that always succeeds.
func NewDialer() *Dialer {
	return &Dialer{Conns: make(chan *Conn, 64)}
}

// Dial returns a new Conn, or the configured failure.
func (d *Dialer) Dial(ctx context.Context, url string) (ports.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.dials++
	if d.fail != nil {
		err := d.fail
		d.mu.Unlock()
		return nil, err
	}
	c := NewConn()
	c.OnWrite = d.OnWrite
	d.last = c
	d.mu.Unlock()

	select {
	case d.Conns <- c:
	default:
	}
	return c, nil
}

// SetFail makes subsequent dials fail with err. Pass nil to succeed again.
func (d *Dialer) SetFail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

// Dials returns the number of Dial calls so far.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Last returns the most recently created connection.
func (d *Dialer) Last() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}
