// Package transport owns one message-based socket to the device and keeps it
// connected.
//
// A Channel reconnects on every close without limit. Sending while
// disconnected drops the frame. Inbound frames are delivered to a single
// swappable handler slot; a frame that arrives while the slot is empty is
// dropped.
package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wateringctl/wateringctl/internal/domain"
	"github.com/wateringctl/wateringctl/internal/ports"
)

// Handler receives inbound frames. It is invoked on the channel's read
// goroutine, one frame at a time, in arrival order.
type Handler func(f ports.Frame)

// Config controls a Channel.
type Config struct {
	// URL is the websocket endpoint, e.g. ws://192.168.1.38/api/fs
	URL string

	// BackoffInitial and BackoffMax pace consecutive dial failures.
	// BackoffInitial = 0 retries failed dials immediately.
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// ReconnectDelay is waited after an established connection closes.
	// Zero reconnects immediately.
	ReconnectDelay time.Duration
}

// Channel is a self-healing connection with one inbound-hook slot.
type Channel struct {
	cfg    Config
	dialer ports.Dialer
	logger ports.Logger

	mu       sync.Mutex
	state    State
	conn     ports.Conn
	session  string
	handler  Handler
	emitters []EventEmitter
	ready    chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
	closed   bool

	writeMu sync.Mutex
}

// New creates a disconnected channel. Call Connect to start it.
func New(cfg Config, dialer ports.Dialer, logger ports.Logger, emitters ...EventEmitter) *Channel {
	return &Channel{
		cfg:      cfg,
		dialer:   dialer,
		logger:   logger,
		state:    StateDisconnected,
		emitters: emitters,
		ready:    make(chan struct{}),
	}
}

// AddEmitter registers another state observer. Register observers before
// Connect; emitters added later miss earlier transitions.
func (c *Channel) AddEmitter(e EventEmitter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitters = append(c.emitters, e)
}

// Connect starts the connection loop if needed and blocks until the channel
// is connected or ctx is done. The loop itself lives until Close; ctx only
// bounds the wait.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrChannelClosed
	}
	if c.cancel == nil {
		runCtx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.done = make(chan struct{})
		go c.run(runCtx)
	}
	ready := c.ready
	c.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send writes f if connected. It never queues or retries: while
// disconnected the frame is dropped and false is returned.
func (c *Channel) Send(f ports.Frame) bool {
	c.mu.Lock()
	conn, state, session := c.conn, c.state, c.session
	c.mu.Unlock()

	if conn == nil || state != StateConnected {
		c.logger.Debug("frame dropped, channel not connected",
			ports.String("url", c.cfg.URL),
			ports.Int("bytes", len(f.Data)),
		)
		return false
	}

	c.writeMu.Lock()
	err := conn.WriteFrame(f)
	c.writeMu.Unlock()

	if err != nil {
		c.logger.Warn("write failed, dropping connection",
			ports.String("session", session),
			ports.Err(err),
		)
		_ = conn.Close()
		return false
	}
	return true
}

// SetHandler installs h as the inbound hook and returns the previous one.
// Passing nil empties the slot.
func (c *Channel) SetHandler(h Handler) Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.handler
	c.handler = h
	return prev
}

// Reconnect drops the current connection, which triggers exactly one
// reconnect cycle. It reports whether a connection was dropped.
func (c *Channel) Reconnect(reason string) bool {
	c.mu.Lock()
	conn, session := c.conn, c.session
	c.mu.Unlock()

	if conn == nil {
		return false
	}
	c.logger.Info("forcing reconnect",
		ports.String("session", session),
		ports.String("reason", reason),
	)
	_ = conn.Close()
	return true
}

// Close stops the connection loop and closes the socket. A closed channel
// cannot be reconnected.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel, conn, done := c.cancel, c.conn, c.done
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if conn != nil {
		_ = conn.Close()
	}
	<-done
	return nil
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the id of the current connection, or "" when disconnected.
func (c *Channel) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// URL returns the endpoint this channel connects to.
func (c *Channel) URL() string {
	return c.cfg.URL
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)

	bo := newBackoff(c.cfg.BackoffInitial, c.cfg.BackoffMax)
	for {
		c.transition(StateConnecting, "dial")

		conn, err := c.dialer.Dial(ctx, c.cfg.URL)
		if err != nil {
			if ctx.Err() != nil {
				c.transition(StateDisconnected, "closed")
				return
			}
			c.logger.Warn("dial failed",
				ports.String("url", c.cfg.URL),
				ports.Duration("retry_in", bo.Current()),
				ports.Err(err),
			)
			c.transition(StateDisconnected, "dial failed")
			if bo.Wait(ctx) != nil {
				return
			}
			continue
		}
		bo.Reset()

		if !c.attach(conn) {
			_ = conn.Close()
			c.transition(StateDisconnected, "closed")
			return
		}

		reason := c.readLoop(conn)
		c.detach(reason)

		if ctx.Err() != nil {
			return
		}
		if c.cfg.ReconnectDelay > 0 {
			t := time.NewTimer(c.cfg.ReconnectDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	}
}

// attach publishes conn as the live connection. It returns false when the
// channel was closed while dialing.
func (c *Channel) attach(conn ports.Conn) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	prev := c.state
	c.conn = conn
	c.session = uuid.NewString()
	c.state = StateConnected
	close(c.ready)
	session := c.session
	emitters := append([]EventEmitter(nil), c.emitters...)
	c.mu.Unlock()

	c.logger.Info("connected",
		ports.String("url", c.cfg.URL),
		ports.String("session", session),
	)
	for _, e := range emitters {
		e.OnStateChange(prev, StateConnected, "transport open")
	}
	return true
}

func (c *Channel) detach(reason string) {
	c.mu.Lock()
	session := c.session
	c.conn = nil
	c.session = ""
	c.ready = make(chan struct{})
	c.mu.Unlock()

	c.logger.Info("disconnected",
		ports.String("url", c.cfg.URL),
		ports.String("session", session),
		ports.String("reason", reason),
	)
	c.transition(StateDisconnected, reason)
}

func (c *Channel) readLoop(conn ports.Conn) string {
	for {
		f, err := conn.ReadFrame()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return "closed"
			}
			return err.Error()
		}

		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()

		if h == nil {
			c.logger.Debug("frame dropped, no handler installed",
				ports.String("url", c.cfg.URL),
				ports.Int("bytes", len(f.Data)),
			)
			continue
		}
		h(f)
	}
}

func (c *Channel) transition(next State, reason string) {
	c.mu.Lock()
	prev := c.state
	if prev == next {
		c.mu.Unlock()
		return
	}
	c.state = next
	emitters := append([]EventEmitter(nil), c.emitters...)
	c.mu.Unlock()

	c.logger.Debug("channel state transition",
		ports.String("url", c.cfg.URL),
		ports.String("from", prev.String()),
		ports.String("to", next.String()),
		ports.String("reason", reason),
	)
	for _, e := range emitters {
		e.OnStateChange(prev, next, reason)
	}
}
