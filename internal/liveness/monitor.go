// Package liveness detects half-open event connections with a heartbeat
// probe and forces a reconnect when the echo does not arrive in time.
package liveness

import (
	"strings"
	"sync"
	"time"

	"github.com/wateringctl/wateringctl/internal/ports"
	"github.com/wateringctl/wateringctl/internal/transport"
)

// Heartbeat is the probe sentinel; the device echoes it verbatim.
const Heartbeat = "<conn_test>"

// Default probe timing.
const (
	DefaultTimeout  = 1500 * time.Millisecond
	DefaultInterval = 1500 * time.Millisecond
)

// State is the liveness of the monitored connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateUnverified
	StateVerified
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateUnverified:
		return "ConnectedUnverified"
	case StateVerified:
		return "ConnectedVerified"
	default:
		return "Unknown"
	}
}

// Channel is the part of transport.Channel the monitor drives.
type Channel interface {
	Send(f ports.Frame) bool
	Reconnect(reason string) bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithTimeout sets how long a probe may stay unanswered.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.timeout = d }
}

// WithInterval sets the pause between an echo and the next probe.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// Monitor runs the probe/echo cycle. Register it as a transport.EventEmitter
// on the channel it watches and route inbound frames through Intercept.
type Monitor struct {
	ch       Channel
	logger   ports.Logger
	timeout  time.Duration
	interval time.Duration

	mu         sync.Mutex
	state      State
	gen        uint64
	timer      *time.Timer
	awaiting   bool
	reconnects int
	stopped    bool
	subs       []func(previous, current State)
}

// New creates a monitor for ch.
func New(ch Channel, logger ports.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		ch:       ch,
		logger:   logger,
		timeout:  DefaultTimeout,
		interval: DefaultInterval,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// OnChange registers fn for liveness transitions.
func (m *Monitor) OnChange(fn func(previous, current State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// State returns the current liveness state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reconnects returns how many reconnects the monitor has forced.
func (m *Monitor) Reconnects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnects
}

// Stop cancels pending timers. Later transport events are ignored.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	m.cancelLocked()
}

// OnStateChange implements transport.EventEmitter.
func (m *Monitor) OnStateChange(_, current transport.State, _ string) {
	switch current {
	case transport.StateConnected:
		m.probe(true)
	case transport.StateConnecting:
		m.reset(StateConnecting)
	default:
		m.reset(StateDisconnected)
	}
}

// Intercept consumes heartbeat echoes and passes every other frame to next.
func (m *Monitor) Intercept(next transport.Handler) transport.Handler {
	return func(f ports.Frame) {
		if strings.TrimRight(f.Text(), "\x00") == Heartbeat {
			m.echo()
			return
		}
		if next != nil {
			next(f)
		}
	}
}

func (m *Monitor) reset(s State) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.cancelLocked()
	notify := m.setLocked(s)
	m.mu.Unlock()
	notify()
}

// probe sends a heartbeat and arms the timeout. fresh marks the first probe
// of a new connection.
func (m *Monitor) probe(fresh bool) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.cancelLocked()
	notify := func() {}
	if fresh {
		notify = m.setLocked(StateUnverified)
	}
	gen := m.gen
	m.awaiting = true
	m.timer = time.AfterFunc(m.timeout, func() { m.expire(gen) })
	m.mu.Unlock()

	notify()
	if !m.ch.Send(ports.Frame{Type: ports.TextFrame, Data: []byte(Heartbeat)}) {
		m.logger.Debug("heartbeat dropped, channel not connected")
	}
}

func (m *Monitor) echo() {
	m.mu.Lock()
	if m.stopped || !m.awaiting {
		m.mu.Unlock()
		return
	}
	m.cancelLocked()
	notify := m.setLocked(StateVerified)
	gen := m.gen
	m.timer = time.AfterFunc(m.interval, func() { m.next(gen) })
	m.mu.Unlock()
	notify()
}

func (m *Monitor) next(gen uint64) {
	m.mu.Lock()
	current := !m.stopped && m.gen == gen
	m.mu.Unlock()
	if current {
		m.probe(false)
	}
}

// expire fires when a probe went unanswered. The generation check makes
// sure one probe causes at most one reconnect.
func (m *Monitor) expire(gen uint64) {
	m.mu.Lock()
	if m.stopped || m.gen != gen || !m.awaiting {
		m.mu.Unlock()
		return
	}
	m.cancelLocked()
	m.reconnects++
	m.mu.Unlock()

	m.logger.Warn("heartbeat timed out, forcing reconnect",
		ports.Duration("timeout", m.timeout),
	)
	m.ch.Reconnect("heartbeat timeout")
}

// cancelLocked invalidates every armed timer.
func (m *Monitor) cancelLocked() {
	m.gen++
	m.awaiting = false
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// setLocked changes the state and returns a func that notifies observers.
// Call the returned func after unlocking.
func (m *Monitor) setLocked(s State) func() {
	prev := m.state
	if prev == s {
		return func() {}
	}
	m.state = s
	subs := append([]func(previous, current State){}, m.subs...)
	return func() {
		for _, fn := range subs {
			fn(prev, s)
		}
	}
}
