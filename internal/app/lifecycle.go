package app

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wateringctl/wateringctl/internal/domain"
	"github.com/wateringctl/wateringctl/internal/ports"
)

// ShutdownTimeout is the maximum time to wait for the workers of a session
// to return after Stop.
const ShutdownTimeout = 10 * time.Second

// State represents the lifecycle state of a session.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopping, StateCrashed},
	StateRunning:  {StateStopping, StateCrashed},
	StateStopping: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting},
}

// Lifecycle is the state machine of a session and owns its worker group.
type Lifecycle struct {
	logger  ports.Logger
	emitter EventEmitter

	mu     sync.RWMutex
	state  State
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewLifecycle creates a lifecycle in StateStopped. emitter may be nil.
func NewLifecycle(logger ports.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{
		state:   StateStopped,
		logger:  logger,
		emitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo moves to newState, or fails with ErrAlreadyRunning /
// ErrNotRunning when the transition is not allowed.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state

	if !allowed(oldState, newState) {
		l.mu.Unlock()
		if oldState == StateStopped || oldState == StateCrashed {
			return domain.ErrNotRunning
		}
		return domain.ErrAlreadyRunning
	}

	l.state = newState
	l.mu.Unlock()

	if l.emitter != nil {
		l.emitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Info("state transition",
		ports.String("from", oldState.String()),
		ports.String("to", newState.String()),
		ports.String("reason", reason),
	)
	return nil
}

func allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanStart returns true if Start() can be called.
func (l *Lifecycle) CanStart() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateStopped || l.state == StateCrashed
}

// CanStop returns true if Stop() can be called.
func (l *Lifecycle) CanStop() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRunning || l.state == StateStarting
}

// Begin derives the run context of a new session from parent. Workers
// started with Go share it; the first worker error cancels the others.
func (l *Lifecycle) Begin(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	group, ctx := errgroup.WithContext(ctx)

	l.mu.Lock()
	l.cancel = cancel
	l.group = group
	l.mu.Unlock()
	return ctx
}

// Go runs fn as a worker of the current session.
func (l *Lifecycle) Go(fn func() error) {
	l.mu.RLock()
	group := l.group
	l.mu.RUnlock()
	if group != nil {
		group.Go(fn)
	}
}

// Cancel triggers shutdown of every worker.
func (l *Lifecycle) Cancel() {
	l.mu.RLock()
	cancel := l.cancel
	l.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
}

// WaitWithTimeout waits for all workers and returns the first worker
// error. It returns ErrShutdownTimeout if they do not finish in time.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	l.mu.RLock()
	group := l.group
	l.mu.RUnlock()
	if group == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- group.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		l.logger.Warn("shutdown timeout, forcing exit",
			ports.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}
