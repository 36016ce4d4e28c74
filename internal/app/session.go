package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	httpAdapter "github.com/wateringctl/wateringctl/internal/adapters/http"
	"github.com/wateringctl/wateringctl/internal/domain"
	"github.com/wateringctl/wateringctl/internal/events"
	"github.com/wateringctl/wateringctl/internal/fsclient"
	"github.com/wateringctl/wateringctl/internal/liveness"
	"github.com/wateringctl/wateringctl/internal/mirror"
	"github.com/wateringctl/wateringctl/internal/notify"
	"github.com/wateringctl/wateringctl/internal/ports"
	"github.com/wateringctl/wateringctl/internal/progress"
	"github.com/wateringctl/wateringctl/internal/transport"
)

// Endpoint names one of the two device sockets.
type Endpoint string

const (
	EndpointFS     Endpoint = "fs"
	EndpointEvents Endpoint = "events"
)

// ConnectionEmitter is told about transport state changes of either socket.
type ConnectionEmitter interface {
	OnConnectionChange(endpoint Endpoint, previous, current transport.State, reason string)
}

// SessionConfig contains everything a session needs to reach the device.
type SessionConfig struct {
	// DeviceURL is the http base URL of the device, e.g. http://192.168.1.38
	DeviceURL  string
	FSPath     string
	EventsPath string

	BackoffInitial time.Duration
	BackoffMax     time.Duration

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	Files fsclient.Config

	// Language selects the notification messages, e.g. "de-CH".
	Language string

	ShutdownTimeout time.Duration
}

// Deps are the adapters a session is built from.
type Deps struct {
	Dialer      ports.Dialer
	HTTPClient  ports.HTTPClient
	Notifier    ports.Notifier
	Logger      ports.Logger
	Connections ConnectionEmitter
	Clock       func() time.Time

	// Links, when set, follows the liveness of every event socket run.
	Links func(previous, current liveness.State)
}

// Session wires both device sockets, the file-system client, the liveness
// monitor, the event fan-out and the entity mirrors.
//
// The event client, mirrors and tracker live as long as the session. The
// channel-bound parts are rebuilt on every Start, since a closed channel
// cannot be reopened.
type Session struct {
	cfg       SessionConfig
	deps      Deps
	logger    ports.Logger
	lifecycle *Lifecycle

	tracker  *progress.Tracker
	errs     *notify.Interceptor
	events   *events.Client
	valves   *mirror.Valves
	schedule *mirror.Schedule
	syncer   *mirror.Syncer

	fsURL     string
	eventsURL string

	mu      sync.RWMutex
	fsChan  *transport.Channel
	evChan  *transport.Channel
	files   *fsclient.Client
	monitor *liveness.Monitor
}

// NewSession validates cfg and builds the session-scoped components.
func NewSession(cfg SessionConfig, deps Deps, emitter EventEmitter) (*Session, error) {
	fsURL, err := WebsocketURL(cfg.DeviceURL, cfg.FSPath)
	if err != nil {
		return nil, err
	}
	eventsURL, err := WebsocketURL(cfg.DeviceURL, cfg.EventsPath)
	if err != nil {
		return nil, err
	}
	if deps.Dialer == nil || deps.HTTPClient == nil || deps.Logger == nil {
		return nil, fmt.Errorf("%w: dialer, http client and logger are required", domain.ErrInvalidConfig)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewCenter()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = ShutdownTimeout
	}

	errs, err := notify.NewInterceptor(cfg.Language, deps.Notifier, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("build notifications: %w", err)
	}

	fetcher := httpAdapter.NewStateFetcher(strings.TrimRight(cfg.DeviceURL, "/"), deps.HTTPClient, errs, deps.Logger)
	valves := mirror.NewValves(fetcher, deps.Logger)
	schedule := mirror.NewSchedule(fetcher, deps.Logger, mirror.WithClock(deps.Clock))
	syncer := mirror.NewSyncer(valves, schedule, deps.Logger, 0)

	ev := events.New(deps.Logger)
	ev.Subscribe(syncer.Handle)

	return &Session{
		cfg:       cfg,
		deps:      deps,
		logger:    deps.Logger,
		lifecycle: NewLifecycle(deps.Logger, emitter),
		tracker:   progress.New(),
		errs:      errs,
		events:    ev,
		valves:    valves,
		schedule:  schedule,
		syncer:    syncer,
		fsURL:     fsURL,
		eventsURL: eventsURL,
	}, nil
}

// WebsocketURL turns the http base URL of the device into the ws(s) URL
// of path.
func WebsocketURL(base, path string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("%w: device url: %v", domain.ErrInvalidConfig, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: device url %q: unsupported scheme %q", domain.ErrInvalidConfig, base, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: device url %q has no host", domain.ErrInvalidConfig, base)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

// Start connects both sockets in the background and returns immediately.
// ctx bounds the lifetime of the session.
func (s *Session) Start(ctx context.Context) error {
	if !s.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := s.lifecycle.TransitionTo(StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx := s.lifecycle.Begin(ctx)
	fsChan, evChan := s.build()

	s.lifecycle.Go(func() error { return s.keep(runCtx, fsChan, EndpointFS) })
	s.lifecycle.Go(func() error { return s.keep(runCtx, evChan, EndpointEvents) })
	s.lifecycle.Go(func() error { return s.syncer.Run(runCtx) })

	return s.lifecycle.TransitionTo(StateRunning, "sockets connecting")
}

// build creates the channel-bound components of one run.
func (s *Session) build() (*transport.Channel, *transport.Channel) {
	fsChan := transport.New(transport.Config{
		URL:            s.fsURL,
		BackoffInitial: s.cfg.BackoffInitial,
		BackoffMax:     s.cfg.BackoffMax,
	}, s.deps.Dialer, s.logger, s.connectionEmitter(EndpointFS))
	files := fsclient.New(fsChan, s.tracker, s.errs, s.logger, s.cfg.Files)

	var opts []liveness.Option
	if s.cfg.HeartbeatTimeout > 0 {
		opts = append(opts, liveness.WithTimeout(s.cfg.HeartbeatTimeout))
	}
	if s.cfg.HeartbeatInterval > 0 {
		opts = append(opts, liveness.WithInterval(s.cfg.HeartbeatInterval))
	}

	evChan := transport.New(transport.Config{
		URL:            s.eventsURL,
		BackoffInitial: s.cfg.BackoffInitial,
		BackoffMax:     s.cfg.BackoffMax,
	}, s.deps.Dialer, s.logger, s.connectionEmitter(EndpointEvents))
	monitor := liveness.New(evChan, s.logger, opts...)
	if s.deps.Links != nil {
		monitor.OnChange(s.deps.Links)
	}
	evChan.AddEmitter(monitor)
	evChan.AddEmitter(s.syncer)
	evChan.SetHandler(monitor.Intercept(s.events.HandleFrame))

	s.mu.Lock()
	s.fsChan, s.evChan = fsChan, evChan
	s.files = files
	s.monitor = monitor
	s.mu.Unlock()
	return fsChan, evChan
}

// keep runs ch until ctx is done, then closes it.
func (s *Session) keep(ctx context.Context, ch *transport.Channel, endpoint Endpoint) error {
	err := ch.Connect(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("connect %s socket: %w", endpoint, err)
	}
	<-ctx.Done()

	if endpoint == EndpointEvents {
		s.Liveness().Stop()
	} else {
		s.Files().Close()
	}
	return ch.Close()
}

func (s *Session) connectionEmitter(endpoint Endpoint) transport.EventEmitter {
	return transport.EmitterFunc(func(previous, current transport.State, reason string) {
		s.logger.Debug("socket state",
			ports.String("endpoint", string(endpoint)),
			ports.String("from", previous.String()),
			ports.String("to", current.String()),
			ports.String("reason", reason),
		)
		if s.deps.Connections != nil {
			s.deps.Connections.OnConnectionChange(endpoint, previous, current, reason)
		}
	})
}

// WaitConnected blocks until both sockets are connected or ctx is done.
func (s *Session) WaitConnected(ctx context.Context) error {
	s.mu.RLock()
	fsChan, evChan := s.fsChan, s.evChan
	s.mu.RUnlock()
	if fsChan == nil || evChan == nil {
		return domain.ErrNotRunning
	}
	if err := fsChan.Connect(ctx); err != nil {
		return err
	}
	return evChan.Connect(ctx)
}

// Stop closes both sockets and waits for the workers.
func (s *Session) Stop() error {
	if !s.lifecycle.CanStop() {
		return domain.ErrNotRunning
	}
	if err := s.lifecycle.TransitionTo(StateStopping, "Stop() called"); err != nil {
		return err
	}

	s.lifecycle.Cancel()
	err := s.lifecycle.WaitWithTimeout(s.cfg.ShutdownTimeout)

	if err != nil {
		_ = s.lifecycle.TransitionTo(StateCrashed, err.Error())
		return err
	}
	return s.lifecycle.TransitionTo(StateStopped, "graceful shutdown")
}

// State returns the lifecycle state.
func (s *Session) State() State {
	return s.lifecycle.State()
}

// Files returns the file-system client of the current run, or nil before
// the first Start.
func (s *Session) Files() *fsclient.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.files
}

// Liveness returns the heartbeat monitor of the current run, or nil before
// the first Start.
func (s *Session) Liveness() *liveness.Monitor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monitor
}

// SocketState returns the transport state of endpoint.
func (s *Session) SocketState(endpoint Endpoint) transport.State {
	s.mu.RLock()
	ch := s.fsChan
	if endpoint == EndpointEvents {
		ch = s.evChan
	}
	s.mu.RUnlock()
	if ch == nil {
		return transport.StateDisconnected
	}
	return ch.State()
}

// Events returns the event fan-out client.
func (s *Session) Events() *events.Client { return s.events }

// Valves returns the valve mirror.
func (s *Session) Valves() *mirror.Valves { return s.valves }

// Schedule returns the schedule mirror.
func (s *Session) Schedule() *mirror.Schedule { return s.schedule }

// Tracker returns the progress/busy tracker shared by all operations.
func (s *Session) Tracker() *progress.Tracker { return s.tracker }

// Notifications returns the error interceptor.
func (s *Session) Notifications() *notify.Interceptor { return s.errs }
