package device

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	logAdapter "github.com/wateringctl/wateringctl/internal/adapters/log"
	"github.com/wateringctl/wateringctl/internal/adapters/ws"
	"github.com/wateringctl/wateringctl/internal/app"
	"github.com/wateringctl/wateringctl/internal/fsclient"
	"github.com/wateringctl/wateringctl/internal/liveness"
	"github.com/wateringctl/wateringctl/internal/notify"
	"github.com/wateringctl/wateringctl/internal/ports"
	"github.com/wateringctl/wateringctl/internal/transport"
)

// Client talks to one irrigation controller over its file-system and event
// sockets. Use New() to create one, then Start() to connect.
type Client struct {
	config  Config
	opts    options
	logger  ports.Logger
	session *app.Session
	center  *notify.Center
	plugins []Plugin

	mu sync.Mutex
}

// New creates a Client in StateStopped. It does not touch the network.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logAdapter.NewNoopLogger()
	}
	if o.dialer == nil {
		o.dialer = ws.NewDialer(cfg.HandshakeTimeout)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	c := &Client{
		config:  cfg,
		opts:    o,
		logger:  o.logger,
		plugins: o.plugins,
	}

	notifier := o.notifier
	if notifier == nil {
		c.center = notify.NewCenter()
		notifier = c.center
	}

	deps := app.Deps{
		Dialer:     o.dialer,
		HTTPClient: o.httpClient,
		Notifier:   notifier,
		Logger:     o.logger,
		Clock:      o.clock,
	}
	var emitter app.EventEmitter
	if o.eventHandler != nil {
		w := &eventEmitterWrapper{handler: o.eventHandler}
		deps.Connections = w
		deps.Links = w.onLinkChange
		emitter = w
	}

	session, err := app.NewSession(cfg.session(), deps, emitter)
	if err != nil {
		return nil, err
	}
	c.session = session
	return c, nil
}

// Start connects both sockets in the background and initializes plugins.
// The provided context bounds the lifetime of the connection.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.session.Start(ctx); err != nil {
		return err
	}

	pluginCfg := PluginConfig{
		DeviceURL: c.config.DeviceURL,
		Files:     c,
		Logger:    c.logger,

		WaitConnected: c.WaitConnected,
	}
	for i, p := range c.plugins {
		if err := p.Initialize(ctx, pluginCfg); err != nil {
			c.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			c.shutdownPlugins(c.plugins[:i])
			_ = c.session.Stop()
			return err
		}
		c.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}
	return nil
}

// Stop shuts down plugins in reverse order, then closes both sockets.
// Returns ErrShutdownTimeout if the sockets do not close in time.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.State() != app.StateRunning && c.session.State() != app.StateStarting {
		return ErrNotRunning
	}
	c.shutdownPlugins(c.plugins)
	return c.session.Stop()
}

func (c *Client) shutdownPlugins(plugins []Plugin) {
	ctx := context.Background()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			c.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
		} else {
			c.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
		}
	}
}

// Run starts the client, runs every fn concurrently with the connection
// and stops the client once ctx is done or any fn returns an error.
func (c *Client) Run(ctx context.Context, fns ...func(ctx context.Context) error) error {
	if err := c.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		g.Go(func() error { return fn(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err := g.Wait()
	if stopErr := c.Stop(); err == nil {
		err = stopErr
	}
	return err
}

// WaitConnected blocks until both sockets are connected or ctx is done.
func (c *Client) WaitConnected(ctx context.Context) error {
	return c.session.WaitConnected(ctx)
}

// Status returns the current lifecycle state.
func (c *Client) Status() State {
	return convertState(c.session.State())
}

// Socket returns the transport state of one socket.
func (c *Client) Socket(s Socket) SocketState {
	return c.session.SocketState(s)
}

// Link returns the heartbeat state of the event socket.
func (c *Client) Link() LinkState {
	if m := c.session.Liveness(); m != nil {
		return m.State()
	}
	return liveness.StateDisconnected
}

// Busy reports whether any command is outstanding.
func (c *Client) Busy() bool {
	return c.session.Tracker().Busy()
}

// OnBusyChange registers fn to be called when the busy flag flips.
func (c *Client) OnBusyChange(fn func(busy bool)) {
	c.session.Tracker().OnBusyChange(fn)
}

// OnProgress registers fn to receive transfer progress in percent. -1
// means indeterminate.
func (c *Client) OnProgress(fn func(percent int)) {
	c.session.Tracker().OnPercent(fn)
}

// Notifications returns the notifications published so far, newest last.
// It is empty when a custom notifier was installed with WithNotifier.
func (c *Client) Notifications() []Notification {
	if c.center == nil {
		return nil
	}
	return c.center.Items()
}

// Subscribe registers h for every device event. Handlers run on the event
// socket's read goroutine and must not block.
func (c *Client) Subscribe(h func(Event)) (unsubscribe func()) {
	return c.session.Events().Subscribe(h)
}

// Valves returns the mirrored valve list, sorted by identifier.
func (c *Client) Valves() []Valve {
	return c.session.Valves().Items()
}

// Valve returns one mirrored valve.
func (c *Client) Valve(id int) (Valve, bool) {
	return c.session.Valves().Get(id)
}

// RefreshValves refetches the valve list.
func (c *Client) RefreshValves(ctx context.Context) error {
	return c.session.Valves().Refresh(ctx)
}

// OnValvesChange registers fn to be called after the valve mirror changed.
func (c *Client) OnValvesChange(fn func()) {
	c.session.Valves().OnChange(fn)
}

// Day returns the mirrored schedule of day, if it was loaded.
func (c *Client) Day(day Weekday) (Day, bool) {
	return c.session.Schedule().Day(day)
}

// Today is the device weekday the SCHED events apply to.
func (c *Client) Today() Weekday {
	return c.session.Schedule().Today()
}

// RefreshDay fetches the schedule of day and starts mirroring it.
func (c *Client) RefreshDay(ctx context.Context, day Weekday) error {
	return c.session.Schedule().Refresh(ctx, day)
}

// OnScheduleChange registers fn to be called after a mirrored day changed.
func (c *Client) OnScheduleChange(fn func(day Weekday)) {
	c.session.Schedule().OnChange(fn)
}

func (c *Client) files() (*fsclient.Client, error) {
	f := c.session.Files()
	if f == nil {
		return nil, ErrNotRunning
	}
	return f, nil
}

// List returns the entries of the directory at path.
func (c *Client) List(ctx context.Context, path string) ([]Entry, error) {
	f, err := c.files()
	if err != nil {
		return nil, err
	}
	return f.List(ctx, path)
}

// ReadFile downloads the file at path.
func (c *Client) ReadFile(ctx context.Context, path string) ([]byte, error) {
	f, err := c.files()
	if err != nil {
		return nil, err
	}
	return f.ReadFile(ctx, path)
}

// WriteFile uploads data to path. Without overwrite an existing file fails
// with status WSFS_FILE_EXISTS.
func (c *Client) WriteFile(ctx context.Context, path string, overwrite bool, data []byte) error {
	f, err := c.files()
	if err != nil {
		return err
	}
	return f.WriteFile(ctx, path, overwrite, data)
}

// CreateDirectory creates name inside dir.
func (c *Client) CreateDirectory(ctx context.Context, dir, name string) error {
	f, err := c.files()
	if err != nil {
		return err
	}
	return f.CreateDirectory(ctx, dir, name)
}

// DeleteFile removes the file at path.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	f, err := c.files()
	if err != nil {
		return err
	}
	return f.DeleteFile(ctx, path)
}

// DeleteDirectory removes the directory at path with its contents.
func (c *Client) DeleteDirectory(ctx context.Context, path string) error {
	f, err := c.files()
	if err != nil {
		return err
	}
	return f.DeleteDirectory(ctx, path)
}

// Untar unpacks the tar archive at path on the device.
func (c *Client) Untar(ctx context.Context, path string) error {
	f, err := c.files()
	if err != nil {
		return err
	}
	return f.Untar(ctx, path)
}

// UpdateFirmware flashes the firmware image at path.
func (c *Client) UpdateFirmware(ctx context.Context, path string) error {
	f, err := c.files()
	if err != nil {
		return err
	}
	return f.UpdateFirmware(ctx, path)
}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnConnectionChange(endpoint app.Endpoint, previous, current transport.State, reason string) {
	e.handler.OnConnectionChange(ConnectionEvent{
		Socket:   endpoint,
		Previous: previous,
		Current:  current,
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) onLinkChange(previous, current liveness.State) {
	e.handler.OnLinkChange(LinkEvent{Previous: previous, Current: current})
}

var _ FileSystem = (*Client)(nil)
