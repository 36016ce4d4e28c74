package device

import (
	"time"
)

// Option configures optional behavior of a Client.
type Option func(*options)

type options struct {
	logger       Logger
	dialer       Dialer
	httpClient   HTTPClient
	notifier     Notifier
	eventHandler EventHandler
	plugins      []Plugin
	clock        func() time.Time
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDialer replaces the websocket dialer, e.g. with an in-memory one in
// tests.
func WithDialer(dialer Dialer) Option {
	return func(o *options) {
		o.dialer = dialer
	}
}

// WithHTTPClient sets the client used for REST refetches.
// If not provided, a default client with the configured timeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithNotifier routes user-facing error notifications to n.
// If not provided, they are kept in an in-memory center, see
// Client.Notifications.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithEventHandler sets a handler for lifecycle, connection and liveness
// events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the client starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithClock overrides the clock that decides the current weekday.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}
