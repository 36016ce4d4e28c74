package device

import (
	"context"

	"github.com/wateringctl/wateringctl/internal/app"
	"github.com/wateringctl/wateringctl/internal/domain"
	"github.com/wateringctl/wateringctl/internal/liveness"
	"github.com/wateringctl/wateringctl/internal/ports"
	"github.com/wateringctl/wateringctl/internal/transport"
)

// Device data model.
type (
	Entry     = domain.Entry
	Valve     = domain.Valve
	Day       = domain.Day
	Interval  = domain.Interval
	Weekday   = domain.Weekday
	Event     = domain.Event
	EventType = domain.EventType
	Status    = domain.Status
)

// Adapter interfaces that can be injected with options.
type (
	Logger       = ports.Logger
	LogField     = ports.Field
	Dialer       = ports.Dialer
	HTTPClient   = ports.HTTPClient
	Notifier     = ports.Notifier
	Notification = ports.Notification
)

// Errors returned by the client. Protocol failures additionally carry a
// device Status, see StatusOf.
var (
	ErrAlreadyRunning    = domain.ErrAlreadyRunning
	ErrNotRunning        = domain.ErrNotRunning
	ErrShutdownTimeout   = domain.ErrShutdownTimeout
	ErrInvalidConfig     = domain.ErrInvalidConfig
	ErrOperationInFlight = domain.ErrOperationInFlight
	ErrTimeout           = domain.ErrTimeout
	ErrMalformedPayload  = domain.ErrMalformedPayload
	ErrLengthOverrun     = domain.ErrLengthOverrun
	ErrChannelClosed     = domain.ErrChannelClosed
)

// StatusOf extracts the device status code carried by err.
func StatusOf(err error) (Status, bool) {
	return domain.StatusCode(err)
}

// State is the lifecycle state of a Client.
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

func convertState(s app.State) State {
	switch s {
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}

// Socket names one of the two device sockets.
type Socket = app.Endpoint

const (
	SocketFS     = app.EndpointFS
	SocketEvents = app.EndpointEvents
)

// SocketState is the transport state of one socket.
type SocketState = transport.State

const (
	SocketDisconnected = transport.StateDisconnected
	SocketConnecting   = transport.StateConnecting
	SocketConnected    = transport.StateConnected
)

// LinkState is the heartbeat-verified liveness of the event socket.
type LinkState = liveness.State

const (
	LinkDisconnected = liveness.StateDisconnected
	LinkConnecting   = liveness.StateConnecting
	LinkUnverified   = liveness.StateUnverified
	LinkVerified     = liveness.StateVerified
)

// StateChangeEvent is emitted on lifecycle transitions.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// ConnectionEvent is emitted when either socket connects or drops.
type ConnectionEvent struct {
	Socket   Socket
	Previous SocketState
	Current  SocketState
	Reason   string
}

// LinkEvent is emitted when the heartbeat verifies or loses the event socket.
type LinkEvent struct {
	Previous LinkState
	Current  LinkState
}

// EventHandler receives client events. Methods are called synchronously
// from the goroutine that observed the change and must return quickly.
type EventHandler interface {
	OnStateChange(e StateChangeEvent)
	OnConnectionChange(e ConnectionEvent)
	OnLinkChange(e LinkEvent)
}

// PluginConfig is handed to plugins when the client starts.
type PluginConfig struct {
	DeviceURL string
	Files     FileSystem
	Logger    Logger

	// WaitConnected blocks until both sockets are connected or ctx is done.
	WaitConnected func(ctx context.Context) error
}

// Plugin extends a Client. Plugins are initialized in registration order
// after the sockets start and shut down in reverse order on Stop.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// FileSystem is the command surface of the fs socket.
type FileSystem interface {
	List(ctx context.Context, path string) ([]Entry, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, overwrite bool, data []byte) error
	CreateDirectory(ctx context.Context, dir, name string) error
	DeleteFile(ctx context.Context, path string) error
	DeleteDirectory(ctx context.Context, path string) error
	Untar(ctx context.Context, path string) error
	UpdateFirmware(ctx context.Context, path string) error
}
