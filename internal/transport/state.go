package transport

// State is the connection state of a Channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// EventEmitter is called when the channel state changes.
// Calls happen on the channel's connection goroutine, in order.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// EmitterFunc adapts a function to EventEmitter.
type EmitterFunc func(previous, current State, reason string)

// OnStateChange calls f.
func (f EmitterFunc) OnStateChange(previous, current State, reason string) {
	f(previous, current, reason)
}
