package domain

import (
	"strconv"
	"strings"
)

// EventType names a push notification of the event socket.
type EventType string

const (
	EventIntervalSchedOn          EventType = "WSE_INTERVAL_SCHED_ON"
	EventIntervalSchedOff         EventType = "WSE_INTERVAL_SCHED_OFF"
	EventValveOn                  EventType = "WSE_VALVE_ON"
	EventValveOff                 EventType = "WSE_VALVE_OFF"
	EventValveRename              EventType = "WSE_VALVE_RENAME"
	EventValveDisableOn           EventType = "WSE_VALVE_DISABLE_ON"
	EventValveDisableOff          EventType = "WSE_VALVE_DISABLE_OFF"
	EventDayDisableOn             EventType = "WSE_DAY_DISABLE_ON"
	EventDayDisableOff            EventType = "WSE_DAY_DISABLE_OFF"
	EventIntervalDisableOn        EventType = "WSE_INTERVAL_DISABLE_ON"
	EventIntervalDisableOff       EventType = "WSE_INTERVAL_DISABLE_OFF"
	EventIntervalStartChange      EventType = "WSE_INTERVAL_START_CHANGE"
	EventIntervalEndChange        EventType = "WSE_INTERVAL_END_CHANGE"
	EventIntervalIdentifierChange EventType = "WSE_INTERVAL_IDENTIFIER_CHANGE"
	EventIntervalDeleted          EventType = "WSE_INTERVAL_DELETED"
	EventValveTimerUpdated        EventType = "WSE_VALVE_TIMER_UPDATED"
)

// Event is a decoded push frame TYPE;arg0;arg1;...
type Event struct {
	Type EventType
	Args []string
}

// ParseEvent decodes a push frame. A frame without delimiter yields an event
// without arguments.
func ParseEvent(data string) Event {
	i := strings.Index(data, Delimiter)
	if i < 0 {
		return Event{Type: EventType(data)}
	}
	return Event{
		Type: EventType(data[:i]),
		Args: strings.Split(data[i+1:], Delimiter),
	}
}

// Arg returns the i-th argument or "" when absent.
func (e Event) Arg(i int) string {
	if i < 0 || i >= len(e.Args) {
		return ""
	}
	return e.Args[i]
}

// IntArg parses the i-th argument as an integer.
func (e Event) IntArg(i int) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(e.Arg(i)))
	if err != nil {
		return 0, false
	}
	return n, true
}

// String renders the event back into its wire form.
func (e Event) String() string {
	if len(e.Args) == 0 {
		return string(e.Type)
	}
	return string(e.Type) + Delimiter + strings.Join(e.Args, Delimiter)
}
