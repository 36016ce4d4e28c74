// Package events decodes push frames of the event socket and fans them out
// to subscribers.
package events

import (
	"strings"
	"sync"

	"github.com/wateringctl/wateringctl/internal/domain"
	"github.com/wateringctl/wateringctl/internal/ports"
)

// Handler receives decoded events. Handlers run on the channel's read
// goroutine and must not block.
type Handler func(ev domain.Event)

var known = map[domain.EventType]bool{
	domain.EventIntervalSchedOn:          true,
	domain.EventIntervalSchedOff:         true,
	domain.EventValveOn:                  true,
	domain.EventValveOff:                 true,
	domain.EventValveRename:              true,
	domain.EventValveDisableOn:           true,
	domain.EventValveDisableOff:          true,
	domain.EventDayDisableOn:             true,
	domain.EventDayDisableOff:            true,
	domain.EventIntervalDisableOn:        true,
	domain.EventIntervalDisableOff:       true,
	domain.EventIntervalStartChange:      true,
	domain.EventIntervalEndChange:        true,
	domain.EventIntervalIdentifierChange: true,
	domain.EventIntervalDeleted:          true,
	domain.EventValveTimerUpdated:        true,
}

// Known reports whether t is one of the firmware's event types.
func Known(t domain.EventType) bool {
	return known[t]
}

type subscription struct {
	id uint64
	h  Handler
}

// Client republishes push frames as domain events, in arrival order.
type Client struct {
	logger ports.Logger

	mu     sync.Mutex
	nextID uint64
	subs   []subscription
}

// New creates an event client.
func New(logger ports.Logger) *Client {
	return &Client{logger: logger}
}

// Subscribe registers h and returns a func that removes it again.
func (c *Client) Subscribe(h Handler) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscription{id: id, h: h})

	var once sync.Once
	return func() {
		once.Do(func() { c.remove(id) })
	}
}

func (c *Client) remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s.id == id {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			return
		}
	}
}

// HandleFrame decodes one push frame. It has the transport.Handler
// signature so it can be installed on the event channel directly.
func (c *Client) HandleFrame(f ports.Frame) {
	text := strings.TrimSpace(strings.TrimRight(f.Text(), "\x00"))
	if text == "" {
		c.logger.Debug("empty event frame dropped")
		return
	}

	ev := domain.ParseEvent(text)
	if !Known(ev.Type) {
		c.logger.Debug("unknown event type", ports.String("type", string(ev.Type)))
	}
	c.Publish(ev)
}

// Publish delivers ev to every subscriber.
func (c *Client) Publish(ev domain.Event) {
	c.mu.Lock()
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		s.h(ev)
	}
}
