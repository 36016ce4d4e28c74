package notify

import (
	"sync"
	"time"

	"github.com/wateringctl/wateringctl/internal/ports"
)

// Center keeps the currently visible notifications. A notification with a
// timeout is removed once it elapses.
type Center struct {
	mu    sync.Mutex
	items []*ports.Notification
	subs  []func(ports.Notification)
}

// NewCenter creates an empty notification center.
func NewCenter() *Center {
	return &Center{}
}

// Publish adds n and informs subscribers.
func (c *Center) Publish(n ports.Notification) {
	item := &n

	c.mu.Lock()
	c.items = append(c.items, item)
	subs := append([]func(ports.Notification){}, c.subs...)
	c.mu.Unlock()

	if n.Timeout > 0 {
		time.AfterFunc(n.Timeout, func() { c.destroy(item) })
	}
	for _, fn := range subs {
		fn(n)
	}
}

// Subscribe registers fn for every published notification.
func (c *Center) Subscribe(fn func(ports.Notification)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// Items returns the visible notifications, oldest first.
func (c *Center) Items() []ports.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ports.Notification, len(c.items))
	for i, it := range c.items {
		out[i] = *it
	}
	return out
}

func (c *Center) destroy(item *ports.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, it := range c.items {
		if it == item {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}
