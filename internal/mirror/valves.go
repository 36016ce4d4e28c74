// Package mirror keeps an in-memory copy of the device's valves and
// schedules current by applying push events, falling back to a REST
// refetch whenever an event names something the copy does not hold.
package mirror

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/wateringctl/wateringctl/internal/domain"
	"github.com/wateringctl/wateringctl/internal/ports"
)

// Valves mirrors GET /valves.
type Valves struct {
	fetcher ports.StateFetcher
	logger  ports.Logger

	mu     sync.Mutex
	items  []domain.Valve
	loaded bool
	subs   []func()
}

// NewValves creates an empty valve mirror.
func NewValves(fetcher ports.StateFetcher, logger ports.Logger) *Valves {
	return &Valves{fetcher: fetcher, logger: logger}
}

// OnChange registers fn, called after every change to the mirror.
func (v *Valves) OnChange(fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.subs = append(v.subs, fn)
}

// Loaded reports whether the mirror has been fetched at least once.
func (v *Valves) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded
}

// Items returns a copy of the mirrored valves ordered by identifier.
func (v *Valves) Items() []domain.Valve {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]domain.Valve(nil), v.items...)
}

// Get returns the valve with identifier id.
func (v *Valves) Get(id int) (domain.Valve, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if i := v.indexLocked(id); i >= 0 {
		return v.items[i], true
	}
	return domain.Valve{}, false
}

// Refresh replaces the mirror with the device's current valves.
func (v *Valves) Refresh(ctx context.Context) error {
	items, err := v.fetcher.FetchValves(ctx)
	if err != nil {
		return fmt.Errorf("refresh valves: %w", err)
	}
	items = append([]domain.Valve(nil), items...)
	domain.SortValves(items)

	v.mu.Lock()
	v.items = items
	v.loaded = true
	subs := v.snapshotLocked()
	v.mu.Unlock()

	notify(subs)
	return nil
}

// Apply mutates the mirrored valve named by ev. Events for other entities
// are ignored. When the valve is not mirrored, or the event cannot be
// interpreted, the whole list is refetched once instead.
func (v *Valves) Apply(ctx context.Context, ev domain.Event) error {
	if !isValveEvent(ev.Type) {
		return nil
	}

	if id, ok := ev.IntArg(0); ok {
		v.mu.Lock()
		if i := v.indexLocked(id); i >= 0 && applyValve(&v.items[i], ev) {
			subs := v.snapshotLocked()
			v.mu.Unlock()
			notify(subs)
			return nil
		}
		v.mu.Unlock()
	}

	v.logger.Debug("valve event does not match mirror, refetching",
		ports.String("event", ev.String()),
	)
	return v.Refresh(ctx)
}

func (v *Valves) indexLocked(id int) int {
	for i := range v.items {
		if v.items[i].Identifier == id {
			return i
		}
	}
	return -1
}

func (v *Valves) snapshotLocked() []func() {
	return append([]func(){}, v.subs...)
}

func isValveEvent(t domain.EventType) bool {
	switch t {
	case domain.EventValveOn,
		domain.EventValveOff,
		domain.EventValveRename,
		domain.EventValveDisableOn,
		domain.EventValveDisableOff,
		domain.EventValveTimerUpdated:
		return true
	}
	return false
}

// applyValve reports whether ev could be applied to val.
func applyValve(val *domain.Valve, ev domain.Event) bool {
	switch ev.Type {
	case domain.EventValveOn:
		val.State = true
	case domain.EventValveOff:
		val.State = false
	case domain.EventValveDisableOn:
		val.Disabled = true
	case domain.EventValveDisableOff:
		val.Disabled = false
	case domain.EventValveRename:
		if len(ev.Args) < 2 {
			return false
		}
		// aliases may contain the delimiter
		val.Alias = strings.Join(ev.Args[1:], domain.Delimiter)
	case domain.EventValveTimerUpdated:
		if _, err := domain.ParseClock(ev.Arg(1)); err != nil {
			return false
		}
		val.Timer = ev.Arg(1)
	default:
		return false
	}
	return true
}

func notify(subs []func()) {
	for _, fn := range subs {
		fn()
	}
}
