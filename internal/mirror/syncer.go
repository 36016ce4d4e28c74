package mirror

import (
	"context"
	"sync"

	"github.com/wateringctl/wateringctl/internal/domain"
	"github.com/wateringctl/wateringctl/internal/ports"
	"github.com/wateringctl/wateringctl/internal/transport"
)

// DefaultQueueSize is the number of events buffered between the event
// socket and the mirrors.
const DefaultQueueSize = 256

// Syncer applies events to the mirrors on its own goroutine, so REST
// refetches never stall the event socket's read loop.
type Syncer struct {
	valves   *Valves
	schedule *Schedule
	logger   ports.Logger

	queue chan domain.Event
	kick  chan struct{}

	mu    sync.Mutex
	stale bool
}

// NewSyncer creates a syncer for both mirrors. queueSize <= 0 uses
// DefaultQueueSize.
func NewSyncer(valves *Valves, schedule *Schedule, logger ports.Logger, queueSize int) *Syncer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Syncer{
		valves:   valves,
		schedule: schedule,
		logger:   logger,
		queue:    make(chan domain.Event, queueSize),
		kick:     make(chan struct{}, 1),
	}
}

// Handle queues ev. It never blocks; when the queue is full the event is
// dropped and the mirrors are resynchronised instead.
func (s *Syncer) Handle(ev domain.Event) {
	select {
	case s.queue <- ev:
	default:
		s.logger.Warn("mirror queue full, scheduling resync",
			ports.String("event", ev.String()),
		)
		s.Resync()
	}
}

// Resync schedules a full refetch of every mirror.
func (s *Syncer) Resync() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// OnStateChange implements transport.EventEmitter. Events sent while the
// socket was down are lost, so every (re)connect resynchronises.
func (s *Syncer) OnStateChange(_, current transport.State, _ string) {
	if current == transport.StateConnected {
		s.Resync()
	}
}

// Run applies queued events until ctx is done.
func (s *Syncer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.kick:
			s.resyncIfStale(ctx)
		case ev := <-s.queue:
			if !s.resyncIfStale(ctx) {
				s.apply(ctx, ev)
			}
		}
	}
}

func (s *Syncer) apply(ctx context.Context, ev domain.Event) {
	if err := s.valves.Apply(ctx, ev); err != nil {
		s.logger.Warn("apply valve event", ports.String("event", ev.String()), ports.Err(err))
	}
	if err := s.schedule.Apply(ctx, ev); err != nil {
		s.logger.Warn("apply schedule event", ports.String("event", ev.String()), ports.Err(err))
	}
}

// resyncIfStale refetches everything when a resync is pending and reports
// whether it did.
func (s *Syncer) resyncIfStale(ctx context.Context) bool {
	s.mu.Lock()
	stale := s.stale
	s.stale = false
	s.mu.Unlock()
	if !stale {
		return false
	}

	// queued events predate the refetch below
	for drained := false; !drained; {
		select {
		case <-s.queue:
		default:
			drained = true
		}
	}

	if err := s.valves.Refresh(ctx); err != nil {
		s.logger.Warn("resync valves", ports.Err(err))
	}

	days := s.schedule.Loaded()
	today := s.schedule.Today()
	found := false
	for _, d := range days {
		found = found || d == today
	}
	if !found {
		days = append(days, today)
	}
	for _, d := range days {
		if err := s.schedule.Refresh(ctx, d); err != nil {
			s.logger.Warn("resync schedule", ports.String("day", string(d)), ports.Err(err))
		}
	}
	return true
}
