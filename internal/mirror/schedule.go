package mirror

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wateringctl/wateringctl/internal/domain"
	"github.com/wateringctl/wateringctl/internal/ports"
)

// ScheduleOption configures a Schedule.
type ScheduleOption func(*Schedule)

// WithClock replaces time.Now. SCHED_ON/OFF events refer to the current
// weekday.
func WithClock(now func() time.Time) ScheduleOption {
	return func(s *Schedule) { s.now = now }
}

// Schedule mirrors GET /scheduler/{day}, one entry per fetched weekday.
type Schedule struct {
	fetcher ports.StateFetcher
	logger  ports.Logger
	now     func() time.Time

	mu   sync.Mutex
	days map[domain.Weekday]domain.Day
	subs []func(day domain.Weekday)
}

// NewSchedule creates an empty schedule mirror.
func NewSchedule(fetcher ports.StateFetcher, logger ports.Logger, opts ...ScheduleOption) *Schedule {
	s := &Schedule{
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
		days:    make(map[domain.Weekday]domain.Day),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnChange registers fn, called with the weekday that changed.
func (s *Schedule) OnChange(fn func(day domain.Weekday)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Today returns the device key of the current weekday.
func (s *Schedule) Today() domain.Weekday {
	return domain.WeekdayOf(s.now().Weekday())
}

// Day returns a copy of the mirrored schedule of day.
func (s *Schedule) Day(day domain.Weekday) (domain.Day, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.days[day]
	if !ok {
		return domain.Day{}, false
	}
	d.Intervals = append([]domain.Interval(nil), d.Intervals...)
	return d, true
}

// Loaded returns the weekdays held by the mirror, in device order.
func (s *Schedule) Loaded() []domain.Weekday {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Weekday
	for _, d := range domain.Weekdays {
		if _, ok := s.days[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Refresh replaces the mirrored schedule of day.
func (s *Schedule) Refresh(ctx context.Context, day domain.Weekday) error {
	d, err := s.fetcher.FetchDay(ctx, day)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", day, err)
	}
	d.Intervals = append([]domain.Interval(nil), d.Intervals...)

	s.mu.Lock()
	s.days[day] = d
	subs := s.snapshotLocked()
	s.mu.Unlock()

	notifyDay(subs, day)
	return nil
}

// Apply mutates the mirrored day or interval named by ev. Events for other
// entities are ignored. An event for a day or interval the mirror does not
// hold, or one that cannot be interpreted, refetches that day once.
func (s *Schedule) Apply(ctx context.Context, ev domain.Event) error {
	switch ev.Type {
	case domain.EventIntervalSchedOn, domain.EventIntervalSchedOff:
		index, ok := ev.IntArg(0)
		active := ev.Type == domain.EventIntervalSchedOn
		return s.applyInterval(ctx, s.Today(), index, ok, ev, func(iv *domain.Interval) bool {
			iv.Active = active
			return true
		})

	case domain.EventDayDisableOn, domain.EventDayDisableOff:
		day, ok := s.weekday(ev)
		if !ok {
			return nil
		}
		disabled := ev.Type == domain.EventDayDisableOn
		return s.applyDay(ctx, day, ev, func(d *domain.Day) bool {
			d.Disabled = disabled
			return true
		})

	case domain.EventIntervalDisableOn,
		domain.EventIntervalDisableOff,
		domain.EventIntervalStartChange,
		domain.EventIntervalEndChange,
		domain.EventIntervalIdentifierChange,
		domain.EventIntervalDeleted:
		day, ok := s.weekday(ev)
		if !ok {
			return nil
		}
		index, ok := ev.IntArg(1)
		return s.applyInterval(ctx, day, index, ok, ev, func(iv *domain.Interval) bool {
			return applyInterval(iv, ev)
		})
	}
	return nil
}

func (s *Schedule) weekday(ev domain.Event) (domain.Weekday, bool) {
	day, ok := domain.ParseWeekday(ev.Arg(0))
	if !ok {
		s.logger.Warn("event names an unknown weekday",
			ports.String("event", ev.String()),
		)
	}
	return day, ok
}

func (s *Schedule) applyDay(ctx context.Context, day domain.Weekday, ev domain.Event, fn func(*domain.Day) bool) error {
	s.mu.Lock()
	if d, ok := s.days[day]; ok && fn(&d) {
		s.days[day] = d
		subs := s.snapshotLocked()
		s.mu.Unlock()
		notifyDay(subs, day)
		return nil
	}
	s.mu.Unlock()

	s.logger.Debug("schedule event does not match mirror, refetching",
		ports.String("event", ev.String()),
		ports.String("day", string(day)),
	)
	return s.Refresh(ctx, day)
}

func (s *Schedule) applyInterval(ctx context.Context, day domain.Weekday, index int, indexOK bool, ev domain.Event, fn func(*domain.Interval) bool) error {
	return s.applyDay(ctx, day, ev, func(d *domain.Day) bool {
		if !indexOK {
			return false
		}
		for i := range d.Intervals {
			if d.Intervals[i].Index != index {
				continue
			}
			// copy before mutating, Day hands out the old slice
			intervals := append([]domain.Interval(nil), d.Intervals...)
			if !fn(&intervals[i]) {
				return false
			}
			d.Intervals = intervals
			return true
		}
		return false
	})
}

func (s *Schedule) snapshotLocked() []func(domain.Weekday) {
	return append([]func(domain.Weekday){}, s.subs...)
}

// applyInterval reports whether ev could be applied to iv.
func applyInterval(iv *domain.Interval, ev domain.Event) bool {
	switch ev.Type {
	case domain.EventIntervalDisableOn:
		iv.Disabled = true
	case domain.EventIntervalDisableOff:
		iv.Disabled = false
	case domain.EventIntervalStartChange:
		if _, err := domain.ParseClock(ev.Arg(2)); err != nil {
			return false
		}
		iv.Start = ev.Arg(2)
	case domain.EventIntervalEndChange:
		if _, err := domain.ParseClock(ev.Arg(2)); err != nil {
			return false
		}
		iv.End = ev.Arg(2)
	case domain.EventIntervalIdentifierChange:
		id, ok := ev.IntArg(2)
		if !ok {
			return false
		}
		iv.Identifier = id
	case domain.EventIntervalDeleted:
		iv.SetEmpty()
	default:
		return false
	}
	return true
}

func notifyDay(subs []func(domain.Weekday), day domain.Weekday) {
	for _, fn := range subs {
		fn(day)
	}
}
