// Package progress tracks outstanding operations for busy indication and
// holds the current transfer percentage.
package progress

import (
	"sync"
	"time"
)

// DefaultDebounce is how long the busy flag must hold before observers are
// told about it.
const DefaultDebounce = 50 * time.Millisecond

// Indeterminate is the percent value for work of unknown length.
const Indeterminate = -1

// TaskID identifies a task started with StartTask.
type TaskID uint64

// Tracker aggregates tasks into a busy flag.
// The zero value is not usable; use New.
type Tracker struct {
	debounce time.Duration

	mu       sync.Mutex
	nextID   TaskID
	tasks    map[TaskID]*time.Timer
	reported bool
	pending  *time.Timer
	percent  int
	busySubs []func(bool)
	pctSubs  []func(int)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithDebounce overrides DefaultDebounce. Zero reports changes immediately.
func WithDebounce(d time.Duration) Option {
	return func(t *Tracker) { t.debounce = d }
}

// New creates an idle tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		debounce: DefaultDebounce,
		tasks:    make(map[TaskID]*time.Timer),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// StartTask registers a task. A positive timeout finishes the task
// automatically once it elapses.
func (t *Tracker) StartTask(timeout time.Duration) TaskID {
	t.mu.Lock()
	id := t.nextID
	t.nextID++

	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, func() { t.FinishTask(id) })
	}
	t.tasks[id] = timer
	t.scheduleLocked()
	t.mu.Unlock()
	return id
}

// FinishTask removes a task. Unknown or already finished ids are ignored.
func (t *Tracker) FinishTask(id TaskID) {
	t.mu.Lock()
	timer, ok := t.tasks[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	if timer != nil {
		timer.Stop()
	}
	delete(t.tasks, id)
	t.scheduleLocked()
	t.mu.Unlock()
}

// Busy reports whether at least one task is outstanding. It is not
// debounced.
func (t *Tracker) Busy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks) > 0
}

// Outstanding returns the number of unfinished tasks.
func (t *Tracker) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks)
}

// OnBusyChange registers fn to receive debounced busy transitions.
func (t *Tracker) OnBusyChange(fn func(busy bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.busySubs = append(t.busySubs, fn)
}

// OnPercent registers fn to receive every percent update.
func (t *Tracker) OnPercent(fn func(percent int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pctSubs = append(t.pctSubs, fn)
}

// SetPercent publishes a new percent value, clamped to [Indeterminate, 100].
func (t *Tracker) SetPercent(p int) {
	if p < Indeterminate {
		p = Indeterminate
	}
	if p > 100 {
		p = 100
	}
	t.mu.Lock()
	t.percent = p
	subs := append([]func(int){}, t.pctSubs...)
	t.mu.Unlock()

	for _, fn := range subs {
		fn(p)
	}
}

// Percent returns the last published percent value.
func (t *Tracker) Percent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percent
}

// scheduleLocked (re)arms the debounce timer. Must hold t.mu.
func (t *Tracker) scheduleLocked() {
	if t.pending != nil {
		t.pending.Stop()
	}
	if t.debounce <= 0 {
		t.pending = nil
		go t.flush()
		return
	}
	t.pending = time.AfterFunc(t.debounce, t.flush)
}

func (t *Tracker) flush() {
	t.mu.Lock()
	busy := len(t.tasks) > 0
	if busy == t.reported {
		t.mu.Unlock()
		return
	}
	t.reported = busy
	subs := append([]func(bool){}, t.busySubs...)
	t.mu.Unlock()

	for _, fn := range subs {
		fn(busy)
	}
}
