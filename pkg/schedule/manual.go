package schedule

import (
	"sync"
	"time"
)

// Manual is a Scheduler driven by virtual time.
// Callbacks run on the goroutine that calls Advance or RunAll, never while
// Manual holds its own lock, so they may schedule further callbacks.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	m   *Manual
	seq uint64
	due time.Time
	fn  func()
}

// NewManual creates a Manual scheduler whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc schedules fn to run once virtual time reaches Now()+d.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTimer{m: m, seq: m.seq, due: m.now.Add(d), fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// Pending returns the number of callbacks waiting to fire.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Advance moves virtual time forward by d, firing every callback that
// becomes due, including callbacks scheduled by callbacks. It returns the
// number of callbacks fired.
func (m *Manual) Advance(d time.Duration) int {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()
	return m.runUntil(target)
}

// RunAll fires callbacks in deadline order until none remain, moving the
// clock to each deadline. It returns the number of callbacks fired.
func (m *Manual) RunAll() int {
	fired := 0
	for {
		m.mu.Lock()
		next := m.earliest()
		m.mu.Unlock()
		if next == nil {
			return fired
		}
		fired += m.runUntil(next.due)
	}
}

func (m *Manual) runUntil(target time.Time) int {
	fired := 0
	for {
		m.mu.Lock()
		t := m.earliest()
		if t == nil || t.due.After(target) {
			if m.now.Before(target) {
				m.now = target
			}
			m.mu.Unlock()
			return fired
		}
		m.remove(t)
		if t.due.After(m.now) {
			m.now = t.due
		}
		m.mu.Unlock()

		t.fn()
		fired++
	}
}

// earliest returns the next timer to fire. Ties go to the earliest scheduled.
// Callers must hold m.mu.
func (m *Manual) earliest() *manualTimer {
	var best *manualTimer
	for _, t := range m.timers {
		if best == nil || t.due.Before(best.due) || (t.due.Equal(best.due) && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

// remove drops t from the pending list and reports whether it was there.
// Callers must hold m.mu.
func (m *Manual) remove(t *manualTimer) bool {
	for i, other := range m.timers {
		if other == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return true
		}
	}
	return false
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.m.remove(t)
}
