package debounce

import (
	"sort"
	"sync"
	"time"
)

// FakeScheduler is a manually advanced Scheduler for tests.
type FakeScheduler struct {
	mu      sync.Mutex
	now     time.Duration
	pending []*fakeTimer
}

type fakeTimer struct {
	owner   *FakeScheduler
	at      time.Duration
	fn      func()
	stopped bool
}

// Stop implements Timer.
func (t *fakeTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// NewFakeScheduler returns a scheduler at time zero.
func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{}
}

// AfterFunc implements Scheduler.
func (s *FakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{owner: s, at: s.now + d, fn: f}
	s.pending = append(s.pending, t)
	return t
}

// Advance moves the clock forward and runs the due callbacks in order on the
// calling goroutine.
func (s *FakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due []*fakeTimer
	remaining := s.pending[:0]
	for _, t := range s.pending {
		switch {
		case t.stopped:
		case t.at <= s.now:
			t.stopped = true
			due = append(due, t)
		default:
			remaining = append(remaining, t)
		}
	}
	s.pending = remaining
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.fn()
	}
}

// Scheduled counts the live timers.
func (s *FakeScheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.pending {
		if !t.stopped {
			n++
		}
	}
	return n
}
