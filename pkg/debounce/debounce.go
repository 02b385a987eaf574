package debounce

import (
	"sync"
	"time"
)

// Timer is the handle of a scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler schedules with time.AfterFunc.
type RealScheduler struct{}

// AfterFunc implements Scheduler.
func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer keeps at most one pending call: each Trigger replaces the
// previous one and restarts the delay.
type Debouncer struct {
	mu        sync.Mutex
	delay     time.Duration
	scheduler Scheduler
	timer     Timer
	seq       uint64
}

// New builds a debouncer. A nil scheduler uses real timers.
func New(delay time.Duration, scheduler Scheduler) *Debouncer {
	if scheduler == nil {
		scheduler = RealScheduler{}
	}
	return &Debouncer{delay: delay, scheduler: scheduler}
}

// Trigger schedules fn after the delay, cancelling any pending call.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.seq++
	seq := d.seq
	d.timer = d.scheduler.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.seq != seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending call, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.seq++
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
