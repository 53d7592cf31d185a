// Package clocktest provides a manually driven clock for tests.
package clocktest

import (
	"sort"
	"sync"
	"time"

	"github.com/rbright/askvoice/internal/clock"
)

// Fake is a scripted clock. Tickers fire only on Tick; timers fire on Advance.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	timers  []*fakeTimer
}

var _ clock.Clock = (*Fake)(nil)

// New returns a fake clock anchored at start.
func New(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) NewTicker(d time.Duration) clock.Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{period: d, c: make(chan time.Time, 64)}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) clock.Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{deadline: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Tick delivers one tick to every live ticker and reports how many received it.
func (f *Fake) Tick() int {
	f.mu.Lock()
	now := f.now
	live := make([]*fakeTicker, 0, len(f.tickers))
	for _, t := range f.tickers {
		if !t.stopped() {
			live = append(live, t)
		}
	}
	f.mu.Unlock()

	delivered := 0
	for _, t := range live {
		if t.deliver(now) {
			delivered++
		}
	}
	return delivered
}

// ActiveTickers reports tickers that have not been stopped.
func (f *Fake) ActiveTickers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tickers {
		if !t.stopped() {
			n++
		}
	}
	return n
}

// Advance moves time forward and runs every due timer in deadline order.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	due := make([]*fakeTimer, 0)
	pending := f.timers[:0]
	for _, t := range f.timers {
		if t.isStopped() {
			continue
		}
		if !t.deadline.After(now) {
			due = append(due, t)
			continue
		}
		pending = append(pending, t)
	}
	f.timers = pending
	f.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, t := range due {
		if t.fire() {
			t.fn()
		}
	}
}

type fakeTicker struct {
	period time.Duration
	c      chan time.Time

	mu   sync.Mutex
	done bool
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.c
}

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
}

func (t *fakeTicker) stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *fakeTicker) deliver(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	select {
	case t.c <- now:
		return true
	default:
		return false
	}
}

type fakeTimer struct {
	deadline time.Time
	fn       func()

	mu      sync.Mutex
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *fakeTimer) fire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.fired = true
	return true
}
