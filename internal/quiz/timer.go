package quiz

import (
	"fmt"
	"sync"
	"time"
)

const (
	DefaultDuration = 1200 * time.Second
	tickInterval    = time.Second
)

// Scheduler runs fn every interval until the returned cancel is called.
// Cancel must be safe to call more than once.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (cancel func())
}

// TickerScheduler backs each task with a goroutine and a time.Ticker.
type TickerScheduler struct{}

func (TickerScheduler) Every(interval time.Duration, fn func()) func() {
	stopChan := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopChan:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	return func() {
		once.Do(func() { close(stopChan) })
	}
}

// Timer is a one-second countdown. At most one scheduled task is live.
type Timer struct {
	mu        sync.Mutex
	duration  int
	remaining int
	gen       uint64
	cancel    func()

	scheduler Scheduler
	render    func(text string)
}

func NewTimer(duration time.Duration, scheduler Scheduler, render func(text string)) *Timer {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if scheduler == nil {
		scheduler = TickerScheduler{}
	}
	if render == nil {
		render = func(string) {}
	}
	return &Timer{
		duration:  int(duration / time.Second),
		scheduler: scheduler,
		render:    render,
	}
}

// Start resets the countdown, replacing any task already running, and calls
// onExpire once when it reaches zero.
func (t *Timer) Start(onExpire func()) {
	t.mu.Lock()
	t.stopLocked()
	t.remaining = t.duration
	gen := t.gen
	text := FormatClock(t.remaining)
	t.cancel = t.scheduler.Every(tickInterval, func() {
		t.tick(gen, onExpire)
	})
	t.mu.Unlock()

	t.render(text)
}

func (t *Timer) tick(gen uint64, onExpire func()) {
	t.mu.Lock()
	if gen != t.gen || t.remaining <= 0 {
		t.mu.Unlock()
		return
	}

	t.remaining--
	text := FormatClock(t.remaining)
	expired := t.remaining == 0
	if expired {
		t.stopLocked()
	}
	t.mu.Unlock()

	t.render(text)
	if expired && onExpire != nil {
		onExpire()
	}
}

func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// stopLocked cancels the live task and invalidates ticks already in flight.
func (t *Timer) stopLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.gen++
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

func (t *Timer) DurationSeconds() int {
	return t.duration
}

// FormatClock renders seconds as zero-padded MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
