package typing

import (
	"sync"
	"time"
)

// DefaultStopDelay is how long after the last keystroke the stop signal is
// emitted.
const DefaultStopDelay = 2 * time.Second

// Throttle converts raw keystroke activity into a bounded rate of outbound
// typing signals: one start on the first keystroke after an idle period, one
// stop after a quiet period (trailing-edge debounce). Each burst of activity
// produces exactly one start/stop pair regardless of keystroke rate.
type Throttle struct {
	mu     sync.Mutex
	delay  time.Duration
	start  func()
	stop   func()
	timer  *time.Timer
	active bool
}

// NewThrottle wires the emit callbacks. A non-positive delay falls back to
// DefaultStopDelay.
func NewThrottle(delay time.Duration, start, stop func()) *Throttle {
	if delay <= 0 {
		delay = DefaultStopDelay
	}
	return &Throttle{delay: delay, start: start, stop: stop}
}

// Activity is called on every local text-input change. The first call after
// an idle period emits the start signal; every call resets the trailing stop
// timer.
func (t *Throttle) Activity() {
	t.mu.Lock()
	first := !t.active
	t.active = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.delay, t.expire)
	t.mu.Unlock()

	if first {
		t.start()
	}
}

// Flush cancels the pending stop timer and emits the stop signal
// synchronously if a burst is active. Called when a message is sent: the act
// of sending implies typing has stopped.
func (t *Throttle) Flush() {
	t.mu.Lock()
	wasActive := t.active
	t.active = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()

	if wasActive {
		t.stop()
	}
}

// Close cancels the debounce timer without emitting anything. Used on screen
// teardown.
func (t *Throttle) Close() {
	t.mu.Lock()
	t.active = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
}

func (t *Throttle) expire() {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	t.active = false
	t.timer = nil
	t.mu.Unlock()

	t.stop()
}
