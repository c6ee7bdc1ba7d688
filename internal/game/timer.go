package game

import (
	"sync"
	"time"
)

// TimerStatus is the lifecycle state of a countdown.
type TimerStatus uint8

const (
	TimerRunning TimerStatus = iota
	TimerPaused
	TimerElapsed
	TimerCancelled
)

// Timer is a pausable, resumable countdown. Pausing preserves the remaining
// duration; resuming re-arms it. The fire callback runs at most once, on the
// scheduler goroutine — callers that mutate game state from it must enqueue
// the mutation on the game's update serializer.
type Timer struct {
	mu        sync.Mutex
	total     time.Duration
	remaining time.Duration
	armedAt   time.Time
	status    TimerStatus
	timer     *time.Timer
	fire      func()
}

// NewTimer creates a running countdown that calls fire after d.
func NewTimer(d time.Duration, fire func()) *Timer {
	t := &Timer{total: d, remaining: d, fire: fire, status: TimerPaused}
	t.Resume()
	return t
}

func (t *Timer) arm() {
	t.status = TimerRunning
	t.armedAt = time.Now()
	t.timer = time.AfterFunc(t.remaining, t.expire)
}

func (t *Timer) expire() {
	t.mu.Lock()
	if t.status != TimerRunning {
		t.mu.Unlock()
		return
	}
	t.status = TimerElapsed
	t.remaining = 0
	fire := t.fire
	t.mu.Unlock()
	fire()
}

// Pause stops the countdown, preserving the remaining time. It reports
// whether a running countdown was actually paused; false means the timer
// had already fired, been paused, or been cancelled.
func (t *Timer) Pause() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TimerRunning {
		return false
	}
	t.timer.Stop()
	t.remaining -= time.Since(t.armedAt)
	if t.remaining < 0 {
		t.remaining = 0
	}
	t.status = TimerPaused
	return true
}

// Resume re-arms a paused countdown. Elapsed or cancelled timers stay dead.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TimerPaused {
		return
	}
	t.arm()
}

// Cancel permanently stops the countdown; the callback will never fire.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == TimerElapsed || t.status == TimerCancelled {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.status = TimerCancelled
}

// Remaining returns the non-negative time left on the countdown.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.status {
	case TimerRunning:
		left := t.remaining - time.Since(t.armedAt)
		if left < 0 {
			left = 0
		}
		return left
	case TimerPaused:
		return t.remaining
	default:
		return 0
	}
}

// Total returns the full duration the countdown was created with.
func (t *Timer) Total() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Status returns the timer's lifecycle state.
func (t *Timer) Status() TimerStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
