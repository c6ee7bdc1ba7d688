package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerFires(t *testing.T) {
	fired := make(chan struct{})
	timer := NewTimer(20*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	assert.Equal(t, TimerElapsed, timer.Status())
	assert.Zero(t, timer.Remaining())
}

func TestTimerPausePreservesRemaining(t *testing.T) {
	fired := make(chan struct{})
	timer := NewTimer(60*time.Millisecond, func() { close(fired) })

	time.Sleep(20 * time.Millisecond)
	timer.Pause()
	require.Equal(t, TimerPaused, timer.Status())

	remaining := timer.Remaining()
	assert.Positive(t, remaining)
	assert.Less(t, remaining, 60*time.Millisecond)

	// Paused means paused: the callback must not fire.
	select {
	case <-fired:
		t.Fatal("paused timer fired")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, remaining, timer.Remaining(), "remaining frozen while paused")

	timer.Resume()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("resumed timer never fired")
	}
}

func TestTimerCancelIsFinal(t *testing.T) {
	fired := make(chan struct{})
	timer := NewTimer(20*time.Millisecond, func() { close(fired) })
	timer.Cancel()

	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(60 * time.Millisecond):
	}

	timer.Resume()
	assert.Equal(t, TimerCancelled, timer.Status(), "cancelled timers stay dead")
	assert.Zero(t, timer.Remaining())
}

func TestTimerTotalIsStable(t *testing.T) {
	timer := NewTimer(50*time.Millisecond, func() {})
	defer timer.Cancel()

	timer.Pause()
	timer.Resume()
	assert.Equal(t, 50*time.Millisecond, timer.Total())
}
