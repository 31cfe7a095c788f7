package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_AdvanceFiresDueTimers(t *testing.T) {
	clock := NewFakeClock(100)
	early := clock.TimerAt(150)
	late := clock.TimerAt(300)
	assert.Equal(t, 2, clock.PendingTimers())

	clock.Advance(50)
	select {
	case <-early.C():
	default:
		t.Fatal("timer at 150 should fire at 150")
	}
	select {
	case <-late.C():
		t.Fatal("timer at 300 fired early")
	default:
	}
	assert.Equal(t, 1, clock.PendingTimers())
	assert.Equal(t, int64(150), clock.Now())
}

func TestFakeClock_PastDeadlineFiresImmediately(t *testing.T) {
	clock := NewFakeClock(100)
	timer := clock.TimerAt(100)
	select {
	case <-timer.C():
	default:
		t.Fatal("timer at current time should fire immediately")
	}
	assert.Equal(t, 0, clock.PendingTimers())
}

func TestFakeClock_StopRemovesTimer(t *testing.T) {
	clock := NewFakeClock(0)
	timer := clock.TimerAt(10)
	timer.Stop()
	timer.Stop()
	clock.Advance(20)
	select {
	case <-timer.C():
		t.Fatal("stopped timer fired")
	default:
	}
	assert.Equal(t, 0, clock.PendingTimers())
}

func TestFakeClock_SetIgnoresBackwards(t *testing.T) {
	clock := NewFakeClock(50)
	clock.Set(20)
	assert.Equal(t, int64(50), clock.Now())
	clock.Set(80)
	assert.Equal(t, int64(80), clock.Now())
}
