package engine

import "time"

// Clock supplies scheduler time in milliseconds since the Unix epoch and
// absolute-deadline timers.
//
// The scheduler never sleeps relative to a reading of Now; it asks for a timer
// at the deadline it computed, so a clock that jumps ahead fires every
// timer it passes.
type Clock interface {
	Now() int64
	TimerAt(at int64) Timer
}

// Timer fires at most once on C.
type Timer interface {
	C() <-chan time.Time
	// Stop prevents the timer from firing. It is safe to call more than once.
	Stop()
}

// SystemClock is the wall clock.
//
// Thread-safety: SystemClock is stateless and safe for concurrent use.
type SystemClock struct{}

// Now returns the current wall time in milliseconds.
func (SystemClock) Now() int64 {
	return time.Now().UnixMilli()
}

// TimerAt returns a timer that fires once the wall clock reaches at.
func (SystemClock) TimerAt(at int64) Timer {
	d := time.Until(time.UnixMilli(at))
	return &systemTimer{t: time.NewTimer(max(d, 0))}
}

type systemTimer struct {
	t *time.Timer
}

func (s *systemTimer) C() <-chan time.Time { return s.t.C }
func (s *systemTimer) Stop()               { s.t.Stop() }
