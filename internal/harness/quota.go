package harness

import "fmt"

// stepQuota bounds the scheduler passes the harness makes at one clock
// value. A rule set whose evaluations keep rescheduling each other at the
// same instant would otherwise never settle.
type stepQuota struct {
	limit   int
	current int
}

func newStepQuota(limit int) *stepQuota {
	return &stepQuota{limit: limit}
}

// check counts one pass and fails once the limit is passed.
func (q *stepQuota) check(at int64) error {
	q.current++
	if q.current > q.limit {
		return &StepsExceededError{At: at, Steps: q.current, Limit: q.limit}
	}
	return nil
}

// StepsExceededError is returned when the scheduler does not settle at a
// single instant within the step limit.
type StepsExceededError struct {
	At    int64 // Clock value that did not settle
	Steps int   // Passes taken
	Limit int   // Allowed passes
}

func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("scheduler did not settle at %d: %d steps exceed limit of %d", e.At, e.Steps, e.Limit)
}
