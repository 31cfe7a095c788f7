package engine

import "github.com/roach88/senselogic/internal/ir"

// Listener receives expression state transitions. Callbacks run on a
// scheduler worker goroutine and must not block for long.
type Listener interface {
	OnTrue(id string)
	OnFalse(id string)
	OnUndefined(id string)
	// OnError reports an expression or subscription dropped after a fatal
	// evaluation error. It is called once per dropped id.
	OnError(id string, err error)
}

// ReadingListener receives value subscription updates. A nil readings slice
// signals that the previous value is no longer valid.
type ReadingListener interface {
	OnReading(id string, readings []ir.Reading)
}

// ListenerFuncs adapts plain functions to Listener and ReadingListener.
// Nil fields are skipped.
type ListenerFuncs struct {
	True      func(id string)
	False     func(id string)
	Undefined func(id string)
	Error     func(id string, err error)
	Reading   func(id string, readings []ir.Reading)
}

func (f ListenerFuncs) OnTrue(id string) {
	if f.True != nil {
		f.True(id)
	}
}

func (f ListenerFuncs) OnFalse(id string) {
	if f.False != nil {
		f.False(id)
	}
}

func (f ListenerFuncs) OnUndefined(id string) {
	if f.Undefined != nil {
		f.Undefined(id)
	}
}

func (f ListenerFuncs) OnError(id string, err error) {
	if f.Error != nil {
		f.Error(id, err)
	}
}

func (f ListenerFuncs) OnReading(id string, readings []ir.Reading) {
	if f.Reading != nil {
		f.Reading(id, readings)
	}
}
