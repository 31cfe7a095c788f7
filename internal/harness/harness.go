package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/senselogic/internal/compiler"
	"github.com/roach88/senselogic/internal/engine"
	"github.com/roach88/senselogic/internal/expr"
	"github.com/roach88/senselogic/internal/ir"
	"github.com/roach88/senselogic/internal/store"
	"github.com/roach88/senselogic/internal/testutil"
)

// maxStepsPerInstant bounds scheduler passes at a single clock value.
const maxStepsPerInstant = 10_000

// Harness is the test execution engine.
// It runs scenarios against a fresh store with a manual clock.
type Harness struct {
	store  *store.Store
	sched  *engine.Scheduler
	clock  *testutil.FakeClock
	logger *slog.Logger

	mu    sync.Mutex
	trace []TraceEvent
}

// recorder adapts the harness to the scheduler listener interfaces.
type recorder struct{ h *Harness }

func (r recorder) OnTrue(id string)      { r.h.record(id, EventState, ir.True.String()) }
func (r recorder) OnFalse(id string)     { r.h.record(id, EventState, ir.False.String()) }
func (r recorder) OnUndefined(id string) { r.h.record(id, EventState, ir.Undefined.String()) }
func (r recorder) OnError(id string, _ error) {
	r.h.record(id, EventError, "ERROR")
}

func (r recorder) OnReading(id string, readings []ir.Reading) {
	if readings == nil {
		r.h.record(id, EventReading, "invalid")
		return
	}
	r.h.record(id, EventReading, fmt.Sprint(readings))
}

func (h *Harness) record(id, kind, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trace = append(h.trace, TraceEvent{At: h.clock.Now(), ID: id, Kind: kind, Value: value})
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
// 1. Create fresh in-memory store, clock at 0 and scheduler
// 2. Compile rule files and register rules, expressions and watches
// 3. Walk the steps, firing every deadline that falls between them
// 4. Evaluate assertions against the trace and final states
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		clock:  testutil.NewFakeClock(0),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	h.sched = engine.New(st,
		engine.WithClock(h.clock),
		engine.WithLogger(h.logger),
	)
	h.sched.AddListener(recorder{h})
	h.sched.AddReadingListener(recorder{h})
	st.OnDataChanged(h.sched.NotifyDataChanged)

	ctx := context.Background()
	defer h.sched.Shutdown(ctx)

	if err := h.register(ctx, scenario); err != nil {
		return nil, err
	}

	for i, step := range scenario.Steps {
		if err := h.advance(ctx, step.At); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if err := h.apply(ctx, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if err := h.settle(ctx); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	if scenario.Until > 0 {
		if err := h.advance(ctx, scenario.Until); err != nil {
			return nil, fmt.Errorf("until: %w", err)
		}
	}

	result := NewResult()
	h.mu.Lock()
	result.Trace = append(result.Trace, h.trace...)
	h.mu.Unlock()
	for _, status := range h.sched.Snapshot().Expressions {
		if status.Evaluated {
			result.Final[status.ID] = status.State.String()
		}
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// register compiles rule files then registers every declaration in order.
func (h *Harness) register(ctx context.Context, scenario *Scenario) error {
	cuectx := cuecontext.New()
	for _, path := range scenario.Rules {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read rules: %w", err)
		}
		v := cuectx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return fmt.Errorf("failed to compile %s: %w", path, err)
		}
		compiled, errs := compiler.Compile(v, true)
		if len(errs) > 0 {
			return fmt.Errorf("failed to compile %s: %w", path, errs[0])
		}
		for _, rule := range compiled.Rules {
			if rule.Disabled {
				continue
			}
			if err := h.sched.Register(ctx, rule.ID, rule.Root); err != nil {
				return err
			}
		}
		for _, w := range compiled.Watches {
			if err := h.sched.Subscribe(ctx, w.ID, w.Root); err != nil {
				return err
			}
		}
	}

	for _, d := range scenario.Expressions {
		root, err := expr.ParseLogical(d.Expression)
		if err != nil {
			return fmt.Errorf("expression %s: %w", d.ID, err)
		}
		if err := h.sched.Register(ctx, d.ID, root); err != nil {
			return err
		}
	}
	for _, w := range scenario.Watches {
		node, err := expr.ParseValue(w.Sensor)
		if err != nil {
			return fmt.Errorf("watch %s: %w", w.ID, err)
		}
		if err := h.sched.Subscribe(ctx, w.ID, node); err != nil {
			return err
		}
	}
	return nil
}

// advance moves the clock to at, stopping at every pending deadline on the
// way so each evaluation happens at its own time.
func (h *Harness) advance(ctx context.Context, at int64) error {
	for {
		due := h.sched.NextDue()
		if due > at {
			break
		}
		h.clock.Set(due)
		if err := h.settle(ctx); err != nil {
			return err
		}
	}
	h.clock.Set(at)
	return nil
}

// settle steps the scheduler until nothing is due at the current time.
func (h *Harness) settle(ctx context.Context) error {
	quota := newStepQuota(maxStepsPerInstant)
	for h.sched.Step(ctx) > 0 {
		if err := quota.check(h.clock.Now()); err != nil {
			return err
		}
	}
	return nil
}

// apply feeds a step's readings and unregistrations.
func (h *Harness) apply(ctx context.Context, step Step) error {
	for _, r := range step.Readings {
		v, err := ir.ParseLiteral(r.Value)
		if err != nil {
			return fmt.Errorf("reading %s: %w", r.Sensor, err)
		}
		ts := step.At
		if r.Timestamp != nil {
			ts = *r.Timestamp
		}
		if err := h.store.Append(ctx, r.Sensor, ir.Reading{Value: v, Timestamp: ts}); err != nil {
			return err
		}
	}
	for _, id := range step.Unregister {
		err := h.sched.Unregister(ctx, id)
		if engine.IsNotRegistered(err) {
			err = h.sched.Unsubscribe(ctx, id)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
