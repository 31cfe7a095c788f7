package expr

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/senselogic/internal/ir"
)

// Comparison applies a comparator across two value operands. Each operand's
// mode quantifies over its readings: ALL requires every reading to match,
// any other mode requires at least one. The left quantifier is outermost.
//
// A missing window on either side yields UNDEFINED rather than an error.
type Comparison struct {
	node
	Op          ir.Comparator
	Left, Right Valued

	result Result
}

// NewComparison builds (left op right).
func NewComparison(op ir.Comparator, left, right Valued) *Comparison {
	return &Comparison{Op: op, Left: left, Right: right}
}

func (c *Comparison) String() string {
	return "(" + c.Left.String() + " " + c.Op.String() + " " + c.Right.String() + ")"
}

func (c *Comparison) HistoryLength() int64 {
	return max(c.Left.HistoryLength(), c.Right.HistoryLength())
}

func (c *Comparison) Result() Result   { return c.result }
func (c *Comparison) children() []Node { return []Node{c.Left, c.Right} }

func (c *Comparison) SleepUntil(ctx context.Context, readyAt int64) {
	c.Left.SleepUntil(ctx, readyAt)
	c.Right.SleepUntil(ctx, readyAt)
}

func (c *Comparison) Evaluate(ctx context.Context, now int64) (ir.TriState, error) {
	state, err := c.evaluate(ctx, now)
	if err != nil {
		c.result = Result{}
		return ir.Undefined, err
	}
	c.result = Result{State: state, Timestamp: now, Valid: true}
	return state, nil
}

func (c *Comparison) evaluate(ctx context.Context, now int64) (ir.TriState, error) {
	lv, err := c.Left.Values(ctx, now)
	if errors.Is(err, ErrNoValuesInInterval) {
		c.deferUntil = ir.Forever
		return ir.Undefined, nil
	}
	if err != nil {
		return ir.Undefined, err
	}
	rv, err := c.Right.Values(ctx, now)
	if errors.Is(err, ErrNoValuesInInterval) {
		c.deferUntil = ir.Forever
		return ir.Undefined, nil
	}
	if err != nil {
		return ir.Undefined, err
	}
	c.deferUntil = min(c.Left.DeferUntil(), c.Right.DeferUntil())

	matched, err := quantify(lv, c.Left.Mode(), func(l ir.Reading) (bool, error) {
		return quantify(rv, c.Right.Mode(), func(r ir.Reading) (bool, error) {
			return c.Op.Apply(l.Value, r.Value)
		})
	})
	if err != nil {
		return ir.Undefined, fmt.Errorf("%s: %w", c.id, err)
	}
	return ir.FromBool(matched), nil
}

// quantify reports whether pred holds for every reading (ALL) or for at
// least one (every other mode).
func quantify(readings []ir.Reading, mode ir.ReductionMode, pred func(ir.Reading) (bool, error)) (bool, error) {
	every := mode == ir.All
	for _, r := range readings {
		ok, err := pred(r)
		if err != nil {
			return false, err
		}
		if ok != every {
			return ok, nil
		}
	}
	return every, nil
}
