package expr

import (
	"context"
	"fmt"

	"github.com/roach88/senselogic/internal/ir"
)

// Arithmetic combines two value operands. At most one side may produce more
// than one reading; each result keeps the earlier of the paired timestamps.
type Arithmetic struct {
	node
	Op          ir.ArithOp
	Left, Right Valued

	mode ir.ReductionMode
}

// NewArithmetic builds (left op right).
func NewArithmetic(op ir.ArithOp, left, right Valued) *Arithmetic {
	return &Arithmetic{Op: op, Left: left, Right: right}
}

func (a *Arithmetic) String() string {
	return "(" + a.Left.String() + " " + a.Op.String() + " " + a.Right.String() + ")"
}

func (a *Arithmetic) HistoryLength() int64 {
	return max(a.Left.HistoryLength(), a.Right.HistoryLength())
}

func (a *Arithmetic) children() []Node { return []Node{a.Left, a.Right} }

func (a *Arithmetic) SleepUntil(ctx context.Context, readyAt int64) {
	a.Left.SleepUntil(ctx, readyAt)
	a.Right.SleepUntil(ctx, readyAt)
}

// Mode is the quantifier of the multi-valued operand from the last
// evaluation, or the left operand's mode when neither was multi-valued.
func (a *Arithmetic) Mode() ir.ReductionMode {
	if a.mode == 0 {
		return a.Left.Mode()
	}
	return a.mode
}

func (a *Arithmetic) Values(ctx context.Context, now int64) ([]ir.Reading, error) {
	lv, err := a.Left.Values(ctx, now)
	if err != nil {
		a.deferUntil = a.Left.DeferUntil()
		return nil, err
	}
	rv, err := a.Right.Values(ctx, now)
	if err != nil {
		a.deferUntil = min(a.Left.DeferUntil(), a.Right.DeferUntil())
		return nil, err
	}
	a.deferUntil = min(a.Left.DeferUntil(), a.Right.DeferUntil())

	switch {
	case len(lv) > 1 && len(rv) > 1:
		return nil, fmt.Errorf("%s: %w", a.id, ErrCardinality)
	case len(rv) > 1:
		a.mode = a.Right.Mode()
	default:
		a.mode = a.Left.Mode()
	}

	out := make([]ir.Reading, 0, max(len(lv), len(rv)))
	for _, l := range lv {
		for _, r := range rv {
			v, err := a.Op.Apply(l.Value, r.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", a.id, err)
			}
			out = append(out, ir.Reading{Value: v, Timestamp: min(l.Timestamp, r.Timestamp)})
		}
	}
	return out, nil
}
