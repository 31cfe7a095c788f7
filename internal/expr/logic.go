package expr

import (
	"context"
	"fmt"

	"github.com/roach88/senselogic/internal/ir"
)

// LogicOp is a three-valued logic operator.
type LogicOp int

const (
	And LogicOp = iota + 1
	Or
	Not
)

func (o LogicOp) String() string {
	switch o {
	case And:
		return "AND"
	case Or:
		return "OR"
	case Not:
		return "NOT"
	}
	return fmt.Sprintf("LogicOp(%d)", int(o))
}

// Logic combines TriState children. Binary operators evaluate the child
// expected to hold its result longer first, and skip the other when the
// first already decides the outcome.
type Logic struct {
	node
	Op    LogicOp
	Left  Logical
	Right Logical // nil for Not

	result Result
}

// NewNot builds NOT child.
func NewNot(child Logical) *Logic {
	return &Logic{Op: Not, Left: child}
}

// NewLogic builds (left op right) for And or Or.
func NewLogic(op LogicOp, left, right Logical) *Logic {
	return &Logic{Op: op, Left: left, Right: right}
}

func (l *Logic) String() string {
	if l.Op == Not {
		return "NOT " + l.Left.String()
	}
	return "(" + l.Left.String() + " " + l.Op.String() + " " + l.Right.String() + ")"
}

func (l *Logic) HistoryLength() int64 {
	if l.Op == Not {
		return l.Left.HistoryLength()
	}
	return max(l.Left.HistoryLength(), l.Right.HistoryLength())
}

func (l *Logic) Result() Result { return l.result }

func (l *Logic) children() []Node {
	if l.Op == Not {
		return []Node{l.Left}
	}
	return []Node{l.Left, l.Right}
}

func (l *Logic) SleepUntil(ctx context.Context, readyAt int64) {
	l.Left.SleepUntil(ctx, readyAt)
	if l.Right != nil {
		l.Right.SleepUntil(ctx, readyAt)
	}
}

func (l *Logic) Evaluate(ctx context.Context, now int64) (ir.TriState, error) {
	state, err := l.evaluate(ctx, now)
	if err != nil {
		l.result = Result{}
		return ir.Undefined, err
	}
	l.result = Result{State: state, Timestamp: now, Valid: true}
	return state, nil
}

func (l *Logic) evaluate(ctx context.Context, now int64) (ir.TriState, error) {
	if l.Op == Not {
		s, err := l.Left.Evaluate(ctx, now)
		if err != nil {
			return ir.Undefined, err
		}
		l.deferUntil = l.Left.DeferUntil()
		return ir.Not(s), nil
	}

	first, second := l.order()
	fs, err := first.Evaluate(ctx, now)
	if err != nil {
		return ir.Undefined, err
	}
	if l.decides(fs) {
		second.SleepUntil(ctx, first.DeferUntil())
		l.deferUntil = first.DeferUntil()
		return fs, nil
	}
	if _, err := second.Evaluate(ctx, now); err != nil {
		return ir.Undefined, err
	}

	ls, rs := l.Left.Result().State, l.Right.Result().State
	ld, rd := l.Left.DeferUntil(), l.Right.DeferUntil()
	switch {
	case l.Op == And && ls == ir.False && rs == ir.False,
		l.Op == Or && ls == ir.True && rs == ir.True:
		l.deferUntil = max(ld, rd)
	case l.Op == Or && ls == ir.True:
		l.deferUntil = ld
	case l.Op == Or && rs == ir.True:
		l.deferUntil = rd
	default:
		l.deferUntil = min(ld, rd)
	}
	if l.Op == And {
		return ir.And(ls, rs), nil
	}
	return ir.Or(ls, rs), nil
}

// order picks the child whose last result is expected to stay stable longer
// relative to how much history the other needs. Ties go left.
func (l *Logic) order() (first, second Logical) {
	a, b := l.Left, l.Right
	if b.DeferUntil()-a.HistoryLength() > a.DeferUntil()-b.HistoryLength() {
		return b, a
	}
	return a, b
}

func (l *Logic) decides(s ir.TriState) bool {
	return l.Op == And && s == ir.False || l.Op == Or && s == ir.True
}
