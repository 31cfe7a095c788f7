package expr

import (
	"context"

	"github.com/roach88/senselogic/internal/ir"
)

// Node is any expression tree node.
type Node interface {
	// ID returns the hierarchical id assigned by AssignIDs.
	ID() string
	// String returns the text form accepted by Parse.
	String() string
	// HistoryLength is how far back, in milliseconds, the subtree must keep
	// sampling to remain valid.
	HistoryLength() int64
	// DeferUntil is the earliest time the last result could change.
	DeferUntil() int64
	// SleepUntil tells the subtree it will not be evaluated before readyAt,
	// so sensors may suspend until then.
	SleepUntil(ctx context.Context, readyAt int64)

	children() []Node
	setID(id string)
}

// Logical is a TriState-producing node: Comparison or Logic.
type Logical interface {
	Node
	Evaluate(ctx context.Context, now int64) (ir.TriState, error)
	Result() Result
}

// Valued is a reading-producing node: Constant, SensorLeaf, or Arithmetic.
type Valued interface {
	Node
	// Values returns the history-reduced readings at now.
	Values(ctx context.Context, now int64) ([]ir.Reading, error)
	// Mode is the quantifier a comparison applies across these readings.
	Mode() ir.ReductionMode
}

// Result is the last outcome of a Logical node.
type Result struct {
	State     ir.TriState
	Timestamp int64
	Valid     bool
}

// node carries the fields shared by every variant.
type node struct {
	id         string
	deferUntil int64
}

func (n *node) ID() string        { return n.id }
func (n *node) setID(id string)   { n.id = id }
func (n *node) DeferUntil() int64 { return n.deferUntil }

// AssignIDs labels root with id and every descendant with its parent's id
// plus ".L" or ".R".
func AssignIDs(root Node, id string) {
	root.setID(id)
	kids := root.children()
	suffixes := []string{".L", ".R"}
	for i, child := range kids {
		AssignIDs(child, id+suffixes[i])
	}
}

// Walk visits n and its descendants depth-first, left to right. Returning
// false from fn skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	for _, child := range n.children() {
		Walk(child, fn)
	}
}

// Leaves returns every SensorLeaf under n in left-to-right order.
func Leaves(n Node) []*SensorLeaf {
	var out []*SensorLeaf
	Walk(n, func(x Node) bool {
		if leaf, ok := x.(*SensorLeaf); ok {
			out = append(out, leaf)
		}
		return true
	})
	return out
}
