package expr

import (
	"context"

	"github.com/roach88/senselogic/internal/ir"
)

// Constant is a literal value. It never changes, so its defer-until time is
// ir.Forever and its reading is stamped ir.Forever so that arithmetic keeps
// the timestamp of any sensor operand.
type Constant struct {
	node
	Value ir.Value
}

// NewConstant wraps v in a Constant node. Text is stored NFC normalized.
func NewConstant(v ir.Value) *Constant {
	if t, ok := v.(ir.Text); ok {
		v = ir.NewText(string(t))
	}
	return &Constant{node: node{deferUntil: ir.Forever}, Value: v}
}

func (c *Constant) String() string                    { return c.Value.String() }
func (c *Constant) HistoryLength() int64              { return 0 }
func (c *Constant) SleepUntil(context.Context, int64) {}
func (c *Constant) Mode() ir.ReductionMode            { return ir.Any }
func (c *Constant) children() []Node                  { return nil }

func (c *Constant) Values(context.Context, int64) ([]ir.Reading, error) {
	return []ir.Reading{{Value: c.Value, Timestamp: ir.Forever}}, nil
}
