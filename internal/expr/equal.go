package expr

import "github.com/roach88/senselogic/internal/ir"

// Equal reports whether two trees have the same shape, operators, bindings,
// and literals. Ids and evaluation state are ignored.
func Equal(a, b Node) bool {
	switch x := a.(type) {
	case *Constant:
		y, ok := b.(*Constant)
		return ok && ir.Equal(x.Value, y.Value)
	case *SensorLeaf:
		y, ok := b.(*SensorLeaf)
		return ok && x.Address() == y.Address() && x.Query() == y.Query() &&
			x.Reduction == y.Reduction && x.History == y.History
	case *Arithmetic:
		y, ok := b.(*Arithmetic)
		return ok && x.Op == y.Op && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case *Comparison:
		y, ok := b.(*Comparison)
		return ok && x.Op == y.Op && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case *Logic:
		y, ok := b.(*Logic)
		if !ok || x.Op != y.Op || !Equal(x.Left, y.Left) {
			return false
		}
		if x.Right == nil || y.Right == nil {
			return x.Right == nil && y.Right == nil
		}
		return Equal(x.Right, y.Right)
	}
	return false
}
