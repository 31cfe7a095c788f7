package ir

import "fmt"

// TriState is the result of a logic-bearing expression.
// There is no total order; combine values only through And, Or, and Not.
type TriState int8

const (
	Undefined TriState = iota
	False
	True
)

func (t TriState) String() string {
	switch t {
	case True:
		return "TRUE"
	case False:
		return "FALSE"
	case Undefined:
		return "UNDEFINED"
	default:
		return fmt.Sprintf("TriState(%d)", int8(t))
	}
}

// ParseTriState is the inverse of TriState.String.
func ParseTriState(s string) (TriState, error) {
	switch s {
	case "TRUE":
		return True, nil
	case "FALSE":
		return False, nil
	case "UNDEFINED":
		return Undefined, nil
	default:
		return Undefined, fmt.Errorf("unknown tri-state %q", s)
	}
}

// FromBool lifts a boolean into TriState.
func FromBool(b bool) TriState {
	if b {
		return True
	}
	return False
}

// And is FALSE if either side is FALSE, TRUE if both are TRUE, and
// UNDEFINED otherwise.
func And(a, b TriState) TriState {
	switch {
	case a == False || b == False:
		return False
	case a == True && b == True:
		return True
	default:
		return Undefined
	}
}

// Or is TRUE if either side is TRUE, UNDEFINED only if both sides are
// UNDEFINED, and FALSE otherwise.
func Or(a, b TriState) TriState {
	switch {
	case a == True || b == True:
		return True
	case a == Undefined && b == Undefined:
		return Undefined
	default:
		return False
	}
}

// Not swaps TRUE and FALSE and leaves UNDEFINED alone.
func Not(a TriState) TriState {
	switch a {
	case True:
		return False
	case False:
		return True
	default:
		return Undefined
	}
}
