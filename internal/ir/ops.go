package ir

import (
	"errors"
	"fmt"
	"math"
)

// Comparator is a binary predicate over two values.
type Comparator int

const (
	Eq Comparator = iota + 1
	Ne
	Lt
	Le
	Gt
	Ge
)

var comparatorTokens = map[Comparator]string{
	Eq: "==",
	Ne: "!=",
	Lt: "<",
	Le: "<=",
	Gt: ">",
	Ge: ">=",
}

func (c Comparator) String() string {
	if s, ok := comparatorTokens[c]; ok {
		return s
	}
	return fmt.Sprintf("Comparator(%d)", int(c))
}

// ParseComparator maps an operator token to a Comparator.
func ParseComparator(tok string) (Comparator, bool) {
	for c, s := range comparatorTokens {
		if s == tok {
			return c, true
		}
	}
	return 0, false
}

// Apply evaluates the comparator. Equality works on every kind; ordering
// comparators need an ordered kind. Differing kinds are a type mismatch.
func (c Comparator) Apply(a, b Value) (bool, error) {
	if a == nil || b == nil || a.Kind() != b.Kind() {
		return false, mismatch("compare", a, b)
	}
	switch c {
	case Eq:
		return Equal(a, b), nil
	case Ne:
		return !Equal(a, b), nil
	}
	n, err := Compare(a, b)
	if err != nil {
		return false, err
	}
	switch c {
	case Lt:
		return n < 0, nil
	case Le:
		return n <= 0, nil
	case Gt:
		return n > 0, nil
	case Ge:
		return n >= 0, nil
	default:
		return false, fmt.Errorf("unknown comparator %d", int(c))
	}
}

// ArithOp is a binary arithmetic operator.
type ArithOp int

const (
	Add ArithOp = iota + 1
	Sub
	Mul
	Div
	Mod
)

var arithTokens = map[ArithOp]string{
	Add: "+",
	Sub: "-",
	Mul: "*",
	Div: "/",
	Mod: "%",
}

func (o ArithOp) String() string {
	if s, ok := arithTokens[o]; ok {
		return s
	}
	return fmt.Sprintf("ArithOp(%d)", int(o))
}

// ParseArithOp maps an operator token to an ArithOp.
func ParseArithOp(tok string) (ArithOp, bool) {
	for o, s := range arithTokens {
		if s == tok {
			return o, true
		}
	}
	return 0, false
}

// ErrDivisionByZero is returned for "/" and "%" with a zero divisor.
var ErrDivisionByZero = errors.New("division by zero")

// Apply combines two values. Numbers support every operator, text supports
// concatenation with "+", and subtracting two locations yields the geodesic
// distance between them in meters.
func (o ArithOp) Apply(a, b Value) (Value, error) {
	if a == nil || b == nil || a.Kind() != b.Kind() {
		return nil, mismatch("apply "+o.String()+" to", a, b)
	}
	switch av := a.(type) {
	case Number:
		x, y := float64(av), float64(b.(Number))
		switch o {
		case Add:
			return Number(x + y), nil
		case Sub:
			return Number(x - y), nil
		case Mul:
			return Number(x * y), nil
		case Div:
			if y == 0 {
				return nil, ErrDivisionByZero
			}
			return Number(x / y), nil
		case Mod:
			if y == 0 {
				return nil, ErrDivisionByZero
			}
			return Number(math.Mod(x, y)), nil
		}
	case Text:
		if o == Add {
			return Text(string(av) + string(b.(Text))), nil
		}
	case Location:
		if o == Sub {
			return Number(Distance(av, b.(Location))), nil
		}
	}
	return nil, fmt.Errorf("%w: operator %s is not defined for %s", ErrTypeMismatch, o, a.Kind())
}

// earthRadius is the IUGG mean Earth radius in meters.
const earthRadius = 6371008.8

// Distance returns the haversine great-circle distance in meters.
func Distance(a, b Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

// ReductionMode decides how a history window is interpreted.
// All and Any keep every reading; the rest collapse the window to one.
type ReductionMode int

const (
	All ReductionMode = iota + 1
	Any
	Max
	Min
	Mean
	Median
)

var reductionNames = map[ReductionMode]string{
	All:    "ALL",
	Any:    "ANY",
	Max:    "MAX",
	Min:    "MIN",
	Mean:   "MEAN",
	Median: "MEDIAN",
}

func (m ReductionMode) String() string {
	if s, ok := reductionNames[m]; ok {
		return s
	}
	return fmt.Sprintf("ReductionMode(%d)", int(m))
}

// Collapses reports whether the mode reduces a window to a single reading.
func (m ReductionMode) Collapses() bool {
	return m != All && m != Any
}

// ParseReductionMode maps a mode name to a ReductionMode.
func ParseReductionMode(s string) (ReductionMode, error) {
	for m, name := range reductionNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown reduction mode %q", s)
}
