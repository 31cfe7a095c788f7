package ir

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"math"
)

// Forever is the defer-until of something that cannot change on its own.
const Forever int64 = math.MaxInt64

// Kind identifies the dynamic type of a Value.
type Kind int

const (
	KindNumber Kind = iota + 1
	KindText
	KindBool
	KindLocation
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindLocation:
		return "location"
	case KindBlob:
		return "blob"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrTypeMismatch is returned when an operator is applied to operands whose
// kinds it does not support. It is a hard evaluation error, never UNDEFINED.
var ErrTypeMismatch = errors.New("type mismatch")

// Value is a sealed interface over the primitive reading types.
// Only Number, Text, Bool, Location, and Blob implement it.
type Value interface {
	Kind() Kind
	// String returns the literal form accepted by ParseLiteral.
	String() string
	irValue()
}

// Number is a numeric reading.
type Number float64

func (Number) irValue()         {}
func (Number) Kind() Kind       { return KindNumber }
func (n Number) String() string { return formatNumber(float64(n)) }

// Text is a string reading.
type Text string

func (Text) irValue()         {}
func (Text) Kind() Kind       { return KindText }
func (t Text) String() string { return QuoteText(string(t)) }

// Bool is a boolean reading.
type Bool bool

func (Bool) irValue()   {}
func (Bool) Kind() Kind { return KindBool }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Location is a WGS84 coordinate in decimal degrees.
type Location struct {
	Lat float64
	Lon float64
}

func (Location) irValue()   {}
func (Location) Kind() Kind { return KindLocation }
func (l Location) String() string {
	return "geo(" + formatNumber(l.Lat) + "," + formatNumber(l.Lon) + ")"
}

// Blob is an opaque byte reading. Blobs support equality only.
type Blob []byte

func (Blob) irValue()         {}
func (Blob) Kind() Kind       { return KindBlob }
func (b Blob) String() string { return formatBlob(b) }

// Equal reports whether two values have the same kind and content.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Blob:
		return bytes.Equal(av, b.(Blob))
	default:
		return a == b
	}
}

// Compare orders two values of the same kind by their natural ordering.
// Numbers compare numerically, text lexicographically, and false < true.
// Locations and blobs have no ordering.
func Compare(a, b Value) (int, error) {
	if a == nil || b == nil || a.Kind() != b.Kind() {
		return 0, mismatch("compare", a, b)
	}
	switch av := a.(type) {
	case Number:
		return cmp.Compare(float64(av), float64(b.(Number))), nil
	case Text:
		return cmp.Compare(string(av), string(b.(Text))), nil
	case Bool:
		bv := b.(Bool)
		switch {
		case av == bv:
			return 0, nil
		case !bool(av):
			return -1, nil
		default:
			return 1, nil
		}
	default:
		return 0, fmt.Errorf("%w: %s values are not ordered", ErrTypeMismatch, a.Kind())
	}
}

func mismatch(op string, a, b Value) error {
	return fmt.Errorf("%w: cannot %s %s and %s", ErrTypeMismatch, op, kindOf(a), kindOf(b))
}

func kindOf(v Value) string {
	if v == nil {
		return "nil"
	}
	return v.Kind().String()
}

// Reading is one sampled value with its timestamp in milliseconds.
type Reading struct {
	Value     Value
	Timestamp int64
}

func (r Reading) String() string {
	return fmt.Sprintf("%s@%d", r.Value, r.Timestamp)
}

// ReadingsEqual reports whether two reading lists hold the same values and
// timestamps in the same order. A nil list equals only another empty list.
func ReadingsEqual(a, b []Reading) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Timestamp != b[i].Timestamp || !Equal(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}
