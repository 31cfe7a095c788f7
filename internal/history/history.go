// Package history turns a raw, newest-first reading list into the readings
// an expression actually evaluates against.
//
// Window selects the readings inside [now-timespan, now]; a zero timespan
// keeps only the newest reading. Reduce then applies a ReductionMode: ALL and
// ANY pass the window through unchanged, the other modes collapse it to one
// reading stamped with the oldest contributing timestamp so the collapsed
// value expires exactly when that reading leaves the window.
package history

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/senselogic/internal/ir"
)

// ErrNotNumeric is returned by MEAN and MEDIAN over non-numeric readings.
var ErrNotNumeric = errors.New("reduction requires numeric readings")

// Window returns the readings with now-timespan <= timestamp <= now, keeping
// the input order. With timespan == 0 it returns only the newest reading at
// or before now. The result never aliases the input.
func Window(readings []ir.Reading, now, timespan int64) []ir.Reading {
	if len(readings) == 0 {
		return []ir.Reading{}
	}
	if timespan == 0 {
		for _, r := range readings {
			if r.Timestamp <= now {
				return []ir.Reading{r}
			}
		}
		return []ir.Reading{}
	}

	from := now - timespan
	out := make([]ir.Reading, 0, len(readings))
	for _, r := range readings {
		if r.Timestamp >= from && r.Timestamp <= now {
			out = append(out, r)
		}
	}
	return out
}

// Oldest returns the smallest timestamp in a non-empty list.
func Oldest(readings []ir.Reading) int64 {
	oldest := readings[0].Timestamp
	for _, r := range readings[1:] {
		oldest = min(oldest, r.Timestamp)
	}
	return oldest
}

// Expiry is the first time at which the oldest reading of a window no longer
// satisfies the window bounds. A zero timespan never expires on its own, and
// neither does one reaching past ir.Forever.
func Expiry(readings []ir.Reading, timespan int64) int64 {
	if timespan <= 0 || len(readings) == 0 {
		return ir.Forever
	}
	oldest := Oldest(readings)
	if end := oldest + timespan + 1; end > oldest {
		return end
	}
	return ir.Forever
}

// Reduce applies mode to a window. An empty window reduces to an empty list.
func Reduce(readings []ir.Reading, mode ir.ReductionMode) ([]ir.Reading, error) {
	if len(readings) == 0 || !mode.Collapses() {
		return readings, nil
	}

	var (
		v   ir.Value
		err error
	)
	switch mode {
	case ir.Max:
		v, err = extreme(readings, 1)
	case ir.Min:
		v, err = extreme(readings, -1)
	case ir.Mean:
		v, err = mean(readings)
	case ir.Median:
		v, err = median(readings)
	default:
		return nil, fmt.Errorf("unsupported reduction mode %s", mode)
	}
	if err != nil {
		return nil, fmt.Errorf("reduce %s: %w", mode, err)
	}
	return []ir.Reading{{Value: v, Timestamp: Oldest(readings)}}, nil
}

// extreme returns the maximum (sign 1) or minimum (sign -1) by natural order.
func extreme(readings []ir.Reading, sign int) (ir.Value, error) {
	best := readings[0].Value
	for _, r := range readings[1:] {
		n, err := ir.Compare(r.Value, best)
		if err != nil {
			return nil, err
		}
		if n*sign > 0 {
			best = r.Value
		}
	}
	if len(readings) == 1 {
		// A lone unordered value must still be rejected.
		if _, err := ir.Compare(best, best); err != nil {
			return nil, err
		}
	}
	return best, nil
}

func numbers(readings []ir.Reading) ([]float64, error) {
	out := make([]float64, len(readings))
	for i, r := range readings {
		n, ok := r.Value.(ir.Number)
		if !ok {
			return nil, fmt.Errorf("%w: got %s", ErrNotNumeric, r.Value.Kind())
		}
		out[i] = float64(n)
	}
	return out, nil
}

func mean(readings []ir.Reading) (ir.Value, error) {
	xs, err := numbers(readings)
	if err != nil {
		return nil, err
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return ir.Number(sum / float64(len(xs))), nil
}

// median sorts a copy and takes the lower-middle element for even counts.
func median(readings []ir.Reading) (ir.Value, error) {
	xs, err := numbers(readings)
	if err != nil {
		return nil, err
	}
	slices.Sort(xs)
	return ir.Number(xs[(len(xs)-1)/2]), nil
}
