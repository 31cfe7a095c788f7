package expr

import (
	"errors"
	"fmt"
)

var (
	// ErrNoValuesInInterval means a leaf has no readings in its window yet.
	// Comparisons turn it into UNDEFINED; it is never fatal.
	ErrNoValuesInInterval = errors.New("no values in interval")

	// ErrUnbound means a leaf is not bound to a sensor capability, usually
	// because its expression was destroyed mid-evaluation.
	ErrUnbound = errors.New("sensor leaf is not bound")

	// ErrCardinality means both operands produced more than one reading
	// where at most one side may be multi-valued.
	ErrCardinality = errors.New("both operands are multi-valued")
)

// ConfigurationError reports that a sensor rejected a leaf's declared
// configuration. Registration of the whole tree aborts.
type ConfigurationError struct {
	Sensor  string
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("configure %s: %s: %s", e.Sensor, e.Key, e.Message)
	}
	return fmt.Sprintf("configure %s: %s", e.Sensor, e.Message)
}

// SetupError reports that binding a leaf to its sensor failed.
type SetupError struct {
	Sensor string
	Err    error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("set up %s: %v", e.Sensor, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// EvaluationError reports that a registered expression failed to evaluate.
// The scheduler drops the expression and reports it once via OnError.
type EvaluationError struct {
	ExpressionID string
	Err          error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %s: %v", e.ExpressionID, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError returns true if err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsSetupError returns true if err wraps a SetupError.
func IsSetupError(err error) bool {
	var se *SetupError
	return errors.As(err, &se)
}
