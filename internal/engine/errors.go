package engine

import (
	"errors"
	"fmt"
)

// RegistrationError is returned synchronously by Register, Subscribe, and
// their inverses. No partial state is retained when it is returned.
type RegistrationError struct {
	// Code identifies the error category.
	Code RegistrationErrorCode

	// ID is the expression or subscription id the caller named.
	ID string

	// Err is the underlying cause, if any.
	Err error
}

// RegistrationErrorCode categorizes registration errors.
type RegistrationErrorCode string

const (
	// ErrCodeAlreadyRegistered indicates the id (or one of its leaf ids) is in use.
	ErrCodeAlreadyRegistered RegistrationErrorCode = "ALREADY_REGISTERED"

	// ErrCodeNotRegistered indicates the id is not active.
	ErrCodeNotRegistered RegistrationErrorCode = "NOT_REGISTERED"

	// ErrCodeConfiguration indicates a sensor rejected a leaf's configuration.
	ErrCodeConfiguration RegistrationErrorCode = "CONFIGURATION"

	// ErrCodeSetup indicates a leaf could not be bound to its sensor.
	ErrCodeSetup RegistrationErrorCode = "SETUP"

	// ErrCodeShutdown indicates the scheduler has been shut down.
	ErrCodeShutdown RegistrationErrorCode = "SHUTDOWN"
)

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.ID)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// ErrRaceAbsorbed marks an evaluation whose target was unregistered while it
// ran. It is logged at debug level and never reported to listeners.
var ErrRaceAbsorbed = errors.New("target removed during evaluation")

// CodeOf returns the registration error code wrapped in err, or "".
func CodeOf(err error) RegistrationErrorCode {
	var re *RegistrationError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsAlreadyRegistered returns true if err reports an id collision.
func IsAlreadyRegistered(err error) bool {
	return CodeOf(err) == ErrCodeAlreadyRegistered
}

// IsNotRegistered returns true if err reports an unknown id.
func IsNotRegistered(err error) bool {
	return CodeOf(err) == ErrCodeNotRegistered
}
