package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError reports a rule or watch declaration that could not be
// compiled. Pos is the CUE position of the offending field when known.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FormatCUEError converts a CUE error into a CompileError positioned at
// its first error. Further errors are counted in the message.
func FormatCUEError(err error) error {
	if err == nil {
		return nil
	}
	list := errors.Errors(err)
	if len(list) == 0 {
		return err
	}

	msg := list[0].Error()
	if extra := len(list) - 1; extra > 0 {
		msg = fmt.Sprintf("%s (and %d more)", msg, extra)
	}
	ce := &CompileError{Field: "cue", Message: msg}
	if pos := errors.Positions(list[0]); len(pos) > 0 {
		ce.Pos = pos[0]
	}
	return ce
}
