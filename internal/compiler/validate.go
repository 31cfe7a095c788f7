package compiler

import (
	"fmt"
	"sort"

	"github.com/roach88/senselogic/internal/expr"
)

// Validation error codes (E120-E129)
const (
	ErrDuplicateID   = "E120" // two declarations share an id
	ErrIDCollision   = "E121" // a declaration id equals a node id of another declaration
	ErrNoSensors     = "E122" // rule reads no sensor and can never change
	ErrUnknownOption = "E123" // leaf option not understood by any sensor backend
)

// ValidationError represents a rule set validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// KnownOptions lists the leaf query keys accepted by Validate. Nil accepts
// every key.
var KnownOptions = map[string]bool{
	"unit":       true,
	"accuracy":   true,
	"rate":       true,
	"startup_ms": true,
}

// Validate checks a compiled rule set as a whole.
// Returns all errors found (does not fail-fast).
func Validate(c *Compiled) []ValidationError {
	var errs []ValidationError

	type decl struct {
		field string
		root  expr.Node
	}
	var decls []decl
	for _, r := range c.Rules {
		decls = append(decls, decl{field: "rule." + r.ID, root: r.Root})
		if len(expr.Leaves(r.Root)) == 0 {
			errs = append(errs, ValidationError{
				Field:   "rule." + r.ID,
				Message: "expression reads no sensors",
				Code:    ErrNoSensors,
			})
		}
	}
	for _, w := range c.Watches {
		decls = append(decls, decl{field: "watch." + w.ID, root: w.Root})
	}

	owners := make(map[string]string) // node id -> declaration field
	for _, d := range decls {
		id := d.root.ID()
		if prev, ok := owners[id]; ok {
			errs = append(errs, ValidationError{
				Field:   d.field,
				Message: fmt.Sprintf("id %q already used by %s", id, prev),
				Code:    ErrDuplicateID,
			})
			continue
		}
		owners[id] = d.field
	}

	for _, d := range decls {
		expr.Walk(d.root, func(n expr.Node) bool {
			if n == d.root {
				return true
			}
			if prev, ok := owners[n.ID()]; ok && prev != d.field {
				errs = append(errs, ValidationError{
					Field:   d.field,
					Message: fmt.Sprintf("node id %q collides with %s", n.ID(), prev),
					Code:    ErrIDCollision,
				})
			}
			return true
		})

		if KnownOptions == nil {
			continue
		}
		for _, leaf := range expr.Leaves(d.root) {
			keys := make([]string, 0, len(leaf.Config))
			for k := range leaf.Config {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if !KnownOptions[k] {
					errs = append(errs, ValidationError{
						Field:   d.field,
						Message: fmt.Sprintf("%s: unknown option %q", leaf.Address(), k),
						Code:    ErrUnknownOption,
					})
				}
			}
		}
	}

	return errs
}
