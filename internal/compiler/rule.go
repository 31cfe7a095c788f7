// Package compiler turns CUE rule declarations into parsed expressions.
//
// Rules are declared as
//
//	rule: overheated: {
//		expression:  "(plant@boiler:temp{MAX,60000} > 90)"
//		description: "boiler ran hot within the last minute"
//	}
//
//	watch: boiler_temp: {
//		sensor: "plant@boiler:temp{MEAN,60000}"
//	}
//
// A declaration may also be a list element, in which case its id is taken
// from an explicit id field or derived from the expression fingerprint.
package compiler

import (
	"strconv"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/senselogic/internal/expr"
	"github.com/roach88/senselogic/internal/ir"
)

// RuleSpec is a compiled logical rule.
type RuleSpec struct {
	ID          string
	Description string
	// Expression is the canonical text of Root.
	Expression string
	Disabled   bool
	Root       expr.Logical
}

// WatchSpec is a compiled value subscription.
type WatchSpec struct {
	ID          string
	Description string
	Expression  string
	Root        expr.Valued
}

// fingerprintLen is the number of hex digits kept for derived ids.
const fingerprintLen = 12

// CompileRule parses a CUE value into a RuleSpec.
//
// The CUE value should be the rule struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`rule: hot: { expression: "(a@b:c > 1)" }`)
//	spec, err := CompileRule(v.LookupPath(cue.ParsePath("rule.hot")))
func CompileRule(v cue.Value) (*RuleSpec, error) {
	return compileRule(v, lastLabel(v))
}

func compileRule(v cue.Value, label string) (*RuleSpec, error) {
	if err := v.Err(); err != nil {
		return nil, FormatCUEError(err)
	}

	text, err := requiredString(v, "expression")
	if err != nil {
		return nil, err
	}
	root, err := expr.ParseLogical(text)
	if err != nil {
		return nil, &CompileError{Field: "expression", Message: err.Error(), Pos: v.LookupPath(cue.ParsePath("expression")).Pos()}
	}

	spec := &RuleSpec{
		Expression: root.String(),
		Root:       root,
	}
	if spec.ID, err = declarationID(v, label, spec.Expression); err != nil {
		return nil, err
	}
	if spec.Description, err = optionalString(v, "description"); err != nil {
		return nil, err
	}

	if d := v.LookupPath(cue.ParsePath("disabled")); d.Exists() {
		disabled, err := d.Bool()
		if err != nil {
			return nil, FormatCUEError(err)
		}
		spec.Disabled = disabled
	}

	expr.AssignIDs(root, spec.ID)
	return spec, nil
}

// CompileWatch parses a CUE value into a WatchSpec. The sensor field holds
// any value expression, usually a single sensor leaf.
func CompileWatch(v cue.Value) (*WatchSpec, error) {
	return compileWatch(v, lastLabel(v))
}

func compileWatch(v cue.Value, label string) (*WatchSpec, error) {
	if err := v.Err(); err != nil {
		return nil, FormatCUEError(err)
	}

	text, err := requiredString(v, "sensor")
	if err != nil {
		return nil, err
	}
	root, err := expr.ParseValue(text)
	if err != nil {
		return nil, &CompileError{Field: "sensor", Message: err.Error(), Pos: v.LookupPath(cue.ParsePath("sensor")).Pos()}
	}

	spec := &WatchSpec{
		Expression: root.String(),
		Root:       root,
	}
	if spec.ID, err = declarationID(v, label, spec.Expression); err != nil {
		return nil, err
	}
	if spec.Description, err = optionalString(v, "description"); err != nil {
		return nil, err
	}

	expr.AssignIDs(root, spec.ID)
	return spec, nil
}

// lastLabel returns the unquoted struct label v was selected by.
func lastLabel(v cue.Value) string {
	sels := v.Path().Selectors()
	if len(sels) == 0 {
		return ""
	}
	label := sels[len(sels)-1].String()
	if unquoted, err := strconv.Unquote(label); err == nil {
		return unquoted
	}
	return label
}

// declarationID resolves a declaration's id: an explicit id field, then the
// struct label, then a fingerprint of the canonical expression.
func declarationID(v cue.Value, label, canonical string) (string, error) {
	id, err := optionalString(v, "id")
	if err != nil {
		return "", err
	}
	if id == "" {
		id = label
	}
	if id == "" {
		return "r-" + ir.ExpressionFingerprint(canonical)[:fingerprintLen], nil
	}
	if strings.TrimSpace(id) != id || strings.ContainsAny(id, " \t\n") {
		return "", &CompileError{Field: "id", Message: "id must not contain whitespace", Pos: v.Pos()}
	}
	return id, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", FormatCUEError(err)
	}
	if strings.TrimSpace(s) == "" {
		return "", &CompileError{Field: field, Message: field + " must not be empty", Pos: fv.Pos()}
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", FormatCUEError(err)
	}
	return s, nil
}
