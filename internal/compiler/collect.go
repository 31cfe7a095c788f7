package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
)

// Compiled holds every declaration found in a CUE value.
type Compiled struct {
	Rules   []RuleSpec
	Watches []WatchSpec
}

// Compile extracts the rule and watch declarations of a built CUE value.
// Both sections may be a struct keyed by id or a list. Compilation
// continues past bad declarations; all errors are returned. With failFast
// set it stops at the first one.
func Compile(v cue.Value, failFast bool) (*Compiled, []error) {
	out := &Compiled{}
	var errs []error

	add := func(err error, where string) bool {
		errs = append(errs, fmt.Errorf("%s: %w", where, err))
		return failFast
	}

	stop := eachDeclaration(v, "rule", func(el cue.Value, label, where string) bool {
		spec, err := compileRule(el, label)
		if err != nil {
			return add(err, where)
		}
		out.Rules = append(out.Rules, *spec)
		return false
	}, add)
	if stop {
		return out, errs
	}

	eachDeclaration(v, "watch", func(el cue.Value, label, where string) bool {
		spec, err := compileWatch(el, label)
		if err != nil {
			return add(err, where)
		}
		out.Watches = append(out.Watches, *spec)
		return false
	}, add)
	return out, errs
}

// eachDeclaration visits the elements of a section. fn and fail return true
// to stop iteration; eachDeclaration reports whether iteration stopped.
func eachDeclaration(v cue.Value, section string, fn func(el cue.Value, label, where string) bool, fail func(error, string) bool) bool {
	sv := v.LookupPath(cue.ParsePath(section))
	if !sv.Exists() {
		return false
	}

	if sv.IncompleteKind() == cue.ListKind {
		iter, err := sv.List()
		if err != nil {
			return fail(FormatCUEError(err), section)
		}
		for i := 0; iter.Next(); i++ {
			if fn(iter.Value(), "", fmt.Sprintf("%s[%d]", section, i)) {
				return true
			}
		}
		return false
	}

	iter, err := sv.Fields()
	if err != nil {
		return fail(FormatCUEError(err), section)
	}
	for iter.Next() {
		if fn(iter.Value(), iter.Label(), section+"."+iter.Label()) {
			return true
		}
	}
	return false
}
