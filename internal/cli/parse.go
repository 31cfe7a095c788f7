package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/senselogic/internal/expr"
	"github.com/roach88/senselogic/internal/ir"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	Tree bool
}

// ParseResult describes a parsed expression.
type ParseResult struct {
	Canonical   string   `json:"canonical"`
	Kind        string   `json:"kind"` // "logical" | "value"
	Fingerprint string   `json:"fingerprint"`
	Sensors     []string `json:"sensors"`
	History     int64    `json:"history_ms"`
	Tree        string   `json:"tree,omitempty"`
}

// Text implements Texter.
func (r ParseResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.Canonical)
	fmt.Fprintf(&b, "  kind:        %s\n", r.Kind)
	fmt.Fprintf(&b, "  fingerprint: %s\n", r.Fingerprint)
	fmt.Fprintf(&b, "  history:     %dms\n", r.History)
	for _, s := range r.Sensors {
		fmt.Fprintf(&b, "  sensor:      %s\n", s)
	}
	if r.Tree != "" {
		b.WriteString(r.Tree)
	}
	return b.String()
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <expression>",
		Short: "Parse an expression and print its canonical form",
		Long: `Parse an expression and print its canonical form, fingerprint and the
sensors it reads.

Examples:
  senselogic parse '(home@living:temp{MEAN,60000} > 20)'
  senselogic parse --tree '((a@b:c > 1) AND NOT (d@e:f == true))'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Tree, "tree", false, "print the expression tree")

	return cmd
}

func runParse(opts *ParseOptions, text string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	root, err := expr.Parse(text)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidExpression, err.Error(), nil)
		return WrapExitError(ExitFailure, "parse failed", err)
	}

	result := ParseResult{
		Canonical:   root.String(),
		Kind:        "value",
		Fingerprint: ir.ExpressionFingerprint(root.String()),
		Sensors:     []string{},
		History:     root.HistoryLength(),
	}
	if _, ok := root.(expr.Logical); ok {
		result.Kind = "logical"
	}
	for _, leaf := range expr.Leaves(root) {
		result.Sensors = append(result.Sensors, leaf.Address())
	}
	if opts.Tree {
		expr.AssignIDs(root, "e")
		result.Tree = expr.Dump(root)
	}

	return formatter.Success(result)
}
