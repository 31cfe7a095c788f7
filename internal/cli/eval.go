package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/senselogic/internal/expr"
	"github.com/roach88/senselogic/internal/ir"
	"github.com/roach88/senselogic/internal/store"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	DBPath string
	At     int64
}

// EvalResult is the outcome of a single evaluation.
type EvalResult struct {
	Expression string   `json:"expression"`
	At         int64    `json:"at"`
	State      string   `json:"state,omitempty"`
	Readings   []string `json:"readings,omitempty"`
	DeferUntil int64    `json:"defer_until"`
}

// Text implements Texter.
func (r EvalResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s @%d\n", r.Expression, r.At)
	if r.State != "" {
		fmt.Fprintf(&b, "  state:       %s\n", r.State)
	} else {
		fmt.Fprintf(&b, "  readings:    [%s]\n", strings.Join(r.Readings, " "))
	}
	if r.DeferUntil == ir.Forever {
		b.WriteString("  defer until: never\n")
	} else {
		fmt.Fprintf(&b, "  defer until: %d\n", r.DeferUntil)
	}
	return b.String()
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate an expression once against stored readings",
		Long: `Evaluate an expression once against the readings in a database.

Logical expressions print TRUE, FALSE or UNDEFINED. Value expressions print
the readings they produce. --at sets the evaluation time in milliseconds
since the epoch and defaults to now.

Examples:
  senselogic eval --db ./senselogic.db '(home@living:temp{MEAN,60000} > 20)'
  senselogic eval --db ./senselogic.db --at 1700000000000 'home@living:temp'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "./senselogic.db", "path to SQLite database")
	cmd.Flags().Int64Var(&opts.At, "at", 0, "evaluation time in ms since epoch (default now)")

	return cmd
}

func runEval(ctx context.Context, opts *EvalOptions, text string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	root, err := expr.Parse(text)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidExpression, err.Error(), nil)
		return WrapExitError(ExitFailure, "parse failed", err)
	}

	st, err := store.Open(opts.DBPath)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	at := opts.At
	if at == 0 {
		at = time.Now().UnixMilli()
	}

	expr.AssignIDs(root, "eval")
	if err := expr.Initialize(ctx, root, st); err != nil {
		_ = formatter.Error(ErrCodeInvalidSensor, err.Error(), nil)
		return WrapExitError(ExitFailure, "bind failed", err)
	}
	defer expr.Destroy(ctx, root)

	result := EvalResult{Expression: root.String(), At: at}
	switch n := root.(type) {
	case expr.Logical:
		state, err := n.Evaluate(ctx, at)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitFailure, "evaluation failed", err)
		}
		result.State = state.String()
	case expr.Valued:
		readings, err := n.Values(ctx, at)
		if err != nil && !errors.Is(err, expr.ErrNoValuesInInterval) {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitFailure, "evaluation failed", err)
		}
		result.Readings = make([]string, 0, len(readings))
		for _, r := range readings {
			result.Readings = append(result.Readings, r.String())
		}
	}
	result.DeferUntil = root.DeferUntil()

	return formatter.Success(result)
}
