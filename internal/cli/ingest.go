package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/senselogic/internal/ir"
	"github.com/roach88/senselogic/internal/store"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	DBPath string
	At     int64
	File   string
}

// IngestRecord is one reading in an ingest batch file.
type IngestRecord struct {
	Sensor    string `yaml:"sensor"`
	Value     string `yaml:"value"`
	Timestamp int64  `yaml:"ts"`
}

// IngestResult reports how many readings were stored.
type IngestResult struct {
	Stored  int      `json:"stored"`
	Sensors []string `json:"sensors"`
}

// Text implements Texter.
func (r IngestResult) Text() string {
	return fmt.Sprintf("Stored %d reading(s) for %s\n", r.Stored, strings.Join(r.Sensors, ", "))
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest [<sensor> <value>]",
		Short: "Store sensor readings in the database",
		Long: `Store one reading given on the command line, or a batch from a YAML file.

Values use expression literal syntax: numbers, "text", true/false,
geo(lat,lon) and 0x-prefixed blobs.

Batch files are a list of {sensor, value, ts} records; ts defaults to --at.

Examples:
  senselogic ingest --db ./senselogic.db home@living:temp 21.5
  senselogic ingest --db ./senselogic.db --file readings.yaml`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.File != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "./senselogic.db", "path to SQLite database")
	cmd.Flags().Int64Var(&opts.At, "at", 0, "reading time in ms since epoch (default now)")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "YAML file of readings")

	return cmd
}

func runIngest(ctx context.Context, opts *IngestOptions, args []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	at := opts.At
	if at == 0 {
		at = time.Now().UnixMilli()
	}

	var records []IngestRecord
	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to read readings file", err)
		}
		if err := yaml.Unmarshal(data, &records); err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitFailure, "invalid readings file", err)
		}
	} else {
		records = []IngestRecord{{Sensor: args[0], Value: args[1]}}
	}

	readings := make([]ir.Reading, len(records))
	for i, rec := range records {
		if rec.Sensor == "" {
			err := fmt.Errorf("record %d: sensor is required", i)
			_ = formatter.Error(ErrCodeInvalidSensor, err.Error(), nil)
			return WrapExitError(ExitFailure, "invalid reading", err)
		}
		v, err := ir.ParseLiteral(rec.Value)
		if err != nil {
			err = fmt.Errorf("record %d (%s): %w", i, rec.Sensor, err)
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitFailure, "invalid reading", err)
		}
		ts := rec.Timestamp
		if ts == 0 {
			ts = at
		}
		readings[i] = ir.Reading{Value: v, Timestamp: ts}
	}

	st, err := store.Open(opts.DBPath)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	result := IngestResult{Sensors: []string{}}
	seen := make(map[string]bool)
	for i, r := range readings {
		sensor := records[i].Sensor
		if err := st.Append(ctx, sensor, r); err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to store reading", err)
		}
		result.Stored++
		if !seen[sensor] {
			seen[sensor] = true
			result.Sensors = append(result.Sensors, sensor)
		}
		formatter.VerboseLog("stored %s = %s", sensor, r)
	}

	return formatter.Success(result)
}
