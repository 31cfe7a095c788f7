package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/senselogic/internal/engine"
	"github.com/roach88/senselogic/internal/ir"
	"github.com/roach88/senselogic/internal/mqtt"
	"github.com/roach88/senselogic/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath  string
	Database    string
	MetricsAddr string
	Broker      string

	// Subscriber overrides the MQTT client (for testing). If nil and a
	// broker is configured, a paho client is connected.
	Subscriber mqtt.Subscriber
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [rules-dir]",
		Short: "Evaluate rules continuously against live readings",
		Long: `Start the scheduler with the rules and watches in a directory.

Readings arrive over MQTT when a broker is configured, or from other
processes writing to the same database with 'senselogic ingest'. Every
state transition is printed as "<id> <STATE>". Old readings are pruned
after the retention period. Prometheus metrics are served on
--metrics-addr when set.

Example:
  senselogic run --db ./senselogic.db ./rules
  senselogic run --config ./senselogic.yaml`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveRunConfig(opts, args, cmd)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			return runScheduler(opts, cfg, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "listen address for /metrics")
	cmd.Flags().StringVar(&opts.Broker, "broker", "", "MQTT broker URL")

	return cmd
}

// resolveRunConfig loads the config file, if any, and applies flag overrides.
func resolveRunConfig(opts *RunOptions, args []string, cmd *cobra.Command) (RunConfig, error) {
	cfg := DefaultRunConfig()
	if opts.ConfigPath != "" {
		loaded, err := LoadRunConfig(opts.ConfigPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if len(args) == 1 {
		cfg.Rules = args[0]
	}
	if cmd.Flags().Changed("db") {
		cfg.Database = opts.Database
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = opts.MetricsAddr
	}
	if cmd.Flags().Changed("broker") {
		cfg.MQTT.Broker = opts.Broker
	}
	return cfg, cfg.Validate()
}

func runScheduler(opts *RunOptions, cfg RunConfig, cmd *cobra.Command) error {
	slog.Info("loading rules", "dir", cfg.Rules)
	loadResult, loadErrors := LoadRules(cfg.Rules, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return WrapExitError(ExitCommandError, "failed to load rules", loadErrors[0])
	}
	slog.Info("rules loaded", "rules", len(loadResult.Rules), "watches", len(loadResult.Watches))

	slog.Info("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	registry := prometheus.NewRegistry()
	sched := engine.New(st,
		engine.WithLogger(slog.Default()),
		engine.WithMetrics(engine.NewMetrics(registry)),
	)
	st.OnDataChanged(sched.NotifyDataChanged)

	out := &lockedWriter{w: cmd.OutOrStdout()}
	sched.AddListener(transitionPrinter(out))
	sched.AddReadingListener(transitionPrinter(out))

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	defer sched.Shutdown(context.Background())

	registered := 0
	for _, r := range loadResult.Rules {
		if r.Disabled {
			slog.Debug("skipping disabled rule", "rule_id", r.ID)
			continue
		}
		if err := sched.Register(ctx, r.ID, r.Root); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("failed to register rule %s", r.ID), err)
		}
		registered++
	}
	for _, w := range loadResult.Watches {
		if err := sched.Subscribe(ctx, w.ID, w.Root); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("failed to subscribe watch %s", w.ID), err)
		}
	}

	if cfg.MQTT.Broker != "" || opts.Subscriber != nil {
		sub := opts.Subscriber
		if sub == nil {
			sub, err = mqtt.NewRealSubscriber(cfg.MQTT.Broker)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to connect to broker", err)
			}
		}
		defer sub.Close()

		ingester, err := mqtt.NewIngester(st, cfg.MQTT.Routes, nil, slog.Default())
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid mqtt routes", err)
		}
		if err := ingester.Start(ctx, sub); err != nil {
			return WrapExitError(ExitCommandError, "failed to subscribe", err)
		}
		slog.Info("mqtt ingest started", "broker", cfg.MQTT.Broker, "routes", len(cfg.MQTT.Routes))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		slog.Info("metrics server listening", "addr", cfg.MetricsAddr)
	}

	if cfg.Retention > 0 {
		g.Go(func() error {
			return pruneLoop(gctx, st, cfg.Retention, cfg.PruneInterval)
		})
	}

	slog.Info("scheduler started", "db", cfg.Database, "rules", registered, "watches", len(loadResult.Watches))
	fmt.Fprintln(out, "Scheduler started. Evaluating rules...")
	fmt.Fprintln(out, "Press Ctrl-C to stop.")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "scheduler error", err)
	}

	slog.Info("scheduler stopped gracefully")
	return nil
}

// pruneLoop deletes readings older than retention every interval.
func pruneLoop(ctx context.Context, st *store.Store, retention, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			cutoff := now.Add(-retention).UnixMilli()
			n, err := st.Prune(ctx, cutoff)
			if err != nil {
				slog.Error("prune failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("pruned readings", "count", n, "before", cutoff)
			}
		}
	}
}

// transitionPrinter writes one line per state change or watch update.
func transitionPrinter(w io.Writer) engine.ListenerFuncs {
	state := func(s ir.TriState) func(string) {
		return func(id string) {
			slog.Info("state changed", "expression_id", id, "state", s)
			fmt.Fprintf(w, "%s %s\n", id, s)
		}
	}
	return engine.ListenerFuncs{
		True:      state(ir.True),
		False:     state(ir.False),
		Undefined: state(ir.Undefined),
		Error: func(id string, err error) {
			slog.Error("expression dropped", "expression_id", id, "error", err)
			fmt.Fprintf(w, "%s ERROR %v\n", id, err)
		},
		Reading: func(id string, readings []ir.Reading) {
			fmt.Fprintf(w, "%s %v\n", id, readings)
		},
	}
}

// lockedWriter serializes writes from scheduler workers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
