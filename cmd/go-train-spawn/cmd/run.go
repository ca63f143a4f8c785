package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/zredeaux65/go-train-spawn/internal/config"
	"github.com/zredeaux65/go-train-spawn/internal/group"
	"github.com/zredeaux65/go-train-spawn/internal/launch"
	"github.com/zredeaux65/go-train-spawn/internal/logging"
	"github.com/zredeaux65/go-train-spawn/internal/metrics"
	"github.com/zredeaux65/go-train-spawn/internal/preflight"
	"github.com/zredeaux65/go-train-spawn/internal/stats"
	"github.com/zredeaux65/go-train-spawn/internal/tui"
)

var runFlags struct {
	workers       int
	startMode     string
	entry         string
	transport     string
	gracePeriod   time.Duration
	resultTimeout time.Duration
	rootDir       string
	metricsAddr   string
	tuiEnabled    bool
	skipPreflight bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch a worker group and wait for its result",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return exitf("load config: %w", err)
		}
		applyRunFlags(cmd, cfg)

		if err := config.Validate(cfg); err != nil {
			return exitf("configuration: %w", err)
		}
		return runLaunch(cfg)
	},
}

func init() {
	f := runCmd.Flags()
	f.IntVarP(&runFlags.workers, "workers", "w", 0, "number of worker processes")
	f.StringVar(&runFlags.startMode, "start-mode", "", "spawn or fork")
	f.StringVarP(&runFlags.entry, "entry", "e", "", "registered entry to run")
	f.StringVar(&runFlags.transport, "transport", "", "result transport policy: native or pod")
	f.DurationVar(&runFlags.gracePeriod, "grace-period", 0, "producer exit delay under the pod transport")
	f.DurationVar(&runFlags.resultTimeout, "result-timeout", 0, "give up when no result arrives in this window (0 = wait for group exit)")
	f.StringVar(&runFlags.rootDir, "root-dir", "", "directory for temporary weight artifacts")
	f.StringVar(&runFlags.metricsAddr, "metrics-addr", "", "Prometheus endpoint address (empty = disabled)")
	f.BoolVar(&runFlags.tuiEnabled, "tui", false, "show the live dashboard")
	f.BoolVar(&runFlags.skipPreflight, "skip-preflight", false, "skip resource limit checks")

	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overrides file-provided config with explicitly set flags.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("workers") {
		cfg.Workers = runFlags.workers
	}
	if cmd.Flags().Changed("start-mode") {
		cfg.StartMode = runFlags.startMode
	}
	if cmd.Flags().Changed("entry") {
		cfg.Entry = runFlags.entry
	}
	if cmd.Flags().Changed("transport") {
		cfg.Transport = runFlags.transport
	}
	if cmd.Flags().Changed("grace-period") {
		cfg.GracePeriod = config.Duration(runFlags.gracePeriod)
	}
	if cmd.Flags().Changed("result-timeout") {
		cfg.ResultTimeout = config.Duration(runFlags.resultTimeout)
	}
	if cmd.Flags().Changed("root-dir") {
		cfg.RootDir = runFlags.rootDir
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = runFlags.metricsAddr
	}
	if cmd.Flags().Changed("tui") {
		cfg.TUIEnabled = runFlags.tuiEnabled
	}
	if cmd.Flags().Changed("skip-preflight") {
		cfg.SkipPreflight = runFlags.skipPreflight
	}
}

func runLaunch(cfg *config.Config) error {
	// The TUI owns the terminal; logs would corrupt its frames.
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	if !cfg.SkipPreflight {
		result := preflight.RunAll(cfg.Workers)
		if !cfg.TUIEnabled {
			preflight.PrintResults(result)
		}
		if !result.Passed {
			return exitf("preflight checks failed (override with --skip-preflight)")
		}
	}

	collector := metrics.NewCollector(metrics.CollectorConfig{
		Version:   version,
		StartMode: cfg.StartMode,
		WorldSize: cfg.Workers,
	})

	var server *metrics.Server
	if cfg.MetricsAddr != "" {
		server = metrics.NewServer(cfg.MetricsAddr, logger)
		if err := server.Start(); err != nil {
			return exitf("metrics server: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(ctx)
		}()
	}

	agg := stats.NewAggregator()
	callbacks := group.Callbacks{
		OnWorkerStart: func(worker, pid int) {
			collector.WorkerStarted()
			agg.WorkerStarted(worker)
		},
		OnWorkerExit: func(worker, exitCode int, uptime time.Duration) {
			collector.WorkerExited(exitCode, uptime)
			agg.WorkerExited(worker, exitCode, uptime)
		},
	}

	runtime, err := buildRuntime(cfg, logger, callbacks)
	if err != nil {
		return exitf("runtime: %w", err)
	}

	launcher, err := launch.New(launch.Options{
		Spec: group.Spec{
			Procs:     cfg.Workers,
			StartMode: group.StartMode(cfg.StartMode),
			Entry:     cfg.Entry,
			CoordAddr: cfg.CoordAddr,
		},
		Runtime:       runtime,
		Policy:        buildPolicy(cfg),
		ResultTimeout: cfg.ResultTimeout.Std(),
		StopTimeout:   cfg.StopTimeout.Std(),
		Logger:        logger,
		Metrics:       collector,
	})
	if err != nil {
		return exitf("launcher: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var program *tea.Program
	if cfg.TUIEnabled {
		model := tui.New(tui.Config{
			WorldSize:   cfg.Workers,
			Entry:       cfg.Entry,
			StartMode:   cfg.StartMode,
			MetricsAddr: cfg.MetricsAddr,
			StatsSource: agg,
		})
		program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		go program.Run()
		defer tui.SendQuit(program)
	} else {
		printBanner(cfg)
	}

	fn, tr := entryForParent(cfg)

	started := time.Now()
	result, err := launcher.Launch(ctx, fn, tr)
	duration := time.Since(started)

	if program != nil {
		tui.SendQuit(program)
	}

	printSummary(cfg, agg, duration)

	if err != nil {
		logger.Error("launch_failed", "error", err)
		return exitf("launch: %w", err)
	}

	logger.Info("run_complete", "duration", duration.String())
	if result != nil && !cfg.TUIEnabled {
		fmt.Printf("Result: %v\n", result)
	}
	return nil
}

// buildRuntime picks the worker runtime. Spawn re-executes this binary per
// worker; fork approximates copy-on-write semantics in-process, which is as
// close as a Go runtime gets.
func buildRuntime(cfg *config.Config, logger *slog.Logger, callbacks group.Callbacks) (group.Runtime, error) {
	switch cfg.StartMode {
	case "spawn":
		return group.NewExecRuntime(group.ExecConfig{
			Logger: logger,
			Backoff: group.BackoffConfig{
				Initial:    cfg.BackoffInitial.Std(),
				Max:        cfg.BackoffMax.Std(),
				Multiplier: cfg.BackoffMultiply,
				JitterPct:  0.4,
			},
			Callbacks: callbacks,
		}), nil
	case "fork", "":
		return group.NewLocalRuntime(group.LocalConfig{
			Logger:    logger,
			Callbacks: callbacks,
		}), nil
	default:
		return nil, fmt.Errorf("unknown start mode %q", cfg.StartMode)
	}
}

func buildPolicy(cfg *config.Config) launch.TransportPolicy {
	if cfg.Transport == "pod" {
		return launch.PodPolicy{GracePeriod: cfg.GracePeriod.Std()}
	}
	return launch.NativePolicy{}
}

func printBanner(cfg *config.Config) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                        go-train-spawn                             ║")
	fmt.Println("║        Multi-Process Training Launcher and Rendezvous             ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Entry:       %s\n", cfg.Entry)
	fmt.Printf("  Workers:     %d (%s)\n", cfg.Workers, cfg.StartMode)
	fmt.Printf("  Transport:   %s\n", cfg.Transport)
	if cfg.MetricsAddr != "" {
		fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}

func printSummary(cfg *config.Config, agg *stats.Aggregator, duration time.Duration) {
	fmt.Println(stats.FormatExitSummary(agg.Snapshot(), stats.SummaryConfig{
		WorldSize:   cfg.Workers,
		StartMode:   cfg.StartMode,
		Duration:    duration,
		MetricsAddr: cfg.MetricsAddr,
	}))
}
