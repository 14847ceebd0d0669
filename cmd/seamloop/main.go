// Package main provides the CLI entry point for seamloop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/five82/seamloop"
	"github.com/five82/seamloop/internal/config"
	"github.com/five82/seamloop/internal/logging"
	"github.com/five82/seamloop/internal/reporter"
	"github.com/five82/seamloop/internal/store"
	"github.com/five82/seamloop/internal/util"
)

const (
	appName    = "seamloop"
	appVersion = "0.1.0"
)

// globalArgs holds the persistent flags.
type globalArgs struct {
	configFile string
	logDir     string
	preset     string
	verbose    bool
	noLog      bool
	json       bool
}

// app is the per-invocation state built before a command runs.
type app struct {
	cfg    *config.Config
	log    *logging.Logger
	logger zerolog.Logger
	rep    reporter.Reporter
}

var (
	ga  globalArgs
	cur *app
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Find seamless loop points in short videos and render them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(ga)
			if err != nil {
				return err
			}
			cur = a
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cur != nil {
				_ = cur.log.Close()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&ga.configFile, "config", "", "config file (default: ./seamloop.yaml or ~/.config/seamloop/config.yaml)")
	pf.StringVarP(&ga.logDir, "log-dir", "l", "", "log directory (default: config log_dir or <tmp>/seamloop/logs)")
	pf.StringVar(&ga.preset, "preset", "", "analysis preset (quick, balanced, thorough)")
	pf.BoolVarP(&ga.verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVar(&ga.noLog, "no-log", false, "disable log file creation")
	pf.BoolVar(&ga.json, "json", false, "emit NDJSON progress events instead of terminal output")

	root.AddCommand(newAnalyzeCmd(), newRenderCmd(), newServeCmd(), newHistoryCmd(), newVersionCmd())
	return root
}

func setup(g globalArgs) (*app, error) {
	cfg, err := config.Load(g.configFile)
	if err != nil {
		return nil, err
	}
	if g.preset != "" {
		p, err := config.ParsePreset(g.preset)
		if err != nil {
			return nil, err
		}
		cfg.ApplyPreset(p)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logDir := g.logDir
	if logDir == "" {
		logDir = cfg.LogDir
	}
	if logDir == "" {
		logDir = filepath.Join(os.TempDir(), appName, "logs")
	}
	lg, err := logging.Setup(logDir, g.verbose, g.noLog)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	logger := lg.Logger
	if g.verbose && !g.json {
		logger = logging.Tee(true, lg.Writer(), zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	var rep reporter.Reporter
	if g.json {
		rep = reporter.NewJSONReporter()
	} else {
		rep = reporter.NewTerminalReporter(g.verbose)
	}

	logger.Info().
		Str("preset", g.preset).
		Uint32("analysis_fps", cfg.Analysis.FPS).
		Uint32("analysis_width", cfg.Analysis.Width).
		Float64("min_loop_ms", cfg.Analysis.MinLoopMs).
		Float64("max_loop_ms", cfg.Analysis.MaxLoopMs).
		Msg("configuration loaded")

	return &app{cfg: cfg, log: lg, logger: logger, rep: rep}, nil
}

// client builds a library client over the loaded configuration.
func (a *app) client(opts ...seamloop.Option) (*seamloop.Client, error) {
	base := []seamloop.Option{seamloop.WithConfig(a.cfg), seamloop.WithLogger(a.logger)}
	return seamloop.New(append(base, opts...)...)
}

// openStore opens the job history database. A failure only disables history.
func (a *app) openStore() *store.Store {
	st, err := store.Open(a.cfg.DBPath, a.logger)
	if err != nil {
		a.logger.Warn().Err(err).Str("path", a.cfg.DBPath).Msg("job history disabled")
		a.rep.Warning(fmt.Sprintf("job history disabled: %v", err))
		return nil
	}
	return st
}

func (a *app) reportHardware() {
	info := util.GetSystemInfo()
	a.rep.Hardware(reporter.HardwareSummary{
		Hostname: info.Hostname,
		Cores:    fmt.Sprintf("%d logical / %d physical", info.NumCPU, info.PhysicalCores),
		Memory:   util.FormatBytes(info.AvailableBytes) + " available",
	})
}

func (a *app) fail(title string, err error, suggestion string) error {
	a.rep.Error(reporter.ReporterError{
		Title:      title,
		Message:    err.Error(),
		Suggestion: suggestion,
	})
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, appVersion)
		},
	}
}
