package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/droneedit/droneedit-agent/internal/analysis"
	"github.com/droneedit/droneedit-agent/internal/app"
	"github.com/droneedit/droneedit-agent/internal/config"
	"github.com/droneedit/droneedit-agent/internal/db"
	"github.com/droneedit/droneedit-agent/internal/grading"
	"github.com/droneedit/droneedit-agent/internal/host"
	"github.com/droneedit/droneedit-agent/internal/journal"
	"github.com/droneedit/droneedit-agent/internal/logging"
	"github.com/droneedit/droneedit-agent/internal/ui"
	"github.com/droneedit/droneedit-agent/internal/watcher"
)

var Version = "0.1.0"

const autosaveInterval = 5 * time.Minute

type flags struct {
	console    bool
	configPath string
	logLevel   string
	attempts   int
	retryDelay time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "droneedit:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:           "droneedit",
		Short:         "Automated drone footage editing for the host editor",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f)
		},
	}
	pf := root.PersistentFlags()
	pf.BoolVar(&f.console, "console", false, "use the console front-end; host operations are disabled when no host is found")
	pf.StringVar(&f.configPath, "config", "", "settings file (default <data dir>/settings.yaml)")
	pf.StringVar(&f.logLevel, "log-level", "", "DEBUG, INFO, WARNING, ERROR or CRITICAL")
	pf.IntVar(&f.attempts, "attempts", 0, "host connection attempts")
	pf.DurationVar(&f.retryDelay, "retry-delay", 0, "wait between host connection attempts")

	root.AddCommand(newDoctorCmd(&f), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "droneedit %s\n", Version)
		},
	}
}

// loadConfig applies command-line overrides over the environment.
func loadConfig(cmd *cobra.Command, f flags) (*config.EnvConfig, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	fl := cmd.Flags()
	if fl.Changed("console") {
		cfg.SetConsole(f.console)
	}
	if f.configPath != "" {
		cfg.SetSettingsPath(f.configPath)
	}
	if f.logLevel != "" {
		cfg.SetLogLevel(f.logLevel)
	}
	if fl.Changed("attempts") || fl.Changed("retry-delay") {
		attempts, delay := cfg.ConnectAttempts(), cfg.RetryDelay()
		if fl.Changed("attempts") {
			attempts = f.attempts
		}
		if fl.Changed("retry-delay") {
			delay = f.retryDelay
		}
		cfg.SetConnect(attempts, delay)
	}
	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return cfg, nil
}

// connect locates and connects to the host. In console mode a missing host
// is not an error and the session is nil.
func connect(ctx context.Context, cfg config.Config, logger *slog.Logger) (*host.Session, error) {
	entry, err := host.Locate(cfg.BridgeURL(), cfg.BridgeToken(), cfg.DiscoveryPath(), logger)
	if err == nil {
		var session *host.Session
		session, err = host.Connect(ctx, entry, host.ConnectOptions{
			MaxAttempts: cfg.ConnectAttempts(),
			RetryDelay:  cfg.RetryDelay(),
			Logger:      logger,
		})
		if err == nil {
			return session, nil
		}
	}
	if errors.Is(err, host.ErrHostUnavailable) && cfg.Console() {
		logger.Warn("host not available, running the console without host operations", "error", err)
		return nil, nil
	}
	logging.Critical(logger, "could not connect to the host", "error", err)
	return nil, err
}

func run(cmd *cobra.Command, f flags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(logging.Options{
		Level:   cfg.LogLevel(),
		File:    cfg.LogFile(),
		Console: !cfg.Console(), // the REPL owns the terminal
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	logger.Info("starting droneedit agent", "version", Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	settings, settingErrs, err := config.LoadSettings(cfg.SettingsPath())
	if err != nil {
		return err
	}
	for _, e := range settingErrs {
		logger.Warn("ignored setting", "error", e)
	}

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()
	repo := journal.NewRepository(database.Conn())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}

	analyzer, err := analysis.New(cfg.AnalysisMode(), analysis.Options{
		Level:      settings.AIProcessingLevel,
		Logger:     logger,
		Executable: cfg.DelegateExecutable(),
		ServiceURL: cfg.DelegateURL(),
		Timeout:    cfg.DelegateTimeout(),
		WorkDir:    filepath.Join(cfg.DataDir(), "analysis"),
	})
	if err != nil {
		return err
	}

	ws := app.New(app.Options{
		Session:     session,
		Analyzer:    analyzer,
		Journal:     repo,
		LUTs:        grading.NewLibrary(cfg.LUTDir(), logger),
		Settings:    settings,
		AutosaveDir: cfg.AutosaveDir(),
		Logger:      logger,
	})
	defer func() {
		if err := ws.Settings().Save(cfg.SettingsPath()); err != nil {
			logger.Warn("failed to save settings", "error", err)
		}
	}()

	if dir := cfg.IngestDir(); dir != "" && session != nil {
		w, err := watchIngest(ctx, ws, dir, logger)
		if err != nil {
			logger.Warn("ingest folder not watched", "dir", logging.SanitizePath(dir), "error", err)
		} else {
			defer w.Stop()
		}
	}
	go ws.RunAutosave(ctx, autosaveInterval)

	selector := ui.NewSelector(ui.SelectorOptions{
		Native: nativeFrontend(ws, logger),
		Fallback: ui.NewPanelUI(ui.PanelOptions{
			Workspace: ws,
			Journal:   repo,
			Port:      cfg.PanelPort(),
			Tray:      !cfg.Headless(),
			Version:   Version,
			Logger:    logger,
		}),
		Console:      ui.NewConsoleUI(ws, os.Stdin, os.Stdout, logger),
		ForceConsole: cfg.Console(),
		Logger:       logger,
	})
	err = selector.Run(ctx)
	ws.CancelAll()
	if err != nil {
		logging.Critical(logger, "no front-end could run", "error", err)
		return err
	}
	logger.Info("shutdown complete", "frontend", selector.State().String())
	return nil
}

// nativeFrontend is nil without a session so the selector skips it.
func nativeFrontend(ws *app.Workspace, logger *slog.Logger) ui.Frontend {
	if ws.Session() == nil {
		return nil
	}
	return ui.NewHostUI(ws, logger)
}

func watchIngest(ctx context.Context, ws *app.Workspace, dir string, logger *slog.Logger) (*watcher.FSWatcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	w := watcher.NewFSWatcher(logger, watcher.DefaultDebounce)
	w.OnChange(func(path string, ev watcher.EventType) {
		if ev == watcher.EventDelete {
			return
		}
		if _, err := ws.IngestFiles(ctx, []string{path}); err != nil {
			logger.Warn("auto import failed", "path", logging.SanitizePath(path), "error", err)
		}
	})
	if err := w.Watch(ctx, dir); err != nil {
		return nil, err
	}
	return w, nil
}
