package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/droneedit/droneedit-agent/internal/capability"
	"github.com/droneedit/droneedit-agent/internal/config"
	"github.com/droneedit/droneedit-agent/internal/editor"
	"github.com/droneedit/droneedit-agent/internal/grading"
	"github.com/droneedit/droneedit-agent/internal/host"
	"github.com/droneedit/droneedit-agent/internal/logging"
)

// reportedKinds are the host objects whose operations doctor lists.
var reportedKinds = []host.Kind{
	host.KindResolve,
	host.KindProjectManager,
	host.KindProject,
	host.KindMediaPool,
	host.KindFolder,
	host.KindMediaPoolItem,
	host.KindTimeline,
	host.KindTimelineItem,
	host.KindUIManager,
}

func newDoctorCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the host connection, capabilities and installed LUTs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, *f)
			if err != nil {
				return err
			}
			logger, closer, err := logging.New(logging.Options{Level: cfg.LogLevel(), File: cfg.LogFile()})
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			return doctor(ctx, cmd.OutOrStdout(), cfg, logger)
		},
	}
}

func doctor(ctx context.Context, out io.Writer, cfg config.Config, logger *slog.Logger) error {
	fmt.Fprintf(out, "droneedit %s\n", Version)
	fmt.Fprintf(out, "data dir:      %s\n", cfg.DataDir())
	fmt.Fprintf(out, "settings:      %s\n", cfg.SettingsPath())
	fmt.Fprintf(out, "analysis mode: %s\n", cfg.AnalysisMode())

	settings, errs, err := config.LoadSettings(cfg.SettingsPath())
	switch {
	case err != nil:
		fmt.Fprintf(out, "settings file: unreadable (%v)\n", err)
	case len(errs) > 0:
		fmt.Fprintf(out, "settings file: %d rejected values\n", len(errs))
		for _, e := range errs {
			fmt.Fprintf(out, "  %v\n", e)
		}
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(out, "settings:      invalid (%v)\n", err)
	}

	fmt.Fprintf(out, "\nLUTs in %s:\n", cfg.LUTDir())
	for _, p := range grading.NewLibrary(cfg.LUTDir(), logger).Presets() {
		mark := "missing"
		if p.Present {
			mark = "ok"
		}
		fmt.Fprintf(out, "  %-14s %s\n", p.Name, mark)
	}

	fmt.Fprintln(out)
	entry, err := host.Locate(cfg.BridgeURL(), cfg.BridgeToken(), cfg.DiscoveryPath(), logger)
	if err != nil {
		fmt.Fprintf(out, "host: not found (%v)\n", err)
		return err
	}
	session, err := host.Connect(ctx, entry, host.ConnectOptions{
		MaxAttempts: cfg.ConnectAttempts(),
		RetryDelay:  cfg.RetryDelay(),
		Logger:      logger,
	})
	if err != nil {
		fmt.Fprintf(out, "host: connection failed (%v)\n", err)
		return err
	}
	fmt.Fprintf(out, "host: %s %s\n", session.Product, session.Version)
	probe := capability.NewProbe(session.Version, logger)
	if name := editor.New(session, probe, logger).ProjectName(ctx); name != "" {
		fmt.Fprintf(out, "host project: %s\n", name)
	}
	printCapabilities(out, probe)
	return nil
}

func printCapabilities(out io.Writer, probe *capability.Probe) {
	fmt.Fprintf(out, "capabilities for %s:\n", probe.Version())
	for _, kind := range reportedKinds {
		flags := probe.Flags(kind)
		ops := make([]string, 0, len(flags))
		for op := range flags {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		fmt.Fprintf(out, "  %s\n", kind)
		for _, op := range ops {
			mark := "-"
			if flags[op] {
				mark = "+"
			}
			fmt.Fprintf(out, "    %s %s\n", mark, op)
		}
	}
}
