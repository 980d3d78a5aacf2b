package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vhxdl/internal/config"
	"vhxdl/internal/daemon"
	"vhxdl/internal/download"
	"vhxdl/internal/logging"
	"vhxdl/internal/preflight"
	"vhxdl/internal/scheduler"
	"vhxdl/internal/staging"
	"vhxdl/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var source sourceFlags
	var watch watchFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Download every selected episode and video not already present",
		Long: "Resolve the configured selectors, download missing files and exit.\n" +
			"With --watch the process stays up and repeats the run every day at --watch-at.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := source.apply(cmd, cfg); err != nil {
				return err
			}
			watch.apply(cmd, cfg)
			if err := cfg.ValidateRun(); err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			return runPipeline(cmd.Context(), cmd.OutOrStdout(), ctx, cfg)
		},
	}
	source.register(cmd)
	watch.register(cmd)
	return cmd
}

func runPipeline(parent context.Context, out io.Writer, ctx *commandContext, cfg *config.Config) error {
	signalCtx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := ctx.sessionLogger(true)
	if err != nil {
		return err
	}

	results := preflight.RunAll(signalCtx, cfg)
	for _, r := range results {
		if !r.Passed && r.Optional {
			logging.WarnWithContext(logger, "optional preflight check failed", "preflight_optional_failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldImpact, "continuing"),
			)
		}
	}
	if failed := preflight.Failed(results); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, r := range failed {
			names = append(names, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
		return fmt.Errorf("preflight failed (run `vhxdl check` for details): %s", strings.Join(names, "; "))
	}

	at, err := scheduler.ParseTimeOfDay(cfg.Watch.At)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	var last workflow.Summary
	sched := scheduler.New(func(runCtx context.Context) error {
		staging.CleanStale(runCtx, cfg.Paths.DestDir, download.StagingPrefix, staleStagingAge(cfg), time.Now(), logger)
		summary, err := p.runner.Run(runCtx)
		last = summary
		return err
	}, scheduler.Options{
		Watch:    cfg.Watch.Enabled,
		At:       at,
		Location: loc,
		Logger:   logger,
	})

	if !cfg.Watch.Enabled {
		err := sched.Run(signalCtx)
		printSummary(out, last)
		return err
	}

	d, err := daemon.New(cfg.DaemonLockPath(), sched, logger)
	if err != nil {
		return err
	}
	logger.Info("watch mode started",
		logging.String("at", at.String()),
		logging.String("timezone", loc.String()),
		logging.String("lock", d.LockPath()),
	)
	if err := d.Run(signalCtx); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return fmt.Errorf("%w (lock %s)", err, d.LockPath())
		}
		return err
	}
	return nil
}

// staleStagingAge is how long an untouched staging directory is kept before
// it is treated as the leftover of an interrupted download.
func staleStagingAge(cfg *config.Config) time.Duration {
	age := 24 * time.Hour
	if timeout := 2 * cfg.DownloadTimeout(); timeout > age {
		age = timeout
	}
	return age
}

func printSummary(out io.Writer, s workflow.Summary) {
	if s.RunID == "" {
		return
	}
	fmt.Fprintf(out, "Downloaded %d of %d (%d already present", s.Downloaded, s.Planned, s.Skipped)
	if s.Missing > 0 {
		fmt.Fprintf(out, ", %d without a stream", s.Missing)
	}
	fmt.Fprintf(out, ") in %s", s.Duration.Round(time.Second))
	if s.Bytes > 0 {
		fmt.Fprintf(out, ", %s", humanize.IBytes(uint64(s.Bytes)))
	}
	fmt.Fprintln(out)
}
