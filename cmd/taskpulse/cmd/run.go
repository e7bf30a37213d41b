package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskhive/taskpulse/internal/agent"
	"github.com/taskhive/taskpulse/internal/api"
	"github.com/taskhive/taskpulse/internal/graphite"
	"github.com/taskhive/taskpulse/internal/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the taskpulse agent",
	Long: "Start the taskpulse agent daemon. Polls the configured metrics on\n" +
		"their intervals and pushes every collected batch to Graphite.",
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	// 1. Parse config.
	cfg, err := agent.ParseConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("taskpulse run: %w", err)
	}

	// Apply CLI flag overrides.
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// 2. Set up structured logger.
	logger := setupLogger(cfg.LogLevel)

	logger.Info("starting taskpulse",
		"version", buildVersion,
		"metrics", len(cfg.Metrics),
	)

	// 3. Create API client.
	client, err := api.NewClient(cfg.API, buildVersion, logger)
	if err != nil {
		return fmt.Errorf("taskpulse run: create client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Log the display names of the configured pools. Best effort: a
	// transient API outage at startup must not keep the agent down.
	if names, err := agent.ResolvePoolNames(ctx, client, cfg); err != nil {
		logger.Warn("resolving pool names", "error", err)
	} else {
		for id, name := range names {
			logger.Info("collecting pool", "pool_id", id, "name", name)
		}
	}

	// 4. Load the resume bookmark and build the configured metrics.
	state, err := agent.LoadState(cfg.DataDir)
	if err != nil {
		logger.Warn("resume bookmark unreadable, starting from now", "error", err)
		state = agent.State{}
	}
	if !state.LastTick.IsZero() {
		logger.Info("resuming event collection", "last_tick", state.LastTick)
	}

	ms, err := agent.BuildMetrics(cfg, client, state.LastTick)
	if err != nil {
		return fmt.Errorf("taskpulse run: %w", err)
	}

	// 5. Create the Graphite sink.
	sink, err := graphite.NewSink(cfg.Graphite, logger)
	if err != nil {
		return fmt.Errorf("taskpulse run: create sink: %w", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("closing graphite connection", "error", err)
		}
	}()

	// 6. Push batches to Graphite and advance the resume bookmark after
	// each delivery. Saving is best effort: a failed save only costs
	// duplicate counting after the next restart.
	callback := func(lines metrics.Lines) error {
		if err := sink.Push(lines); err != nil {
			return err
		}
		if err := agent.SaveState(cfg.DataDir, agent.State{LastTick: time.Now().UTC()}); err != nil {
			logger.Warn("saving resume bookmark", "error", err)
		}
		return nil
	}

	// 7. Create and run the collector until SIGTERM/SIGINT.
	collector, err := metrics.NewCollector(cfg.Collect, ms, callback, logger)
	if err != nil {
		return fmt.Errorf("taskpulse run: create collector: %w", err)
	}

	if err := collector.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("taskpulse run: %w", err)
	}

	logger.Info("taskpulse stopped")
	return nil
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
