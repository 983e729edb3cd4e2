package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lanwatch/internal/adapter"
	"lanwatch/internal/agent"
	"lanwatch/internal/config"
	"lanwatch/internal/logger"
	"lanwatch/internal/metrics"
)

type agentFlags struct {
	configPath  string
	collector   string
	targets     []string
	interval    time.Duration
	logLevel    string
	metricsAddr string
	once        bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags agentFlags

	cmd := &cobra.Command{
		Use:          "lanwatch-agent",
		Short:        "Scan local networks and report live hosts to a lanwatch collector",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &flags)
			if err != nil {
				return err
			}
			if err := cfg.ValidateAgent(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, &flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.configPath, "config", "", "config file (default: $LANWATCH_CONFIG, ./lanwatch.yaml, ~/.config/lanwatch/config.yaml)")
	f.StringVar(&flags.collector, "collector", "", "collector base URL, e.g. http://collector:3000")
	f.StringSliceVar(&flags.targets, "target", nil, "scan target: address, CIDR or nmap range (repeatable)")
	f.DurationVar(&flags.interval, "interval", 0, "delay between scans, e.g. 60s")
	f.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.StringVar(&flags.metricsAddr, "metrics-addr", metrics.DefaultAgentEndpoint, "address for the /metrics endpoint, empty to disable")
	f.BoolVar(&flags.once, "once", false, "scan every target once and exit")

	return cmd
}

func loadConfig(cmd *cobra.Command, flags *agentFlags) (*config.Config, error) {
	if flags.configPath != "" {
		if _, err := os.Stat(flags.configPath); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		os.Setenv(config.EnvConfigPath, flags.configPath)
	}

	cfg, _, err := config.Load()
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("collector") {
		cfg.Agent.CollectorURL = flags.collector
	}
	if changed("target") {
		cfg.Agent.Targets = flags.targets
	}
	if changed("interval") {
		cfg.Agent.Interval = config.Duration(flags.interval)
	}
	if changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}

	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, flags *agentFlags) error {
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := logger.WithComponent("agent")

	classifier, err := cfg.Classifier()
	if err != nil {
		return err
	}

	opts := []adapter.NmapOption{
		adapter.WithTimeout(cfg.Agent.ScanTimeout.Duration()),
		adapter.WithSkipHostDiscovery(cfg.Agent.SkipHostDiscovery),
		adapter.WithPrivileged(cfg.Agent.Privileged),
	}
	if cfg.Agent.NmapPath != "" {
		opts = append(opts, adapter.WithBinaryPath(cfg.Agent.NmapPath))
	}
	scanner := adapter.NewNmapScanner(logger.WithComponent("nmap"), opts...)
	if err := scanner.Available(ctx); err != nil {
		return err
	}

	reporter := agent.NewHTTPReporter(cfg.Agent.CollectorURL, cfg.Agent.SubmitTimeout.Duration())

	targets := make([]agent.Config, 0, len(cfg.Agent.Targets))
	for _, target := range cfg.Agent.Targets {
		targets = append(targets, agent.Config{
			Target:      target,
			Interval:    cfg.Agent.Interval.Duration(),
			ScanTimeout: cfg.Agent.ScanTimeout.Duration(),
			Classifier:  classifier,
		})
	}
	runner := agent.NewRunner(targets, scanner, reporter, log)

	log.Info().
		Str("collector", cfg.Agent.CollectorURL).
		Strs("targets", cfg.Agent.Targets).
		Bool("classifying", classifier.Configured()).
		Msg("Starting lanwatch agent")

	if flags.once {
		var failed bool
		for _, a := range runner.Agents() {
			if err := a.Cycle(ctx); err != nil && !errors.Is(err, agent.ErrEmptyScan) {
				log.Error().Err(err).Str("target", a.Target()).Msg("Scan cycle failed")
				failed = true
			}
		}
		if failed {
			return errors.New("one or more scan cycles failed")
		}
		return nil
	}

	if flags.metricsAddr != "" {
		srv := metrics.ListenAndServe(flags.metricsAddr, log)
		defer srv.Close()
	}

	return runner.Run(ctx)
}
