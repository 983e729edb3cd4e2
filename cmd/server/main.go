package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lanwatch/internal/adapter"
	"lanwatch/internal/agent"
	"lanwatch/internal/config"
	"lanwatch/internal/handler"
	"lanwatch/internal/hub"
	"lanwatch/internal/logger"
	"lanwatch/internal/service"
)

type serverFlags struct {
	configPath string
	addr       string
	backend    string
	dbPath     string
	dsn        string
	natsURL    string
	logLevel   string
	embedded   bool
	targets    []string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return newServerCmd(&serverFlags{})
}

func newServerCmd(flags *serverFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "lanwatch-server",
		Short:        "Collect LAN device observations and stream the inventory",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, path)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&flags.configPath, "config", "", "config file (default: $LANWATCH_CONFIG, ./lanwatch.yaml, ~/.config/lanwatch/config.yaml)")
	f.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	f = cmd.Flags()
	f.StringVar(&flags.addr, "addr", "", "HTTP listen address")
	f.StringVar(&flags.backend, "backend", "", "device store backend (memory, sqlite, postgres, natskv)")
	f.StringVar(&flags.dbPath, "db", "", "SQLite database path")
	f.StringVar(&flags.dsn, "dsn", "", "PostgreSQL connection string")
	f.StringVar(&flags.natsURL, "nats-url", "", "NATS server URL for the natskv backend")
	f.BoolVar(&flags.embedded, "embedded-agent", false, "run scan agents inside the collector")
	f.StringSliceVar(&flags.targets, "target", nil, "scan target for embedded agents (repeatable)")

	cmd.AddCommand(newConfigCmd(flags))
	return cmd
}

// loadConfig layers flags over the file and environment configuration
func loadConfig(cmd *cobra.Command, flags *serverFlags) (*config.Config, string, error) {
	if flags.configPath != "" {
		if _, err := os.Stat(flags.configPath); err != nil {
			return nil, "", fmt.Errorf("config file: %w", err)
		}
		os.Setenv(config.EnvConfigPath, flags.configPath)
	}

	cfg, path, err := config.Load()
	if err != nil {
		return nil, path, err
	}

	changed := cmd.Flags().Changed
	if changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if changed("addr") {
		cfg.Server.Addr = flags.addr
	}
	if changed("backend") {
		cfg.Database.Backend = flags.backend
	}
	if changed("db") {
		cfg.Database.Path = flags.dbPath
	}
	if changed("dsn") {
		cfg.Database.DSN = flags.dsn
	}
	if changed("nats-url") {
		cfg.Database.NATSURL = flags.natsURL
	}
	if changed("embedded-agent") {
		cfg.Agent.Embedded = flags.embedded
	}
	if changed("target") {
		cfg.Agent.Targets = flags.targets
	}

	return cfg, path, nil
}

func run(ctx context.Context, cfg *config.Config, path string) error {
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := logger.WithComponent("server")

	if path != "" {
		log.Info().Str("path", path).Msg("Loaded config")
	} else {
		log.Info().Msg("No config file found, using defaults")
	}

	classifier, err := cfg.Classifier()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer store.Close()

	events := hub.New(store,
		hub.WithQueueSize(cfg.Hub.QueueSize),
		hub.WithKeepalive(cfg.Hub.Keepalive.Duration()),
		hub.WithLogger(logger.WithComponent("hub")),
	)

	reconciler := service.NewReconciler(store, classifier,
		service.WithStoreTimeout(cfg.Reconcile.StoreTimeout.Duration()),
		service.WithLogger(logger.WithComponent("reconciler")),
	)
	reports := service.NewReportService(reconciler, events, logger.WithComponent("reports"))
	devices := service.NewDeviceService(store, classifier, events, logger.WithComponent("devices"))

	api := handler.New(devices, reports, logger.WithComponent("api"))
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler.NewRouter(api, events, logger.WithComponent("http")),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:  cfg.Server.IdleTimeout.Duration(),
	}

	agentsDone := make(chan error, 1)
	agentCtx, stopAgents := context.WithCancel(ctx)
	defer stopAgents()

	if cfg.Agent.Embedded {
		runner := agent.NewRunner(agentConfigs(cfg), newScanner(agentCtx, cfg), agent.NewLocalReporter(reports), logger.WithComponent("agent"))
		go func() { agentsDone <- runner.Run(agentCtx) }()
	} else {
		agentsDone <- nil
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
	case err := <-serveErr:
		if err != nil {
			stopAgents()
			<-agentsDone
			return fmt.Errorf("server error: %w", err)
		}
	}

	stopAgents()
	if err := <-agentsDone; err != nil {
		log.Error().Err(err).Msg("Scan agents stopped with errors")
	}

	// Event streams never go idle on their own
	events.Close()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Server stopped")
	return nil
}

// agentConfigs builds one agent configuration per target
func agentConfigs(cfg *config.Config) []agent.Config {
	classifier, _ := cfg.Classifier()

	configs := make([]agent.Config, 0, len(cfg.Agent.Targets))
	for _, target := range cfg.Agent.Targets {
		configs = append(configs, agent.Config{
			Target:      target,
			Interval:    cfg.Agent.Interval.Duration(),
			ScanTimeout: cfg.Agent.ScanTimeout.Duration(),
			Classifier:  classifier,
		})
	}
	return configs
}

func newScanner(ctx context.Context, cfg *config.Config) *adapter.NmapScanner {
	log := logger.WithComponent("nmap")

	opts := []adapter.NmapOption{
		adapter.WithTimeout(cfg.Agent.ScanTimeout.Duration()),
		adapter.WithSkipHostDiscovery(cfg.Agent.SkipHostDiscovery),
		adapter.WithPrivileged(cfg.Agent.Privileged),
	}
	if cfg.Agent.NmapPath != "" {
		opts = append(opts, adapter.WithBinaryPath(cfg.Agent.NmapPath))
	}

	scanner := adapter.NewNmapScanner(log, opts...)
	if err := scanner.Available(ctx); err != nil {
		log.Warn().Err(err).Msg("Nmap not available, scans will fail until it is installed")
	}
	return scanner
}
