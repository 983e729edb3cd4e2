package main

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"lanwatch/internal/config"
	"lanwatch/internal/repository"
	"lanwatch/internal/repository/memory"
	"lanwatch/internal/repository/natskv"
	"lanwatch/internal/repository/postgres"
	"lanwatch/internal/repository/sqlite"
)

// openStore constructs the configured device store
func openStore(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (repository.DeviceStore, error) {
	var (
		store repository.DeviceStore
		err   error
	)

	switch cfg.Backend {
	case config.BackendMemory:
		store = memory.New()
	case config.BackendSQLite:
		store, err = sqlite.New(cfg.Path)
	case config.BackendPostgres:
		store, err = postgres.Open(ctx, cfg.DSN, postgres.Options{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime.Duration(),
		})
	case config.BackendNATSKV:
		store, err = natskv.Open(cfg.NATSURL,
			natskv.Options{Bucket: cfg.Bucket, Replicas: cfg.Replicas},
			nats.Name("lanwatch-server"),
			nats.MaxReconnects(-1),
		)
	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}

	log.Info().Str("backend", cfg.Backend).Msg("Device store opened")
	return store, nil
}
