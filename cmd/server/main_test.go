package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lanwatch/internal/config"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	store, err := openStore(ctx, config.DatabaseConfig{Backend: config.BackendMemory}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Close())

	dbPath := filepath.Join(t.TempDir(), "lanwatch.db")
	store, err = openStore(ctx, config.DatabaseConfig{Backend: config.BackendSQLite, Path: dbPath}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Close())

	_, err = openStore(ctx, config.DatabaseConfig{Backend: "mongo"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestLoadConfigFlags(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv(config.EnvConfigPath, "")
	t.Chdir(t.TempDir())

	flags := &serverFlags{}
	cmd := newServerCmd(flags)
	require.NoError(t, cmd.ParseFlags([]string{
		"--addr", ":9000",
		"--backend", "memory",
		"--embedded-agent",
		"--target", "10.0.0.0/24",
		"--target", "10.0.1.0/24",
	}))

	cfg, path, err := loadConfig(cmd, flags)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, config.BackendMemory, cfg.Database.Backend)
	assert.True(t, cfg.Agent.Embedded)
	assert.Equal(t, []string{"10.0.0.0/24", "10.0.1.0/24"}, cfg.Agent.Targets)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	cmd := newRootCmd()
	_, _, err := loadConfig(cmd, &serverFlags{configPath: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestAgentConfigs(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Policy = config.PolicyConfig{BlockedStart: "10.0.0.1", BlockedEnd: "10.0.0.9"}
	cfg.Agent.Targets = []string{"10.0.0.0/24", "10.0.1.0/24"}
	cfg.Agent.Interval = config.Duration(30 * time.Second)

	configs := agentConfigs(cfg)
	require.Len(t, configs, 2)
	assert.Equal(t, "10.0.1.0/24", configs[1].Target)
	assert.Equal(t, 30*time.Second, configs[0].Interval)
	assert.True(t, configs[0].Classifier.Configured())
}
