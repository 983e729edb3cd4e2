// Package config provides configuration management for lanwatch.
//
// Settings are layered: built-in defaults, then the YAML config file, then
// LANWATCH_* environment variables (a .env file in the working directory is
// loaded first), then command line flags applied by the caller.
//
// Config file locations (priority order):
//  1. $LANWATCH_CONFIG
//  2. ./lanwatch.yaml
//  3. ~/.config/lanwatch/config.yaml
//  4. /etc/lanwatch/config.yaml
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"lanwatch/internal/policy"
)

// Load reads .env, finds and loads the config file (or defaults if none
// is found) and applies environment overrides
func Load() (*Config, string, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("load .env: %w", err)
	}

	path := FindConfigPath()

	var (
		cfg *Config
		err error
	)
	if path == "" {
		cfg = DefaultConfig()
	} else if cfg, err = LoadFromPath(path); err != nil {
		return nil, path, err
	}

	cfg.ApplyEnv()
	return cfg, path, nil
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}

	setString(&c.Server.Addr, ":3000")
	setDuration(&c.Server.ReadTimeout, 10*time.Second)
	setDuration(&c.Server.WriteTimeout, 30*time.Second)
	setDuration(&c.Server.IdleTimeout, 60*time.Second)
	setDuration(&c.Server.ShutdownTimeout, 10*time.Second)

	setString(&c.Database.Backend, BackendSQLite)
	setString(&c.Database.Path, "./lanwatch.db")
	setString(&c.Database.Bucket, "lanwatch-devices")
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	setDuration(&c.Database.ConnMaxLifetime, 5*time.Minute)
	if c.Database.Replicas == 0 {
		c.Database.Replicas = 1
	}

	setDuration(&c.Reconcile.StoreTimeout, 5*time.Second)

	if c.Hub.QueueSize == 0 {
		c.Hub.QueueSize = 16
	}
	setDuration(&c.Hub.Keepalive, 30*time.Second)

	setDuration(&c.Agent.Interval, 60*time.Second)
	setDuration(&c.Agent.ScanTimeout, 5*time.Minute)
	setDuration(&c.Agent.SubmitTimeout, 10*time.Second)
}

// ApplyEnv overrides file values with LANWATCH_* environment variables
func (c *Config) ApplyEnv() {
	c.Log.Level = getEnv("LANWATCH_LOG_LEVEL", c.Log.Level)
	c.Log.Output = getEnv("LANWATCH_LOG_OUTPUT", c.Log.Output)
	c.Log.Debug = getEnvAsBool("LANWATCH_DEBUG", c.Log.Debug)

	c.Server.Addr = getEnv("LANWATCH_ADDR", c.Server.Addr)

	c.Database.Backend = getEnv("LANWATCH_DB_BACKEND", c.Database.Backend)
	c.Database.Path = getEnv("LANWATCH_DB_PATH", c.Database.Path)
	c.Database.DSN = getEnv("LANWATCH_DB_DSN", c.Database.DSN)
	c.Database.MaxOpenConns = getEnvAsInt("LANWATCH_DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.NATSURL = getEnv("LANWATCH_NATS_URL", c.Database.NATSURL)
	c.Database.Bucket = getEnv("LANWATCH_NATS_BUCKET", c.Database.Bucket)

	c.Policy.BlockedStart = getEnv("LANWATCH_BLOCKED_START", c.Policy.BlockedStart)
	c.Policy.BlockedEnd = getEnv("LANWATCH_BLOCKED_END", c.Policy.BlockedEnd)

	c.Reconcile.StoreTimeout = getEnvAsDuration("LANWATCH_STORE_TIMEOUT", c.Reconcile.StoreTimeout)

	c.Agent.Embedded = getEnvAsBool("LANWATCH_AGENT_EMBEDDED", c.Agent.Embedded)
	c.Agent.CollectorURL = getEnv("LANWATCH_COLLECTOR_URL", c.Agent.CollectorURL)
	c.Agent.Targets = getEnvAsSlice("LANWATCH_TARGETS", c.Agent.Targets)
	c.Agent.Interval = getEnvAsDuration("LANWATCH_SCAN_INTERVAL", c.Agent.Interval)
	c.Agent.ScanTimeout = getEnvAsDuration("LANWATCH_SCAN_TIMEOUT", c.Agent.ScanTimeout)
	c.Agent.NmapPath = getEnv("LANWATCH_NMAP_PATH", c.Agent.NmapPath)
}

// Classifier builds the address classifier from the policy section
func (c *Config) Classifier() (*policy.Classifier, error) {
	return policy.NewClassifier(c.Policy.BlockedStart, c.Policy.BlockedEnd)
}

// Validate checks the settings needed by the collector
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.Database.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Database.Path == "" {
			result = multierror.Append(result, errors.New("database.path is required for sqlite"))
		}
	case BackendPostgres:
		if c.Database.DSN == "" {
			result = multierror.Append(result, errors.New("database.dsn is required for postgres"))
		}
	case BackendNATSKV:
		if c.Database.NATSURL == "" {
			result = multierror.Append(result, errors.New("database.nats_url is required for natskv"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown database.backend %q", c.Database.Backend))
	}

	if _, err := c.Classifier(); err != nil {
		result = multierror.Append(result, fmt.Errorf("policy: %w", err))
	}

	if c.Hub.QueueSize < 1 {
		result = multierror.Append(result, errors.New("hub.queue_size must be at least 1"))
	}

	if c.Agent.Embedded {
		result = multierror.Append(result, c.validateAgent())
	}

	return result.ErrorOrNil()
}

// ValidateAgent checks the settings needed by a standalone agent
func (c *Config) ValidateAgent() error {
	var result *multierror.Error

	if c.Agent.CollectorURL == "" {
		result = multierror.Append(result, errors.New("agent.collector_url is required"))
	} else if u, err := url.Parse(c.Agent.CollectorURL); err != nil || u.Scheme == "" || u.Host == "" {
		result = multierror.Append(result, fmt.Errorf("agent.collector_url %q is not an absolute URL", c.Agent.CollectorURL))
	}

	if _, err := c.Classifier(); err != nil {
		result = multierror.Append(result, fmt.Errorf("policy: %w", err))
	}

	result = multierror.Append(result, c.validateAgent())
	return result.ErrorOrNil()
}

func (c *Config) validateAgent() error {
	var result *multierror.Error

	if len(c.Agent.Targets) == 0 {
		result = multierror.Append(result, errors.New("agent.targets must name at least one target"))
	}
	if c.Agent.Interval.Duration() <= 0 {
		result = multierror.Append(result, errors.New("agent.interval must be positive"))
	}
	if c.Agent.ScanTimeout.Duration() <= 0 {
		result = multierror.Append(result, errors.New("agent.scan_timeout must be positive"))
	}

	return result.ErrorOrNil()
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue Duration) Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return Duration(d)
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setString(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func setDuration(field *Duration, value time.Duration) {
	if *field == 0 {
		*field = Duration(value)
	}
}
