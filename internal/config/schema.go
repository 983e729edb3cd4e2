package config

import (
	"time"

	"lanwatch/internal/logger"
)

// Storage backends selectable through database.backend
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendNATSKV   = "natskv"
)

// Config is the root configuration structure
type Config struct {
	Version   int             `yaml:"version"`
	Log       logger.Config   `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Policy    PolicyConfig    `yaml:"policy"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Hub       HubConfig       `yaml:"hub"`
	Agent     AgentConfig     `yaml:"agent"`
}

// ServerConfig holds the collector HTTP server settings
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	IdleTimeout     Duration `yaml:"idle_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects and configures the device store
type DatabaseConfig struct {
	Backend string `yaml:"backend"` // memory, sqlite, postgres, natskv

	// sqlite
	Path string `yaml:"path,omitempty"`

	// postgres
	DSN             string   `yaml:"dsn,omitempty"`
	MaxOpenConns    int      `yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int      `yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime,omitempty"`

	// natskv
	NATSURL  string `yaml:"nats_url,omitempty"`
	Bucket   string `yaml:"bucket,omitempty"`
	Replicas int    `yaml:"replicas,omitempty"`
}

// PolicyConfig holds the blocked address range. Both bounds empty means
// every address is allowed.
type PolicyConfig struct {
	BlockedStart string `yaml:"blocked_start,omitempty"`
	BlockedEnd   string `yaml:"blocked_end,omitempty"`
}

// ReconcileConfig bounds store calls made while reconciling
type ReconcileConfig struct {
	StoreTimeout Duration `yaml:"store_timeout"`
}

// HubConfig tunes the real-time broadcast hub
type HubConfig struct {
	QueueSize int      `yaml:"queue_size"`
	Keepalive Duration `yaml:"keepalive"`
}

// AgentConfig holds scan agent settings. An embedded agent in the collector
// reports locally; a standalone agent posts to CollectorURL.
type AgentConfig struct {
	Embedded          bool     `yaml:"embedded"`
	CollectorURL      string   `yaml:"collector_url,omitempty"`
	Targets           []string `yaml:"targets,omitempty"`
	Interval          Duration `yaml:"interval"`
	ScanTimeout       Duration `yaml:"scan_timeout"`
	SubmitTimeout     Duration `yaml:"submit_timeout"`
	SkipHostDiscovery bool     `yaml:"skip_host_discovery,omitempty"`
	Privileged        bool     `yaml:"privileged,omitempty"`
	NmapPath          string   `yaml:"nmap_path,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
