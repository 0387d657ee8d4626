// Package config provides configuration types for the decision service.
package config

import (
	"log/slog"
	"time"
)

// Config is the top-level configuration for parcelgate.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Store configures the document store backing the principal directory.
	Store StoreConfig `yaml:"store" mapstructure:"store"`

	// Audit configures the decision trail.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Auth configures API key authentication for the decision API.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Overlays are operator-authored deny rules evaluated before the base
	// rule table. Overlays can only deny; the action field exists so a
	// config with an unsupported action fails loudly instead of being
	// read as a grant.
	Overlays []OverlayConfig `yaml:"overlays" mapstructure:"overlays" validate:"omitempty,dive"`

	// DevMode enables development conveniences (debug logging).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
// TLS is left to a reverse proxy.
type ServerConfig struct {
	// HTTPAddr is the address to listen on.
	// Defaults to "127.0.0.1:8080" (localhost only) if empty. Binding a
	// non-loopback address requires configured API keys.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error". Defaults to "info".
	// DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// StoreConfig configures the document store the resolver reads roles from.
type StoreConfig struct {
	// Backend selects the store implementation.
	// "memory" for tests and the check subcommand, "sqlite" for serve mode.
	Backend string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=memory sqlite"`

	// Path is the sqlite database file. Required for the sqlite backend.
	Path string `yaml:"path" mapstructure:"path"`
}

// AuditConfig configures the decision trail.
type AuditConfig struct {
	// Output selects the trail sink.
	// "memory" keeps a bounded ring buffer only; "file://<absolute-dir>"
	// additionally appends JSON Lines files with daily rotation.
	Output string `yaml:"output" mapstructure:"output" validate:"required,audit_output"`

	// ChannelSize is the trail writer channel capacity. Defaults to 1000.
	ChannelSize int `yaml:"channel_size" mapstructure:"channel_size" validate:"omitempty,min=1"`

	// BatchSize is the number of records batched per write. Defaults to 100.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size" validate:"omitempty,min=1"`

	// FlushInterval is how often a partial batch is flushed (e.g. "1s").
	FlushInterval string `yaml:"flush_interval" mapstructure:"flush_interval" validate:"omitempty"`

	// SendTimeout bounds how long a decision waits on a full trail channel
	// before dropping the record (e.g. "100ms", "0" drops immediately).
	SendTimeout string `yaml:"send_timeout" mapstructure:"send_timeout" validate:"omitempty"`

	// RetentionDays is how long file output is kept. Defaults to 30.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days" validate:"omitempty,min=1"`

	// CacheSize is the recent-records buffer size. Defaults to 1000.
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size" validate:"omitempty,min=1"`
}

// AuthConfig configures API key authentication.
type AuthConfig struct {
	// APIKeys are the accepted key hashes: "sha256:<hex>" or Argon2id PHC
	// strings. Generate with the hash-key subcommand. Empty disables auth,
	// which restricts the server to loopback binds.
	APIKeys []string `yaml:"api_keys" mapstructure:"api_keys"`
}

// OverlayConfig defines one deny overlay.
type OverlayConfig struct {
	// Name identifies the overlay in decisions and the audit trail.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// Condition is a CEL expression over the request descriptor.
	Condition string `yaml:"condition" mapstructure:"condition" validate:"required"`

	// Action must be "deny". Overlays cannot grant.
	Action string `yaml:"action" mapstructure:"action" validate:"required,oneof=deny"`
}

// SetDefaults applies default values to optional fields.
func (c *Config) SetDefaults() {
	// Localhost only by default. Network exposure is an explicit choice.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.DevMode {
		c.Server.LogLevel = "debug"
	}

	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}

	if c.Audit.Output == "" {
		c.Audit.Output = "memory"
	}
	if c.Audit.ChannelSize == 0 {
		c.Audit.ChannelSize = 1000
	}
	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = 100
	}
	if c.Audit.FlushInterval == "" {
		c.Audit.FlushInterval = "1s"
	}
	if c.Audit.SendTimeout == "" {
		c.Audit.SendTimeout = "100ms"
	}
	if c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = 30
	}
	if c.Audit.CacheSize == 0 {
		c.Audit.CacheSize = 1000
	}
}

// SlogLevel maps the configured log level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Server.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FlushIntervalDuration returns the parsed flush interval.
// Falls back to one second on a malformed value; Validate catches those.
func (a AuditConfig) FlushIntervalDuration() time.Duration {
	d, err := time.ParseDuration(a.FlushInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// SendTimeoutDuration returns the parsed send timeout. "0" is valid and
// means drop immediately.
func (a AuditConfig) SendTimeoutDuration() time.Duration {
	if a.SendTimeout == "0" {
		return 0
	}
	d, err := time.ParseDuration(a.SendTimeout)
	if err != nil || d < 0 {
		return 100 * time.Millisecond
	}
	return d
}
