// Package config provides the process-level configuration for the nero
// backend: listener address, data directory, logging, audit pipeline
// tuning, and telemetry. Per-request behavior (budgets, privacy,
// quarantine) is NOT configured here; that lives in the settings
// registry inside the database so the desktop client can change it at
// runtime.
package config

import (
	"time"
)

// Config is the top-level process configuration.
type Config struct {
	// Server configures the local API listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Data configures where persistent state lives.
	Data DataConfig `yaml:"data" mapstructure:"data"`

	// Logging configures the slog handler.
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Audit tunes the async audit pipeline.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Telemetry configures the OpenTelemetry exporters.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// ServerConfig configures the API listener. The backend is a local
// companion process; the default binds loopback only.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// DataConfig configures the data root.
type DataConfig struct {
	// Dir overrides the data root. Empty means NERO_HOME or the
	// platform config dir.
	Dir string `yaml:"dir" mapstructure:"dir" validate:"omitempty,abs_path"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// AuditConfig tunes the buffered audit channel and its flush cadence.
type AuditConfig struct {
	ChannelSize   int `yaml:"channel_size" mapstructure:"channel_size" validate:"omitempty,min=1"`
	BatchSize     int `yaml:"batch_size" mapstructure:"batch_size" validate:"omitempty,min=1"`
	FlushMillis   int `yaml:"flush_ms" mapstructure:"flush_ms" validate:"omitempty,min=1"`
	SendTimeoutMS int `yaml:"send_timeout_ms" mapstructure:"send_timeout_ms" validate:"omitempty,min=0"`
}

// FlushInterval returns the flush cadence as a duration.
func (a AuditConfig) FlushInterval() time.Duration {
	return time.Duration(a.FlushMillis) * time.Millisecond
}

// SendTimeout returns the backpressure timeout as a duration.
func (a AuditConfig) SendTimeout() time.Duration {
	return time.Duration(a.SendTimeoutMS) * time.Millisecond
}

// TelemetryConfig configures the stdout OTel exporters. Off by default:
// a privacy-first local process should not emit traces unless asked.
type TelemetryConfig struct {
	Enabled         bool `yaml:"enabled" mapstructure:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds" mapstructure:"interval_seconds" validate:"omitempty,min=1"`
}

// Default values applied by SetDefaults.
const (
	DefaultAddr              = "127.0.0.1:8737"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultAuditChannelSize  = 1000
	DefaultAuditBatchSize    = 100
	DefaultAuditFlushMillis  = 1000
	DefaultAuditSendTimeout  = 100
	DefaultTelemetryInterval = 60
)

// SetDefaults fills unset fields with their defaults.
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Audit.ChannelSize == 0 {
		c.Audit.ChannelSize = DefaultAuditChannelSize
	}
	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = DefaultAuditBatchSize
	}
	if c.Audit.FlushMillis == 0 {
		c.Audit.FlushMillis = DefaultAuditFlushMillis
	}
	if c.Audit.SendTimeoutMS == 0 {
		c.Audit.SendTimeoutMS = DefaultAuditSendTimeout
	}
	if c.Telemetry.IntervalSeconds == 0 {
		c.Telemetry.IntervalSeconds = DefaultTelemetryInterval
	}
}
