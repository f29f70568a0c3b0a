// Package config provides configuration structs and utilities for the yardsync application.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config represents the root configuration for the yardsync application.
type Config struct {
	Remote        RemoteConfig        `yaml:"remote"`
	Sync          SyncConfig          `yaml:"sync"`
	Database      DatabaseConfig      `yaml:"database"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// RemoteConfig identifies the shared document on the remote store and
// how to authenticate against it.
type RemoteConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Owner          string        `yaml:"owner"`              // Repository owner
	Repo           string        `yaml:"repo"`               // Repository name
	Path           string        `yaml:"path"`               // File path of the shared document
	Branch         string        `yaml:"branch,omitempty"`   // Branch, empty for the default
	BaseURL        string        `yaml:"base_url,omitempty"` // Optional custom endpoint (e.g., for proxies)
	TokenEncrypted string        `yaml:"token_encrypted"`    // Bearer token, encrypted at rest
	Timeout        time.Duration `yaml:"timeout"`            // Per-request deadline
}

// SyncConfig holds synchronization policy.
type SyncConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`     // Remote fetch cadence
	DrainInterval   time.Duration `yaml:"drain_interval"`    // Background queue drain cadence
	MergeTolerance  time.Duration `yaml:"merge_tolerance"`   // Remote must be newer by more than this to win
	StalenessWindow time.Duration `yaml:"staleness_window"`  // Pending markers older than this are swept
	RetentionPeriod time.Duration `yaml:"retention_period"`  // Records older than this are purged
	MaxRetries      int           `yaml:"max_retries"`       // Queue pushes before escalation
	MaxWriteRetries int           `yaml:"max_write_retries"` // Hash-mismatch retries inside one write
	BackoffBase     time.Duration `yaml:"backoff_base"`      // Base for the queue's exponential backoff
}

// DatabaseConfig holds local cache storage settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite file path
}

// LoggingConfig holds configuration for application logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ObservabilityConfig holds configuration for observability features.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`       // Whether tracing is enabled
	ExporterType string  `yaml:"exporter_type"` // none, stdout, otlp
	OTLPEndpoint string  `yaml:"otlp_endpoint"` // OTLP collector endpoint
	SampleRate   float64 `yaml:"sample_rate"`   // Sampling rate (0.0 to 1.0)
	ServiceName  string  `yaml:"service_name"`  // Service name for traces
}

// Default configuration values.
const (
	DefaultRemoteTimeout   = 15 * time.Second
	DefaultPollInterval    = 20 * time.Second
	DefaultDrainInterval   = 10 * time.Second
	DefaultMergeTolerance  = time.Second
	DefaultStalenessWindow = 5 * time.Minute
	DefaultRetentionPeriod = 72 * time.Hour
	DefaultMaxRetries      = 3
	DefaultMaxWriteRetries = 5
	DefaultBackoffBase     = time.Second
	DefaultDatabasePath    = "~/.yardsync/yardsync.db"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"

	// Observability defaults
	DefaultTracingEnabled      = false
	DefaultTracingExporterType = "none"
	DefaultTracingSampleRate   = 1.0
	DefaultTracingServiceName  = "yardsync"
)

// Valid log levels.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Valid log formats.
var validLogFormats = map[string]bool{
	"json": true,
	"text": true,
}

// Valid tracing exporter types.
var validTracingExporterTypes = map[string]bool{
	"none":   true,
	"stdout": true,
	"otlp":   true,
}

// NewDefaultConfig creates a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			Enabled: false,
			Timeout: DefaultRemoteTimeout,
		},
		Sync: SyncConfig{
			PollInterval:    DefaultPollInterval,
			DrainInterval:   DefaultDrainInterval,
			MergeTolerance:  DefaultMergeTolerance,
			StalenessWindow: DefaultStalenessWindow,
			RetentionPeriod: DefaultRetentionPeriod,
			MaxRetries:      DefaultMaxRetries,
			MaxWriteRetries: DefaultMaxWriteRetries,
			BackoffBase:     DefaultBackoffBase,
		},
		Database: DatabaseConfig{
			Path: DefaultDatabasePath,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:      DefaultTracingEnabled,
				ExporterType: DefaultTracingExporterType,
				SampleRate:   DefaultTracingSampleRate,
				ServiceName:  DefaultTracingServiceName,
			},
		},
	}
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Remote.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("remote: %w", err))
	}

	if err := c.Sync.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if err := c.Observability.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("observability: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks if the RemoteConfig is valid.
func (r *RemoteConfig) Validate() error {
	var errs []error

	if r.Enabled {
		if r.Owner == "" {
			errs = append(errs, errors.New("owner is required when enabled"))
		}
		if r.Repo == "" {
			errs = append(errs, errors.New("repo is required when enabled"))
		}
		if r.Path == "" {
			errs = append(errs, errors.New("path is required when enabled"))
		}
		if r.TokenEncrypted == "" {
			errs = append(errs, errors.New("token_encrypted is required when enabled"))
		}
	}

	if r.Timeout < 0 {
		errs = append(errs, errors.New("timeout must be non-negative"))
	}

	if r.BaseURL != "" {
		parsedURL, err := url.Parse(r.BaseURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid base_url: %w", err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errs = append(errs, errors.New("base_url must use http or https scheme"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks if the SyncConfig is valid.
func (s *SyncConfig) Validate() error {
	var errs []error

	if s.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}
	if s.DrainInterval <= 0 {
		errs = append(errs, errors.New("drain_interval must be positive"))
	}
	if s.MergeTolerance < 0 {
		errs = append(errs, errors.New("merge_tolerance must be non-negative"))
	}
	if s.StalenessWindow <= 0 {
		errs = append(errs, errors.New("staleness_window must be positive"))
	}
	if s.RetentionPeriod <= 0 {
		errs = append(errs, errors.New("retention_period must be positive"))
	}
	if s.MaxRetries <= 0 {
		errs = append(errs, errors.New("max_retries must be positive"))
	}
	if s.MaxWriteRetries <= 0 {
		errs = append(errs, errors.New("max_write_retries must be positive"))
	}
	if s.BackoffBase <= 0 {
		errs = append(errs, errors.New("backoff_base must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks if the DatabaseConfig is valid.
func (d *DatabaseConfig) Validate() error {
	if d.Path == "" {
		return errors.New("path is required")
	}
	return nil
}

// Validate checks if the LoggingConfig is valid.
func (l *LoggingConfig) Validate() error {
	var errs []error

	if l.Level != "" && !validLogLevels[l.Level] {
		errs = append(errs, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", l.Level))
	}

	if l.Format != "" && !validLogFormats[l.Format] {
		errs = append(errs, fmt.Errorf("invalid log format %q: must be one of json, text", l.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks if the ObservabilityConfig is valid.
func (o *ObservabilityConfig) Validate() error {
	if err := o.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return nil
}

// Validate checks if the TracingConfig is valid.
func (t *TracingConfig) Validate() error {
	var errs []error

	if t.Enabled {
		if t.ExporterType != "" && !validTracingExporterTypes[t.ExporterType] {
			errs = append(errs, fmt.Errorf("invalid exporter_type %q: must be one of none, stdout, otlp", t.ExporterType))
		}
		if t.ExporterType == "otlp" && t.OTLPEndpoint == "" {
			errs = append(errs, errors.New("otlp_endpoint is required when exporter_type is 'otlp'"))
		}
		if t.SampleRate < 0 || t.SampleRate > 1 {
			errs = append(errs, errors.New("sample_rate must be between 0.0 and 1.0"))
		}
		if t.ServiceName == "" {
			errs = append(errs, errors.New("service_name is required when tracing is enabled"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
