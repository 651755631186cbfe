// Package config manages server configuration: the quote file, bind address,
// logging and the optional metrics endpoint.
// Configuration can be loaded from files (JSON/YAML), environment variables, or code.
// It is read once at startup; there is no reload.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	qerrors "github.com/lensvol/qotd/src/errors"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "QOTD"

// Config represents the complete server configuration.
type Config struct {
	// QuotesConfig locates the quote file and its index.
	QuotesConfig QuotesConfig `json:"quotes,omitempty" yaml:"quotes,omitempty"`

	// ServerConfig specifies listener settings shared by both protocols.
	ServerConfig ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`

	// LogConfig specifies the log level.
	LogConfig LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	// MetricsConfig specifies the optional Prometheus endpoint.
	MetricsConfig MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// QuotesConfig defines where quotes are loaded from.
type QuotesConfig struct {
	// File is the base quote file. The index is File + IndexSuffix.
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// IndexSuffix is appended to File to locate the index.
	// Default: ".dat"
	IndexSuffix string `json:"index_suffix,omitempty" yaml:"index_suffix,omitempty"`
}

// ServerConfig defines listener parameters.
type ServerConfig struct {
	// BindAddr is the host:port both responders bind to.
	// Default: "127.0.0.1:17"
	BindAddr string `json:"bind_addr,omitempty" yaml:"bind_addr,omitempty"`

	// DisableStream turns off the TCP responder.
	DisableStream bool `json:"disable_stream,omitempty" yaml:"disable_stream,omitempty"`

	// DisableDatagram turns off the UDP responder.
	DisableDatagram bool `json:"disable_datagram,omitempty" yaml:"disable_datagram,omitempty"`

	// WriteTimeoutMs bounds each TCP quote write. Zero means no deadline.
	// Default: 10000 ms
	WriteTimeoutMs int `json:"write_timeout_ms" yaml:"write_timeout_ms"`

	// DatagramBufferSize is the receive buffer for one inbound datagram.
	// Default: 512
	DatagramBufferSize int `json:"datagram_buffer_size,omitempty" yaml:"datagram_buffer_size,omitempty"`
}

// LogConfig defines logging parameters.
type LogConfig struct {
	// Level is any logrus level name: trace, debug, info, warn, error, fatal or panic.
	// Default: "info"
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
}

// MetricsConfig defines the metrics exporter.
type MetricsConfig struct {
	// Enabled starts the /metrics and /health HTTP endpoint.
	// Default: false
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Addr is the host:port of the metrics endpoint.
	// Default: "127.0.0.1:9117"
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// WriteTimeout returns ServerConfig.WriteTimeoutMs as a duration.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.ServerConfig.WriteTimeoutMs) * time.Millisecond
}

// Manager manages configuration loading and validation.
type Manager interface {
	// Load loads configuration from a file (JSON or YAML).
	// Returns error if the file doesn't exist or is invalid.
	Load(ctx context.Context, path string) error

	// LoadFromEnv loads configuration from environment variables.
	// Variables are prefixed with QOTD_ (e.g., QOTD_BIND).
	// Env vars override file config if both are present.
	LoadFromEnv(ctx context.Context) error

	// SetDefaults sets default values for any unspecified fields.
	SetDefaults()

	// Validate checks that the configuration is valid and consistent.
	Validate() error

	// Get returns the current configuration.
	Get() *Config

	// Save writes the current configuration to a file.
	Save(ctx context.Context, path string) error
}

// ManagerImpl is a default implementation of Manager.
type ManagerImpl struct {
	config *Config
}

// NewManager creates a new configuration manager.
func NewManager() Manager {
	return &ManagerImpl{
		config: DefaultConfig(),
	}
}

// Load loads configuration from a file.
func (m *ManagerImpl) Load(ctx context.Context, path string) error {
	if path == "" {
		return qerrors.NewConfigError("config path is empty", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return qerrors.NewConfigError("read config file", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var cfg *Config
	switch ext {
	case ".json":
		cfg, err = LoadJSON(data)
	case ".yaml", ".yml":
		cfg, err = LoadYAML(data)
	default:
		return qerrors.NewConfigError(fmt.Sprintf("unsupported config file extension: %s", ext), nil)
	}
	if err != nil {
		return qerrors.NewConfigError("parse config", err)
	}

	m.config = cfg
	m.SetDefaults()
	return m.Validate()
}

// envSpec lists the variables LoadFromEnv understands, relative to EnvPrefix.
type envSpec struct {
	QuotesFile         string `envconfig:"QUOTES_FILE"`
	IndexSuffix        string `envconfig:"INDEX_SUFFIX"`
	Bind               string `envconfig:"BIND"`
	DisableTCP         bool   `envconfig:"DISABLE_TCP"`
	DisableUDP         bool   `envconfig:"DISABLE_UDP"`
	WriteTimeoutMs     int    `envconfig:"WRITE_TIMEOUT_MS"`
	DatagramBufferSize int    `envconfig:"DATAGRAM_BUFFER_SIZE"`
	LogLevel           string `envconfig:"LOG_LEVEL"`
	MetricsEnabled     bool   `envconfig:"METRICS_ENABLED"`
	MetricsAddr        string `envconfig:"METRICS_ADDR"`
}

// LoadFromEnv loads configuration from environment variables.
// Unset variables leave the current value in place.
func (m *ManagerImpl) LoadFromEnv(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.config == nil {
		m.config = DefaultConfig()
	}

	c := m.config
	spec := envSpec{
		QuotesFile:         c.QuotesConfig.File,
		IndexSuffix:        c.QuotesConfig.IndexSuffix,
		Bind:               c.ServerConfig.BindAddr,
		DisableTCP:         c.ServerConfig.DisableStream,
		DisableUDP:         c.ServerConfig.DisableDatagram,
		WriteTimeoutMs:     c.ServerConfig.WriteTimeoutMs,
		DatagramBufferSize: c.ServerConfig.DatagramBufferSize,
		LogLevel:           c.LogConfig.Level,
		MetricsEnabled:     c.MetricsConfig.Enabled,
		MetricsAddr:        c.MetricsConfig.Addr,
	}
	if err := envconfig.Process(EnvPrefix, &spec); err != nil {
		return qerrors.NewConfigError("parse environment", err)
	}

	c.QuotesConfig.File = spec.QuotesFile
	c.QuotesConfig.IndexSuffix = spec.IndexSuffix
	c.ServerConfig.BindAddr = spec.Bind
	c.ServerConfig.DisableStream = spec.DisableTCP
	c.ServerConfig.DisableDatagram = spec.DisableUDP
	c.ServerConfig.WriteTimeoutMs = spec.WriteTimeoutMs
	c.ServerConfig.DatagramBufferSize = spec.DatagramBufferSize
	c.LogConfig.Level = spec.LogLevel
	c.MetricsConfig.Enabled = spec.MetricsEnabled
	c.MetricsConfig.Addr = spec.MetricsAddr

	m.SetDefaults()
	return m.Validate()
}

// SetDefaults fills empty fields with their defaults. WriteTimeoutMs is left
// alone since zero is a meaningful value there.
func (m *ManagerImpl) SetDefaults() {
	defaults := DefaultConfig()
	if m.config == nil {
		m.config = defaults
		return
	}

	if m.config.QuotesConfig.IndexSuffix == "" {
		m.config.QuotesConfig.IndexSuffix = defaults.QuotesConfig.IndexSuffix
	}
	if m.config.ServerConfig.BindAddr == "" {
		m.config.ServerConfig.BindAddr = defaults.ServerConfig.BindAddr
	}
	if m.config.ServerConfig.DatagramBufferSize == 0 {
		m.config.ServerConfig.DatagramBufferSize = defaults.ServerConfig.DatagramBufferSize
	}
	if m.config.LogConfig.Level == "" {
		m.config.LogConfig.Level = defaults.LogConfig.Level
	}
	if m.config.MetricsConfig.Addr == "" {
		m.config.MetricsConfig.Addr = defaults.MetricsConfig.Addr
	}
}

// Validate validates the configuration.
func (m *ManagerImpl) Validate() error {
	return ValidateConfig(m.config)
}

// Get returns the current configuration.
func (m *ManagerImpl) Get() *Config {
	return m.config
}

// Save writes the configuration to a file, as YAML for .yaml/.yml paths and
// JSON otherwise.
func (m *ManagerImpl) Save(ctx context.Context, path string) error {
	if path == "" {
		return qerrors.NewConfigError("config path is empty", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.config == nil {
		return qerrors.NewConfigError("no config to save", nil)
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(m.config)
	default:
		data, err = json.MarshalIndent(m.config, "", "  ")
	}
	if err != nil {
		return qerrors.NewConfigError("marshal config", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return qerrors.NewConfigError("write config", err)
	}
	return nil
}

// LoadJSON loads configuration from JSON bytes. Fields absent from data keep
// their DefaultConfig values.
func LoadJSON(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadYAML loads configuration from YAML bytes. Fields absent from data keep
// their DefaultConfig values.
func LoadYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns a configuration with all sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		QuotesConfig: QuotesConfig{
			IndexSuffix: ".dat",
		},
		ServerConfig: ServerConfig{
			BindAddr:           "127.0.0.1:17",
			WriteTimeoutMs:     10000,
			DatagramBufferSize: 512,
		},
		LogConfig: LogConfig{
			Level: "info",
		},
		MetricsConfig: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9117",
		},
	}
}
