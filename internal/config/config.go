package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Contacts   ContactsConfig   `yaml:"contacts"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Transport  TransportConfig  `yaml:"transport"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	APIKey       string        `yaml:"api_key"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// StorageConfig contains campaign store settings
type StorageConfig struct {
	Path string `yaml:"path"`
}

// ContactsConfig contains contact directory settings
type ContactsConfig struct {
	Path string `yaml:"path"`
}

// DispatcherConfig contains dispatch driver settings
type DispatcherConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	Concurrency  int           `yaml:"concurrency"`
	SendTimeout  time.Duration `yaml:"send_timeout"`
	MaxRetries   int           `yaml:"max_retries"` // default retry budget for new campaigns
}

// TransportConfig contains WhatsApp gateway settings
type TransportConfig struct {
	Timeout  time.Duration   `yaml:"timeout"`
	Sessions []SessionConfig `yaml:"sessions"`
}

// SessionConfig describes one gateway session the engine can send through
type SessionConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}

	if c.Storage.Path == "" {
		c.Storage.Path = "/var/lib/wadrip/campaigns.db"
	}
	if c.Contacts.Path == "" {
		c.Contacts.Path = "/var/lib/wadrip/contacts.db"
	}

	if c.Dispatcher.PollInterval == 0 {
		c.Dispatcher.PollInterval = 10 * time.Second
	}
	if c.Dispatcher.BatchSize == 0 {
		c.Dispatcher.BatchSize = 20
	}
	if c.Dispatcher.Concurrency == 0 {
		c.Dispatcher.Concurrency = 4
	}
	if c.Dispatcher.SendTimeout == 0 {
		c.Dispatcher.SendTimeout = 30 * time.Second
	}
	if c.Dispatcher.MaxRetries == 0 {
		c.Dispatcher.MaxRetries = 3
	}

	if c.Transport.Timeout == 0 {
		c.Transport.Timeout = 30 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Transport.Sessions) == 0 {
		return fmt.Errorf("transport.sessions must not be empty")
	}
	seen := make(map[string]bool)
	for i, s := range c.Transport.Sessions {
		if s.Name == "" {
			return fmt.Errorf("transport.sessions[%d].name is required", i)
		}
		if s.BaseURL == "" {
			return fmt.Errorf("transport.sessions[%d].base_url is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate transport session name %q", s.Name)
		}
		seen[s.Name] = true
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}
