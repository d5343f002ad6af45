// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Engine        EngineConfig        `yaml:"engine"`
	Store         StoreConfig         `yaml:"store"`
	Notifier      NotifierConfig      `yaml:"notifier"`
	Idempotency   IdempotencyConfig   `yaml:"idempotency"`
	Monitor       MonitorConfig       `yaml:"monitor"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// CatalogConfig points at the requirement catalog and stakeholder directory
// files. Empty paths select the built-in standard sets.
type CatalogConfig struct {
	RequirementsFile string `yaml:"requirements_file"`
	DirectoryFile    string `yaml:"directory_file"`
}

// EngineConfig holds approval policy constants.
type EngineConfig struct {
	EscalationGrace    time.Duration `yaml:"escalation_grace"`
	ApproachingDays    int           `yaml:"approaching_days"`
	GoLiveRiskDays     int           `yaml:"go_live_risk_days"`
	GoLiveRiskProgress float64       `yaml:"go_live_risk_progress"`
	RequireProfiles    bool          `yaml:"require_profiles"`
	NotifyTimeout      time.Duration `yaml:"notify_timeout"`
}

// StoreConfig describes workflow persistence settings.
type StoreConfig struct {
	Driver          string        `yaml:"driver"`
	DSNEnv          string        `yaml:"dsn_env"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NotifierConfig describes the out-of-band notification channel.
type NotifierConfig struct {
	Driver  string        `yaml:"driver"`
	AddrEnv string        `yaml:"addr_env"`
	DB      int           `yaml:"db"`
	Channel string        `yaml:"channel"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig describes the circuit breaker in front of the notifier.
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
}

// IdempotencyConfig describes Idempotency-Key handling for POST requests.
type IdempotencyConfig struct {
	Enabled bool          `yaml:"enabled"`
	Driver  string        `yaml:"driver"`
	AddrEnv string        `yaml:"addr_env"`
	TTL     time.Duration `yaml:"ttl"`
}

// MonitorConfig describes the background deadline monitor.
type MonitorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Correlation-Id", "X-Stakeholder-Id", "Idempotency-Key"},
				MaxAge:         86400,
			},
		},
		Engine: EngineConfig{
			EscalationGrace:    72 * time.Hour,
			ApproachingDays:    2,
			GoLiveRiskDays:     14,
			GoLiveRiskProgress: 80,
			NotifyTimeout:      10 * time.Second,
		},
		Store: StoreConfig{
			Driver:          "memory",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Notifier: NotifierConfig{
			Driver:  "log",
			Channel: "signoff.notifications",
			Breaker: BreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				SuccessThreshold: 2,
				OpenTimeout:      30 * time.Second,
			},
		},
		Idempotency: IdempotencyConfig{
			Enabled: true,
			Driver:  "memory",
			TTL:     24 * time.Hour,
		},
		Monitor: MonitorConfig{
			Interval: 15 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

var (
	validStoreDrivers    = map[string]bool{"memory": true, "postgres": true}
	validNotifierDrivers = map[string]bool{"log": true, "redis": true, "none": true}
	validIdemDrivers     = map[string]bool{"memory": true, "redis": true}
)

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Engine.EscalationGrace <= 0 {
		errs = append(errs, "engine.escalation_grace must be positive")
	}
	if c.Engine.ApproachingDays < 0 {
		errs = append(errs, "engine.approaching_days must not be negative")
	}
	if c.Engine.GoLiveRiskProgress < 0 || c.Engine.GoLiveRiskProgress > 100 {
		errs = append(errs, "engine.go_live_risk_progress must be between 0 and 100")
	}
	if !validStoreDrivers[c.Store.Driver] {
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.DSNEnv == "" {
		errs = append(errs, "store.dsn_env is required for the postgres driver")
	}
	if !validNotifierDrivers[c.Notifier.Driver] {
		errs = append(errs, fmt.Sprintf("notifier.driver %q is not supported", c.Notifier.Driver))
	}
	if c.Notifier.Driver == "redis" && c.Notifier.AddrEnv == "" {
		errs = append(errs, "notifier.addr_env is required for the redis driver")
	}
	if c.Idempotency.Enabled {
		if !validIdemDrivers[c.Idempotency.Driver] {
			errs = append(errs, fmt.Sprintf("idempotency.driver %q is not supported", c.Idempotency.Driver))
		}
		if c.Idempotency.Driver == "redis" && c.Idempotency.AddrEnv == "" {
			errs = append(errs, "idempotency.addr_env is required for the redis driver")
		}
		if c.Idempotency.TTL <= 0 {
			errs = append(errs, "idempotency.ttl must be positive")
		}
	}
	if c.Monitor.Enabled && c.Monitor.Interval <= 0 {
		errs = append(errs, "monitor.interval must be positive when the monitor is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads SIGNOFF_* environment variables and overrides config
// values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SIGNOFF_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SIGNOFF_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("SIGNOFF_NOTIFIER_DRIVER"); v != "" {
		cfg.Notifier.Driver = v
	}
	if v := os.Getenv("SIGNOFF_IDEMPOTENCY_DRIVER"); v != "" {
		cfg.Idempotency.Driver = v
	}
	if v := os.Getenv("SIGNOFF_CATALOG_REQUIREMENTS_FILE"); v != "" {
		cfg.Catalog.RequirementsFile = v
	}
	if v := os.Getenv("SIGNOFF_CATALOG_DIRECTORY_FILE"); v != "" {
		cfg.Catalog.DirectoryFile = v
	}
	if v := os.Getenv("SIGNOFF_ENGINE_REQUIRE_PROFILES"); v != "" {
		cfg.Engine.RequireProfiles = v == "true" || v == "1"
	}
	if v := os.Getenv("SIGNOFF_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
}
