// Package config provides configuration structures and loading logic for the
// pipeline engine binaries.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the global configuration for the engine binaries.
type Config struct {
	Catalog   CatalogConfig   `yaml:"catalog"`
	Engine    EngineConfig    `yaml:"engine"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Policy    PolicyConfig    `yaml:"policy"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CatalogConfig holds configuration for tool metadata loading.
type CatalogConfig struct {
	// Manifest is a single manifest file watched for hot reload.
	Manifest string `yaml:"manifest"`
	// ManifestDir is a directory of manifests loaded once at startup.
	ManifestDir string `yaml:"manifest_dir"`
	// Builtins controls registration of the in-process builtin tools.
	Builtins bool `yaml:"builtins"`
}

// EngineConfig holds execution defaults.
type EngineConfig struct {
	// DefaultTimeoutMS bounds a single tool invocation when the node config
	// does not name its own deadline.
	DefaultTimeoutMS int `yaml:"default_timeout_ms"`
	// BreakerMaxFailures is the consecutive-failure threshold per tool.
	BreakerMaxFailures int `yaml:"breaker_max_failures"`
	// BreakerCoolDownMS is how long an open circuit stays open.
	BreakerCoolDownMS int `yaml:"breaker_cooldown_ms"`
}

// PipelineConfig holds configuration for pipeline definition intake.
type PipelineConfig struct {
	// Dir is the spool directory the daemon watches for definitions.
	Dir string `yaml:"dir"`
}

// PolicyConfig holds configuration for the admission policy.
type PolicyConfig struct {
	// Dir contains the .rego modules loaded into the admission engine.
	Dir string `yaml:"dir"`
	// Entrypoint overrides the default decision path.
	Entrypoint string `yaml:"entrypoint"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	Environment  string `yaml:"environment"`
}

// MetricsConfig holds configuration for the Prometheus scrape endpoint.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads configuration from a file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		// Defaults
		Catalog: CatalogConfig{
			Builtins: true,
		},
		Engine: EngineConfig{
			DefaultTimeoutMS:   60_000,
			BreakerMaxFailures: 5,
			BreakerCoolDownMS:  30_000,
		},
		Metrics: MetricsConfig{
			Address: ":19100",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	if path != "" {
		//nolint:gosec // Config file path is controlled by admin/operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("VISIONFLOW_MANIFEST"); val != "" {
		cfg.Catalog.Manifest = val
	}
	if val := os.Getenv("VISIONFLOW_MANIFEST_DIR"); val != "" {
		cfg.Catalog.ManifestDir = val
	}
	if val := os.Getenv("VISIONFLOW_PIPELINE_DIR"); val != "" {
		cfg.Pipeline.Dir = val
	}
	if val := os.Getenv("VISIONFLOW_POLICY_DIR"); val != "" {
		cfg.Policy.Dir = val
	}
	if val := os.Getenv("VISIONFLOW_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("VISIONFLOW_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
	if val := os.Getenv("VISIONFLOW_METRICS_ADDR"); val != "" {
		cfg.Metrics.Address = val
	}
	if val := os.Getenv("VISIONFLOW_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("VISIONFLOW_DEFAULT_TIMEOUT_MS"); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			cfg.Engine.DefaultTimeoutMS = ms
		}
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Engine.DefaultTimeoutMS <= 0 {
		return fmt.Errorf("engine.default_timeout_ms must be positive, got %d", c.Engine.DefaultTimeoutMS)
	}
	if c.Engine.BreakerMaxFailures < 0 {
		return fmt.Errorf("engine.breaker_max_failures must not be negative, got %d", c.Engine.BreakerMaxFailures)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}
