// Package config defines the YAML configuration surface for the leadflow
// backend and its loading, defaulting, and validation rules.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Server        ServerConfig            `yaml:"server" json:"server"`
	LLM           LLMConfig               `yaml:"llm" json:"llm"`
	Database      DatabaseConfig          `yaml:"database" json:"database"`
	Agents        map[string]*AgentConfig `yaml:"agents,omitempty" json:"agents,omitempty"`
	Logging       LoggingConfig           `yaml:"logging" json:"logging"`
	Observability ObservabilityConfig     `yaml:"observability" json:"observability"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty" json:"level,omitempty"`

	// Format is "text" or "json".
	Format string `yaml:"format,omitempty" json:"format,omitempty"`

	// File routes log output to a file instead of stderr.
	File string `yaml:"file,omitempty" json:"file,omitempty"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

// ObservabilityConfig controls tracing and metrics.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Endpoint of the OTLP/gRPC collector, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// Exporter is "otlp" or "stdout".
	Exporter string `yaml:"exporter,omitempty" json:"exporter,omitempty"`

	// ServiceName reported on spans.
	ServiceName string `yaml:"service_name,omitempty" json:"service_name,omitempty"`
}

func (c *TracingConfig) SetDefaults() {
	if c.Exporter == "" {
		c.Exporter = "otlp"
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4317"
	}
	if c.ServiceName == "" {
		c.ServiceName = "leadflow"
	}
}

// MetricsConfig enables the Prometheus /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// SetDefaults applies defaults across all sections.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.LLM.SetDefaults()
	c.Database.SetDefaults()
	c.Logging.SetDefaults()
	c.Observability.Tracing.SetDefaults()
	for name, agent := range c.Agents {
		if agent == nil {
			agent = &AgentConfig{}
			c.Agents[name] = agent
		}
		agent.SetDefaults()
	}
}

// Validate checks all sections.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	for name, agent := range c.Agents {
		if err := agent.Validate(); err != nil {
			return fmt.Errorf("agents.%s: %w", name, err)
		}
	}
	return nil
}

// Load reads, env-expands, defaults, and validates a config file.
// ${VAR} and ${VAR:-default} references are expanded before parsing.
func Load(path string) (*Config, error) {
	LoadDotEnv()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a zero-config setup usable without a config file:
// sqlite database in the working directory, provider detected from the
// environment, server on the default port.
func Default() *Config {
	cfg := &Config{
		Database: DatabaseConfig{
			Driver:   "sqlite",
			Database: "leadflow.db",
		},
	}
	cfg.SetDefaults()
	return cfg
}
