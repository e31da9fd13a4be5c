package config

import (
	"fmt"
	"time"
)

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host,omitempty" json:"host,omitempty"`
	Port int    `yaml:"port,omitempty" json:"port,omitempty"`

	// HeartbeatInterval between SSE comment frames, in seconds. Zero takes
	// the default; a negative value disables heartbeats.
	HeartbeatInterval int `yaml:"heartbeat_interval,omitempty" json:"heartbeat_interval,omitempty"`

	Auth AuthConfig `yaml:"auth,omitempty" json:"auth,omitempty"`
}

// AuthConfig configures request identity extraction.
type AuthConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// JWKSURL points at the identity provider's key set.
	JWKSURL string `yaml:"jwks_url,omitempty" json:"jwks_url,omitempty"`

	// Issuer expected in validated tokens.
	Issuer string `yaml:"issuer,omitempty" json:"issuer,omitempty"`

	// Audience expected in validated tokens.
	Audience string `yaml:"audience,omitempty" json:"audience,omitempty"`
}

// SetDefaults applies default values.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 15
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Auth.Enabled && c.Auth.JWKSURL == "" {
		return fmt.Errorf("auth.jwks_url is required when auth is enabled")
	}
	return nil
}

// Heartbeat returns the heartbeat interval as a duration, zero when
// heartbeats are disabled.
func (c *ServerConfig) Heartbeat() time.Duration {
	if c.HeartbeatInterval < 0 {
		return 0
	}
	return time.Duration(c.HeartbeatInterval) * time.Second
}
