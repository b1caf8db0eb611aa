package server

import (
	"strings"
	"time"
)

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API.
	ApiKey string `mapstructure:"api_key" default:""`
	// ShutdownTimeoutSeconds bounds graceful shutdown.
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" default:"10"`
	// BodyLimitKB caps request bodies, mostly purchase batches.
	BodyLimitKB int `mapstructure:"body_limit_kb" default:"1024"`
}

// Address returns the listen address for Port.
func (c Config) Address() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// ShutdownTimeout returns ShutdownTimeoutSeconds as a duration, defaulting to 10s.
func (c Config) ShutdownTimeout() time.Duration {
	if c.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// BodyLimit returns the body limit in bytes, defaulting to 1MiB.
func (c Config) BodyLimit() int {
	if c.BodyLimitKB <= 0 {
		return 1024 * 1024
	}
	return c.BodyLimitKB * 1024
}
