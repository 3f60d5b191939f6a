package server

import (
	"log/slog"
	"time"

	"github.com/vango-dev/spindle/pkg/live"
)

// DefaultWSPath is where live sessions connect.
const DefaultWSPath = "/_spindle/ws"

// Config holds the HTTP server configuration.
type Config struct {
	// Address is the listen address.
	// Default: ":8080".
	Address string

	// WSPath is the live session endpoint.
	// Default: "/_spindle/ws".
	WSPath string

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 5 seconds.
	ReadHeaderTimeout time.Duration

	// ReadTimeout and WriteTimeout bound whole requests. Live sessions are
	// hijacked and are not affected.
	// Default: 15 seconds each.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// IdleTimeout closes idle keep-alive connections.
	// Default: 60 seconds.
	IdleTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10 seconds.
	ShutdownTimeout time.Duration

	// Pages restricts which paths are rendered. Patterns use the router's
	// :param and *catchall syntax. Other paths get a 404. Empty renders
	// every path.
	Pages []string

	// Live configures live sessions. Nil uses live.DefaultConfig.
	Live *live.Config

	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":8080",
		WSPath:            DefaultWSPath,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

func (c *Config) withDefaults() *Config {
	defaults := DefaultConfig()
	if c == nil {
		return defaults
	}
	out := *c
	if out.Address == "" {
		out.Address = defaults.Address
	}
	if out.WSPath == "" {
		out.WSPath = defaults.WSPath
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if out.ReadTimeout == 0 {
		out.ReadTimeout = defaults.ReadTimeout
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = defaults.WriteTimeout
	}
	if out.IdleTimeout == 0 {
		out.IdleTimeout = defaults.IdleTimeout
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}
