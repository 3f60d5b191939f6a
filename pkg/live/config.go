package live

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vango-dev/spindle/pkg/fetch"
)

// Config configures live sessions.
type Config struct {
	// ReadTimeout is how long a connection may stay silent. Heartbeats keep
	// an idle browser inside it.
	ReadTimeout time.Duration

	// WriteTimeout bounds every frame write.
	WriteTimeout time.Duration

	// HandshakeTimeout bounds the wait for the ClientHello frame.
	HandshakeTimeout time.Duration

	// HeartbeatInterval is the period of server pings.
	HeartbeatInterval time.Duration

	// MaxMessageSize is the largest frame accepted from a browser.
	MaxMessageSize int64

	// MaxSessions limits concurrent sessions. Zero means unlimited.
	MaxSessions int

	// ReadBufferSize and WriteBufferSize size the websocket buffers.
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates the Origin header of upgrade requests. Nil
	// accepts same-origin requests only.
	CheckOrigin func(r *http.Request) bool

	// Fetcher performs requests made by session apps. Nil uses net/http.
	Fetcher fetch.Func

	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HandshakeTimeout:  5 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		MaxMessageSize:    1 << 20,
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = d.ReadTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = d.HandshakeTimeout
	}
	if out.HeartbeatInterval <= 0 {
		out.HeartbeatInterval = d.HeartbeatInterval
	}
	if out.MaxMessageSize <= 0 {
		out.MaxMessageSize = d.MaxMessageSize
	}
	if out.ReadBufferSize <= 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.WriteBufferSize <= 0 {
		out.WriteBufferSize = d.WriteBufferSize
	}
	if out.Fetcher == nil {
		out.Fetcher = fetch.HTTP(nil)
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}
