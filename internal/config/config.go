package config

import (
	stderrors "errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vango-dev/spindle/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "spindle.toml"

	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"

	// DefaultWSPath is where live sessions connect.
	DefaultWSPath = "/_spindle/ws"

	// DefaultFetchTimeout bounds how long a render waits for fetches.
	DefaultFetchTimeout = 5 * time.Second

	// DefaultCacheTTL is how long fetch results are shared between renders.
	DefaultCacheTTL = 30 * time.Second

	// Cache backends.
	CacheMemory = "memory"
	CacheRedis  = "redis"

	// Environment overrides.
	EnvAddr      = "SPINDLE_ADDR"
	EnvRedisAddr = "SPINDLE_REDIS_ADDR"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// Duration is a time.Duration written as a string such as "15s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config represents spindle.toml.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Render  RenderConfig  `toml:"render"`
	Cache   CacheConfig   `toml:"cache"`
	Publish PublishConfig `toml:"publish"`
	Log     LogConfig     `toml:"log"`

	// configPath is where the config was loaded from.
	configPath string
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Addr is the listen address, host:port.
	Addr string `toml:"addr"`

	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`

	// WSPath is where live sessions connect.
	WSPath string `toml:"ws_path"`

	// ClientScript is the browser runtime injected into full documents.
	ClientScript string `toml:"client_script"`
}

// RenderConfig configures server-side rendering.
type RenderConfig struct {
	// Pretty indents the command tables printed by the CLI.
	Pretty bool `toml:"pretty"`

	// FetchTimeout bounds how long a render waits for pending fetches.
	FetchTimeout Duration `toml:"fetch_timeout"`

	// Env is exposed to the browser as data-env-* attributes.
	Env map[string]string `toml:"env"`
}

// CacheConfig configures the fetch cache shared between renders.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend   string   `toml:"backend"`
	RedisAddr string   `toml:"redis_addr"`
	TTL       Duration `toml:"ttl"`
}

// PublishConfig configures where `spindle render` writes pages. Dir wins
// over Bucket when both are set.
type PublishConfig struct {
	Dir    string `toml:"dir"`
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
	Region string `toml:"region"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         DefaultAddr,
			ReadTimeout:  Duration{15 * time.Second},
			WriteTimeout: Duration{15 * time.Second},
			WSPath:       DefaultWSPath,
		},
		Render: RenderConfig{
			FetchTimeout: Duration{DefaultFetchTimeout},
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     Duration{DefaultCacheTTL},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads spindle.toml from dir. Defaults are used when the file does not
// exist. Environment overrides are applied and the result validated.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); stderrors.Is(err, fs.ErrNotExist) {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, cfg.Validate()
	}
	return LoadFile(path)
}

// LoadFile reads the configuration from path.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.New("E100").
			WithDetail("Failed to parse " + path).
			WithSuggestion("Check that the file is valid TOML").
			Wrap(err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, errors.New("E103").
			WithDetailf("%s: %s", filepath.Base(path), strings.Join(keys, ", ")).
			WithSuggestion("Remove the key or check its spelling")
	}

	cfg.configPath = path
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies environment overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Cache.RedisAddr = v
		c.Cache.Backend = CacheRedis
	}
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return errors.New("E101").
			WithDetailf("server.addr %q is not host:port", c.Server.Addr).
			WithSuggestion(`Use host:port, for example ":8080"`)
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return errors.New("E101").
			WithDetailf("server.ws_path %q must start with /", c.Server.WSPath)
	}
	if c.Server.ReadTimeout.Duration < 0 || c.Server.WriteTimeout.Duration < 0 {
		return errors.New("E101").WithDetail("server timeouts must not be negative")
	}
	if c.Render.FetchTimeout.Duration <= 0 {
		return errors.New("E101").
			WithDetailf("render.fetch_timeout %s must be positive", c.Render.FetchTimeout.Duration)
	}
	for key := range c.Render.Env {
		if key == "" || strings.ContainsAny(key, " \t\"'<>=/") {
			return errors.New("E101").
				WithDetailf("render.env key %q cannot be used as an attribute name", key)
		}
	}

	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New("E101").
				WithDetail("cache.backend is redis but cache.redis_addr is empty").
				WithSuggestion("Set cache.redis_addr or " + EnvRedisAddr)
		}
	default:
		return errors.New("E102").WithDetailf("cache.backend is %q", c.Cache.Backend)
	}
	if c.Cache.TTL.Duration < 0 {
		return errors.New("E101").WithDetail("cache.ttl must not be negative")
	}

	level := strings.ToLower(c.Log.Level)
	valid := false
	for _, l := range logLevels {
		if level == l {
			valid = true
		}
	}
	if !valid {
		return errors.New("E101").
			WithDetailf("log.level %q is not one of %s", c.Log.Level, strings.Join(logLevels, ", "))
	}
	return nil
}

// Path returns the path the config was loaded from, or "" for defaults.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// HasPublishTarget reports whether pages can be published without --out.
func (c *Config) HasPublishTarget() bool {
	return c.Publish.Dir != "" || c.Publish.Bucket != ""
}
