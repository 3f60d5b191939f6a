package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vango-dev/spindle/internal/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvAddr, "")
	t.Setenv(EnvRedisAddr, "")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, DefaultAddr)
	}
	if cfg.Server.WSPath != DefaultWSPath {
		t.Errorf("Server.WSPath = %q, want %q", cfg.Server.WSPath, DefaultWSPath)
	}
	if cfg.Render.FetchTimeout.Duration != DefaultFetchTimeout {
		t.Errorf("Render.FetchTimeout = %v, want %v", cfg.Render.FetchTimeout, DefaultFetchTimeout)
	}
	if cfg.Cache.Backend != CacheMemory {
		t.Errorf("Cache.Backend = %q, want %q", cfg.Cache.Backend, CacheMemory)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Path() != "" || cfg.Dir() != "" {
		t.Errorf("Path() = %q, want empty", cfg.Path())
	}
	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	dir := writeConfig(t, `
[server]
addr = "127.0.0.1:9000"
read_timeout = "3s"
client_script = "/static/client.js"

[render]
pretty = true
fetch_timeout = "250ms"

[render.env]
api = "https://api.example.com"

[cache]
backend = "redis"
redis_addr = "localhost:6379"
ttl = "1m"

[publish]
bucket = "site"
prefix = "pages/"

[log]
level = "debug"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout.Duration != 3*time.Second {
		t.Errorf("Server.ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout.Duration != 15*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want the default", cfg.Server.WriteTimeout)
	}
	if cfg.Server.WSPath != DefaultWSPath {
		t.Errorf("Server.WSPath = %q, want the default", cfg.Server.WSPath)
	}
	if !cfg.Render.Pretty || cfg.Render.FetchTimeout.Duration != 250*time.Millisecond {
		t.Errorf("Render = %+v", cfg.Render)
	}
	if cfg.Render.Env["api"] != "https://api.example.com" {
		t.Errorf("Render.Env = %v", cfg.Render.Env)
	}
	if cfg.Cache.Backend != CacheRedis || cfg.Cache.TTL.Duration != time.Minute {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if !cfg.HasPublishTarget() {
		t.Error("HasPublishTarget() = false, want true")
	}
	if cfg.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", cfg.Dir(), dir)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"invalid toml", "[server\naddr = 1", "E100"},
		{"bad duration", "[server]\nread_timeout = \"soon\"", "E100"},
		{"unknown key", "[server]\nport = 3000", "E103"},
		{"unknown section", "[dev]\nport = 3000", "E103"},
		{"addr without port", "[server]\naddr = \"localhost\"", "E101"},
		{"relative ws path", "[server]\nws_path = \"ws\"", "E101"},
		{"zero fetch timeout", "[render]\nfetch_timeout = \"0s\"", "E101"},
		{"bad env key", "[render.env]\n\"a b\" = \"x\"", "E101"},
		{"unknown backend", "[cache]\nbackend = \"memcached\"", "E102"},
		{"redis without addr", "[cache]\nbackend = \"redis\"", "E101"},
		{"bad log level", "[log]\nlevel = \"loud\"", "E101"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load() error = nil")
			}
			if got := errors.Code(err); got != tt.wantCode {
				t.Errorf("code = %q, want %q (%v)", got, tt.wantCode, err)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvAddr, ":9999")
	t.Setenv(EnvRedisAddr, "redis:6379")

	cfg, err := Load(writeConfig(t, "[server]\naddr = \":8081\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Server.Addr = %q, want the environment value", cfg.Server.Addr)
	}
	if cfg.Cache.Backend != CacheRedis || cfg.Cache.RedisAddr != "redis:6379" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatal(err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("Duration = %v", d.Duration)
	}
	out, _ := d.MarshalText()
	if string(out) != "1m30s" {
		t.Errorf("MarshalText() = %q", out)
	}
}
