package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vango-dev/spindle/internal/config"
	"github.com/vango-dev/spindle/internal/demo"
	"github.com/vango-dev/spindle/internal/errors"
	"github.com/vango-dev/spindle/pkg/fetch"
	"github.com/vango-dev/spindle/pkg/ssr"
)

// fetcher answers demo catalogue requests in process and everything else
// over HTTP.
func fetcher(cfg *config.Config) fetch.Func {
	client := &http.Client{Timeout: cfg.Render.FetchTimeout.Duration}
	return demo.DefaultCatalogue.Fetcher(fetch.HTTP(client))
}

// fetchCache builds the cache configured in [cache]. An unreachable redis
// falls back to memory so rendering keeps working.
func fetchCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ssr.FetchCache, func()) {
	ttl := cfg.Cache.TTL.Duration
	if cfg.Cache.Backend != config.CacheRedis {
		return ssr.NewMemoryCache(ttl), func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("falling back to the memory fetch cache",
			"error", errors.New("E301").WithDetailf("redis at %s", cfg.Cache.RedisAddr).Wrap(err).FormatCompact(),
			"cause", err)
		client.Close()
		return ssr.NewMemoryCache(ttl), func() {}
	}

	onErr := func(err error) {
		logger.Warn("fetch cache error", "code", "E301", "error", err)
	}
	return ssr.NewRedisCache(client, "spindle:fetch:", ttl, onErr), func() { client.Close() }
}

// rendererOptions are shared by serve and render.
func rendererOptions(cfg *config.Config, logger *slog.Logger, cache ssr.FetchCache) []ssr.RendererOption {
	return []ssr.RendererOption{
		ssr.WithLogger(logger),
		ssr.WithTimeout(cfg.Render.FetchTimeout.Duration),
		ssr.WithFetchCache(cache),
		ssr.WithDocument(ssr.DocumentOptions{
			Env:       cfg.Render.Env,
			ScriptSrc: cfg.Server.ClientScript,
		}),
	}
}
