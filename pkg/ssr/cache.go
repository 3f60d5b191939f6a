package ssr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vango-dev/spindle/pkg/dom"
)

// FetchCache stores successful fetch results across renders.
type FetchCache interface {
	Get(ctx context.Context, key string) (dom.FetchResult, bool)
	Set(ctx context.Context, key string, res dom.FetchResult)
}

type memoryEntry struct {
	res     dom.FetchResult
	expires time.Time
}

// MemoryCache is a process-local FetchCache.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryCache returns a cache whose entries live for ttl. A zero ttl keeps
// entries forever.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

// Get implements FetchCache.
func (c *MemoryCache) Get(_ context.Context, key string) (dom.FetchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return dom.FetchResult{}, false
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		delete(c.entries, key)
		return dom.FetchResult{}, false
	}
	return e.res, true
}

// Set implements FetchCache.
func (c *MemoryCache) Set(_ context.Context, key string, res dom.FetchResult) {
	var expires time.Time
	if c.ttl > 0 {
		expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{res: res, expires: expires}
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisCache is a FetchCache shared between server instances.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	onErr  func(error)
}

type redisEntry struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// NewRedisCache wraps client. Keys are stored under prefix.
func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration, onErr func(error)) *RedisCache {
	if onErr == nil {
		onErr = func(error) {}
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl, onErr: onErr}
}

// Get implements FetchCache. Redis failures count as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (dom.FetchResult, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.onErr(fmt.Errorf("ssr: redis get: %w", err))
		}
		return dom.FetchResult{}, false
	}
	var e redisEntry
	if err := json.Unmarshal(data, &e); err != nil {
		c.onErr(fmt.Errorf("ssr: redis entry %q: %w", key, err))
		return dom.FetchResult{}, false
	}
	return dom.FetchResult{Status: e.Status, Body: e.Body}, true
}

// Set implements FetchCache.
func (c *RedisCache) Set(ctx context.Context, key string, res dom.FetchResult) {
	data, err := json.Marshal(redisEntry{Status: res.Status, Body: res.Body})
	if err != nil {
		c.onErr(err)
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.onErr(fmt.Errorf("ssr: redis set: %w", err))
	}
}
