package ssr

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vango-dev/spindle/pkg/dom"
	"github.com/vango-dev/spindle/pkg/fetch"
)

// Driver is a headless dom.Driver. It replays commands into a Tree and
// performs fetches on the server. Timers never fire during a render.
type Driver struct {
	tree   *Tree
	fetch  *fetch.Dedupe
	cache  FetchCache
	logger *slog.Logger

	mu       sync.Mutex
	location string
	pushed   bool
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithFetcher sets how requests are performed.
func WithFetcher(fn fetch.Func) DriverOption {
	return func(d *Driver) { d.fetch = fetch.NewDedupe(fn) }
}

// WithCache shares successful results across renders.
func WithCache(c FetchCache) DriverOption {
	return func(d *Driver) { d.cache = c }
}

// WithDriverLogger sets the logger.
func WithDriverLogger(logger *slog.Logger) DriverOption {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDriver returns a driver whose location is path.
func NewDriver(path string, opts ...DriverOption) *Driver {
	d := &Driver{location: path, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	if d.fetch == nil {
		d.fetch = fetch.NewDedupe(fetch.HTTP(nil))
	}
	d.tree = NewTree(d.logger)
	return d
}

// Tree returns the replayed document.
func (d *Driver) Tree() *Tree {
	return d.tree
}

// Apply implements dom.Driver.
func (d *Driver) Apply(cmds []dom.Command) {
	d.tree.Apply(cmds)
}

// Location implements dom.Driver.
func (d *Driver) Location() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.location
}

// PushLocation implements dom.Driver. The new location is reported by
// Redirected once the render is done.
func (d *Driver) PushLocation(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if path != d.location {
		d.location = path
		d.pushed = true
	}
}

// Redirected reports whether the application navigated during the render.
func (d *Driver) Redirected() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.location, d.pushed
}

// OnLocationChange implements dom.Driver. Nothing changes the location from
// outside during a render.
func (d *Driver) OnLocationChange(func(string)) func() {
	return func() {}
}

// SetInterval implements dom.Driver. Timers do not run during a render.
func (d *Driver) SetInterval(time.Duration, func()) func() {
	return func() {}
}

// Fetch implements dom.Driver.
func (d *Driver) Fetch(ctx context.Context, req dom.FetchRequest) dom.FetchResult {
	key := req.Key()
	if d.cache != nil {
		if res, ok := d.cache.Get(ctx, key); ok {
			return res
		}
	}
	res := d.fetch.Do(ctx, req)
	if d.cache != nil && res.OK() {
		d.cache.Set(ctx, key, res)
	}
	if res.Err != nil {
		d.logger.Warn("ssr: fetch failed", "url", req.URL, "error", res.Err)
	}
	return res
}
