package ssr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/spindle"
	"github.com/vango-dev/spindle/pkg/cell"
	"github.com/vango-dev/spindle/pkg/dom"
	"github.com/vango-dev/spindle/pkg/fetch"
)

// DefaultTimeout bounds how long a render waits for pending fetches.
const DefaultTimeout = 5 * time.Second

// Observer is told how long each render took.
type Observer interface {
	Rendered(d time.Duration, err error)
}

// Page is the result of a render.
type Page struct {
	HTML string

	// Location is where the application ended up. It differs from the
	// requested path when the application navigated while rendering.
	Location   string
	Redirected bool

	// Complete is false when the render timed out waiting for fetches and
	// the page shows whatever state the application had reached.
	Complete bool
}

// Renderer renders applications to HTML.
type Renderer struct {
	timeout  time.Duration
	fetcher  fetch.Func
	cache    FetchCache
	docOpts  DocumentOptions
	appOpts  []spindle.Option
	logger   *slog.Logger
	tracer   trace.Tracer
	observer Observer
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithTimeout bounds how long a render waits for pending fetches.
func WithTimeout(d time.Duration) RendererOption {
	return func(r *Renderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRendererFetcher sets how requests are performed.
func WithRendererFetcher(fn fetch.Func) RendererOption {
	return func(r *Renderer) { r.fetcher = fn }
}

// WithFetchCache shares fetch results across renders.
func WithFetchCache(c FetchCache) RendererOption {
	return func(r *Renderer) { r.cache = c }
}

// WithDocument sets what is injected into full documents.
func WithDocument(opts DocumentOptions) RendererOption {
	return func(r *Renderer) { r.docOpts = opts }
}

// WithAppOptions passes options to every App the renderer creates.
func WithAppOptions(opts ...spindle.Option) RendererOption {
	return func(r *Renderer) { r.appOpts = append(r.appOpts, opts...) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RendererOption {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver attaches a render observer.
func WithObserver(o Observer) RendererOption {
	return func(r *Renderer) { r.observer = o }
}

// NewRenderer returns a renderer.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		timeout: DefaultTimeout,
		fetcher: fetch.HTTP(nil),
		logger:  slog.Default(),
		tracer:  otel.Tracer(spindle.TracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render runs mount against a headless driver located at path, waits until
// the application is idle and serializes the result. A root <html> element
// is rendered as a full document, anything else as a fragment.
func (r *Renderer) Render(ctx context.Context, path string, mount spindle.MountFunc) (page *Page, err error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "spindle.ssr.render", trace.WithAttributes(attribute.String("spindle.path", path)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if r.observer != nil {
			r.observer.Rendered(time.Since(start), err)
		}
	}()

	drvOpts := []DriverOption{WithFetcher(r.fetcher), WithDriverLogger(r.logger)}
	if r.cache != nil {
		drvOpts = append(drvOpts, WithCache(r.cache))
	}
	drv := NewDriver(path, drvOpts...)

	appOpts := append([]spindle.Option{spindle.WithLogger(r.logger), spindle.WithTracer(r.tracer)}, r.appOpts...)
	app := spindle.New(drv, appOpts...)
	defer app.Close()

	root, err := mountSafely(app, mount)
	if err != nil {
		return nil, err
	}
	app.Mount(root)

	waitCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	complete := true
	if err := app.RunUntilIdle(waitCtx); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		complete = false
		r.logger.Warn("ssr: render timed out, serving partial page", "path", path, "pending", app.Pending())
	}

	var b strings.Builder
	if root, ok := root.(interface{ Tag() string }); ok && root.Tag() == "html" {
		if err := RenderDocument(&b, drv.Tree(), r.docOpts); err != nil {
			return nil, err
		}
	} else {
		drv.Tree().WriteHTML(&b)
	}

	location, redirected := drv.Redirected()
	span.SetAttributes(attribute.Int("spindle.nodes", drv.Tree().Len()), attribute.Bool("spindle.complete", complete))
	return &Page{HTML: b.String(), Location: location, Redirected: redirected, Complete: complete}, nil
}

func mountSafely(app *spindle.App, mount spindle.MountFunc) (root dom.Node, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if _, ok := rec.(*cell.ReentrancyError); ok {
				panic(rec)
			}
			err = fmt.Errorf("ssr: mount panicked: %v", rec)
		}
	}()
	root = mount(app)
	if root == nil {
		return nil, errors.New("ssr: mount returned no node")
	}
	return root, nil
}
