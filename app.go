// Package spindle ties a reactive graph, a document and a driver into an
// application loop.
//
// All reactive and document work runs on the loop. Asynchronous work, such as
// fetches and timers, runs on its own goroutine and re-enters the loop with
// Dispatch. The dispatched closure usually sets a Value, which drives the
// whole cascade before the next closure runs. Commands are flushed to the
// driver after every closure.
//
//	app := spindle.New(driver)
//	count := reactive.NewValue(app.Graph(), 0)
//	app.Mount(dom.NewElement(app.Document(), "button").
//		OnClick(func() { count.Set(count.Peek() + 1) }).
//		Child(dom.NewTextComputed(app.Document(), reactive.Map[int, string](count, strconv.Itoa))))
//	err := app.Run(ctx)
package spindle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/spindle/pkg/cell"
	"github.com/vango-dev/spindle/pkg/dom"
	"github.com/vango-dev/spindle/pkg/reactive"
)

// TracerName is the name spans are recorded under.
const TracerName = "spindle"

// ErrClosed is returned by Run once the app has been closed.
var ErrClosed = errors.New("spindle: app closed")

// MountFunc builds an application's root node. It runs on the loop of a
// freshly created app, before the app starts running.
type MountFunc func(app *App) dom.Node

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger used by the app, its graph and its document.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithGraphObserver attaches an observer to the app's graph.
func WithGraphObserver(o reactive.Observer) Option {
	return func(a *App) { a.graphObserver = o }
}

// WithDocumentObserver attaches an observer to the app's document.
func WithDocumentObserver(o dom.Observer) Option {
	return func(a *App) { a.docObserver = o }
}

// WithTracer sets the tracer used for fetch spans.
func WithTracer(t trace.Tracer) Option {
	return func(a *App) {
		if t != nil {
			a.tracer = t
		}
	}
}

// App owns one graph, one document and one driver.
type App struct {
	graph  *reactive.Graph
	doc    *dom.Document
	driver dom.Driver

	logger        *slog.Logger
	tracer        trace.Tracer
	graphObserver reactive.Observer
	docObserver   dom.Observer

	mu      sync.Mutex
	queue   []func()
	pending int // async tasks started but not yet dispatched back
	closed  bool
	wake    chan struct{}

	ctx     context.Context
	cancel  context.CancelFunc
	cleanup []func()
}

// New creates an app rendering into driver.
func New(driver dom.Driver, opts ...Option) *App {
	a := &App{
		driver: driver,
		logger: slog.Default(),
		tracer: otel.Tracer(TracerName),
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.graph = reactive.NewGraph(reactive.WithLogger(a.logger), reactive.WithObserver(a.graphObserver))
	a.doc = dom.NewDocument(driver, dom.WithLogger(a.logger), dom.WithObserver(a.docObserver))
	return a
}

// Graph returns the app's dependency graph.
func (a *App) Graph() *reactive.Graph { return a.graph }

// Document returns the app's document.
func (a *App) Document() *dom.Document { return a.doc }

// Driver returns the driver the app renders into.
func (a *App) Driver() dom.Driver { return a.driver }

// Logger returns the app's logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Context is cancelled when the app is closed.
func (a *App) Context() context.Context { return a.ctx }

// Mount attaches root to the document and flushes the resulting commands.
// It must be called on the loop, or before Run.
func (a *App) Mount(root dom.Node) {
	a.doc.Mount(root)
	a.doc.Flush()
	a.cleanup = append(a.cleanup, root.Drop)
}

// Dispatch queues fn to run on the loop. It is safe to call from any
// goroutine, including the loop itself. Closures dispatched after Close are
// dropped.
func (a *App) Dispatch(fn func()) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.queue = append(a.queue, fn)
	a.mu.Unlock()
	a.notify()
}

func (a *App) notify() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Go runs work on a new goroutine. The closure it returns, if any, is
// dispatched onto the loop. The app counts the task as pending until then.
func (a *App) Go(work func(ctx context.Context) func()) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.pending++
	a.mu.Unlock()

	go func() {
		var next func()
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("spindle: async task panicked", "panic", r)
				next = nil
			}
			a.mu.Lock()
			a.pending--
			if next != nil && !a.closed {
				a.queue = append(a.queue, next)
			}
			a.mu.Unlock()
			a.notify()
		}()
		next = work(a.ctx)
	}()
}

// Fetch performs req through the driver off the loop and delivers the result
// to fn on the loop.
func (a *App) Fetch(req dom.FetchRequest, fn func(dom.FetchResult)) {
	a.Go(func(ctx context.Context) func() {
		ctx, span := a.tracer.Start(ctx, "spindle.fetch",
			trace.WithAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.url", req.URL),
			))
		res := a.driver.Fetch(ctx, req)
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		} else {
			span.SetAttributes(attribute.Int("http.status_code", res.Status))
		}
		span.End()
		return func() { fn(res) }
	})
}

// Interval runs fn on the loop every d until the returned cancel function is
// called or the app is closed.
func (a *App) Interval(d time.Duration, fn func()) (cancel func()) {
	stop := a.driver.SetInterval(d, func() { a.Dispatch(fn) })
	var once sync.Once
	cancel = func() { once.Do(stop) }
	a.cleanup = append(a.cleanup, cancel)
	return cancel
}

// Transaction runs fn with propagation deferred until it returns.
func (a *App) Transaction(fn func(*reactive.Context)) {
	a.graph.Transaction(fn)
}

// Location returns the driver's current location.
func (a *App) Location() string {
	return a.driver.Location()
}

// Run processes dispatched closures until ctx is done or the app is closed.
func (a *App) Run(ctx context.Context) error {
	for {
		if err := a.step(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.ctx.Done():
			return ErrClosed
		case <-a.wake:
		}
	}
}

// RunUntilIdle processes dispatched closures until no closure is queued and
// no async task is pending, or until ctx is done.
func (a *App) RunUntilIdle(ctx context.Context) error {
	for {
		if err := a.step(); err != nil {
			return err
		}
		if a.Idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("spindle: waiting for %d pending tasks: %w", a.Pending(), ctx.Err())
		case <-a.ctx.Done():
			return ErrClosed
		case <-a.wake:
		}
	}
}

// step runs everything queued right now.
func (a *App) step() error {
	for {
		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			return ErrClosed
		}
		if len(a.queue) == 0 {
			a.mu.Unlock()
			return nil
		}
		fn := a.queue[0]
		a.queue = a.queue[1:]
		a.mu.Unlock()

		a.run(fn)
	}
}

func (a *App) run(fn func()) {
	defer a.doc.Flush()
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*cell.ReentrancyError); ok {
				panic(r)
			}
			a.logger.Error("spindle: dispatched closure panicked", "panic", r)
		}
	}()
	fn()
}

// Idle reports whether nothing is queued and no async task is pending.
func (a *App) Idle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue) == 0 && a.pending == 0
}

// Pending returns the number of async tasks that have not returned yet.
func (a *App) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// Close stops the loop, cancels timers and drops the mounted tree. Queued
// closures are discarded. It must be called on the loop or after Run
// returned.
func (a *App) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.queue = nil
	a.mu.Unlock()

	a.cancel()
	cleanup := a.cleanup
	a.cleanup = nil
	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}
	a.doc.Flush()
}
