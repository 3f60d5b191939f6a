// Package metrics exports Prometheus collectors for the reactive graph, the
// document, server-side rendering, live sessions and fetches.
//
// A single Metrics value implements the observer interfaces of those
// packages and is passed to each of them:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(metrics.WithRegistry(reg))
//	app := spindle.New(drv,
//	    spindle.WithGraphObserver(m),
//	    spindle.WithDocumentObserver(m))
//	renderer := ssr.NewRenderer(ssr.WithObserver(m))
//	manager := live.NewManager(m)
package metrics

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/spindle/pkg/dom"
	"github.com/vango-dev/spindle/pkg/fetch"
	"github.com/vango-dev/spindle/pkg/reactive"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "spindle").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Metrics holds the collectors.
type Metrics struct {
	propagations      prometheus.Counter
	propagatedNodes   prometheus.Histogram
	clientRuns        prometheus.Counter
	recomputes        prometheus.Counter
	domCommands       *prometheus.CounterVec
	liveSessions      prometheus.Gauge
	liveSessionsTotal prometheus.Counter
	ssrRenders        *prometheus.CounterVec
	ssrDuration       prometheus.Histogram
	fetchDuration     *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
	httpDuration      prometheus.Histogram
}

// New registers the collectors.
func New(opts ...Option) *Metrics {
	config := Config{
		Namespace: "spindle",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		propagations: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "propagations_total",
			Help:        "Total number of value changes propagated through the graph",
			ConstLabels: config.ConstLabels,
		}),

		propagatedNodes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "propagation_nodes",
			Help:        "Downstream nodes visited per propagation",
			ConstLabels: config.ConstLabels,
			Buckets:     prometheus.ExponentialBuckets(1, 4, 8),
		}),

		clientRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "client_runs_total",
			Help:        "Total number of client callback runs",
			ConstLabels: config.ConstLabels,
		}),

		recomputes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "computed_recomputes_total",
			Help:        "Total number of computed node recomputations",
			ConstLabels: config.ConstLabels,
		}),

		domCommands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "dom_commands_total",
			Help:        "Total number of document commands emitted by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		liveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "live_sessions_active",
			Help:        "Number of open live sessions",
			ConstLabels: config.ConstLabels,
		}),

		liveSessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "live_sessions_total",
			Help:        "Total number of live sessions opened",
			ConstLabels: config.ConstLabels,
		}),

		ssrRenders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "ssr_renders_total",
			Help:        "Total number of server-side renders by status",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		ssrDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "ssr_render_duration_seconds",
			Help:        "Server-side render duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "fetch_duration_seconds",
			Help:        "Duration of fetches made on behalf of applications",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"status"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by status code",
			ConstLabels: config.ConstLabels,
		}, []string{"code"}),

		httpDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),
	}
}

var (
	_ reactive.Observer = (*Metrics)(nil)
	_ dom.Observer      = (*Metrics)(nil)
)

// Propagated implements reactive.Observer.
func (m *Metrics) Propagated(_ reactive.GraphID, visited, _ int) {
	m.propagations.Inc()
	m.propagatedNodes.Observe(float64(visited))
}

// Recomputed implements reactive.Observer.
func (m *Metrics) Recomputed(reactive.GraphID) {
	m.recomputes.Inc()
}

// ClientRan implements reactive.Observer.
func (m *Metrics) ClientRan(reactive.GraphID) {
	m.clientRuns.Inc()
}

// CommandEmitted implements dom.Observer.
func (m *Metrics) CommandEmitted(kind dom.Kind) {
	m.domCommands.WithLabelValues(kind.String()).Inc()
}

// SessionOpened is called when a live session starts.
func (m *Metrics) SessionOpened(string) {
	m.liveSessions.Inc()
	m.liveSessionsTotal.Inc()
}

// SessionClosed is called when a live session ends.
func (m *Metrics) SessionClosed(string) {
	m.liveSessions.Dec()
}

// Rendered is called after every server-side render.
func (m *Metrics) Rendered(d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ssrRenders.WithLabelValues(status).Inc()
	m.ssrDuration.Observe(d.Seconds())
}

// Fetcher wraps fn to record the duration of every request.
func (m *Metrics) Fetcher(fn fetch.Func) fetch.Func {
	return func(ctx context.Context, req dom.FetchRequest) dom.FetchResult {
		start := time.Now()
		res := fn(ctx, req)
		status := "error"
		if res.Err == nil {
			status = strconv.Itoa(res.Status)
		}
		m.fetchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
		return res
	}
}

// Middleware records request counts and durations.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		m.httpRequests.WithLabelValues(strconv.Itoa(sw.status)).Inc()
		m.httpDuration.Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap returns the wrapped writer for http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
