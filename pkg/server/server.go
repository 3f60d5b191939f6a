package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	spindle "github.com/vango-dev/spindle"
	"github.com/vango-dev/spindle/internal/errors"
	"github.com/vango-dev/spindle/pkg/fetch"
	"github.com/vango-dev/spindle/pkg/live"
	"github.com/vango-dev/spindle/pkg/metrics"
	"github.com/vango-dev/spindle/pkg/protocol"
	"github.com/vango-dev/spindle/pkg/router"
	"github.com/vango-dev/spindle/pkg/ssr"
)

// Server is the HTTP server for one spindle application.
type Server struct {
	mount  spindle.MountFunc
	config *Config
	logger *slog.Logger

	router   chi.Router
	renderer *ssr.Renderer
	live     *live.Handler

	// Options, consumed by New.
	fetcher    fetch.Func
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	renderOpts []ssr.RendererOption
	liveOpts   []live.HandlerOption
	routes     func(chi.Router)

	mu         sync.Mutex
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records metrics in m and serves gatherer on /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithFetcher sets how requests made by applications are performed, both
// while rendering and in live sessions.
func WithFetcher(fn fetch.Func) Option {
	return func(s *Server) { s.fetcher = fn }
}

// WithRendererOptions passes options to the page renderer.
func WithRendererOptions(opts ...ssr.RendererOption) Option {
	return func(s *Server) { s.renderOpts = append(s.renderOpts, opts...) }
}

// WithLiveOptions passes options to the live session handler.
func WithLiveOptions(opts ...live.HandlerOption) Option {
	return func(s *Server) { s.liveOpts = append(s.liveOpts, opts...) }
}

// WithRoutes registers extra routes before the page catch-all.
func WithRoutes(fn func(r chi.Router)) Option {
	return func(s *Server) { s.routes = fn }
}

// New creates a Server for mount.
func New(mount spindle.MountFunc, config *Config, opts ...Option) *Server {
	config = config.withDefaults()
	s := &Server{
		mount:   mount,
		config:  config,
		logger:  config.Logger.With("component", "server"),
		fetcher: fetch.HTTP(nil),
	}
	for _, opt := range opts {
		opt(s)
	}

	fetcher := s.fetcher
	var appOpts []spindle.Option
	if s.metrics != nil {
		fetcher = s.metrics.Fetcher(fetcher)
		appOpts = append(appOpts,
			spindle.WithGraphObserver(s.metrics),
			spindle.WithDocumentObserver(s.metrics),
		)
	}

	renderOpts := []ssr.RendererOption{
		ssr.WithLogger(config.Logger),
		ssr.WithRendererFetcher(fetcher),
		ssr.WithAppOptions(appOpts...),
	}
	if s.metrics != nil {
		renderOpts = append(renderOpts, ssr.WithObserver(s.metrics))
	}
	s.renderer = ssr.NewRenderer(append(renderOpts, s.renderOpts...)...)

	liveConfig := live.DefaultConfig()
	if config.Live != nil {
		c := *config.Live
		liveConfig = &c
	}
	if liveConfig.Fetcher == nil {
		liveConfig.Fetcher = fetcher
	}
	if liveConfig.Logger == nil {
		liveConfig.Logger = config.Logger
	}
	manager := live.NewManager(nil)
	if s.metrics != nil {
		manager = live.NewManager(s.metrics)
	}
	liveOpts := []live.HandlerOption{
		live.WithManager(manager),
		live.WithAppOptions(appOpts...),
	}
	s.live = live.NewHandler(mount, liveConfig, append(liveOpts, s.liveOpts...)...)

	s.router = s.routesFor()
	return s
}

func (s *Server) routesFor() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.Get("/healthz", s.serveHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Method(http.MethodGet, s.config.WSPath, s.live)
	if s.routes != nil {
		s.routes(r)
	}
	r.Get("/*", s.servePage)
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Sessions returns the live session manager.
func (s *Server) Sessions() *live.Manager {
	return s.live.Manager()
}

// Config returns the server configuration.
func (s *Server) Config() *Config {
	return s.config
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.EscapedPath()
	if r.URL.RawQuery != "" {
		raw += "?" + r.URL.RawQuery
	}
	clean, err := router.CleanPath(raw)
	if err != nil {
		s.writeError(w, r, errors.New("E203").WithDetail(err.Error()))
		return
	}
	if clean.Changed {
		http.Redirect(w, r, clean.String(), http.StatusPermanentRedirect)
		return
	}
	if !s.isPage(clean.Path) {
		s.writeError(w, r, errors.New("E200").WithDetailf("No page matches %s.", clean.Path))
		return
	}

	page, err := s.renderer.Render(r.Context(), clean.String(), s.mount)
	if err != nil {
		code := "E201"
		if stderrors.Is(err, ssr.ErrMissingHTML) || stderrors.Is(err, ssr.ErrMissingHead) || stderrors.Is(err, ssr.ErrMissingBody) {
			code = "E202"
		}
		s.logger.Error("render failed", "path", clean.Path, "error", err, "request_id", middleware.GetReqID(r.Context()))
		s.writeError(w, r, errors.New(code).Wrap(err))
		return
	}
	if page.Redirected {
		http.Redirect(w, r, page.Location, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if !page.Complete {
		w.Header().Set("X-Spindle-Partial", "1")
	}
	io.WriteString(w, page.HTML)
}

func (s *Server) isPage(path string) bool {
	if len(s.config.Pages) == 0 {
		return true
	}
	for _, pattern := range s.config.Pages {
		if _, ok := router.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

func (s *Server) writeError(w http.ResponseWriter, _ *http.Request, e *errors.Error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(e.Status)
	e.WriteHTML(w)
}

type health struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health{Status: "ok", Sessions: s.live.Manager().Len()})
}

// Run listens on the configured address and serves until ctx is done, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes every live session and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.live.Manager().CloseAll(protocol.CloseServerShutdown, "server shutting down")

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
