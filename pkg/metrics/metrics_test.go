package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vango-dev/spindle/pkg/dom"
	"github.com/vango-dev/spindle/pkg/live"
	"github.com/vango-dev/spindle/pkg/ssr"
)

var (
	_ ssr.Observer  = (*Metrics)(nil)
	_ live.Observer = (*Metrics)(nil)
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(WithRegistry(reg)), reg
}

func TestGraphAndDocumentObservers(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.Propagated(1, 3, 1)
	m.Propagated(2, 1, 0)
	m.Recomputed(3)
	m.ClientRan(4)
	m.ClientRan(4)
	m.CommandEmitted(dom.KindCreateNode)
	m.CommandEmitted(dom.KindCreateNode)
	m.CommandEmitted(dom.KindRemove)

	if got := counterValue(t, m.propagations); got != 2 {
		t.Errorf("propagations_total = %v, want 2", got)
	}
	if got := histogramCount(t, m.propagatedNodes); got != 2 {
		t.Errorf("propagation_nodes count = %d, want 2", got)
	}
	if got := counterValue(t, m.recomputes); got != 1 {
		t.Errorf("computed_recomputes_total = %v, want 1", got)
	}
	if got := counterValue(t, m.clientRuns); got != 2 {
		t.Errorf("client_runs_total = %v, want 2", got)
	}
	if got := counterValue(t, m.domCommands.WithLabelValues("CreateNode")); got != 2 {
		t.Errorf("dom_commands_total{CreateNode} = %v, want 2", got)
	}
	if got := counterValue(t, m.domCommands.WithLabelValues("Remove")); got != 1 {
		t.Errorf("dom_commands_total{Remove} = %v, want 1", got)
	}
}

func TestSessionGauge(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.SessionOpened("a")
	m.SessionOpened("b")
	m.SessionClosed("a")

	if got := gaugeValue(t, m.liveSessions); got != 1 {
		t.Errorf("live_sessions_active = %v, want 1", got)
	}
	if got := counterValue(t, m.liveSessionsTotal); got != 2 {
		t.Errorf("live_sessions_total = %v, want 2", got)
	}
}

func TestRendered(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.Rendered(10*time.Millisecond, nil)
	m.Rendered(time.Millisecond, errors.New("boom"))

	if got := counterValue(t, m.ssrRenders.WithLabelValues("ok")); got != 1 {
		t.Errorf("ssr_renders_total{ok} = %v, want 1", got)
	}
	if got := counterValue(t, m.ssrRenders.WithLabelValues("error")); got != 1 {
		t.Errorf("ssr_renders_total{error} = %v, want 1", got)
	}
	if got := histogramCount(t, m.ssrDuration); got != 2 {
		t.Errorf("ssr_render_duration_seconds count = %d, want 2", got)
	}
}

func TestFetcher(t *testing.T) {
	m, _ := newTestMetrics(t)

	fn := m.Fetcher(func(_ context.Context, req dom.FetchRequest) dom.FetchResult {
		if req.URL == "/down" {
			return dom.FetchResult{Err: errors.New("refused")}
		}
		return dom.FetchResult{Status: 200}
	})
	fn(context.Background(), dom.FetchRequest{URL: "/up"})
	fn(context.Background(), dom.FetchRequest{URL: "/up"})
	if res := fn(context.Background(), dom.FetchRequest{URL: "/down"}); res.Err == nil {
		t.Error("wrapped fetcher lost the error")
	}

	if got := histogramCount(t, m.fetchDuration.WithLabelValues("200")); got != 2 {
		t.Errorf("fetch_duration_seconds{200} count = %d, want 2", got)
	}
	if got := histogramCount(t, m.fetchDuration.WithLabelValues("error")); got != 1 {
		t.Errorf("fetch_duration_seconds{error} count = %d, want 1", got)
	}
}

func TestMiddleware(t *testing.T) {
	m, _ := newTestMetrics(t)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/", "/", "/missing"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := counterValue(t, m.httpRequests.WithLabelValues("200")); got != 2 {
		t.Errorf("http_requests_total{200} = %v, want 2", got)
	}
	if got := counterValue(t, m.httpRequests.WithLabelValues("404")); got != 1 {
		t.Errorf("http_requests_total{404} = %v, want 1", got)
	}
	if got := histogramCount(t, m.httpDuration); got != 3 {
		t.Errorf("http_request_duration_seconds count = %d, want 3", got)
	}
}

func TestRegistryGather(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.CommandEmitted(dom.KindInsertBefore)
	m.SessionOpened("x")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"spindle_dom_commands_total", "spindle_live_sessions_active", "spindle_propagations_total"} {
		if !names[want] {
			t.Errorf("gathered metrics missing %s", want)
		}
	}
}
