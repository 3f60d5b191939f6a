package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	spindle "github.com/vango-dev/spindle"
	"github.com/vango-dev/spindle/pkg/dom"
	"github.com/vango-dev/spindle/pkg/live"
	"github.com/vango-dev/spindle/pkg/metrics"
	"github.com/vango-dev/spindle/pkg/protocol"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func testPage(app *spindle.App) dom.Node {
	doc := app.Document()
	switch app.Location() {
	case "/private":
		app.Driver().PushLocation("/login")
	case "/boom":
		panic("boom")
	case "/headless":
		return dom.NewElement(doc, "html").Child(dom.NewElement(doc, "head"))
	}
	return dom.NewElement(doc, "html").
		Child(dom.NewElement(doc, "head").Child(dom.NewElement(doc, "title").Text("test"))).
		Child(dom.NewElement(doc, "body").Child(dom.NewElement(doc, "p").Text(app.Location())))
}

func newTestServer(config *Config, opts ...Option) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	config.Logger = quietLogger()
	return New(testPage, config, opts...)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServePage(t *testing.T) {
	srv := newTestServer(nil)

	rec := get(t, srv, "/hello?x=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "<!DOCTYPE html>") {
		t.Errorf("body is not a document: %s", body)
	}
	if !strings.Contains(body, "<p>/hello?x=1</p>") {
		t.Errorf("body does not show the location: %s", body)
	}
}

func TestServePageStatuses(t *testing.T) {
	srv := newTestServer(&Config{Pages: []string{"/", "/items/:id", "/private", "/boom", "/headless"}})

	tests := []struct {
		name         string
		target       string
		wantStatus   int
		wantLocation string
		wantBody     string
	}{
		{"root", "/", http.StatusOK, "", "<p>/</p>"},
		{"param page", "/items/42", http.StatusOK, "", "<p>/items/42</p>"},
		{"trailing slash", "/items/42/", http.StatusPermanentRedirect, "/items/42", ""},
		{"double slash", "/items//42", http.StatusPermanentRedirect, "/items/42", ""},
		{"dot segments keep query", "/items/./42?q=1", http.StatusPermanentRedirect, "/items/42?q=1", ""},
		{"nul byte", "/items/%00", http.StatusBadRequest, "", "E203"},
		{"unknown page", "/nope", http.StatusNotFound, "", "Page not found"},
		{"app navigates", "/private", http.StatusFound, "/login", ""},
		{"mount panics", "/boom", http.StatusInternalServerError, "", "E201"},
		{"no body", "/headless", http.StatusInternalServerError, "", "E202"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, srv, tt.target)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d\n%s", rec.Code, tt.wantStatus, rec.Body)
			}
			if got := rec.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body missing %q:\n%s", tt.wantBody, rec.Body)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(nil)

	rec := get(t, srv, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var h health
	if err := json.Unmarshal(rec.Body.Bytes(), &h); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if h.Status != "ok" || h.Sessions != 0 {
		t.Errorf("health = %+v", h)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.New(metrics.WithRegistry(registry))
	srv := newTestServer(nil, WithMetrics(m, registry))

	if rec := get(t, srv, "/"); rec.Code != http.StatusOK {
		t.Fatalf("page status = %d", rec.Code)
	}

	rec := get(t, srv, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`spindle_ssr_renders_total{status="ok"} 1`,
		"spindle_dom_commands_total",
		`spindle_http_requests_total{code="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}

func TestMetricsDisabled(t *testing.T) {
	srv := newTestServer(nil)
	rec := get(t, srv, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<p>/metrics</p>") {
		t.Errorf("/metrics without metrics should render as a page, got %d", rec.Code)
	}
}

func TestExtraRoutes(t *testing.T) {
	srv := newTestServer(nil, WithRoutes(func(r chi.Router) {
		r.Get("/api/ping", func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, "pong")
		})
	}))

	rec := get(t, srv, "/api/ping")
	if rec.Body.String() != "pong" {
		t.Errorf("body = %q, want pong", rec.Body)
	}
}

func TestLiveSessionAndShutdown(t *testing.T) {
	config := DefaultConfig()
	config.Live = &live.Config{HeartbeatInterval: time.Minute}
	srv := newTestServer(config)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + DefaultWSPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	hello := protocol.EncodeClientHello(&protocol.ClientHello{Version: protocol.CurrentVersion, Path: "/live"})
	if err := conn.WriteMessage(websocket.BinaryMessage, protocol.NewFrame(protocol.FrameHandshake, hello).Encode()); err != nil {
		t.Fatal(err)
	}

	read := func() *protocol.Frame {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			t.Fatalf("DecodeFrame() error = %v", err)
		}
		return frame
	}

	sh, err := protocol.DecodeServerHello(read().Payload)
	if err != nil || sh.Status != protocol.HandshakeOK {
		t.Fatalf("handshake = %+v, %v", sh, err)
	}

	var cmds []dom.Command
	for {
		frame := read()
		decoded, err := protocol.DecodeCommands(frame.Payload)
		if err != nil {
			t.Fatal(err)
		}
		cmds = append(cmds, decoded...)
		if !frame.Flags.Has(protocol.FlagContinued) {
			break
		}
	}
	if !strings.Contains(dom.DebugFragment(cmds), "<p>/live</p>") {
		t.Errorf("mounted fragment = %s", dom.DebugFragment(cmds))
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.Sessions().Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("session was not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	frame := read()
	if frame.Type != protocol.FrameControl {
		t.Fatalf("frame type = %v, want control", frame.Type)
	}
	ctrl, err := protocol.DecodeControl(frame.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if ctrl.Type != protocol.ControlClose || ctrl.Reason != protocol.CloseServerShutdown {
		t.Errorf("control = %+v, want close with server shutdown", ctrl)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	config := DefaultConfig()
	config.Address = "127.0.0.1:0"
	srv := newTestServer(config)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
