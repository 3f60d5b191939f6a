package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vango-dev/spindle/pkg/dom"
)

func TestHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(r.Method + " " + r.Header.Get("X-Test") + " " + string(body)))
	}))
	defer srv.Close()

	res := HTTP(srv.Client())(context.Background(), dom.FetchRequest{
		Method:  http.MethodPost,
		URL:     srv.URL,
		Headers: map[string]string{"X-Test": "yes"},
		Body:    "payload",
	})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Status != http.StatusCreated || res.Body != "POST yes payload" {
		t.Errorf("got %d %q", res.Status, res.Body)
	}
	if !res.OK() {
		t.Error("201 should be OK")
	}
}

func TestHTTPTransportError(t *testing.T) {
	res := HTTP(nil)(context.Background(), dom.FetchRequest{URL: "http://127.0.0.1:0/unreachable"})
	if res.Err == nil {
		t.Fatal("expected an error")
	}
	if res.OK() {
		t.Error("failed request should not be OK")
	}
}

func TestDedupeCollapsesConcurrentRequests(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	d := NewDedupe(func(ctx context.Context, req dom.FetchRequest) dom.FetchResult {
		calls.Add(1)
		<-release
		return dom.FetchResult{Status: 200, Body: req.URL}
	})

	var wg sync.WaitGroup
	results := make([]dom.FetchResult, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = d.Do(context.Background(), dom.FetchRequest{URL: "/a"})
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("fetch ran %d times, want 1", calls.Load())
	}
	for i, r := range results {
		if r.Body != "/a" {
			t.Errorf("result %d = %+v", i, r)
		}
	}

	d.Do(context.Background(), dom.FetchRequest{URL: "/b"})
	if d.Requests() != 2 {
		t.Errorf("Requests() = %d, want 2", d.Requests())
	}
}

func TestDedupeWaiterHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	d := NewDedupe(func(ctx context.Context, req dom.FetchRequest) dom.FetchResult {
		select {
		case <-block:
			return dom.FetchResult{}
		case <-ctx.Done():
			return dom.FetchResult{Err: ctx.Err()}
		}
	})
	go d.Do(context.Background(), dom.FetchRequest{URL: "/slow"})
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	res := d.Do(ctx, dom.FetchRequest{URL: "/slow"})
	if res.Err == nil {
		t.Error("waiter should give up when its context ends")
	}
}

func TestDedupeKeepsRequestsWithDifferentHeaders(t *testing.T) {
	d := NewDedupe(func(ctx context.Context, req dom.FetchRequest) dom.FetchResult {
		return dom.FetchResult{Status: 200, Body: req.Headers["Accept"]}
	})

	jsonRes := d.Do(context.Background(), dom.FetchRequest{URL: "/a", Headers: map[string]string{"Accept": "application/json"}})
	htmlRes := d.Do(context.Background(), dom.FetchRequest{URL: "/a", Headers: map[string]string{"Accept": "text/html"}})
	again := d.Do(context.Background(), dom.FetchRequest{URL: "/a", Headers: map[string]string{"accept": "application/json"}})

	if jsonRes.Body != "application/json" || htmlRes.Body != "text/html" {
		t.Errorf("results = %q, %q", jsonRes.Body, htmlRes.Body)
	}
	if again.Body != "application/json" {
		t.Errorf("header name case changed the key: %q", again.Body)
	}
	if d.Requests() != 2 {
		t.Errorf("Requests() = %d, want 2", d.Requests())
	}
}
