// Package fetch performs application HTTP requests on the server side, for
// both headless renders and live sessions.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/vango-dev/spindle/pkg/dom"
)

// MaxBodySize caps how much of a response body is read.
const MaxBodySize = 8 << 20

// Func performs a request.
type Func func(ctx context.Context, req dom.FetchRequest) dom.FetchResult

// HTTP returns a Func backed by client. A nil client uses
// http.DefaultClient.
func HTTP(client *http.Client) Func {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, req dom.FetchRequest) dom.FetchResult {
		method := req.Method
		if method == "" {
			method = http.MethodGet
		}
		var body io.Reader
		if req.Body != "" {
			body = strings.NewReader(req.Body)
		}
		hr, err := http.NewRequestWithContext(ctx, method, req.URL, body)
		if err != nil {
			return dom.FetchResult{Err: fmt.Errorf("fetch: %w", err)}
		}
		for k, v := range req.Headers {
			hr.Header.Set(k, v)
		}
		resp, err := client.Do(hr)
		if err != nil {
			return dom.FetchResult{Err: fmt.Errorf("fetch: %w", err)}
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
		if err != nil {
			return dom.FetchResult{Status: resp.StatusCode, Err: fmt.Errorf("fetch: read body: %w", err)}
		}
		return dom.FetchResult{Status: resp.StatusCode, Body: string(data)}
	}
}

type state struct {
	done chan struct{}
	res  dom.FetchResult
}

// Dedupe collapses identical requests. The first caller performs the request
// (the key is then Requested); everyone asking for the same key while it is
// in flight or afterwards gets the same Response.
type Dedupe struct {
	fn Func

	mu     sync.Mutex
	states map[string]*state
}

// NewDedupe wraps fn.
func NewDedupe(fn Func) *Dedupe {
	return &Dedupe{fn: fn, states: make(map[string]*state)}
}

// Do performs req once per key.
func (d *Dedupe) Do(ctx context.Context, req dom.FetchRequest) dom.FetchResult {
	key := req.Key()

	d.mu.Lock()
	st, ok := d.states[key]
	if !ok {
		st = &state{done: make(chan struct{})}
		d.states[key] = st
	}
	d.mu.Unlock()

	if ok {
		select {
		case <-st.done:
			return st.res
		case <-ctx.Done():
			return dom.FetchResult{Err: ctx.Err()}
		}
	}

	st.res = d.fn(ctx, req)
	close(st.done)
	return st.res
}

// Requests returns the number of distinct requests made.
func (d *Dedupe) Requests() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.states)
}
