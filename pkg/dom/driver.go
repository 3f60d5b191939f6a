package dom

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"
)

// Driver is the environment a Document renders into.
//
// Apply receives commands in emission order. Callbacks passed to
// OnLocationChange and SetInterval may be invoked from any goroutine; the
// caller is responsible for moving the work back onto its loop.
type Driver interface {
	Apply(cmds []Command)

	Location() string
	PushLocation(path string)
	OnLocationChange(fn func(path string)) (cancel func())

	Fetch(ctx context.Context, req FetchRequest) FetchResult
	SetInterval(d time.Duration, fn func()) (cancel func())
}

// FetchRequest describes an HTTP request made on behalf of the application.
type FetchRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// Key identifies the request for de-duplication. Requests differing only in
// the case of a header name share a key.
func (r FetchRequest) Key() string {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	var b strings.Builder
	b.WriteString(method + " " + r.URL + "\n")
	headers := make([]string, 0, len(r.Headers))
	for k, v := range r.Headers {
		headers = append(headers, http.CanonicalHeaderKey(k)+": "+v)
	}
	slices.Sort(headers)
	for _, h := range headers {
		b.WriteString(h + "\n")
	}
	b.WriteString("\n" + r.Body)
	return b.String()
}

// FetchResult is the outcome of a FetchRequest. Transport failures are
// reported in Err, never by panicking.
type FetchResult struct {
	Status int
	Body   string
	Err    error
}

// OK reports whether the request succeeded with a 2xx status.
func (r FetchResult) OK() bool {
	return r.Err == nil && r.Status >= 200 && r.Status < 300
}
