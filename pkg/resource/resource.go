// Package resource loads remote data into the reactive graph.
//
// A Resource starts in the Loading state, performs its request through the
// app's driver off the loop and settles into Ready or Failed once the
// response is back on the loop. A Resource that follows a reactive request
// refetches whenever the request changes; responses to superseded requests
// are ignored.
package resource

import (
	"encoding/json"
	"fmt"

	"github.com/vango-dev/spindle"
	"github.com/vango-dev/spindle/pkg/dom"
	"github.com/vango-dev/spindle/pkg/reactive"
)

// Status is the phase a resource is in.
type Status uint8

const (
	Loading Status = iota
	Ready
	Failed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a resource's observable state. While reloading, Value keeps the
// last successfully decoded datum.
type State[T any] struct {
	Status Status
	Value  T
	Err    error
}

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("resource: unexpected status %d", e.Status)
}

// Decoder turns a response body into a datum.
type Decoder[T any] func(body string) (T, error)

// JSON decodes a JSON body.
func JSON[T any](body string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return v, fmt.Errorf("resource: decoding json: %w", err)
	}
	return v, nil
}

// Text returns the body as is.
func Text(body string) (string, error) {
	return body, nil
}

// Resource is remote data of type T.
type Resource[T any] struct {
	app    *spindle.App
	decode Decoder[T]
	state  *reactive.Value[State[T]]
	client *reactive.Client

	req     dom.FetchRequest
	gen     uint64
	release []func()
	dropped bool
}

// New fetches req once.
func New[T any](app *spindle.App, req dom.FetchRequest, decode Decoder[T]) *Resource[T] {
	src := reactive.Constant(app.Graph(), req)
	r := Follow[T](app, src, decode)
	r.release = append(r.release, src.Drop)
	return r
}

// Follow fetches the request src yields now and again every time it
// changes. It must be called on the app loop.
func Follow[T any](app *spindle.App, src reactive.Source[dom.FetchRequest], decode Decoder[T]) *Resource[T] {
	r := &Resource[T]{
		app:    app,
		decode: decode,
		state:  reactive.NewValue(app.Graph(), State[T]{Status: Loading}),
	}
	r.client = reactive.Subscribe[dom.FetchRequest](src, r.load)
	return r
}

func (r *Resource[T]) load(req dom.FetchRequest) {
	r.req = req
	r.gen++
	gen := r.gen
	if r.state.Peek().Status != Loading {
		r.state.Change(func(s *State[T]) {
			s.Status = Loading
			s.Err = nil
		})
	}
	r.app.Fetch(req, func(res dom.FetchResult) {
		if r.dropped || gen != r.gen {
			return
		}
		r.settle(res)
	})
}

func (r *Resource[T]) settle(res dom.FetchResult) {
	var err error
	switch {
	case res.Err != nil:
		err = res.Err
	case !res.OK():
		err = &StatusError{Status: res.Status, Body: res.Body}
	}
	if err != nil {
		r.state.Change(func(s *State[T]) {
			s.Status = Failed
			s.Err = err
		})
		return
	}

	v, err := r.decode(res.Body)
	if err != nil {
		r.state.Change(func(s *State[T]) {
			s.Status = Failed
			s.Err = err
		})
		return
	}
	r.state.Set(State[T]{Status: Ready, Value: v})
}

// Refetch repeats the current request.
func (r *Resource[T]) Refetch() {
	if r.dropped {
		return
	}
	r.load(r.req)
}

// Get returns the current state, tracked through ctx.
func (r *Resource[T]) Get(ctx *reactive.Context) State[T] {
	return r.state.Get(ctx)
}

// Peek returns the current state without tracking.
func (r *Resource[T]) Peek() State[T] {
	return r.state.Peek()
}

// State returns the state as a computed. The caller owns the returned
// handle and drops it.
func (r *Resource[T]) State() *reactive.Computed[State[T]] {
	return r.state.ToComputed()
}

// Drop stops following the request and releases the state. A response that
// arrives later is discarded.
func (r *Resource[T]) Drop() {
	if r.dropped {
		return
	}
	r.dropped = true
	r.client.Off()
	r.state.Drop()
	for _, fn := range r.release {
		fn()
	}
	r.release = nil
}
