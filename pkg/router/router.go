package router

import (
	"strings"
	"sync/atomic"

	"github.com/vango-dev/spindle"
	"github.com/vango-dev/spindle/pkg/dom"
	"github.com/vango-dev/spindle/pkg/reactive"
)

// Mode selects which part of the location holds the route.
type Mode uint8

const (
	// History routes on the path and query.
	History Mode = iota
	// Hash routes on the fragment after '#'.
	Hash
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	if m == Hash {
		return "hash"
	}
	return "history"
}

// extract returns the routed part of a location.
func (m Mode) extract(location string) string {
	base, frag, _ := strings.Cut(location, "#")
	if m == Hash {
		return frag
	}
	return base
}

// join builds the location to push for a formatted route.
func (m Mode) join(current, route string) string {
	if m == Hash {
		base, _, _ := strings.Cut(current, "#")
		return base + "#" + route
	}
	if !strings.HasPrefix(route, "/") {
		return "/" + route
	}
	return route
}

// href is the link target for a formatted route.
func (m Mode) href(route string) string {
	if m == Hash {
		return "#" + route
	}
	return m.join("", route)
}

// direction tracks which side is changing the route. A change coming from the
// browser is not pushed back, and a location reported while the router pushes
// is the driver echoing that push.
type direction = uint32

const (
	idle direction = iota
	pushing
	popping
)

// Router keeps a route of type R in sync with the driver location.
type Router[R comparable] struct {
	app    *spindle.App
	mode   Mode
	parse  func(string) R
	format func(R) string

	value  *reactive.Value[R]
	route  *reactive.Computed[R]
	sender *reactive.Client
	stop   func()
	dir    atomic.Uint32
	closed bool
}

// New creates a router whose initial route is parsed from the current
// location. It must be called on the app loop.
func New[R comparable](app *spindle.App, mode Mode, parse func(string) R, format func(R) string) *Router[R] {
	r := &Router[R]{
		app:    app,
		mode:   mode,
		parse:  parse,
		format: format,
	}
	r.dir.Store(popping)
	r.value = reactive.NewValue(app.Graph(), parse(mode.extract(app.Location())))
	r.route = r.value.ToComputed()
	r.sender = reactive.Subscribe[R](r.route, r.push)
	r.stop = app.Driver().OnLocationChange(func(location string) {
		if r.dir.Load() == pushing {
			return
		}
		app.Dispatch(func() { r.pop(location) })
	})
	r.dir.Store(idle)
	return r
}

func (r *Router[R]) push(route R) {
	if !r.dir.CompareAndSwap(idle, pushing) {
		return
	}
	defer r.dir.Store(idle)
	r.app.Driver().PushLocation(r.mode.join(r.app.Location(), r.format(route)))
}

func (r *Router[R]) pop(location string) {
	if r.closed {
		return
	}
	r.dir.Store(popping)
	defer r.dir.Store(idle)
	reactive.SetIfChanged(r.value, r.parse(r.mode.extract(location)))
}

// Mode returns the router's mode.
func (r *Router[R]) Mode() Mode {
	return r.mode
}

// Set navigates to route. Setting the current route does nothing.
func (r *Router[R]) Set(route R) {
	reactive.SetIfChanged(r.value, route)
}

// Get returns the current route, tracked through ctx.
func (r *Router[R]) Get(ctx *reactive.Context) R {
	return r.value.Get(ctx)
}

// Peek returns the current route without tracking.
func (r *Router[R]) Peek() R {
	return r.value.Peek()
}

// Route returns the route as a computed.
func (r *Router[R]) Route() *reactive.Computed[R] {
	return r.route
}

// Href returns the link target for route.
func (r *Router[R]) Href(route R) string {
	return r.mode.href(r.format(route))
}

// Link returns an anchor pointing at route. Clicking it navigates without
// leaving the page.
func (r *Router[R]) Link(doc *dom.Document, route R) *dom.Element {
	a := dom.NewElement(doc, "a").Attr("href", r.Href(route))
	a.On(dom.EventClick, func(dom.Event) dom.Result {
		r.Set(route)
		return dom.Result{PreventDefault: true}
	})
	return a
}

// Drop stops following the location and releases the router's nodes.
func (r *Router[R]) Drop() {
	if r.closed {
		return
	}
	r.closed = true
	r.stop()
	r.sender.Off()
	r.route.Drop()
	r.value.Drop()
}
