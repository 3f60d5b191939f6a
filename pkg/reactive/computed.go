package reactive

import "github.com/vango-dev/spindle/pkg/cell"

type computedInner[T any] struct {
	id     GraphID
	graph  *Graph
	derive func(*Context) T
	fresh  *cell.Cell[bool]
	value  *cell.Cell[T]
	refs   *cell.Cell[int]

	// release runs after the node leaves the graph, dropping handles the
	// derive function holds.
	release []func()
}

// Computed is a derived node. Its derive function runs once at construction
// and afterwards only when read after an upstream change.
//
// The derive function must read reactive state only through the Context it
// is given. Reading anything else leaves freshness undefined.
type Computed[T any] struct {
	inner   *computedInner[T]
	dropped bool
}

// NewComputed registers a computed node and evaluates it once.
func NewComputed[T any](g *Graph, derive func(*Context) T) *Computed[T] {
	id := NewGraphID()
	fresh := cell.NewLabeled("reactive.Computed.fresh", true)
	g.Register(id, ComputedToken(func() { fresh.Store(false) }))

	initial := Eval(g, id, derive)

	return &Computed[T]{inner: &computedInner[T]{
		id:     id,
		graph:  g,
		derive: derive,
		fresh:  fresh,
		value:  cell.NewLabeled("reactive.Computed.value", initial),
		refs:   cell.New(1),
	}}
}

// ID returns the node's graph id.
func (c *Computed[T]) ID() GraphID {
	return c.inner.id
}

// Graph returns the graph the node belongs to.
func (c *Computed[T]) Graph() *Graph {
	return c.inner.graph
}

// Get returns the cached result, recomputing first if an upstream node
// changed since the last evaluation.
func (c *Computed[T]) Get(ctx *Context) T {
	in := c.inner
	if ctx.Graph() == in.graph {
		ctx.report(in.id)
	}

	stale := cell.Change(in.fresh, func(fresh *bool) bool {
		wasStale := !*fresh
		*fresh = true
		return wasStale
	})
	if stale {
		in.value.Store(c.recompute())
		if o := in.graph.observer; o != nil {
			o.Recomputed(in.id)
		}
	}
	return in.value.Load()
}

func (c *Computed[T]) recompute() (result T) {
	ok := false
	defer func() {
		if !ok {
			c.inner.fresh.Store(false)
		}
	}()
	result = Eval(c.inner.graph, c.inner.id, c.inner.derive)
	ok = true
	return result
}

// Fresh reports whether the cached result is current.
func (c *Computed[T]) Fresh() bool {
	return c.inner.fresh.Load()
}

// Subscribe runs fn with the current result now and after every change.
func (c *Computed[T]) Subscribe(fn func(T)) *Client {
	return Subscribe[T](c, fn)
}

// Clone returns a new handle to the same node.
func (c *Computed[T]) Clone() *Computed[T] {
	c.inner.refs.Update(func(n *int) { *n++ })
	return &Computed[T]{inner: c.inner}
}

// Drop releases this handle. When the last handle is dropped the node leaves
// the graph.
func (c *Computed[T]) Drop() {
	if c.dropped {
		return
	}
	c.dropped = true
	left := cell.Change(c.inner.refs, func(n *int) int {
		*n--
		return *n
	})
	if left > 0 {
		return
	}
	c.inner.graph.RemoveRelation(c.inner.id)
	release := c.inner.release
	c.inner.release = nil
	for _, fn := range release {
		fn()
	}
}

// Constant returns a computed node that always yields value.
func Constant[T any](g *Graph, value T) *Computed[T] {
	return NewComputed(g, func(*Context) T { return value })
}

// Map derives a computed node from c.
func Map[T, K any](c Source[T], fn func(T) K) *Computed[K] {
	return NewComputed(c.Graph(), func(ctx *Context) K {
		return fn(c.Get(ctx))
	})
}

// From2 derives a computed node from two sources.
func From2[A, B, T any](a Source[A], b Source[B], fn func(A, B) T) *Computed[T] {
	return NewComputed(a.Graph(), func(ctx *Context) T {
		return fn(a.Get(ctx), b.Get(ctx))
	})
}
