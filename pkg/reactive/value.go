package reactive

import "github.com/vango-dev/spindle/pkg/cell"

// Source is anything whose current value can be read through a Context.
// Value and Computed implement it.
type Source[T any] interface {
	ID() GraphID
	Graph() *Graph
	Get(ctx *Context) T
}

type valueInner[T any] struct {
	id    GraphID
	graph *Graph
	value *cell.Cell[T]
	refs  *cell.Cell[int]
}

// Value is a leaf node holding state that is written directly.
//
// A Value handle is reference counted: Clone returns another handle to the
// same node and Drop releases one. When the last handle is dropped the node is
// removed from the graph.
type Value[T any] struct {
	inner   *valueInner[T]
	dropped bool
}

// NewValue registers a new value node in g.
func NewValue[T any](g *Graph, initial T) *Value[T] {
	inner := &valueInner[T]{
		id:    NewGraphID(),
		graph: g,
		value: cell.NewLabeled("reactive.Value", initial),
		refs:  cell.New(1),
	}
	g.Register(inner.id, ValueToken())
	return &Value[T]{inner: inner}
}

// ID returns the node's graph id.
func (v *Value[T]) ID() GraphID {
	return v.inner.id
}

// Graph returns the graph the value belongs to.
func (v *Value[T]) Graph() *Graph {
	return v.inner.graph
}

// Get returns the current datum and, if ctx is tracking, records that the
// context owner depends on v.
func (v *Value[T]) Get(ctx *Context) T {
	if ctx.Graph() == v.inner.graph {
		ctx.report(v.inner.id)
	}
	return v.inner.value.Load()
}

// Peek returns the current datum without recording a dependency.
func (v *Value[T]) Peek() T {
	return v.inner.value.Load()
}

// Set replaces the datum and propagates the change. There is no equality
// check: setting the same datum again is still a change.
func (v *Value[T]) Set(value T) {
	v.inner.value.Store(value)
	v.inner.graph.TriggerChange(v.inner.id)
}

// Change mutates the datum in place and propagates the change.
func (v *Value[T]) Change(fn func(*T)) {
	v.inner.value.Update(fn)
	v.inner.graph.TriggerChange(v.inner.id)
}

// SetIfChanged sets v only when value differs from the current datum and
// reports whether it did.
func SetIfChanged[T comparable](v *Value[T], value T) bool {
	if v.Peek() == value {
		return false
	}
	v.Set(value)
	return true
}

// ToComputed returns a computed node that mirrors v.
func (v *Value[T]) ToComputed() *Computed[T] {
	src := v.Clone()
	c := NewComputed(v.inner.graph, src.Get)
	c.inner.release = append(c.inner.release, src.Drop)
	return c
}

// Subscribe runs fn with the current datum now and after every change.
func (v *Value[T]) Subscribe(fn func(T)) *Client {
	return Subscribe[T](v, fn)
}

// Clone returns a new handle to the same node.
func (v *Value[T]) Clone() *Value[T] {
	v.inner.refs.Update(func(n *int) { *n++ })
	return &Value[T]{inner: v.inner}
}

// Drop releases this handle. Dropping a handle twice has no effect.
func (v *Value[T]) Drop() {
	if v.dropped {
		return
	}
	v.dropped = true
	left := cell.Change(v.inner.refs, func(n *int) int {
		*n--
		return *n
	})
	if left == 0 {
		v.inner.graph.RemoveRelation(v.inner.id)
	}
}
