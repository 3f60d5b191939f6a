package dom

import "github.com/vango-dev/spindle/pkg/reactive"

// Region is a reactive stretch of siblings. It is anchored by a comment node
// and re-renders its content in front of the anchor every time its source
// changes. The previous content is dropped before the new content is
// inserted.
//
// A region renders nothing until it is attached to a parent.
type Region[T any] struct {
	doc    *Document
	anchor *Comment
	src    reactive.Source[T]
	render func(T) []Node

	parent  DomID
	current []Node
	client  *reactive.Client
	dropped bool
}

// Dynamic renders a single node from the current value of src.
func Dynamic[T any](doc *Document, src reactive.Source[T], render func(T) Node) *Region[T] {
	return newRegion(doc, "dynamic", src, func(v T) []Node {
		if n := render(v); n != nil {
			return []Node{n}
		}
		return nil
	})
}

// List renders one node per item of src.
func List[T any](doc *Document, src reactive.Source[[]T], render func(T) Node) *Region[[]T] {
	return newRegion(doc, "list", src, func(items []T) []Node {
		out := make([]Node, 0, len(items))
		for _, item := range items {
			if n := render(item); n != nil {
				out = append(out, n)
			}
		}
		return out
	})
}

func newRegion[T any](doc *Document, label string, src reactive.Source[T], render func(T) []Node) *Region[T] {
	return &Region[T]{
		doc:    doc,
		anchor: NewComment(doc, label),
		src:    src,
		render: render,
	}
}

// ID returns the anchor's id.
func (r *Region[T]) ID() DomID {
	return r.anchor.ID()
}

// Content returns the nodes currently rendered.
func (r *Region[T]) Content() []Node {
	return r.current
}

func (r *Region[T]) mounted(parent DomID) {
	r.parent = parent
	if r.client != nil || r.dropped {
		return
	}
	r.client = reactive.Subscribe(r.src, r.update)
}

func (r *Region[T]) update(v T) {
	old := r.current
	r.current = nil
	for _, n := range old {
		n.Drop()
	}

	nodes := r.render(v)
	for _, n := range nodes {
		r.doc.Emit(InsertBefore(r.parent, n.ID(), r.anchor.ID()))
		if m, ok := n.(mountable); ok {
			m.mounted(r.parent)
		}
	}
	r.current = nodes
}

// Drop removes the anchor and the rendered content and stops following the
// source.
func (r *Region[T]) Drop() {
	if r.dropped {
		return
	}
	r.dropped = true
	r.anchor.Drop()

	content := r.current
	r.current = nil
	for _, n := range content {
		n.Drop()
	}
	if r.client != nil {
		r.client.Off()
	}
}
