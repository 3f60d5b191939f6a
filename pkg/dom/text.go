package dom

import "github.com/vango-dev/spindle/pkg/reactive"

// Text wraps a text node.
type Text struct {
	doc     *Document
	id      DomID
	client  *reactive.Client
	dropped bool
}

// NewText creates a text node with fixed content.
func NewText(doc *Document, s string) *Text {
	t := &Text{doc: doc, id: NewDomID()}
	doc.Emit(CreateText(t.id, s))
	return t
}

// NewTextComputed creates a text node whose content follows src.
func NewTextComputed(doc *Document, src reactive.Source[string]) *Text {
	t := &Text{doc: doc, id: NewDomID()}
	created := false
	t.client = reactive.Subscribe(src, func(s string) {
		if !created {
			created = true
			doc.Emit(CreateText(t.id, s))
			return
		}
		doc.Emit(UpdateText(t.id, s))
	})
	return t
}

// ID returns the node id.
func (t *Text) ID() DomID { return t.id }

// Set replaces the content.
func (t *Text) Set(s string) {
	t.doc.Emit(UpdateText(t.id, s))
}

// Drop removes the node and stops following its source.
func (t *Text) Drop() {
	if t.dropped {
		return
	}
	t.dropped = true
	t.doc.Emit(Remove(t.id))
	if t.client != nil {
		t.client.Off()
	}
}
