package dom

// Node is anything that occupies a place in the document and owns the
// resources behind it.
type Node interface {
	ID() DomID
	Drop()
}

// mountable nodes need to know their parent once they are attached, because
// they insert further siblings next to themselves.
type mountable interface {
	mounted(parent DomID)
}

// Ref is a non-owning handle to a node, for code that needs to address a node
// without keeping it alive.
type Ref struct {
	doc *Document
	id  DomID
}

// ID returns the referenced node id.
func (r Ref) ID() DomID {
	return r.id
}

// Alive reports whether the node still exists.
func (r Ref) Alive() bool {
	return r.doc != nil && r.doc.Alive(r.id)
}
