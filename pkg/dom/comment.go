package dom

// Comment wraps a comment node. Comments mark where reactive regions insert
// their content.
type Comment struct {
	doc     *Document
	id      DomID
	dropped bool
}

// NewComment creates a comment node.
func NewComment(doc *Document, text string) *Comment {
	c := &Comment{doc: doc, id: NewDomID()}
	doc.Emit(CreateComment(c.id, text))
	return c
}

// ID returns the node id.
func (c *Comment) ID() DomID { return c.id }

// Drop removes the node.
func (c *Comment) Drop() {
	if c.dropped {
		return
	}
	c.dropped = true
	c.doc.Emit(Remove(c.id))
}
