package reactive

// Context is handed to derive functions, client callbacks and transactions.
// Reads made through a tracking context record a dependency edge from the
// context's owner to the node being read.
//
// A nil *Context is valid and reads without tracking.
type Context struct {
	graph    *Graph
	owner    GraphID
	tracking bool
}

// Graph returns the graph the context belongs to.
func (c *Context) Graph() *Graph {
	if c == nil {
		return nil
	}
	return c.graph
}

// Owner returns the node whose evaluation the context tracks, or 0 for an
// untracked context.
func (c *Context) Owner() GraphID {
	if c == nil || !c.tracking {
		return 0
	}
	return c.owner
}

// Tracking reports whether reads through the context record edges.
func (c *Context) Tracking() bool {
	return c != nil && c.tracking
}

// report records that the context owner read id.
func (c *Context) report(id GraphID) {
	if c == nil || !c.tracking {
		return
	}
	c.graph.ReportDependency(c.owner, id)
}
