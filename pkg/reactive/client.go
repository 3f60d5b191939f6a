package reactive

// Client is a terminal consumer: its callback re-runs whenever something it
// read on its previous run changes.
type Client struct {
	id    GraphID
	graph *Graph
	fn    func(*Context)
	off   bool
}

// NewClient registers a client and runs fn once to discover its
// dependencies.
func NewClient(g *Graph, fn func(*Context)) *Client {
	c := &Client{id: NewGraphID(), graph: g, fn: fn}
	g.Register(c.id, ClientToken(c.run))
	c.run()
	return c
}

// Subscribe runs fn with the current value of src now and every time src
// changes.
func Subscribe[T any](src Source[T], fn func(T)) *Client {
	return NewClient(src.Graph(), func(ctx *Context) {
		fn(src.Get(ctx))
	})
}

func (c *Client) run() {
	if c.off {
		return
	}
	Eval(c.graph, c.id, func(ctx *Context) struct{} {
		c.fn(ctx)
		return struct{}{}
	})
}

// ID returns the client's graph id.
func (c *Client) ID() GraphID {
	return c.id
}

// Active reports whether the client is still subscribed.
func (c *Client) Active() bool {
	return !c.off
}

// Off unsubscribes the client. It is safe to call from within the client's
// own callback and more than once.
func (c *Client) Off() {
	if c.off {
		return
	}
	c.off = true
	c.graph.RemoveRelation(c.id)
}
