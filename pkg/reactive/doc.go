// Package reactive implements spindle's dependency graph: values, computed
// values, clients and the propagation that connects them.
//
// # Nodes
//
// Value[T] is a leaf holding state that application code writes directly.
// Every Set counts as a change, even when the new datum equals the old one:
//
//	g := reactive.NewGraph()
//	count := reactive.NewValue(g, 0)
//	count.Set(5)
//
// Computed[T] derives a result from other nodes and caches it until one of
// its upstream nodes changes. The first evaluation happens at construction,
// later ones lazily on read:
//
//	doubled := reactive.NewComputed(g, func(ctx *reactive.Context) int {
//	    return count.Get(ctx) * 2
//	})
//
// Client is a terminal consumer. Its callback runs once on creation and again,
// synchronously, every time something it read changes:
//
//	client := doubled.Subscribe(func(v int) { fmt.Println(v) })
//	defer client.Off()
//
// # Dependency discovery
//
// Derive functions and client callbacks receive a *Context. Reads made
// through it (count.Get(ctx)) record an edge from the evaluating node to the
// node being read; edges are cleared each time a node is re-evaluated, so a
// node's upstream set is exactly what it read last time. A nil context reads
// without tracking.
//
// # Propagation
//
// TriggerChange walks downstream edges breadth-first, visiting each node once,
// marks computed nodes stale and queues clients. Queued clients run from an
// explicit worklist; a client that writes a value while the worklist drains
// only enqueues more work. A client removed before its turn is skipped.
//
// # Lifetime
//
// The graph never owns node data. Value and Computed handles are reference
// counted through Clone and Drop; when the last handle is dropped the node's
// edges and refresh token are removed from the graph.
//
// Graphs are single-threaded. All state sits behind cell.Cell, which panics on
// reentrant access instead of locking.
package reactive
