package reactive

import (
	"cmp"
	"log/slog"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/vango-dev/spindle/pkg/cell"
)

// Observer receives notifications about graph activity. Implementations
// must not call back into the graph.
type Observer interface {
	// Propagated is called after a change to origin has been walked.
	// visited counts downstream nodes reached, scheduled the clients queued.
	Propagated(origin GraphID, visited, scheduled int)
	// Recomputed is called after a computed node re-ran its derive function.
	Recomputed(id GraphID)
	// ClientRan is called after a client callback ran.
	ClientRan(id GraphID)
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithObserver attaches an observer.
func WithObserver(o Observer) Option {
	return func(g *Graph) {
		g.observer = o
	}
}

type graphState struct {
	// parents maps a node to the nodes it read during its last evaluation.
	parents map[GraphID]mapset.Set[GraphID]
	// children maps a node to the nodes that read it.
	children map[GraphID]mapset.Set[GraphID]
	tokens   map[GraphID]RefreshToken

	// stack holds the nodes currently evaluating, innermost last.
	stack []GraphID

	txDepth  int
	draining bool
	queue    []GraphID
	queued   map[GraphID]struct{}
}

// Graph tracks which nodes depend on which and propagates changes.
type Graph struct {
	state    *cell.Cell[graphState]
	logger   *slog.Logger
	observer Observer
}

// NewGraph creates an empty dependency graph.
func NewGraph(opts ...Option) *Graph {
	g := &Graph{
		state: cell.NewLabeled("reactive.Graph", graphState{
			parents:  make(map[GraphID]mapset.Set[GraphID]),
			children: make(map[GraphID]mapset.Set[GraphID]),
			tokens:   make(map[GraphID]RefreshToken),
			queued:   make(map[GraphID]struct{}),
		}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register inserts a node with no edges.
func (g *Graph) Register(id GraphID, token RefreshToken) {
	g.state.Update(func(s *graphState) {
		s.tokens[id] = token
	})
}

// Contains reports whether id is registered.
func (g *Graph) Contains(id GraphID) bool {
	return cell.Get(g.state, func(s *graphState) bool {
		_, ok := s.tokens[id]
		return ok
	})
}

// ReportDependency records that parent read id. The edge is only recorded
// while parent is the innermost evaluating node, so stale contexts captured by
// closures cannot add edges after the fact.
func (g *Graph) ReportDependency(parent, id GraphID) {
	if parent == id {
		return
	}
	g.state.Update(func(s *graphState) {
		if len(s.stack) == 0 || s.stack[len(s.stack)-1] != parent {
			return
		}
		if _, ok := s.tokens[parent]; !ok {
			return
		}
		if _, ok := s.tokens[id]; !ok {
			return
		}
		edgeSet(s.parents, parent).Add(id)
		edgeSet(s.children, id).Add(parent)
	})
}

func edgeSet(m map[GraphID]mapset.Set[GraphID], id GraphID) mapset.Set[GraphID] {
	set, ok := m[id]
	if !ok {
		set = mapset.NewThreadUnsafeSet[GraphID]()
		m[id] = set
	}
	return set
}

// Enter starts an evaluation of id. The node's previous upstream edges are
// dropped; reads made through the returned context rebuild them. Every Enter
// must be paired with Exit; Eval does both.
func (g *Graph) Enter(id GraphID) *Context {
	g.state.Update(func(s *graphState) {
		clearParents(s, id)
		s.stack = append(s.stack, id)
	})
	return &Context{graph: g, owner: id, tracking: true}
}

// Exit ends the evaluation started by Enter(id).
func (g *Graph) Exit(id GraphID) {
	g.state.Update(func(s *graphState) {
		n := len(s.stack)
		if n == 0 {
			g.logger.Error("reactive: exit with empty evaluation stack", "id", id)
			return
		}
		if s.stack[n-1] != id {
			g.logger.Error("reactive: unbalanced exit", "id", id, "top", s.stack[n-1])
			if i := slices.Index(s.stack, id); i >= 0 {
				s.stack = s.stack[:i]
			}
			return
		}
		s.stack = s.stack[:n-1]
	})
}

// Eval runs fn as the evaluation of id. The evaluation stack is popped on
// every exit path, including panics.
func Eval[T any](g *Graph, id GraphID, fn func(*Context) T) T {
	ctx := g.Enter(id)
	defer g.Exit(id)
	return fn(ctx)
}

// Depth returns the number of evaluations in progress.
func (g *Graph) Depth() int {
	return cell.Get(g.state, func(s *graphState) int { return len(s.stack) })
}

func clearParents(s *graphState, id GraphID) {
	parents, ok := s.parents[id]
	if !ok {
		return
	}
	parents.Each(func(p GraphID) bool {
		if children, ok := s.children[p]; ok {
			children.Remove(id)
			if children.Cardinality() == 0 {
				delete(s.children, p)
			}
		}
		return false
	})
	delete(s.parents, id)
}

// TriggerChange marks everything downstream of id stale and runs the clients
// that depend on it. Clients run synchronously before TriggerChange returns,
// unless a transaction is open or the worklist is already draining further up
// the call stack, in which case they are queued for that drain.
func (g *Graph) TriggerChange(id GraphID) {
	visited, clients := g.markStale(id)
	if g.observer != nil {
		g.observer.Propagated(id, visited, len(clients))
	}
	g.drain()
}

// markStale walks downstream of origin breadth-first, visiting each node once.
// Computed nodes are marked stale and clients are appended to the worklist in
// discovery order.
func (g *Graph) markStale(origin GraphID) (int, []GraphID) {
	return cellGet2(g.state, func(s *graphState) (int, []GraphID) {
		visited := map[GraphID]struct{}{origin: {}}
		frontier := []GraphID{origin}
		var clients []GraphID

		for len(frontier) > 0 {
			cur := frontier[0]
			frontier = frontier[1:]

			token, ok := s.tokens[cur]
			if ok {
				switch token.kind {
				case KindComputed:
					if token.stale != nil {
						token.stale()
					}
				case KindClient:
					if _, queued := s.queued[cur]; !queued {
						s.queued[cur] = struct{}{}
						s.queue = append(s.queue, cur)
					}
					clients = append(clients, cur)
				}
			}

			children, ok := s.children[cur]
			if !ok {
				continue
			}
			next := children.ToSlice()
			slices.Sort(next)
			for _, child := range next {
				if _, seen := visited[child]; seen {
					continue
				}
				visited[child] = struct{}{}
				frontier = append(frontier, child)
			}
		}
		return len(visited) - 1, clients
	})
}

func cellGet2[A, B any](c *cell.Cell[graphState], fn func(*graphState) (A, B)) (A, B) {
	type pair struct {
		a A
		b B
	}
	p := cell.Change(c, func(s *graphState) pair {
		a, b := fn(s)
		return pair{a, b}
	})
	return p.a, p.b
}

// drain runs queued clients until the worklist is empty. It is a no-op while
// a transaction is open or another drain is in progress.
func (g *Graph) drain() {
	start := cell.Change(g.state, func(s *graphState) bool {
		if s.draining || s.txDepth > 0 {
			return false
		}
		s.draining = true
		return true
	})
	if !start {
		return
	}
	defer g.state.Update(func(s *graphState) { s.draining = false })

	for {
		id, token, ok := g.dequeue()
		if !ok {
			return
		}
		token.run()
		if g.observer != nil {
			g.observer.ClientRan(id)
		}
	}
}

// dequeue pops the next live client. Clients removed since they were queued
// are skipped.
func (g *Graph) dequeue() (GraphID, RefreshToken, bool) {
	type next struct {
		id    GraphID
		token RefreshToken
		ok    bool
	}
	n := cell.Change(g.state, func(s *graphState) next {
		for len(s.queue) > 0 {
			id := s.queue[0]
			s.queue = s.queue[1:]
			delete(s.queued, id)
			token, ok := s.tokens[id]
			if !ok || token.run == nil {
				g.logger.Debug("reactive: skipping removed client", "id", id)
				continue
			}
			return next{id: id, token: token, ok: true}
		}
		s.queue = nil
		return next{}
	})
	return n.id, n.token, n.ok
}

// Transaction runs fn with propagation deferred: values written inside fn mark
// their dependents stale immediately, but clients run once, after the
// outermost transaction returns.
func (g *Graph) Transaction(fn func(*Context)) {
	g.state.Update(func(s *graphState) { s.txDepth++ })
	defer func() {
		g.state.Update(func(s *graphState) { s.txDepth-- })
		g.drain()
	}()
	fn(&Context{graph: g})
}

// RemoveRelation removes id and every edge touching it. A queued run of id
// becomes a no-op.
func (g *Graph) RemoveRelation(id GraphID) {
	g.state.Update(func(s *graphState) {
		clearParents(s, id)
		if children, ok := s.children[id]; ok {
			children.Each(func(c GraphID) bool {
				if parents, ok := s.parents[c]; ok {
					parents.Remove(id)
					if parents.Cardinality() == 0 {
						delete(s.parents, c)
					}
				}
				return false
			})
			delete(s.children, id)
		}
		delete(s.tokens, id)
		delete(s.queued, id)
	})
}

// Untracked returns a context whose reads record no edges.
func (g *Graph) Untracked() *Context {
	return &Context{graph: g}
}

// NodeInfo describes one node of a graph snapshot.
type NodeInfo struct {
	ID       GraphID
	Kind     NodeKind
	Parents  []GraphID
	Children []GraphID
}

// Snapshot returns every registered node ordered by id.
func (g *Graph) Snapshot() []NodeInfo {
	return cell.Get(g.state, func(s *graphState) []NodeInfo {
		out := make([]NodeInfo, 0, len(s.tokens))
		for id, token := range s.tokens {
			info := NodeInfo{ID: id, Kind: token.kind}
			if p, ok := s.parents[id]; ok {
				info.Parents = p.ToSlice()
				slices.Sort(info.Parents)
			}
			if c, ok := s.children[id]; ok {
				info.Children = c.ToSlice()
				slices.Sort(info.Children)
			}
			out = append(out, info)
		}
		slices.SortFunc(out, func(a, b NodeInfo) int { return cmp.Compare(a.ID, b.ID) })
		return out
	})
}

// Stats summarizes graph size.
type Stats struct {
	Nodes   int
	Edges   int
	Queued  int
	Depth   int
	Pending bool
}

// Stats returns the current graph size.
func (g *Graph) Stats() Stats {
	return cell.Get(g.state, func(s *graphState) Stats {
		edges := 0
		for _, p := range s.parents {
			edges += p.Cardinality()
		}
		return Stats{
			Nodes:   len(s.tokens),
			Edges:   edges,
			Queued:  len(s.queue),
			Depth:   len(s.stack),
			Pending: s.txDepth > 0,
		}
	})
}
