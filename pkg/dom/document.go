package dom

import (
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/vango-dev/spindle/pkg/cell"
)

// Observer is notified of every command the Document accepts.
type Observer interface {
	CommandEmitted(kind Kind)
}

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger used to report rejected commands.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Document) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithObserver attaches an observer.
func WithObserver(o Observer) Option {
	return func(d *Document) {
		d.observer = o
	}
}

type nodeKind uint8

const (
	nodeElement nodeKind = iota + 1
	nodeText
	nodeComment
)

type docState struct {
	pending []Command

	alive   map[DomID]nodeKind
	removed mapset.Set[DomID]

	// parent and children index the attached tree. They never own a node.
	parent   map[DomID]DomID
	children map[DomID]mapset.Set[DomID]

	css       map[string]struct{}
	callbacks map[CallbackID]Handler

	logging bool
	log     []Command
}

// Document validates, records and buffers commands for a Driver.
type Document struct {
	driver   Driver
	logger   *slog.Logger
	observer Observer
	state    *cell.Cell[docState]
}

// NewDocument creates a document that flushes into driver.
func NewDocument(driver Driver, opts ...Option) *Document {
	d := &Document{
		driver: driver,
		logger: slog.Default(),
		state: cell.NewLabeled("dom.Document", docState{
			alive:     map[DomID]nodeKind{RootID: nodeElement},
			removed:   mapset.NewThreadUnsafeSet[DomID](),
			parent:    make(map[DomID]DomID),
			children:  make(map[DomID]mapset.Set[DomID]),
			css:       make(map[string]struct{}),
			callbacks: make(map[CallbackID]Handler),
		}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Driver returns the driver the document flushes into.
func (d *Document) Driver() Driver {
	return d.driver
}

// Emit validates cmd and queues it for the driver. Commands that reference a
// removed or unknown node are logged and dropped.
func (d *Document) Emit(cmd Command) {
	accepted := cell.Change(d.state, func(s *docState) bool {
		if !d.validate(s, cmd) {
			return false
		}
		s.pending = append(s.pending, cmd)
		if s.logging {
			s.log = append(s.log, cmd)
		}
		return true
	})
	if accepted && d.observer != nil {
		d.observer.CommandEmitted(cmd.Kind)
	}
}

func (d *Document) validate(s *docState, cmd Command) bool {
	switch cmd.Kind {
	case KindCreateNode, KindCreateText, KindCreateComment:
		if _, ok := s.alive[cmd.ID]; ok || s.removed.Contains(cmd.ID) {
			d.logger.Error("dom: duplicate node", "op", cmd.Kind, "id", cmd.ID)
			return false
		}
		switch cmd.Kind {
		case KindCreateNode:
			s.alive[cmd.ID] = nodeElement
		case KindCreateText:
			s.alive[cmd.ID] = nodeText
		default:
			s.alive[cmd.ID] = nodeComment
		}
		return true

	case KindUpdateText:
		return d.require(s, cmd, cmd.ID, nodeText, nodeComment)

	case KindSetAttr, KindRemoveAttr, KindCallbackAdd:
		return d.require(s, cmd, cmd.ID, nodeElement)

	case KindCallbackRemove:
		// The node took its handlers with it.
		_, ok := s.alive[cmd.ID]
		return ok

	case KindInsertBefore:
		if !d.require(s, cmd, cmd.ID, nodeElement) || !d.require(s, cmd, cmd.Child) {
			return false
		}
		if cmd.Ref != 0 {
			if !d.require(s, cmd, cmd.Ref) {
				return false
			}
			if p, ok := s.parent[cmd.Ref]; !ok || p != cmd.ID {
				d.logger.Error("dom: reference node is not a child", "op", cmd.Kind, "parent", cmd.ID, "ref", cmd.Ref)
				return false
			}
		}
		if cmd.Child == cmd.ID || d.isAncestor(s, cmd.Child, cmd.ID) {
			d.logger.Error("dom: insert would create a cycle", "parent", cmd.ID, "child", cmd.Child)
			return false
		}
		d.detach(s, cmd.Child)
		s.parent[cmd.Child] = cmd.ID
		childSet(s, cmd.ID).Add(cmd.Child)
		return true

	case KindRemove:
		if s.removed.Contains(cmd.ID) {
			// Already gone with an ancestor.
			return false
		}
		if !d.require(s, cmd, cmd.ID) {
			return false
		}
		if cmd.ID == RootID {
			d.logger.Error("dom: cannot remove root")
			return false
		}
		d.detach(s, cmd.ID)
		d.bury(s, cmd.ID)
		return true

	case KindInsertCss:
		if _, ok := s.css[cmd.Name]; ok {
			return false
		}
		s.css[cmd.Name] = struct{}{}
		return true
	}

	d.logger.Error("dom: unknown command", "kind", cmd.Kind)
	return false
}

func (d *Document) require(s *docState, cmd Command, id DomID, kinds ...nodeKind) bool {
	kind, ok := s.alive[id]
	if !ok {
		if s.removed.Contains(id) {
			d.logger.Error("dom: command for removed node", "op", cmd.Kind, "id", id)
		} else {
			d.logger.Error("dom: missing node", "op", cmd.Kind, "id", id)
		}
		return false
	}
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	d.logger.Error("dom: command does not apply to node", "op", cmd.Kind, "id", id)
	return false
}

func childSet(s *docState, id DomID) mapset.Set[DomID] {
	set, ok := s.children[id]
	if !ok {
		set = mapset.NewThreadUnsafeSet[DomID]()
		s.children[id] = set
	}
	return set
}

func (d *Document) isAncestor(s *docState, candidate, id DomID) bool {
	for cur, ok := s.parent[id]; ok; cur, ok = s.parent[cur] {
		if cur == candidate {
			return true
		}
	}
	return false
}

func (d *Document) detach(s *docState, id DomID) {
	p, ok := s.parent[id]
	if !ok {
		return
	}
	delete(s.parent, id)
	if set, ok := s.children[p]; ok {
		set.Remove(id)
		if set.Cardinality() == 0 {
			delete(s.children, p)
		}
	}
}

// bury marks id and its attached subtree removed.
func (d *Document) bury(s *docState, id DomID) {
	stack := []DomID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		delete(s.alive, cur)
		s.removed.Add(cur)
		if set, ok := s.children[cur]; ok {
			set.Each(func(c DomID) bool {
				delete(s.parent, c)
				stack = append(stack, c)
				return false
			})
			delete(s.children, cur)
		}
	}
}

// Flush hands every queued command to the driver.
func (d *Document) Flush() {
	cmds := cell.Change(d.state, func(s *docState) []Command {
		out := s.pending
		s.pending = nil
		return out
	})
	if len(cmds) > 0 {
		d.driver.Apply(cmds)
	}
}

// Pending returns the number of commands not yet flushed.
func (d *Document) Pending() int {
	return cell.Get(d.state, func(s *docState) int { return len(s.pending) })
}

// LogStart begins recording accepted commands.
func (d *Document) LogStart() {
	d.state.Update(func(s *docState) {
		s.logging = true
		s.log = nil
	})
}

// LogTake stops recording and returns what was recorded.
func (d *Document) LogTake() []Command {
	return cell.Change(d.state, func(s *docState) []Command {
		out := s.log
		s.logging = false
		s.log = nil
		return out
	})
}

// Alive reports whether id refers to a node that exists and has not been
// removed.
func (d *Document) Alive(id DomID) bool {
	return cell.Get(d.state, func(s *docState) bool {
		_, ok := s.alive[id]
		return ok
	})
}

// Parent returns the node id is attached to.
func (d *Document) Parent(id DomID) (DomID, bool) {
	type res struct {
		id DomID
		ok bool
	}
	r := cell.Get(d.state, func(s *docState) res {
		p, ok := s.parent[id]
		return res{p, ok}
	})
	return r.id, r.ok
}

// Mount attaches n to the document root.
func (d *Document) Mount(n Node) {
	d.Emit(InsertBefore(RootID, n.ID(), 0))
	if m, ok := n.(mountable); ok {
		m.mounted(RootID)
	}
}

// InsertCss registers a rule once per selector.
func (d *Document) InsertCss(selector, body string) {
	d.Emit(InsertCss(selector, body))
}

// RegisterCallback stores h and returns the id events will arrive with.
func (d *Document) RegisterCallback(h Handler) CallbackID {
	id := NewCallbackID()
	d.state.Update(func(s *docState) { s.callbacks[id] = h })
	return id
}

// UnregisterCallback forgets the handler for id.
func (d *Document) UnregisterCallback(id CallbackID) {
	d.state.Update(func(s *docState) { delete(s.callbacks, id) })
}

// HandleEvent runs the handler registered under cb. Events for unknown
// callbacks are dropped.
func (d *Document) HandleEvent(cb CallbackID, ev Event) Result {
	h := cell.Get(d.state, func(s *docState) Handler { return s.callbacks[cb] })
	if h == nil {
		d.logger.Warn("dom: event for unknown callback", "callback", cb, "event", ev.Kind)
		return Result{}
	}
	return h(ev)
}

// Callbacks returns the number of registered handlers.
func (d *Document) Callbacks() int {
	return cell.Get(d.state, func(s *docState) int { return len(s.callbacks) })
}
