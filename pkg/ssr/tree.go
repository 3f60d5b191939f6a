package ssr

import (
	"io"
	"log/slog"
	"strings"

	"github.com/valyala/quicktemplate"

	"github.com/vango-dev/spindle/pkg/dom"
)

type nodeKind uint8

const (
	kindElement nodeKind = iota + 1
	kindText
	kindComment
)

type attr struct {
	name, value string
}

type node struct {
	id       dom.DomID
	kind     nodeKind
	tag      string
	text     string
	attrs    []attr
	children []dom.DomID
	parent   dom.DomID
}

// CssRule is a style rule collected during a render.
type CssRule struct {
	Selector string
	Body     string
}

// Tree is an in-memory document built by replaying commands.
type Tree struct {
	nodes  map[dom.DomID]*node
	css    []CssRule
	seen   map[string]struct{}
	logger *slog.Logger
}

// NewTree returns a tree containing only the root.
func NewTree(logger *slog.Logger) *Tree {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tree{
		nodes: map[dom.DomID]*node{
			dom.RootID: {id: dom.RootID, kind: kindElement},
		},
		seen:   make(map[string]struct{}),
		logger: logger,
	}
}

func (t *Tree) get(op dom.Kind, id dom.DomID) *node {
	n, ok := t.nodes[id]
	if !ok {
		t.logger.Error("ssr: missing node", "op", op, "id", id)
	}
	return n
}

// Apply replays commands in order.
func (t *Tree) Apply(cmds []dom.Command) {
	for _, c := range cmds {
		t.apply(c)
	}
}

func (t *Tree) apply(c dom.Command) {
	switch c.Kind {
	case dom.KindCreateNode:
		t.nodes[c.ID] = &node{id: c.ID, kind: kindElement, tag: strings.ToLower(c.Name)}
	case dom.KindCreateText:
		t.nodes[c.ID] = &node{id: c.ID, kind: kindText, text: c.Value}
	case dom.KindCreateComment:
		t.nodes[c.ID] = &node{id: c.ID, kind: kindComment, text: c.Value}
	case dom.KindUpdateText:
		if n := t.get(c.Kind, c.ID); n != nil {
			n.text = c.Value
		}
	case dom.KindSetAttr:
		if n := t.get(c.Kind, c.ID); n != nil {
			n.setAttr(c.Name, c.Value)
		}
	case dom.KindRemoveAttr:
		if n := t.get(c.Kind, c.ID); n != nil {
			for i := range n.attrs {
				if n.attrs[i].name == c.Name {
					n.attrs = append(n.attrs[:i], n.attrs[i+1:]...)
					break
				}
			}
		}
	case dom.KindInsertBefore:
		parent := t.get(c.Kind, c.ID)
		child := t.get(c.Kind, c.Child)
		if parent == nil || child == nil {
			return
		}
		t.detach(child)
		child.parent = parent.id
		parent.children = insertBefore(parent.children, child.id, c.Ref)
	case dom.KindRemove:
		n := t.get(c.Kind, c.ID)
		if n == nil {
			return
		}
		t.detach(n)
		t.drop(n)
	case dom.KindInsertCss:
		if _, ok := t.seen[c.Name]; ok {
			return
		}
		t.seen[c.Name] = struct{}{}
		t.css = append(t.css, CssRule{Selector: c.Name, Body: c.Value})
	case dom.KindCallbackAdd, dom.KindCallbackRemove:
		// Handlers only exist in a live session.
	default:
		t.logger.Error("ssr: unknown command", "kind", c.Kind)
	}
}

func (n *node) setAttr(name, value string) {
	for i := range n.attrs {
		if n.attrs[i].name == name {
			n.attrs[i].value = value
			return
		}
	}
	n.attrs = append(n.attrs, attr{name, value})
}

func (n *node) attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.name == name {
			return a.value, true
		}
	}
	return "", false
}

func (t *Tree) detach(n *node) {
	p, ok := t.nodes[n.parent]
	if !ok || n.parent == 0 {
		return
	}
	for i, id := range p.children {
		if id == n.id {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = 0
}

func (t *Tree) drop(n *node) {
	for _, id := range n.children {
		if c, ok := t.nodes[id]; ok {
			t.drop(c)
		}
	}
	delete(t.nodes, n.id)
}

func insertBefore(s []dom.DomID, id, ref dom.DomID) []dom.DomID {
	if ref != 0 {
		for i := range s {
			if s[i] == ref {
				s = append(s, 0)
				copy(s[i+1:], s[i:])
				s[i] = id
				return s
			}
		}
	}
	return append(s, id)
}

// Css returns the collected rules in insertion order.
func (t *Tree) Css() []CssRule {
	return t.css
}

// Len returns the number of live nodes, excluding the root.
func (t *Tree) Len() int {
	return len(t.nodes) - 1
}

// WriteHTML serializes everything mounted under the root.
func (t *Tree) WriteHTML(w io.Writer) {
	qw := quicktemplate.AcquireWriter(w)
	defer quicktemplate.ReleaseWriter(qw)
	for _, id := range t.nodes[dom.RootID].children {
		t.write(qw, t.nodes[id])
	}
}

// HTML returns everything mounted under the root as a string.
func (t *Tree) HTML() string {
	var b strings.Builder
	t.WriteHTML(&b)
	return b.String()
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

var rawTextElements = map[string]bool{"script": true, "style": true}

func (t *Tree) write(qw *quicktemplate.Writer, n *node) {
	t.writeWith(qw, n, nil, nil)
}

// writeWith serializes n. extra attributes go on n's start tag; inner is
// called in place of the children when set.
func (t *Tree) writeWith(qw *quicktemplate.Writer, n *node, extra []attr, inner func()) {
	if n == nil {
		return
	}
	switch n.kind {
	case kindText:
		if p, ok := t.nodes[n.parent]; ok && rawTextElements[p.tag] {
			qw.N().S(n.text)
		} else {
			qw.E().S(n.text)
		}
		return
	case kindComment:
		qw.N().S("<!-- ")
		qw.N().S(strings.ReplaceAll(n.text, "--", "- -"))
		qw.N().S(" -->")
		return
	}

	qw.N().S("<")
	qw.N().S(n.tag)
	textareaValue, isTextarea := "", n.tag == "textarea"
	for _, a := range append(n.attrs[:len(n.attrs):len(n.attrs)], extra...) {
		if isTextarea && a.name == "value" {
			textareaValue = a.value
			continue
		}
		qw.N().S(" ")
		qw.N().S(a.name)
		qw.N().S(`="`)
		qw.E().S(a.value)
		qw.N().S(`"`)
	}
	qw.N().S(">")

	if voidElements[n.tag] {
		return
	}
	switch {
	case inner != nil:
		inner()
	case isTextarea && textareaValue != "":
		qw.E().S(textareaValue)
	default:
		for _, id := range n.children {
			t.write(qw, t.nodes[id])
		}
	}
	qw.N().S("</")
	qw.N().S(n.tag)
	qw.N().S(">")
}
