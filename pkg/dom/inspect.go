package dom

import (
	"fmt"
	"sort"
	"strings"
)

type debugAttr struct {
	name, value string
}

type debugNode struct {
	id        DomID
	kind      nodeKind
	tag, text string
	attrs     []debugAttr
	children  []DomID
	callbacks []string
	parent    DomID
	order     int
}

func (n *debugNode) setAttr(name, value string) {
	for i := range n.attrs {
		if n.attrs[i].name == name {
			n.attrs[i].value = value
			return
		}
	}
	n.attrs = append(n.attrs, debugAttr{name, value})
}

func (n *debugNode) removeAttr(name string) {
	for i := range n.attrs {
		if n.attrs[i].name == name {
			n.attrs = append(n.attrs[:i], n.attrs[i+1:]...)
			return
		}
	}
}

// DebugFragment replays a command log into a compact pseudo-HTML string for
// tests and debugging. Generated classes whose rule was inserted in the same
// log are rendered as an inline style and handlers as event=callback.
//
// The fragment's root is the node attached to RootID or, failing that, the
// first created node that was never attached.
func DebugFragment(cmds []Command) string {
	nodes := make(map[DomID]*debugNode)
	css := make(map[string]string)
	created := 0

	for _, cmd := range cmds {
		switch cmd.Kind {
		case KindCreateNode:
			nodes[cmd.ID] = &debugNode{id: cmd.ID, kind: nodeElement, tag: cmd.Name, order: created}
			created++
		case KindCreateText:
			nodes[cmd.ID] = &debugNode{id: cmd.ID, kind: nodeText, text: cmd.Value, order: created}
			created++
		case KindCreateComment:
			nodes[cmd.ID] = &debugNode{id: cmd.ID, kind: nodeComment, text: cmd.Value, order: created}
			created++
		case KindUpdateText:
			if n, ok := nodes[cmd.ID]; ok {
				n.text = cmd.Value
			}
		case KindSetAttr:
			if n, ok := nodes[cmd.ID]; ok {
				n.setAttr(cmd.Name, cmd.Value)
			}
		case KindRemoveAttr:
			if n, ok := nodes[cmd.ID]; ok {
				n.removeAttr(cmd.Name)
			}
		case KindInsertBefore:
			child, ok := nodes[cmd.Child]
			if !ok {
				continue
			}
			if old, ok := nodes[child.parent]; ok {
				old.children = without(old.children, child.id)
			}
			child.parent = cmd.ID
			parent, ok := nodes[cmd.ID]
			if !ok {
				continue
			}
			parent.children = insertAt(parent.children, child.id, cmd.Ref)
		case KindRemove:
			if n, ok := nodes[cmd.ID]; ok {
				if p, ok := nodes[n.parent]; ok {
					p.children = without(p.children, n.id)
				}
				delete(nodes, cmd.ID)
			}
		case KindInsertCss:
			css[strings.TrimPrefix(cmd.Name, ".")] = cmd.Value
		case KindCallbackAdd:
			if n, ok := nodes[cmd.ID]; ok {
				n.callbacks = append(n.callbacks, fmt.Sprintf("%s=%d", cmd.Name, cmd.Callback))
			}
		case KindCallbackRemove:
			if n, ok := nodes[cmd.ID]; ok {
				n.callbacks = without(n.callbacks, fmt.Sprintf("%s=%d", cmd.Name, cmd.Callback))
			}
		}
	}

	root := debugRoot(nodes)
	if root == nil {
		return ""
	}
	var b strings.Builder
	writeDebug(&b, nodes, css, root)
	return b.String()
}

func debugRoot(nodes map[DomID]*debugNode) *debugNode {
	var attached, loose []*debugNode
	for _, n := range nodes {
		switch n.parent {
		case RootID:
			attached = append(attached, n)
		case 0:
			loose = append(loose, n)
		}
	}
	for _, set := range [][]*debugNode{attached, loose} {
		if len(set) == 0 {
			continue
		}
		sort.Slice(set, func(i, j int) bool { return set[i].order < set[j].order })
		return set[0]
	}
	return nil
}

func writeDebug(b *strings.Builder, nodes map[DomID]*debugNode, css map[string]string, n *debugNode) {
	switch n.kind {
	case nodeText:
		b.WriteString(n.text)
		return
	case nodeComment:
		b.WriteString("<!-- " + n.text + " -->")
		return
	}

	b.WriteString("<" + n.tag)
	for _, a := range n.attrs {
		if a.name != "class" {
			fmt.Fprintf(b, " %s='%s'", a.name, a.value)
			continue
		}
		var classes, styles []string
		for _, c := range strings.Fields(a.value) {
			if body, ok := css[c]; ok {
				styles = append(styles, body)
			} else {
				classes = append(classes, c)
			}
		}
		if len(classes) > 0 {
			fmt.Fprintf(b, " class='%s'", strings.Join(classes, " "))
		}
		if len(styles) > 0 {
			fmt.Fprintf(b, " style='%s'", strings.Join(styles, " "))
		}
	}
	for _, cb := range n.callbacks {
		b.WriteString(" " + cb)
	}
	b.WriteString(">")
	for _, id := range n.children {
		if c, ok := nodes[id]; ok {
			writeDebug(b, nodes, css, c)
		}
	}
	b.WriteString("</" + n.tag + ">")
}

func without[T comparable](s []T, v T) []T {
	for i := range s {
		if s[i] == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func insertAt(s []DomID, id, ref DomID) []DomID {
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
