package dom

import (
	"strings"

	"github.com/vango-dev/spindle/pkg/reactive"
)

// AttrValue is an attribute value that is either fixed or follows a source.
type AttrValue struct {
	static string
	source reactive.Source[string]
}

// Static returns a fixed attribute value.
func Static(v string) AttrValue {
	return AttrValue{static: v}
}

// Follow returns an attribute value that tracks src.
func Follow(src reactive.Source[string]) AttrValue {
	return AttrValue{source: src}
}

// Element wraps an element node. It owns its children, the subscriptions
// that keep its attributes current, its event handlers and any registered
// cleanups.
type Element struct {
	doc *Document
	id  DomID
	tag string

	children []Node
	subs     []reactive.Closer
	cleanups []func()

	callbacks map[EventKind]CallbackID

	classes  []string
	dynClass string

	dropped bool
}

// NewElement creates an element node.
func NewElement(doc *Document, tag string) *Element {
	e := &Element{doc: doc, id: NewDomID(), tag: tag}
	doc.Emit(CreateNode(e.id, tag))
	return e
}

// ID returns the node id.
func (e *Element) ID() DomID { return e.id }

// Tag returns the element name.
func (e *Element) Tag() string { return e.tag }

// Document returns the document the element lives in.
func (e *Element) Document() *Document { return e.doc }

// Ref returns a non-owning handle to the element.
func (e *Element) Ref() Ref {
	return Ref{doc: e.doc, id: e.id}
}

// Attr sets a fixed attribute.
func (e *Element) Attr(name, value string) *Element {
	e.doc.Emit(SetAttr(e.id, name, value))
	return e
}

// AttrComputed keeps an attribute equal to the current value of src.
func (e *Element) AttrComputed(name string, src reactive.Source[string]) *Element {
	client := reactive.Subscribe(src, func(v string) {
		e.doc.Emit(SetAttr(e.id, name, v))
	})
	e.subs = append(e.subs, client)
	return e
}

// SetAttr applies an AttrValue.
func (e *Element) SetAttr(name string, v AttrValue) *Element {
	if v.source != nil {
		return e.AttrComputed(name, v.source)
	}
	return e.Attr(name, v.static)
}

// RemoveAttr removes an attribute.
func (e *Element) RemoveAttr(name string) *Element {
	e.doc.Emit(RemoveAttr(e.id, name))
	return e
}

// Class adds fixed class names.
func (e *Element) Class(names ...string) *Element {
	e.classes = append(e.classes, names...)
	e.emitClass()
	return e
}

// ClassComputed adds a class name that follows src.
func (e *Element) ClassComputed(src reactive.Source[string]) *Element {
	client := reactive.Subscribe(src, func(v string) {
		e.dynClass = v
		e.emitClass()
	})
	e.subs = append(e.subs, client)
	return e
}

// Css styles the element with a generated class for body.
func (e *Element) Css(body string) *Element {
	name := CssClass(body)
	e.doc.InsertCss("."+name, body)
	return e.Class(name)
}

// CssComputed styles the element with the rule body src currently holds.
func (e *Element) CssComputed(src reactive.Source[string]) *Element {
	client := reactive.Subscribe(src, func(body string) {
		name := CssClass(body)
		e.doc.InsertCss("."+name, body)
		e.dynClass = name
		e.emitClass()
	})
	e.subs = append(e.subs, client)
	return e
}

func (e *Element) emitClass() {
	names := e.classes
	if e.dynClass != "" {
		names = append(names[:len(names):len(names)], e.dynClass)
	}
	e.doc.Emit(SetAttr(e.id, "class", strings.Join(names, " ")))
}

// Child appends n and takes ownership of it.
func (e *Element) Child(n Node) *Element {
	if n == nil {
		return e
	}
	e.children = append(e.children, n)
	e.doc.Emit(InsertBefore(e.id, n.ID(), 0))
	if m, ok := n.(mountable); ok {
		m.mounted(e.id)
	}
	return e
}

// Children appends every node in order.
func (e *Element) Children(nodes ...Node) *Element {
	for _, n := range nodes {
		e.Child(n)
	}
	return e
}

// Text appends a fixed text node.
func (e *Element) Text(s string) *Element {
	return e.Child(NewText(e.doc, s))
}

// ChildNodes returns the owned children in order.
func (e *Element) ChildNodes() []Node {
	return e.children
}

// On attaches h to the event kind, replacing any handler registered for the
// same kind before.
func (e *Element) On(kind EventKind, h Handler) *Element {
	if e.callbacks == nil {
		e.callbacks = make(map[EventKind]CallbackID)
	}
	if old, ok := e.callbacks[kind]; ok {
		e.doc.UnregisterCallback(old)
		e.doc.Emit(CallbackRemove(e.id, kind, old))
	}
	cb := e.doc.RegisterCallback(h)
	e.callbacks[kind] = cb
	e.doc.Emit(CallbackAdd(e.id, kind, cb))
	return e
}

// Off detaches the handler for the event kind.
func (e *Element) Off(kind EventKind) *Element {
	if cb, ok := e.callbacks[kind]; ok {
		delete(e.callbacks, kind)
		e.doc.UnregisterCallback(cb)
		e.doc.Emit(CallbackRemove(e.id, kind, cb))
	}
	return e
}

// OnClick attaches a click handler.
func (e *Element) OnClick(fn func()) *Element {
	return e.On(EventClick, func(Event) Result {
		fn()
		return Result{StopPropagation: true, PreventDefault: true}
	})
}

// OnInput attaches a handler receiving the new input value.
func (e *Element) OnInput(fn func(value string)) *Element {
	return e.On(EventInput, func(ev Event) Result {
		fn(ev.Value)
		return Result{}
	})
}

// OnMouseEnter attaches a mouseenter handler.
func (e *Element) OnMouseEnter(fn func()) *Element {
	return e.On(EventMouseEnter, func(Event) Result {
		fn()
		return Result{}
	})
}

// OnMouseLeave attaches a mouseleave handler.
func (e *Element) OnMouseLeave(fn func()) *Element {
	return e.On(EventMouseLeave, func(Event) Result {
		fn()
		return Result{}
	})
}

// OnKeyDown attaches a keydown handler. Returning true prevents the default
// action and stops propagation.
func (e *Element) OnKeyDown(fn func(KeyDownEvent) bool) *Element {
	return e.On(EventKeyDown, func(ev Event) Result {
		if fn(ev.Key) {
			return Result{StopPropagation: true, PreventDefault: true}
		}
		return Result{}
	})
}

// HookKeyDown attaches a document-wide keydown handler that runs before any
// element handler. Returning true prevents the default action.
func (e *Element) HookKeyDown(fn func(KeyDownEvent) bool) *Element {
	return e.On(EventHookKeyDown, func(ev Event) Result {
		return Result{PreventDefault: fn(ev.Key)}
	})
}

// OnDropFile attaches a handler receiving dropped files.
func (e *Element) OnDropFile(fn func([]DropFile)) *Element {
	return e.On(EventDropFile, func(ev Event) Result {
		fn(ev.Files)
		return Result{PreventDefault: true}
	})
}

// Track makes the element own a subscription.
func (e *Element) Track(sub reactive.Closer) *Element {
	e.subs = append(e.subs, sub)
	return e
}

// AddCleanup registers fn to run when the element is dropped.
func (e *Element) AddCleanup(fn func()) *Element {
	e.cleanups = append(e.cleanups, fn)
	return e
}

// Drop removes the element, then drops its children, its subscriptions,
// its handlers and its cleanups. Dropping twice has no effect.
func (e *Element) Drop() {
	if e.dropped {
		return
	}
	e.dropped = true
	e.doc.Emit(Remove(e.id))

	children := e.children
	e.children = nil
	for _, c := range children {
		c.Drop()
	}

	subs := e.subs
	e.subs = nil
	for _, s := range subs {
		s.Off()
	}

	for kind, cb := range e.callbacks {
		e.doc.UnregisterCallback(cb)
		e.doc.Emit(CallbackRemove(e.id, kind, cb))
	}
	e.callbacks = nil

	cleanups := e.cleanups
	e.cleanups = nil
	for _, fn := range cleanups {
		fn()
	}
}
