package dom

// EventKind names an event a handler can be attached to.
type EventKind string

const (
	EventClick      EventKind = "click"
	EventInput      EventKind = "input"
	EventMouseEnter EventKind = "mouseenter"
	EventMouseLeave EventKind = "mouseleave"
	EventKeyDown    EventKind = "keydown"
	EventDropFile   EventKind = "dropfile"
	// EventHookKeyDown listens for keydown on the whole document, in the
	// capture phase, while the element it is attached to is alive.
	EventHookKeyDown EventKind = "hook_keydown"
)

// KeyDownEvent carries the keyboard state of a keydown event.
type KeyDownEvent struct {
	Key   string
	Code  string
	Alt   bool
	Ctrl  bool
	Shift bool
	Meta  bool
}

// DropFile is one file of a drop event.
type DropFile struct {
	Name string
	Data []byte
}

// Event is delivered to a Handler.
type Event struct {
	Kind  EventKind
	Value string // input value
	Key   KeyDownEvent
	Files []DropFile
}

// Result tells the driver what to do with the native event afterwards.
type Result struct {
	StopPropagation bool
	PreventDefault  bool
}

// Handler handles an event.
type Handler func(Event) Result
