package cell

import "fmt"

type state uint8

const (
	stateFree state = iota
	stateReading
	stateChanging
)

func (s state) String() string {
	switch s {
	case stateReading:
		return "get"
	case stateChanging:
		return "change"
	default:
		return "free"
	}
}

// ReentrancyError is the panic value raised when a cell is accessed while an
// access to the same cell is still in progress.
type ReentrancyError struct {
	// Label identifies the cell (see NewLabeled).
	Label string
	// Active is the access that was in progress ("get" or "change").
	Active string
	// Attempted is the access that was refused.
	Attempted string
}

func (e *ReentrancyError) Error() string {
	label := e.Label
	if label == "" {
		label = "cell"
	}
	return fmt.Sprintf("cell: reentrant %s on %s during %s", e.Attempted, label, e.Active)
}

// Cell is a single-owner container giving exclusive interior access.
// The zero value holds the zero T and is ready to use.
type Cell[T any] struct {
	value T
	state state
	label string
}

// New returns a cell holding value.
func New[T any](value T) *Cell[T] {
	return &Cell[T]{value: value}
}

// NewLabeled returns a cell whose label appears in reentrancy panics.
func NewLabeled[T any](label string, value T) *Cell[T] {
	return &Cell[T]{value: value, label: label}
}

// Busy reports whether an access to the cell is in progress.
func (c *Cell[T]) Busy() bool {
	return c.state != stateFree
}

func (c *Cell[T]) acquire(next state) {
	if c.state != stateFree {
		panic(&ReentrancyError{
			Label:     c.label,
			Active:    c.state.String(),
			Attempted: next.String(),
		})
	}
	c.state = next
}

func (c *Cell[T]) release() {
	c.state = stateFree
}

// Get runs fn with read access to the cell's value and returns its result.
// fn must not retain the pointer past its return.
func Get[T, R any](c *Cell[T], fn func(*T) R) R {
	c.acquire(stateReading)
	defer c.release()
	return fn(&c.value)
}

// Change runs fn with mutable access to the cell's value and returns its result.
func Change[T, R any](c *Cell[T], fn func(*T) R) R {
	c.acquire(stateChanging)
	defer c.release()
	return fn(&c.value)
}

// Read runs fn with read access and no result.
func (c *Cell[T]) Read(fn func(*T)) {
	c.acquire(stateReading)
	defer c.release()
	fn(&c.value)
}

// Update runs fn with mutable access and no result.
func (c *Cell[T]) Update(fn func(*T)) {
	c.acquire(stateChanging)
	defer c.release()
	fn(&c.value)
}

// Load returns a copy of the value.
func (c *Cell[T]) Load() T {
	c.acquire(stateReading)
	defer c.release()
	return c.value
}

// Store replaces the value.
func (c *Cell[T]) Store(value T) {
	c.acquire(stateChanging)
	defer c.release()
	c.value = value
}

// Swap replaces the value and returns the previous one.
func (c *Cell[T]) Swap(value T) T {
	c.acquire(stateChanging)
	defer c.release()
	old := c.value
	c.value = value
	return old
}
