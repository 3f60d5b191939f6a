// Package cell provides the exclusive-access container used by every piece of
// mutable state in spindle.
//
// A Cell owns a single value and only ever hands it out inside a scoped
// closure. Nested access to the same cell from within such a closure is a
// programming error: it would alias mutable state, so it panics with a
// *ReentrancyError instead of returning.
//
//	counter := cell.New(0)
//	cell.Change(counter, func(n *int) struct{} { *n++; return struct{}{} })
//	value := cell.Get(counter, func(n *int) int { return *n })
//
// Cells do no locking. They are meant for the single-threaded application
// loop; sharing one across goroutines is undefined.
package cell
