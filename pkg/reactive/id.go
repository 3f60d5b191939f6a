package reactive

import (
	"strconv"
	"sync/atomic"
)

var graphIDCounter uint64

// GraphID identifies a node in a dependency graph. IDs are process-unique,
// monotonically increasing and never reused.
type GraphID uint64

// NewGraphID returns the next unused GraphID.
func NewGraphID() GraphID {
	return GraphID(atomic.AddUint64(&graphIDCounter, 1))
}

func (id GraphID) String() string {
	return "g" + strconv.FormatUint(uint64(id), 10)
}
