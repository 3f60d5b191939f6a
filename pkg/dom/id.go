package dom

import (
	"strconv"
	"sync/atomic"
)

// DomID identifies an element, text or comment node. IDs are never reused.
type DomID uint64

// RootID is the id of the document root that applications mount into.
const RootID DomID = 1

var domIDCounter = uint64(RootID)

// NewDomID returns the next unused DomID.
func NewDomID() DomID {
	return DomID(atomic.AddUint64(&domIDCounter, 1))
}

func (id DomID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// CallbackID identifies a registered event handler.
type CallbackID uint64

var callbackIDCounter uint64

// NewCallbackID returns the next unused CallbackID.
func NewCallbackID() CallbackID {
	return CallbackID(atomic.AddUint64(&callbackIDCounter, 1))
}
