package reactive

// NodeKind says what a graph node is, and therefore what a change reaching it
// does.
type NodeKind uint8

const (
	// KindValue nodes are leaves; a change only propagates past them.
	KindValue NodeKind = iota + 1
	// KindComputed nodes are marked stale.
	KindComputed
	// KindClient nodes are queued and re-run.
	KindClient
)

func (k NodeKind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindComputed:
		return "computed"
	case KindClient:
		return "client"
	default:
		return "unknown"
	}
}

// RefreshToken tells the graph how to invalidate a node without holding the
// node itself.
type RefreshToken struct {
	kind  NodeKind
	stale func()
	run   func()
}

// ValueToken is the token for a leaf node.
func ValueToken() RefreshToken {
	return RefreshToken{kind: KindValue}
}

// ComputedToken is the token for a derived node; markStale clears its
// freshness flag.
func ComputedToken(markStale func()) RefreshToken {
	return RefreshToken{kind: KindComputed, stale: markStale}
}

// ClientToken is the token for a client; run re-executes its callback.
func ClientToken(run func()) RefreshToken {
	return RefreshToken{kind: KindClient, run: run}
}

// Kind returns the kind of node the token belongs to.
func (t RefreshToken) Kind() NodeKind {
	return t.kind
}
