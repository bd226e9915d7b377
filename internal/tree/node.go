package tree

import (
	"sync/atomic"

	"github.com/LLNL/caliper-go/pkg/variant"
)

// InvalidID marks the absence of a node or attribute reference.
const InvalidID = ^uint64(0)

// RootID is the id of the synthetic root node.
const RootID = 0

// Node is one (attribute, value, parent) triple in the metadata tree. Its
// identity fields are immutable after publication; only the child and sibling
// links change, and only under the tree write lock. Links are atomic pointers
// so ancestor walks and sampler probes read a consistent view without
// taking the lock.
type Node struct {
	id    uint64
	attr  uint64
	value variant.Variant

	parent      *Node
	firstChild  atomic.Pointer[Node]
	nextSibling atomic.Pointer[Node]
}

// ID returns the node id.
func (n *Node) ID() uint64 {
	return n.id
}

// Attribute returns the id of the node naming this node's attribute.
func (n *Node) Attribute() uint64 {
	return n.attr
}

// Value returns the node's value.
func (n *Node) Value() variant.Variant {
	return n.value
}

// Parent returns the parent node, or nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// FirstChild returns the head of the child list, or nil.
func (n *Node) FirstChild() *Node {
	return n.firstChild.Load()
}

// NextSibling returns the next node in the parent's child list, or nil.
func (n *Node) NextSibling() *Node {
	return n.nextSibling.Load()
}

// IsRoot reports whether n is the synthetic root.
func (n *Node) IsRoot() bool {
	return n.parent == nil
}

// Matches reports whether n carries the given attribute and value.
func (n *Node) Matches(attrID uint64, value variant.Variant) bool {
	return n.attr == attrID && n.value.Equal(value)
}

// append links child at the head of n's child list. Caller holds the tree
// write lock.
func (n *Node) append(child *Node) {
	child.parent = n
	child.nextSibling.Store(n.firstChild.Load())
	n.firstChild.Store(child)
}
