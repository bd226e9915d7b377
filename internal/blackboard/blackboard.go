// Package blackboard implements the per-scope context buffer: the mutable
// mapping from attribute id to either the current tree node (hierarchical
// attributes) or the current value (value attributes).
package blackboard

import (
	"errors"
	"sort"

	"github.com/LLNL/caliper-go/internal/arena"
	"github.com/LLNL/caliper-go/internal/sigsafe"
	"github.com/LLNL/caliper-go/internal/tree"
	"github.com/LLNL/caliper-go/pkg/variant"
)

// ErrWrongStorageMode is returned when a node entry is written over a value
// entry or vice versa.
var ErrWrongStorageMode = errors.New("wrong storage mode for attribute")

// ErrMissingEntry is returned when unset finds no entry for the attribute.
var ErrMissingEntry = errors.New("no blackboard entry for attribute")

// indexEntry maps an attribute id to its slot. ref selects the node table,
// otherwise the value tables.
type indexEntry struct {
	attr uint64
	ref  bool
	pos  int
}

// Blackboard holds the current context of one scope. Reference entries and
// value entries live in separate tables, each in insertion order; a sorted
// index keyed by attribute id gives O(log n) probing. Snapshots copy the
// tables in stable order: references first, then values.
type Blackboard struct {
	lock sigsafe.RWLock

	arena *arena.Arena

	nodes []*tree.Node

	attrs []uint64
	data  []variant.Variant

	index []indexEntry
}

// New creates an empty blackboard. Value payloads of kind string/blob are
// copied into a, which the runtime merges back into the process arena when
// the blackboard is released.
func New(a *arena.Arena) *Blackboard {
	return &Blackboard{
		arena: a,
		nodes: make([]*tree.Node, 0, 32),
		attrs: make([]uint64, 0, 32),
		data:  make([]variant.Variant, 0, 32),
		index: make([]indexEntry, 0, 64),
	}
}

func (b *Blackboard) find(attrID uint64) (int, bool) {
	i := sort.Search(len(b.index), func(i int) bool {
		return b.index[i].attr >= attrID
	})

	return i, i < len(b.index) && b.index[i].attr == attrID
}

// GetNode returns the current node for a hierarchical attribute, or nil when
// the attribute has no entry or is stored as a value.
func (b *Blackboard) GetNode(attrID uint64) *tree.Node {
	b.lock.RLock()
	defer b.lock.RUnlock()

	i, ok := b.find(attrID)
	if !ok || !b.index[i].ref {
		return nil
	}

	return b.nodes[b.index[i].pos]
}

// Get returns the current value for a value attribute. ok is false when the
// attribute has no entry or is stored as a node.
func (b *Blackboard) Get(attrID uint64) (variant.Variant, bool) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	i, ok := b.find(attrID)
	if !ok || b.index[i].ref {
		return variant.Variant{}, false
	}

	return b.data[b.index[i].pos], true
}

// SetNode stores node as the current entry of a hierarchical attribute,
// replacing any previous node entry.
func (b *Blackboard) SetNode(attrID uint64, node *tree.Node) error {
	if node == nil {
		return ErrMissingEntry
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	i, ok := b.find(attrID)
	if ok {
		if !b.index[i].ref {
			return ErrWrongStorageMode
		}

		b.nodes[b.index[i].pos] = node

		return nil
	}

	b.insert(i, indexEntry{attr: attrID, ref: true, pos: len(b.nodes)})
	b.nodes = append(b.nodes, node)

	return nil
}

// Set stores value as the current entry of a value attribute, replacing any
// previous value entry. String and blob payloads are copied into the
// blackboard arena first.
func (b *Blackboard) Set(attrID uint64, value variant.Variant) error {
	value = b.pin(value)

	b.lock.Lock()
	defer b.lock.Unlock()

	i, ok := b.find(attrID)
	if ok {
		if b.index[i].ref {
			return ErrWrongStorageMode
		}

		b.data[b.index[i].pos] = value

		return nil
	}

	b.insert(i, indexEntry{attr: attrID, ref: false, pos: len(b.attrs)})
	b.attrs = append(b.attrs, attrID)
	b.data = append(b.data, value)

	return nil
}

// pin moves borrowed payloads into arena-owned memory.
func (b *Blackboard) pin(value variant.Variant) variant.Variant {
	if b.arena == nil {
		return value
	}

	switch value.Kind() {
	case variant.String:
		if s, ok := value.AsString(); ok {
			return variant.NewString(b.arena.CopyString(s))
		}
	case variant.Usr:
		if bytes, ok := value.AsBytes(); ok {
			return variant.NewBytes(b.arena.Copy(bytes))
		}
	}

	return value
}

// TryGetNode is the sampler-path GetNode. ok is false when the lock probe
// fails; a nil node with ok true means no entry.
func (b *Blackboard) TryGetNode(attrID uint64) (*tree.Node, bool) {
	if !b.lock.SigTryRLock() {
		return nil, false
	}

	defer b.lock.SigRUnlock()

	i, ok := b.find(attrID)
	if !ok || !b.index[i].ref {
		return nil, true
	}

	return b.nodes[b.index[i].pos], true
}

// TrySetNode is the sampler-path SetNode. It returns false without touching
// the blackboard when the lock probe fails.
func (b *Blackboard) TrySetNode(attrID uint64, node *tree.Node) (bool, error) {
	if node == nil {
		return true, ErrMissingEntry
	}

	if !b.lock.SigTryWLock() {
		return false, nil
	}

	defer b.lock.SigWUnlock()

	i, ok := b.find(attrID)
	if ok {
		if !b.index[i].ref {
			return true, ErrWrongStorageMode
		}

		b.nodes[b.index[i].pos] = node

		return true, nil
	}

	b.insert(i, indexEntry{attr: attrID, ref: true, pos: len(b.nodes)})
	b.nodes = append(b.nodes, node)

	return true, nil
}

// Unset removes the entry for attrID of either flavor.
func (b *Blackboard) Unset(attrID uint64) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	i, ok := b.find(attrID)
	if !ok {
		return ErrMissingEntry
	}

	e := b.index[i]

	if e.ref {
		b.nodes = append(b.nodes[:e.pos], b.nodes[e.pos+1:]...)
	} else {
		b.attrs = append(b.attrs[:e.pos], b.attrs[e.pos+1:]...)
		b.data = append(b.data[:e.pos], b.data[e.pos+1:]...)
	}

	b.index = append(b.index[:i], b.index[i+1:]...)

	// Close the hole: later entries of the same flavor shift down.
	for j := range b.index {
		if b.index[j].ref == e.ref && b.index[j].pos > e.pos {
			b.index[j].pos--
		}
	}

	return nil
}

func (b *Blackboard) insert(i int, e indexEntry) {
	b.index = append(b.index, indexEntry{})
	copy(b.index[i+1:], b.index[i:])
	b.index[i] = e
}

// Snapshot appends the blackboard's entries in stable order: node entries in
// insertion order, then value entries in insertion order.
func (b *Blackboard) Snapshot(refFn func(*tree.Node), immFn func(uint64, variant.Variant)) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	b.emit(refFn, immFn)
}

// TrySnapshot is the sampler-path Snapshot. It returns false without calling
// the callbacks when the lock probe fails.
func (b *Blackboard) TrySnapshot(refFn func(*tree.Node), immFn func(uint64, variant.Variant)) bool {
	if !b.lock.SigTryRLock() {
		return false
	}

	defer b.lock.SigRUnlock()

	b.emit(refFn, immFn)

	return true
}

func (b *Blackboard) emit(refFn func(*tree.Node), immFn func(uint64, variant.Variant)) {
	for _, n := range b.nodes {
		refFn(n)
	}

	for i, attr := range b.attrs {
		immFn(attr, b.data[i])
	}
}

// Len returns the number of entries of both flavors.
func (b *Blackboard) Len() int {
	b.lock.RLock()
	defer b.lock.RUnlock()

	return len(b.nodes) + len(b.attrs)
}

// Arena returns the blackboard's payload arena, or nil.
func (b *Blackboard) Arena() *arena.Arena {
	return b.arena
}
