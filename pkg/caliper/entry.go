package caliper

import (
	"github.com/LLNL/caliper-go/internal/tree"
	"github.com/LLNL/caliper-go/pkg/encoding"
	"github.com/LLNL/caliper-go/pkg/variant"
)

// Entry is one item in a snapshot: either a node reference standing for the
// whole path it roots, or an (attribute, value) pair. The zero Entry is
// empty.
type Entry struct {
	node *tree.Node

	attr  uint64
	value variant.Variant
}

// NodeEntry returns a reference entry for the given node.
func NodeEntry(n *tree.Node) Entry {
	return Entry{node: n}
}

// ImmediateEntry returns an (attribute, value) entry.
func ImmediateEntry(attr Attribute, value variant.Variant) Entry {
	return Entry{attr: attr.ID(), value: value}
}

// immediateEntry builds an entry from a raw attribute id.
func immediateEntry(attrID uint64, value variant.Variant) Entry {
	return Entry{attr: attrID, value: value}
}

// Empty reports whether the entry carries nothing.
func (e Entry) Empty() bool {
	return e.node == nil && e.value.Empty() && e.attr == 0
}

// IsReference reports whether the entry is a node reference.
func (e Entry) IsReference() bool {
	return e.node != nil
}

// Node returns the referenced node, or nil for immediate entries.
func (e Entry) Node() *tree.Node {
	return e.node
}

// AttributeID returns the attribute id of an immediate entry, or the
// referenced node's attribute id.
func (e Entry) AttributeID() uint64 {
	if e.node != nil {
		return e.node.Attribute()
	}

	return e.attr
}

// Value returns the immediate value, or the referenced node's value.
func (e Entry) Value() variant.Variant {
	if e.node != nil {
		return e.node.Value()
	}

	return e.value
}

// SnapshotRecord is the mutable record a snapshot builds up: measurement
// producers and blackboards append entries, postprocessing handlers may add
// more. Handlers must not retain the record past their invocation.
type SnapshotRecord struct {
	trigger Entry
	entries []Entry
}

// NewSnapshotRecord returns an empty record with the given trigger info.
func NewSnapshotRecord(trigger Entry) *SnapshotRecord {
	return &SnapshotRecord{trigger: trigger}
}

// Trigger returns the trigger info the snapshot was taken with.
func (r *SnapshotRecord) Trigger() Entry {
	return r.trigger
}

// Append adds entries to the record. Duplicate attributes are kept: a later
// producer's entry never evicts an earlier one.
func (r *SnapshotRecord) Append(entries ...Entry) {
	r.entries = append(r.entries, entries...)
}

// Entries returns the record's entries in append order.
func (r *SnapshotRecord) Entries() []Entry {
	return r.entries
}

// Len returns the number of entries.
func (r *SnapshotRecord) Len() int {
	return len(r.entries)
}

// Clone returns a copy of the record whose entry list is independent of the
// original. Services that retain records past their handler invocation must
// clone them first.
func (r *SnapshotRecord) Clone() *SnapshotRecord {
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)

	return &SnapshotRecord{trigger: r.trigger, entries: entries}
}

// Compress encodes the record into the snapshot wire format: references
// first, then immediates. It fails with ErrRecordOverflow when either flavor
// exceeds the per-record limit.
func (r *SnapshotRecord) Compress() (*encoding.CompressedRecord, error) {
	rec := encoding.NewCompressedRecord()

	for _, e := range r.entries {
		if !e.IsReference() {
			continue
		}

		if err := rec.AppendNode(e.Node().ID()); err != nil {
			return nil, err
		}
	}

	for _, e := range r.entries {
		if e.IsReference() || e.Empty() {
			continue
		}

		if err := rec.AppendImmediate(e.AttributeID(), e.Value()); err != nil {
			return nil, err
		}
	}

	return rec, nil
}
