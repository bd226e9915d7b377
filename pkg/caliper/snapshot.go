package caliper

import (
	"fmt"

	"github.com/LLNL/caliper-go/internal/tree"
	"github.com/LLNL/caliper-go/pkg/encoding"
	"github.com/LLNL/caliper-go/pkg/variant"
)

// scopeOrder is the order snapshots visit blackboards.
var scopeOrder = [...]Scope{ScopeTask, ScopeThread, ScopeProcess}

// PushSnapshot takes a snapshot on the channel: subscribed producers append
// their measurement entries, the blackboards of the requested scopes append
// the current context, and subscribed consumers receive the finalized
// record. Inactive channels ignore the request.
func (rt *Runtime) PushSnapshot(c *Channel, scopes Scope, trigger Entry) {
	if !c.IsActive() {
		return
	}

	rec := rt.buildSnapshot(c, scopes, trigger)

	rt.counters.Snapshots.Add(1)

	fireRecord(c, c.events.ProcessSnapshot, rec)
}

// PullSnapshot fills a record with producer entries and the current context
// of the requested scopes without dispatching it to consumers.
func (rt *Runtime) PullSnapshot(c *Channel, scopes Scope, trigger Entry) *SnapshotRecord {
	return rt.buildSnapshot(c, scopes, trigger)
}

// PullContext encodes the current context into the snapshot wire format and
// appends it to buf. It is the raw building block for cross-process
// aggregation.
func (rt *Runtime) PullContext(c *Channel, scopes Scope, buf []byte) ([]byte, error) {
	rec, err := rt.buildSnapshot(c, scopes, Entry{}).Compress()
	if err != nil {
		return buf, err
	}

	return rec.AppendTo(buf), nil
}

func (rt *Runtime) buildSnapshot(c *Channel, scopes Scope, trigger Entry) *SnapshotRecord {
	rec := NewSnapshotRecord(trigger)

	for _, h := range c.events.Snapshot {
		h(c, scopes, rec)
	}

	rt.appendScopes(rec, scopes, false)

	return rec
}

// appendScopes copies the blackboards of the requested scopes into rec in
// task, thread, process order. In sampler mode blackboards are probed, not
// locked; a failed probe drops that scope's entries.
func (rt *Runtime) appendScopes(rec *SnapshotRecord, scopes Scope, sampler bool) bool {
	complete := true

	refFn := func(n *tree.Node) { rec.Append(NodeEntry(n)) }
	immFn := func(attrID uint64, v variant.Variant) { rec.Append(immediateEntry(attrID, v)) }

	for _, scope := range scopeOrder {
		if scopes&scope == 0 {
			continue
		}

		bb := rt.contextBuffer(scope)

		if sampler {
			if !bb.TrySnapshot(refFn, immFn) {
				complete = false
			}

			continue
		}

		bb.Snapshot(refFn, immFn)
	}

	return complete
}

// TryPushSnapshot is the sampler-path PushSnapshot. If the lock probe of any
// requested scope fails, the sample counts as dropped and nothing is
// dispatched.
func (rt *Runtime) TryPushSnapshot(c *Channel, scopes Scope, trigger Entry) bool {
	if !c.IsActive() {
		return false
	}

	rec := NewSnapshotRecord(trigger)

	for _, h := range c.events.Snapshot {
		h(c, scopes, rec)
	}

	if !rt.appendScopes(rec, scopes, true) {
		rt.counters.DroppedSamples.Add(1)
		return false
	}

	rt.counters.Snapshots.Add(1)

	fireRecord(c, c.events.ProcessSnapshot, rec)

	return true
}

//
// --- Flush
//

// Flush replays every record retained by the channel's services: each record
// passes through postprocess_snapshot (symbol and source resolution hang
// there), then process_snapshot, then proc.
func (rt *Runtime) Flush(c *Channel, proc func(*SnapshotRecord)) {
	fireChannel(c, c.events.PreFlush)

	sink := func(rec *SnapshotRecord) {
		fireRecord(c, c.events.PostprocessSnapshot, rec)
		fireRecord(c, c.events.ProcessSnapshot, rec)

		if proc != nil {
			proc(rec)
		}
	}

	for _, h := range c.events.Flush {
		h(c, sink)
	}
}

// FlushAndWrite triggers the channel's output services: each writer runs its
// own flush pass over the retained records.
func (rt *Runtime) FlushAndWrite(c *Channel) {
	fireChannel(c, c.events.WriteOutput)
}

//
// --- Globals and serialization helpers
//

// Globals returns the current run-wide metadata entries.
func (rt *Runtime) Globals() []Entry {
	var entries []Entry

	rt.globalsBB.Snapshot(
		func(n *tree.Node) {
			if attr, ok := rt.GetAttributeByID(n.Attribute()); ok && attr.Properties().Global() {
				entries = append(entries, NodeEntry(n))
			}
		},
		func(attrID uint64, v variant.Variant) {
			if attr, ok := rt.GetAttributeByID(attrID); ok && attr.Properties().Global() {
				entries = append(entries, immediateEntry(attrID, v))
			}
		},
	)

	return entries
}

// SetGlobal assigns a run-wide metadata value. The attribute must carry the
// global property.
func (rt *Runtime) SetGlobal(attr Attribute, value variant.Variant) error {
	if !attr.Valid() || !attr.Properties().Global() {
		return ErrInvalidAttribute
	}

	if value.Kind() != attr.Type() {
		return ErrTypeMismatch
	}

	return rt.globalsBB.Set(attr.ID(), value)
}

// NodeInfo converts a tree node into its wire record. The bootstrap prefix
// is shared between writers and readers and never serialized; callers skip
// ids below tree.NumBootstrapNodes.
func NodeInfo(n *tree.Node) encoding.NodeInfo {
	info := encoding.NodeInfo{
		ID:       n.ID(),
		AttrID:   n.Attribute(),
		ParentID: encoding.InvalidID,
		Value:    n.Value(),
	}

	if p := n.Parent(); p != nil && !p.IsRoot() {
		info.ParentID = p.ID()
	}

	return info
}

// AppendNodes serializes every tree node with id at or above fromID into
// nb, in id order. Cross-process aggregators ship the buffer and rebuild the
// tree on the receiving side; the bootstrap prefix is never included.
// Returns the next fromID to use for an incremental follow-up.
func (rt *Runtime) AppendNodes(nb *encoding.NodeBuffer, fromID uint64) uint64 {
	next := fromID

	rt.tree.ForEachNode(func(n *tree.Node) {
		if n.ID() < fromID || int(n.ID()) < tree.NumBootstrapNodes() {
			return
		}

		nb.Append(NodeInfo(n))

		next = n.ID() + 1
	})

	return next
}

// MergeNodes rebuilds the nodes of a node buffer into the runtime's tree,
// returning a remap table from sender ids to local ids. Records must arrive
// parents-and-attributes first, which AppendNodes' id order guarantees.
func (rt *Runtime) MergeNodes(nb *encoding.NodeBuffer) (map[uint64]uint64, error) {
	remap := make(map[uint64]uint64, nb.Count())

	resolve := func(id uint64) uint64 {
		if int(id) < tree.NumBootstrapNodes() {
			return id
		}

		if local, ok := remap[id]; ok {
			return local
		}

		return tree.InvalidID
	}

	err := nb.ForEach(func(info encoding.NodeInfo) error {
		attrID := resolve(info.AttrID)
		if attrID == tree.InvalidID {
			return fmt.Errorf("%w: unknown attribute id %d", ErrBadEncoding, info.AttrID)
		}

		var parent *tree.Node

		if info.ParentID != encoding.InvalidID {
			parentID := resolve(info.ParentID)
			if parentID == tree.InvalidID {
				return fmt.Errorf("%w: unknown parent id %d", ErrBadEncoding, info.ParentID)
			}

			parent = rt.tree.Node(parentID)
		}

		node, err := rt.tree.GetOrCreatePath(attrID, []variant.Variant{info.Value}, parent)
		if err != nil {
			return err
		}

		remap[info.ID] = node.ID()

		return nil
	})
	if err != nil {
		return nil, err
	}

	return remap, nil
}

// RecordFromView rebuilds a snapshot record from its decoded wire form,
// resolving node ids against the runtime's tree. Unknown ids are skipped.
func (rt *Runtime) RecordFromView(view encoding.RecordView) *SnapshotRecord {
	rec := NewSnapshotRecord(Entry{})

	for _, id := range view.NodeIDs {
		if n := rt.tree.Node(id); n != nil {
			rec.Append(NodeEntry(n))
		}
	}

	for i, attrID := range view.AttrIDs {
		rec.Append(immediateEntry(attrID, view.Values[i]))
	}

	return rec
}
