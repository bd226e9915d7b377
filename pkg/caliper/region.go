package caliper

import (
	"github.com/LLNL/caliper-go/pkg/variant"
)

// Begin pushes value onto the attribute's stack: the new tree node is
// created (or found) under the attribute's current node and becomes the
// current entry of the attribute's blackboard. Value attributes are assigned
// instead of nested. A PoolExhausted failure leaves the blackboard
// unchanged, so the region is effectively skipped.
func (rt *Runtime) Begin(attr Attribute, value variant.Variant) error {
	if !attr.Valid() {
		return ErrInvalidAttribute
	}

	if value.Kind() != attr.Type() {
		return ErrTypeMismatch
	}

	fire := !attr.SkipEvents()

	if fire {
		for _, c := range rt.activeChannels() {
			if c.filter.Pass(value) {
				fireRegion(c, c.events.PreBegin, attr)
			}
		}
	}

	bb := rt.contextBuffer(attr.Scope())

	if attr.StoreAsValue() {
		if err := bb.Set(attr.ID(), value); err != nil {
			return err
		}
	} else {
		parent := bb.GetNode(attr.ID())

		node, err := rt.tree.GetOrCreatePath(attr.ID(), []variant.Variant{value}, parent)
		if err != nil {
			rt.warnPoolExhausted(err)
			return err
		}

		if err := bb.SetNode(attr.ID(), node); err != nil {
			return err
		}
	}

	rt.counters.Updates.Add(1)

	if fire {
		for _, c := range rt.activeChannels() {
			if c.filter.Pass(value) {
				fireRegion(c, c.events.PostBegin, attr)
			}
		}
	}

	return nil
}

// End pops the attribute's innermost value. The current node need not carry
// the attribute itself: when an intervening attribute's End was elided, End
// rewinds to the nearest ancestor carrying the attribute rather than
// failing. Whether that tolerance is intended semantics or a concession to
// buggy instrumentation is undecided; the behavior is kept as is.
func (rt *Runtime) End(attr Attribute) error {
	if !attr.Valid() {
		return ErrInvalidAttribute
	}

	fire := !attr.SkipEvents()

	if fire {
		for _, c := range rt.activeChannels() {
			fireRegion(c, c.events.PreEnd, attr)
		}
	}

	bb := rt.contextBuffer(attr.Scope())

	if attr.StoreAsValue() {
		if err := bb.Unset(attr.ID()); err != nil {
			return err
		}
	} else {
		cur := bb.GetNode(attr.ID())
		if cur == nil {
			return ErrMissingEntry
		}

		node := rt.tree.FindWithAttribute(attr.ID(), cur)
		if node == nil {
			return ErrMissingEntry
		}

		parent := node.Parent()

		if parent == nil || parent.IsRoot() {
			if err := bb.Unset(attr.ID()); err != nil {
				return err
			}
		} else if err := bb.SetNode(attr.ID(), parent); err != nil {
			return err
		}
	}

	rt.counters.Updates.Add(1)

	if fire {
		for _, c := range rt.activeChannels() {
			fireRegion(c, c.events.PostEnd, attr)
		}
	}

	return nil
}

// Set assigns value as the attribute's current innermost entry, replacing
// the current node rather than nesting under it.
func (rt *Runtime) Set(attr Attribute, value variant.Variant) error {
	if !attr.Valid() {
		return ErrInvalidAttribute
	}

	if value.Kind() != attr.Type() {
		return ErrTypeMismatch
	}

	fire := !attr.SkipEvents()

	if fire {
		for _, c := range rt.activeChannels() {
			if c.filter.Pass(value) {
				fireRegion(c, c.events.PreSet, attr)
			}
		}
	}

	bb := rt.contextBuffer(attr.Scope())

	if attr.StoreAsValue() {
		if err := bb.Set(attr.ID(), value); err != nil {
			return err
		}
	} else {
		var parent = bb.GetNode(attr.ID())

		if parent != nil {
			parent = parent.Parent()
		}

		node, err := rt.tree.GetOrCreatePath(attr.ID(), []variant.Variant{value}, parent)
		if err != nil {
			rt.warnPoolExhausted(err)
			return err
		}

		if err := bb.SetNode(attr.ID(), node); err != nil {
			return err
		}
	}

	rt.counters.Updates.Add(1)

	if fire {
		for _, c := range rt.activeChannels() {
			if c.filter.Pass(value) {
				fireRegion(c, c.events.PostSet, attr)
			}
		}
	}

	return nil
}

// Get returns the attribute's current entry: a node reference for
// hierarchical attributes, an immediate for value attributes, or an empty
// entry.
func (rt *Runtime) Get(attr Attribute) Entry {
	if !attr.Valid() {
		return Entry{}
	}

	bb := rt.contextBuffer(attr.Scope())

	if attr.StoreAsValue() {
		if v, ok := bb.Get(attr.ID()); ok {
			return immediateEntry(attr.ID(), v)
		}

		return Entry{}
	}

	if n := bb.GetNode(attr.ID()); n != nil {
		return NodeEntry(n)
	}

	return Entry{}
}

// TryBegin is the sampler-path Begin. It never blocks and never creates
// tree nodes: when the lock probe fails or the (attribute, value) node does
// not exist yet, the operation is dropped, the dropped-samples counter
// bumped, and false returned. No events fire on the sampler path.
func (rt *Runtime) TryBegin(attr Attribute, value variant.Variant) bool {
	if !attr.Valid() || value.Kind() != attr.Type() {
		return false
	}

	bb := rt.contextBuffer(attr.Scope())

	if attr.StoreAsValue() {
		rt.counters.DroppedSamples.Add(1)
		return false
	}

	parent, ok := bb.TryGetNode(attr.ID())
	if !ok {
		rt.counters.DroppedSamples.Add(1)
		return false
	}

	node, ok := rt.tree.TryFindChild(attr.ID(), value, parent)
	if !ok || node == nil {
		rt.counters.DroppedSamples.Add(1)
		return false
	}

	ok, err := bb.TrySetNode(attr.ID(), node)
	if !ok || err != nil {
		rt.counters.DroppedSamples.Add(1)
		return false
	}

	rt.counters.Updates.Add(1)

	return true
}
