package caliper

import (
	"github.com/LLNL/caliper-go/internal/tree"
	"github.com/LLNL/caliper-go/pkg/variant"
)

// Scope selects the blackboard an attribute lives in. Scopes combine into a
// mask for snapshot requests.
type Scope int

// Scope bits, ordered the way snapshots visit them.
const (
	ScopeTask Scope = 1 << iota
	ScopeThread
	ScopeProcess

	// ScopeAll requests every scope in one snapshot.
	ScopeAll = ScopeTask | ScopeThread | ScopeProcess
)

// Properties encode an attribute's behavior as bit flags.
type Properties int

// Property bits.
const (
	// PropAsValue stores the attribute directly in the blackboard instead
	// of the metadata tree.
	PropAsValue Properties = 1 << iota

	// PropScopeProcess, PropScopeThread, and PropScopeTask select the
	// attribute's scope. Thread is the default when none is set.
	PropScopeProcess
	PropScopeThread
	PropScopeTask

	// PropSkipEvents suppresses begin/end/set event dispatch.
	PropSkipEvents

	// PropHidden keeps the attribute out of reports.
	PropHidden

	// PropNested marks region attributes that nest inside each other.
	PropNested

	// PropAggregatable marks metric attributes aggregators may combine.
	PropAggregatable

	// PropGlobal marks run-wide metadata written once per output stream.
	PropGlobal

	// PropUnaligned marks entries that need not align across snapshots.
	PropUnaligned

	// PropDefault selects thread scope and tree storage.
	PropDefault Properties = 0
)

const propScopeMask = PropScopeProcess | PropScopeThread | PropScopeTask

// withDefaultScope adds thread scope unless process or task scope is set.
func (p Properties) withDefaultScope() Properties {
	if p&(PropScopeProcess|PropScopeTask) == 0 {
		return p | PropScopeThread
	}

	return p
}

// Scope returns the scope selected by the property bits.
func (p Properties) Scope() Scope {
	switch {
	case p&PropScopeProcess != 0:
		return ScopeProcess
	case p&PropScopeTask != 0:
		return ScopeTask
	default:
		return ScopeThread
	}
}

// AsValue reports blackboard value storage.
func (p Properties) AsValue() bool {
	return p&PropAsValue != 0
}

// SkipEvents reports suppressed event dispatch.
func (p Properties) SkipEvents() bool {
	return p&PropSkipEvents != 0
}

// Global reports run-wide metadata.
func (p Properties) Global() bool {
	return p&PropGlobal != 0
}

// Hidden reports report suppression.
func (p Properties) Hidden() bool {
	return p&PropHidden != 0
}

// Nested reports region nesting.
func (p Properties) Nested() bool {
	return p&PropNested != 0
}

// Aggregatable reports aggregator-combinable metrics.
func (p Properties) Aggregatable() bool {
	return p&PropAggregatable != 0
}

// Attribute is the caller-facing handle of a typed key. Physically the
// attribute is its metadata tree node; the handle caches the name, type and
// properties read off the node's path.
type Attribute struct {
	node  *tree.Node
	name  string
	kind  variant.Kind
	props Properties
}

// Valid reports whether the handle refers to an attribute.
func (a Attribute) Valid() bool {
	return a.node != nil
}

// ID returns the attribute's node id.
func (a Attribute) ID() uint64 {
	if a.node == nil {
		return tree.InvalidID
	}

	return a.node.ID()
}

// Name returns the attribute name.
func (a Attribute) Name() string {
	return a.name
}

// Type returns the declared value kind.
func (a Attribute) Type() variant.Kind {
	return a.kind
}

// Properties returns the property bits.
func (a Attribute) Properties() Properties {
	return a.props
}

// Scope returns the attribute's scope.
func (a Attribute) Scope() Scope {
	return a.props.Scope()
}

// StoreAsValue reports blackboard value storage.
func (a Attribute) StoreAsValue() bool {
	return a.props.AsValue()
}

// SkipEvents reports suppressed event dispatch.
func (a Attribute) SkipEvents() bool {
	return a.props.SkipEvents()
}

// makeAttribute rebuilds the handle view from an attribute node by scanning
// its path for the name, type, and property meta-entries.
func makeAttribute(node *tree.Node) Attribute {
	if node == nil {
		return Attribute{}
	}

	var (
		name  string
		kind  variant.Kind
		props int64

		haveName, haveKind bool
	)

	for n := node; n != nil && !n.IsRoot(); n = n.Parent() {
		switch n.Attribute() {
		case tree.NameAttrID:
			if !haveName {
				name, haveName = n.Value().AsString()
			}
		case tree.TypeAttrID:
			if !haveKind {
				var k variant.Kind

				k, haveKind = n.Value().AsType()
				kind = k
			}
		case tree.PropAttrID:
			if p, ok := n.Value().AsInt(); ok {
				props = p
			}
		}
	}

	if !haveName || !haveKind {
		return Attribute{}
	}

	return Attribute{
		node:  node,
		name:  name,
		kind:  kind,
		props: Properties(props).withDefaultScope(),
	}
}
