// Package tree implements the process-global metadata tree: an append-only
// DAG of (attribute, value, parent) nodes with stable integer ids. Nodes live
// in fixed-size blocks so an id resolves to its node in O(1) and node
// addresses never move.
package tree

import (
	"errors"

	"github.com/LLNL/caliper-go/internal/arena"
	"github.com/LLNL/caliper-go/internal/sigsafe"
	"github.com/LLNL/caliper-go/pkg/variant"
)

// Pool geometry defaults.
const (
	DefaultNodesPerBlock = 256
	DefaultNumBlocks     = 16384
)

// numBootstrapNodes is the size of the reserved id prefix: the root, one node
// per value kind, and the three meta-attributes.
const numBootstrapNodes = 12

// Ids of the bootstrap meta-attribute nodes.
const (
	NameAttrID = 9
	TypeAttrID = 10
	PropAttrID = 11
)

// ErrPoolExhausted is returned when the node pool has no room for another
// node. The failed operation has no effect.
var ErrPoolExhausted = errors.New("node pool exhausted")

// Config sets the pool geometry.
type Config struct {
	// NodesPerBlock is the number of nodes per block (K).
	NodesPerBlock int

	// NumBlocks is the maximum number of blocks (B).
	NumBlocks int

	// ArenaChunkSize sets the chunk size of the payload arena.
	ArenaChunkSize int
}

type nodeBlock struct {
	nodes []Node
	used  int
}

// Tree is the metadata tree. All mutation happens under the write lock;
// lookups take the read lock or, on the sampler path, a non-blocking probe.
type Tree struct {
	lock  sigsafe.RWLock
	arena *arena.Arena

	nodesPerBlock int

	// blocks has fixed length NumBlocks; block storage is allocated on
	// first use so ids and node addresses stay stable.
	blocks   []nodeBlock
	curBlock int

	numNodes int

	typeNodes [variant.Type + 1]*Node
}

// New creates a tree with the bootstrap nodes in place.
func New(cfg Config) *Tree {
	if cfg.NodesPerBlock <= 0 {
		cfg.NodesPerBlock = DefaultNodesPerBlock
	}

	if cfg.NodesPerBlock < numBootstrapNodes {
		cfg.NodesPerBlock = numBootstrapNodes
	}

	if cfg.NumBlocks <= 0 {
		cfg.NumBlocks = DefaultNumBlocks
	}

	t := &Tree{
		arena:         arena.New(cfg.ArenaChunkSize),
		nodesPerBlock: cfg.NodesPerBlock,
		blocks:        make([]nodeBlock, cfg.NumBlocks),
	}

	t.bootstrap()

	return t
}

// bootstrap creates the reserved id prefix: the root (id 0), the eight type
// nodes (ids 1..8, one per value kind), and the meta-attributes
// cali.attribute.name / .type / .prop (ids 9..11). Type nodes carry the
// type meta-attribute; the meta-attributes carry the name meta-attribute
// (the name node names itself). Writers never serialize this prefix; readers
// recreate it on their side.
func (t *Tree) bootstrap() {
	t.blocks[0] = nodeBlock{nodes: make([]Node, t.nodesPerBlock)}
	block := &t.blocks[0]

	root := &block.nodes[RootID]
	*root = Node{id: RootID, attr: InvalidID}

	for k := variant.Usr; k <= variant.Type; k++ {
		n := &block.nodes[k]
		*n = Node{id: uint64(k), attr: TypeAttrID, value: variant.NewType(k)}

		root.append(n)

		t.typeNodes[k] = n
	}

	metaAttrs := []struct {
		id     uint64
		name   string
		parent variant.Kind
	}{
		{NameAttrID, "cali.attribute.name", variant.String},
		{TypeAttrID, "cali.attribute.type", variant.Type},
		{PropAttrID, "cali.attribute.prop", variant.Int},
	}

	for _, m := range metaAttrs {
		n := &block.nodes[m.id]
		*n = Node{id: m.id, attr: NameAttrID, value: variant.NewString(m.name)}

		t.typeNodes[m.parent].append(n)
	}

	block.used = numBootstrapNodes
	t.numNodes = numBootstrapNodes
}

// Root returns the synthetic root node.
func (t *Tree) Root() *Node {
	return &t.blocks[0].nodes[RootID]
}

// TypeNode returns the bootstrap node for the given value kind, or nil for
// an invalid kind.
func (t *Tree) TypeNode(k variant.Kind) *Node {
	if !k.Valid() {
		return nil
	}

	return t.typeNodes[k]
}

// Node resolves an id. It returns nil when no node with that id exists yet.
func (t *Tree) Node(id uint64) *Node {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return t.lookup(id)
}

func (t *Tree) lookup(id uint64) *Node {
	if id == InvalidID {
		return nil
	}

	block := int(id) / t.nodesPerBlock
	index := int(id) % t.nodesPerBlock

	if block >= len(t.blocks) || index >= t.blocks[block].used {
		return nil
	}

	return &t.blocks[block].nodes[index]
}

// NumNodes returns the number of nodes created so far.
func (t *Tree) NumNodes() int {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return t.numNodes
}

// newNode claims the next pool slot. Caller holds the write lock.
func (t *Tree) newNode(attrID uint64, value variant.Variant, parent *Node) (*Node, error) {
	block := &t.blocks[t.curBlock]

	if block.used >= t.nodesPerBlock {
		if t.curBlock+1 >= len(t.blocks) {
			return nil, ErrPoolExhausted
		}

		t.curBlock++
		block = &t.blocks[t.curBlock]
		block.nodes = make([]Node, t.nodesPerBlock)
	}

	// String and blob payloads move into the arena; the tree must not
	// reference caller-owned memory.
	switch value.Kind() {
	case variant.String:
		if s, ok := value.AsString(); ok {
			value = variant.NewString(t.arena.CopyString(s))
		}
	case variant.Usr:
		if b, ok := value.AsBytes(); ok {
			value = variant.NewBytes(t.arena.Copy(b))
		}
	}

	id := uint64(t.curBlock*t.nodesPerBlock + block.used)

	n := &block.nodes[block.used]
	*n = Node{id: id, attr: attrID, value: value}

	block.used++
	t.numNodes++

	if parent != nil {
		parent.append(n)
	}

	return n, nil
}

// GetOrCreatePath descends from parent along values, matching each step on
// (attrID, value). Missing steps are created. A nil parent starts at the
// root. The write lock covers the whole search-then-append, so equal paths
// requested concurrently resolve to the same nodes.
func (t *Tree) GetOrCreatePath(attrID uint64, values []variant.Variant, parent *Node) (*Node, error) {
	if parent == nil {
		parent = t.Root()
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	node := parent

	for _, v := range values {
		child := findChild(node, attrID, v)

		if child == nil {
			var err error

			child, err = t.newNode(attrID, v, node)
			if err != nil {
				return nil, err
			}
		}

		node = child
	}

	return node, nil
}

// GetOrCreatePathMulti is GetOrCreatePath with a distinct attribute per step.
func (t *Tree) GetOrCreatePathMulti(attrIDs []uint64, values []variant.Variant, parent *Node) (*Node, error) {
	if parent == nil {
		parent = t.Root()
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	node := parent

	for i, v := range values {
		child := findChild(node, attrIDs[i], v)

		if child == nil {
			var err error

			child, err = t.newNode(attrIDs[i], v, node)
			if err != nil {
				return nil, err
			}
		}

		node = child
	}

	return node, nil
}

func findChild(parent *Node, attrID uint64, value variant.Variant) *Node {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		if n.Matches(attrID, value) {
			return n
		}
	}

	return nil
}

// TryFindChild probes for an existing child (attrID, value) under parent
// without blocking. It is the sampler-path lookup: ok is false when the lock
// probe failed, and the node is nil when no such child exists. It never
// creates nodes.
func (t *Tree) TryFindChild(attrID uint64, value variant.Variant, parent *Node) (*Node, bool) {
	if parent == nil {
		parent = t.Root()
	}

	if !t.lock.SigTryRLock() {
		return nil, false
	}

	defer t.lock.SigRUnlock()

	return findChild(parent, attrID, value), true
}

// FindWithAttribute walks the ancestors of start (inclusive) and returns the
// first node carrying attrID, or nil. Parent links are immutable, so no lock
// is needed.
func (t *Tree) FindWithAttribute(attrID uint64, start *Node) *Node {
	for n := start; n != nil && !n.IsRoot(); n = n.Parent() {
		if n.Attribute() == attrID {
			return n
		}
	}

	return nil
}

// getOrCopyNode finds or creates a child of parent replicating from's
// attribute and value. Caller holds the write lock. Payloads are not copied
// again: the replica borrows the original's arena-owned value.
func (t *Tree) getOrCopyNode(from, parent *Node) (*Node, error) {
	if child := findChild(parent, from.Attribute(), from.Value()); child != nil {
		return child, nil
	}

	block := &t.blocks[t.curBlock]

	if block.used >= t.nodesPerBlock {
		if t.curBlock+1 >= len(t.blocks) {
			return nil, ErrPoolExhausted
		}

		t.curBlock++
		block = &t.blocks[t.curBlock]
		block.nodes = make([]Node, t.nodesPerBlock)
	}

	id := uint64(t.curBlock*t.nodesPerBlock + block.used)

	n := &block.nodes[block.used]
	*n = Node{id: id, attr: from.Attribute(), value: from.Value()}

	block.used++
	t.numNodes++

	parent.append(n)

	return n, nil
}

// copyPathWithoutAttribute rebuilds the path from stop (exclusive) down to
// node, skipping every step carrying attrID. Caller holds the write lock.
func (t *Tree) copyPathWithoutAttribute(attrID uint64, node, stop *Node) (*Node, error) {
	if stop == nil {
		stop = t.Root()
	}

	if node == nil || node == stop || node.IsRoot() {
		return stop, nil
	}

	tmp, err := t.copyPathWithoutAttribute(attrID, node.Parent(), stop)
	if err != nil {
		return nil, err
	}

	if node.Attribute() == attrID {
		return tmp, nil
	}

	return t.getOrCopyNode(node, tmp)
}

// RemoveFirstInPath returns a node representing path with the nearest
// ancestor carrying attrID removed. Nodes are immutable, so the remainder of
// the path is rebuilt by copy.
func (t *Tree) RemoveFirstInPath(path *Node, attrID uint64) (*Node, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	stop := t.FindWithAttribute(attrID, path)
	if stop != nil {
		stop = stop.Parent()
	}

	return t.copyPathWithoutAttribute(attrID, path, stop)
}

// findHierarchyParent returns the parent of the outermost ancestor of node
// carrying attrID, or the root when none does.
func (t *Tree) findHierarchyParent(attrID uint64, node *Node) *Node {
	outer := (*Node)(nil)

	for n := node; n != nil && !n.IsRoot(); n = n.Parent() {
		if n.Attribute() == attrID {
			outer = n
		}
	}

	if outer == nil {
		return t.Root()
	}

	return outer.Parent()
}

// ReplaceAllInPath removes every ancestor of path carrying attrID and
// appends a fresh (attrID, value) chain in its place.
func (t *Tree) ReplaceAllInPath(path *Node, attrID uint64, values []variant.Variant) (*Node, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	node := path

	if node != nil {
		var err error

		node, err = t.copyPathWithoutAttribute(attrID, node, t.findHierarchyParent(attrID, node))
		if err != nil {
			return nil, err
		}
	} else {
		node = t.Root()
	}

	for _, v := range values {
		child := findChild(node, attrID, v)

		if child == nil {
			var err error

			child, err = t.newNode(attrID, v, node)
			if err != nil {
				return nil, err
			}
		}

		node = child
	}

	return node, nil
}

// ForEachNode calls fn for every node except the root, in id order, under
// the read lock. Used by serialization.
func (t *Tree) ForEachNode(fn func(*Node)) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	for b := 0; b <= t.curBlock; b++ {
		block := &t.blocks[b]

		for i := 0; i < block.used; i++ {
			n := &block.nodes[i]

			if n.IsRoot() && n.ID() == RootID {
				continue
			}

			fn(n)
		}
	}
}

// Statistics describes pool usage.
type Statistics struct {
	Blocks int
	Nodes  int
	Arena  arena.Statistics
}

// Stats returns pool usage counters.
func (t *Tree) Stats() Statistics {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return Statistics{
		Blocks: t.curBlock + 1,
		Nodes:  t.numNodes,
		Arena:  t.arena.Stats(),
	}
}

// MergeArena folds a released thread arena into the tree's arena so payloads
// allocated by the departing owner stay alive.
func (t *Tree) MergeArena(a *arena.Arena) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.arena.Merge(a)
}

// NumBootstrapNodes returns the size of the reserved id prefix shared by
// writers and readers.
func NumBootstrapNodes() int {
	return numBootstrapNodes
}
