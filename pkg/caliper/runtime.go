// Package caliper implements the process-embedded measurement runtime: the
// attribute registry, per-scope context buffers, the snapshot engine, and
// the channel pipelines that route snapshots to measurement and output
// services. Instrumented programs tag regions of execution with Begin / End
// / Set; the runtime captures snapshots combining the current context with
// contributions from subscribed producers and hands them to subscribed
// consumers.
package caliper

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/LLNL/caliper-go/internal/arena"
	"github.com/LLNL/caliper-go/internal/blackboard"
	"github.com/LLNL/caliper-go/internal/log"
	"github.com/LLNL/caliper-go/internal/observability"
	"github.com/LLNL/caliper-go/internal/sigsafe"
	"github.com/LLNL/caliper-go/internal/tree"
	"github.com/LLNL/caliper-go/pkg/variant"
)

// Version is the runtime version reported in the run globals.
const Version = "0.9.0"

// Names of the globals the runtime sets at init.
const (
	versionAttrName = "cali.caliper.version"
	runIDAttrName   = "cali.run.id"
)

// ContextBuffer is an opaque handle to a thread- or task-scope blackboard.
// The embedding program creates one per execution unit it wants tracked and
// returns it from a scope callback.
type ContextBuffer struct {
	bb    *blackboard.Blackboard
	arena *arena.Arena
}

// MetaEntry attaches extra metadata to an attribute at creation time.
type MetaEntry struct {
	Attr  Attribute
	Value variant.Variant
}

// Runtime is the measurement runtime. The process normally holds a single
// instance reached through Instance; tests construct isolated runtimes with
// NewRuntime.
type Runtime struct {
	cfg Config

	tree *tree.Tree

	procBB          *blackboard.Blackboard
	defaultThreadBB *blackboard.Blackboard
	defaultTaskBB   *blackboard.Blackboard

	// globalsBB holds run-wide metadata apart from the process scope so
	// globals do not enter every snapshot.
	globalsBB *blackboard.Blackboard

	cbMu     sync.Mutex
	threadCB func() *ContextBuffer
	taskCB   func() *ContextBuffer

	attrLock  sigsafe.RWLock
	attrNodes map[string]*tree.Node

	chanMu     sync.Mutex
	channels   []*Channel
	activeList atomic.Pointer[[]*Channel]
	nextChanID uint64

	counters observability.Counters

	regionOnce sync.Once
	regionAttr Attribute

	runID    string
	finished atomic.Bool
}

// NewRuntime creates an isolated runtime. Production code uses the process
// singleton via Instance; this constructor exists for embedding tests.
func NewRuntime(cfg Config) (*Runtime, error) {
	def := defaultConfig()

	if cfg.NodesPerBlock <= 0 {
		cfg.NodesPerBlock = def.NodesPerBlock
	}

	if cfg.NumBlocks <= 0 {
		cfg.NumBlocks = def.NumBlocks
	}

	rt := &Runtime{
		cfg: cfg,
		tree: tree.New(tree.Config{
			NodesPerBlock: cfg.NodesPerBlock,
			NumBlocks:     cfg.NumBlocks,
		}),
		attrNodes: make(map[string]*tree.Node, max(cfg.NodePoolSize, 16)),
		runID:     uuid.NewString(),
	}

	rt.procBB = blackboard.New(arena.New(0))
	rt.defaultThreadBB = blackboard.New(arena.New(0))
	rt.defaultTaskBB = blackboard.New(arena.New(0))
	rt.globalsBB = blackboard.New(arena.New(0))

	rt.activeList.Store(&[]*Channel{})

	if err := rt.initGlobals(); err != nil {
		return nil, fmt.Errorf("init globals: %w", err)
	}

	return rt, nil
}

// initGlobals publishes the run-wide metadata entries.
func (rt *Runtime) initGlobals() error {
	props := PropAsValue | PropScopeProcess | PropSkipEvents | PropGlobal

	versionAttr, err := rt.CreateAttribute(versionAttrName, variant.String, props)
	if err != nil {
		return err
	}

	runIDAttr, err := rt.CreateAttribute(runIDAttrName, variant.String, props)
	if err != nil {
		return err
	}

	if err := rt.globalsBB.Set(versionAttr.ID(), variant.NewString(Version)); err != nil {
		return err
	}

	return rt.globalsBB.Set(runIDAttr.ID(), variant.NewString(rt.runID))
}

// RunID returns the runtime's run identifier.
func (rt *Runtime) RunID() string {
	return rt.runID
}

// Tree exposes the metadata tree to services and serializers.
func (rt *Runtime) Tree() *tree.Tree {
	return rt.tree
}

// Counters returns the runtime's hot-path counters. The otel bridge drains
// them into instruments.
func (rt *Runtime) Counters() *observability.Counters {
	return &rt.counters
}

// DroppedSamples returns the number of sampler operations dropped so far,
// whether on lock contention or because the sampler path found no node.
func (rt *Runtime) DroppedSamples() int64 {
	return rt.counters.DroppedSamples.Load()
}

//
// --- Attribute registry
//

// CreateAttribute creates or looks up the attribute of the given name. When
// the name exists the stored attribute is returned unchanged; otherwise the
// attribute node path is built under the type node, the name registered, and
// attribute_created fired on every channel. Thread scope is the default when
// the properties name no scope.
func (rt *Runtime) CreateAttribute(name string, kind variant.Kind, props Properties, meta ...MetaEntry) (Attribute, error) {
	if name == "" || !kind.Valid() {
		return Attribute{}, ErrInvalidAttribute
	}

	props = props.withDefaultScope()

	rt.attrLock.Lock()

	node, existed := rt.attrNodes[name]

	if !existed {
		attrIDs := make([]uint64, 0, len(meta)+2)
		values := make([]variant.Variant, 0, len(meta)+2)

		for _, m := range meta {
			if !m.Attr.Valid() {
				rt.attrLock.Unlock()
				return Attribute{}, ErrInvalidAttribute
			}

			attrIDs = append(attrIDs, m.Attr.ID())
			values = append(values, m.Value)
		}

		if props != PropScopeThread {
			attrIDs = append(attrIDs, tree.PropAttrID)
			values = append(values, variant.NewInt(int64(props)))
		}

		attrIDs = append(attrIDs, tree.NameAttrID)
		values = append(values, variant.NewString(name))

		var err error

		node, err = rt.tree.GetOrCreatePathMulti(attrIDs, values, rt.tree.TypeNode(kind))
		if err != nil {
			rt.attrLock.Unlock()
			return Attribute{}, err
		}

		rt.attrNodes[name] = node
	}

	rt.attrLock.Unlock()

	attr := makeAttribute(node)

	if !existed {
		for _, c := range rt.Channels() {
			fireAttribute(c, c.events.AttributeCreated, attr)
		}
	}

	return attr, nil
}

// GetAttribute looks up an attribute by name.
func (rt *Runtime) GetAttribute(name string) (Attribute, bool) {
	rt.attrLock.RLock()
	node := rt.attrNodes[name]
	rt.attrLock.RUnlock()

	attr := makeAttribute(node)

	return attr, attr.Valid()
}

// GetAttributeByID rebuilds an attribute handle from its node id.
func (rt *Runtime) GetAttributeByID(id uint64) (Attribute, bool) {
	attr := makeAttribute(rt.tree.Node(id))

	return attr, attr.Valid()
}

// NumAttributes returns the number of registered attributes.
func (rt *Runtime) NumAttributes() int {
	rt.attrLock.RLock()
	defer rt.attrLock.RUnlock()

	return len(rt.attrNodes)
}

// FindAttributesWith returns every attribute whose metadata path carries the
// given meta attribute.
func (rt *Runtime) FindAttributesWith(meta Attribute) []Attribute {
	if !meta.Valid() {
		return nil
	}

	rt.attrLock.RLock()

	nodes := make([]*tree.Node, 0, len(rt.attrNodes))

	for _, node := range rt.attrNodes {
		nodes = append(nodes, node)
	}

	rt.attrLock.RUnlock()

	var attrs []Attribute

	for _, node := range nodes {
		if rt.tree.FindWithAttribute(meta.ID(), node) != nil {
			if attr := makeAttribute(node); attr.Valid() {
				attrs = append(attrs, attr)
			}
		}
	}

	return attrs
}

//
// --- Context buffers
//

// CreateContextBuffer creates a blackboard for a new execution unit and
// fires create_thread on every active channel.
func (rt *Runtime) CreateContextBuffer() *ContextBuffer {
	a := arena.New(0)
	cb := &ContextBuffer{bb: blackboard.New(a), arena: a}

	for _, c := range rt.activeChannels() {
		fireChannel(c, c.events.CreateThread)
	}

	return cb
}

// ReleaseContextBuffer fires release_thread and merges the buffer's arena
// back into the tree's so its payloads stay alive.
func (rt *Runtime) ReleaseContextBuffer(cb *ContextBuffer) {
	if cb == nil {
		return
	}

	for _, c := range rt.activeChannels() {
		fireChannel(c, c.events.ReleaseThread)
	}

	rt.tree.MergeArena(cb.arena)
	cb.bb = nil
	cb.arena = nil
}

// SetScopeCallback installs the lookup returning the calling execution
// unit's context buffer for thread or task scope. The callback can be
// installed once per scope; the process scope has no callback.
func (rt *Runtime) SetScopeCallback(scope Scope, fn func() *ContextBuffer) error {
	rt.cbMu.Lock()
	defer rt.cbMu.Unlock()

	switch scope {
	case ScopeThread:
		if rt.threadCB != nil {
			return ErrAlreadyInitialized
		}

		rt.threadCB = fn
	case ScopeTask:
		if rt.taskCB != nil {
			return ErrAlreadyInitialized
		}

		rt.taskCB = fn
	default:
		return fmt.Errorf("%w: no callback for scope %d", ErrInvalidAttribute, scope)
	}

	return nil
}

// contextBuffer resolves the blackboard of a scope for the calling
// execution unit.
func (rt *Runtime) contextBuffer(scope Scope) *blackboard.Blackboard {
	switch scope {
	case ScopeProcess:
		return rt.procBB
	case ScopeTask:
		if cb := rt.taskCallback(); cb != nil {
			return cb.bb
		}

		return rt.defaultTaskBB
	default:
		if cb := rt.threadCallback(); cb != nil {
			return cb.bb
		}

		return rt.defaultThreadBB
	}
}

func (rt *Runtime) threadCallback() *ContextBuffer {
	rt.cbMu.Lock()
	fn := rt.threadCB
	rt.cbMu.Unlock()

	if fn == nil {
		return nil
	}

	return fn()
}

func (rt *Runtime) taskCallback() *ContextBuffer {
	rt.cbMu.Lock()
	fn := rt.taskCB
	rt.cbMu.Unlock()

	if fn == nil {
		return nil
	}

	return fn()
}

//
// --- Channels
//

// CreateChannel creates a channel with the given configuration, registers
// the services named in CALI_SERVICES_ENABLE, and activates it.
func (rt *Runtime) CreateChannel(name string, values map[string]string) (*Channel, error) {
	cfg := NewChannelConfig(values)

	rt.chanMu.Lock()
	id := rt.nextChanID
	rt.nextChanID++
	rt.chanMu.Unlock()

	c := &Channel{
		id:     id,
		name:   name,
		rt:     rt,
		config: cfg,
		filter: NewRegionFilter(cfg.Get(KeyIncludeRegions, ""), cfg.Get(KeyExcludeRegions, "")),
	}

	if err := registerServices(c); err != nil {
		return nil, err
	}

	if cfg.GetBool(KeyConfigCheck, false) {
		known := knownChannelKeys(c)

		for _, key := range cfg.Keys() {
			if _, ok := known[key]; !ok {
				return nil, fmt.Errorf("%w: configuration key %q", ErrUnknownConfig, key)
			}
		}
	}

	c.active.Store(true)

	rt.chanMu.Lock()
	rt.channels = append(rt.channels, c)
	rt.chanMu.Unlock()

	rt.refreshActiveList()

	fireChannel(c, c.events.PostInit)

	log.Info("channel created", "channel", name, "id", id)

	return c, nil
}

// ActivateChannel enables event dispatch on the channel.
func (rt *Runtime) ActivateChannel(c *Channel) {
	c.active.Store(true)
	rt.refreshActiveList()
}

// DeactivateChannel stops event dispatch on the channel.
func (rt *Runtime) DeactivateChannel(c *Channel) {
	c.active.Store(false)
	rt.refreshActiveList()
}

// DeleteChannel fires finish and detaches the channel.
func (rt *Runtime) DeleteChannel(c *Channel) {
	fireChannel(c, c.events.Finish)

	rt.chanMu.Lock()

	for i, have := range rt.channels {
		if have == c {
			rt.channels = append(rt.channels[:i], rt.channels[i+1:]...)
			break
		}
	}

	rt.chanMu.Unlock()

	rt.refreshActiveList()
}

// Channels returns all channels.
func (rt *Runtime) Channels() []*Channel {
	rt.chanMu.Lock()
	defer rt.chanMu.Unlock()

	out := make([]*Channel, len(rt.channels))
	copy(out, rt.channels)

	return out
}

// GetChannel looks up a channel by name.
func (rt *Runtime) GetChannel(name string) (*Channel, bool) {
	rt.chanMu.Lock()
	defer rt.chanMu.Unlock()

	for _, c := range rt.channels {
		if c.name == name {
			return c, true
		}
	}

	return nil, false
}

// activeChannels returns the cached list of active channels. The hot path
// reads it without locking.
func (rt *Runtime) activeChannels() []*Channel {
	return *rt.activeList.Load()
}

func (rt *Runtime) refreshActiveList() {
	rt.chanMu.Lock()
	defer rt.chanMu.Unlock()

	active := make([]*Channel, 0, len(rt.channels))

	for _, c := range rt.channels {
		if c.IsActive() {
			active = append(active, c)
		}
	}

	rt.activeList.Store(&active)
}

// warnPoolExhausted logs pool exhaustion once per channel.
func (rt *Runtime) warnPoolExhausted(err error) {
	for _, c := range rt.activeChannels() {
		c.poolWarn.Do(func() {
			log.Error("node pool exhausted", "channel", c.name, "error", err)
		})
	}
}

//
// --- Lifecycle
//

// Release tears the runtime down: channels with CALI_CHANNEL_FLUSH_ON_EXIT
// are flushed and written, every channel fires finish, and the tree
// statistics go to the log. Release is idempotent.
func (rt *Runtime) Release() {
	if !rt.finished.CompareAndSwap(false, true) {
		return
	}

	for _, c := range rt.Channels() {
		if c.config.GetBool(KeyFlushOnExit, false) {
			rt.FlushAndWrite(c)
		}

		fireChannel(c, c.events.Finish)
	}

	rt.chanMu.Lock()
	rt.channels = nil
	rt.chanMu.Unlock()

	rt.refreshActiveList()

	stats := rt.tree.Stats()

	log.Info("finished",
		"tree.blocks", stats.Blocks,
		"tree.nodes", stats.Nodes,
		"arena.chunks", stats.Arena.Chunks,
		"arena.bytes", stats.Arena.BytesUsed,
		"dropped.samples", rt.counters.DroppedSamples.Load(),
	)
}

// Statistics describes runtime resource usage.
type Statistics struct {
	Tree           tree.Statistics
	Attributes     int
	Channels       int
	DroppedSamples int64
}

// Stats returns current usage counters.
func (rt *Runtime) Stats() Statistics {
	return Statistics{
		Tree:           rt.tree.Stats(),
		Attributes:     rt.NumAttributes(),
		Channels:       len(rt.Channels()),
		DroppedSamples: rt.counters.DroppedSamples.Load(),
	}
}
