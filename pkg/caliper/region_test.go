package caliper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLNL/caliper-go/pkg/variant"
)

// pathOf renders the region path of the attribute's current node.
func pathOf(rt *Runtime, attr Attribute) []string {
	e := rt.Get(attr)
	if !e.IsReference() {
		return nil
	}

	var rev []string

	for n := e.Node(); n != nil && !n.IsRoot(); n = n.Parent() {
		if n.Attribute() == attr.ID() {
			rev = append(rev, n.Value().String())
		}
	}

	path := make([]string, 0, len(rev))

	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}

	return path
}

func TestNestedRegionsSingleAttribute(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)

	fn, err := rt.CreateAttribute("func", variant.String, PropNested)
	require.NoError(t, err)

	require.NoError(t, rt.Begin(fn, variant.NewString("main")))
	require.NoError(t, rt.Begin(fn, variant.NewString("a")))
	require.NoError(t, rt.Begin(fn, variant.NewString("b")))

	assert.Equal(t, []string{"main", "a", "b"}, pathOf(rt, fn))

	require.NoError(t, rt.End(fn))
	assert.Equal(t, []string{"main", "a"}, pathOf(rt, fn))

	require.NoError(t, rt.End(fn))
	require.NoError(t, rt.End(fn))

	// After the last end the blackboard has no entry.
	assert.True(t, rt.Get(fn).Empty())

	// One more end reports the missing entry.
	assert.ErrorIs(t, rt.End(fn), ErrMissingEntry)
}

func TestStackUnwindIdempotence(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)

	fn, err := rt.CreateAttribute("func", variant.String, PropNested)
	require.NoError(t, err)

	require.NoError(t, rt.Begin(fn, variant.NewString("main")))
	require.NoError(t, rt.Begin(fn, variant.NewString("x")))
	require.NoError(t, rt.End(fn))

	// end(a); begin(a, v) leaves the same state as a fresh begin(a, v).
	require.NoError(t, rt.Begin(fn, variant.NewString("x")))
	assert.Equal(t, []string{"main", "x"}, pathOf(rt, fn))
}

func TestInterleavedAttributesNonLIFOEnd(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)

	f, err := rt.CreateAttribute("f", variant.String, PropDefault)
	require.NoError(t, err)

	g, err := rt.CreateAttribute("g", variant.String, PropDefault)
	require.NoError(t, err)

	require.NoError(t, rt.Begin(f, variant.NewString("F1")))
	require.NoError(t, rt.Begin(g, variant.NewString("G1")))

	// Ending f while g is still open clears f and leaves g's entry untouched.
	require.NoError(t, rt.End(f))

	assert.True(t, rt.Get(f).Empty())
	assert.Equal(t, []string{"G1"}, pathOf(rt, g))
}

func TestEndRewindsToNearestMatchingAncestor(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)

	f, err := rt.CreateAttribute("f", variant.String, PropDefault)
	require.NoError(t, err)

	g, err := rt.CreateAttribute("g", variant.String, PropDefault)
	require.NoError(t, err)

	require.NoError(t, rt.Begin(f, variant.NewString("F1")))
	require.NoError(t, rt.Begin(g, variant.NewString("G1")))
	require.NoError(t, rt.Begin(f, variant.NewString("F2")))

	// g's entry is its own node G1 under the root; ending g clears it and
	// leaves f at F2.
	require.NoError(t, rt.End(g))
	assert.True(t, rt.Get(g).Empty())

	require.NoError(t, rt.End(f))
	assert.Equal(t, []string{"F1"}, pathOf(rt, f))
}

func TestValueTypedAttribute(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)

	iter, err := rt.CreateAttribute("iter", variant.Int, PropAsValue)
	require.NoError(t, err)

	require.NoError(t, rt.Set(iter, variant.NewInt(3)))

	e := rt.Get(iter)
	assert.False(t, e.IsReference())
	assert.True(t, e.Value().Equal(variant.NewInt(3)))

	// Replacement, not accumulation.
	require.NoError(t, rt.Set(iter, variant.NewInt(4)))
	assert.True(t, rt.Get(iter).Value().Equal(variant.NewInt(4)))

	require.NoError(t, rt.End(iter))
	assert.True(t, rt.Get(iter).Empty())
}

func TestSetReplacesInsteadOfNesting(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)

	phase, err := rt.CreateAttribute("phase", variant.String, PropDefault)
	require.NoError(t, err)

	require.NoError(t, rt.Begin(phase, variant.NewString("outer")))
	require.NoError(t, rt.Set(phase, variant.NewString("a")))
	require.NoError(t, rt.Set(phase, variant.NewString("b")))

	// Each set replaces the current node under its parent: "a" replaced
	// "outer", then "b" replaced "a".
	assert.Equal(t, []string{"b"}, pathOf(rt, phase))

	require.NoError(t, rt.End(phase))
	assert.Equal(t, []string(nil), pathOf(rt, phase))
}

func TestBeginErrors(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)

	assert.ErrorIs(t, rt.Begin(Attribute{}, variant.NewInt(1)), ErrInvalidAttribute)
	assert.ErrorIs(t, rt.End(Attribute{}), ErrInvalidAttribute)
	assert.ErrorIs(t, rt.Set(Attribute{}, variant.NewInt(1)), ErrInvalidAttribute)

	iter, err := rt.CreateAttribute("iter", variant.Int, PropAsValue)
	require.NoError(t, err)

	assert.ErrorIs(t, rt.Begin(iter, variant.NewString("nope")), ErrTypeMismatch)
	assert.ErrorIs(t, rt.Set(iter, variant.NewDouble(1)), ErrTypeMismatch)
}

func TestSkipEventsSuppressesDispatch(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)

	c, err := rt.CreateChannel("test", nil)
	require.NoError(t, err)

	fired := 0

	c.Events().PreBegin = append(c.Events().PreBegin, func(*Channel, Attribute) { fired++ })
	c.Events().PostBegin = append(c.Events().PostBegin, func(*Channel, Attribute) { fired++ })

	quiet, err := rt.CreateAttribute("quiet", variant.String, PropSkipEvents)
	require.NoError(t, err)

	loud, err := rt.CreateAttribute("loud", variant.String, PropDefault)
	require.NoError(t, err)

	require.NoError(t, rt.Begin(quiet, variant.NewString("r")))
	assert.Zero(t, fired)

	// The blackboard still updated.
	assert.Equal(t, []string{"r"}, pathOf(rt, quiet))

	require.NoError(t, rt.Begin(loud, variant.NewString("r")))
	assert.Equal(t, 2, fired)
}

func TestInactiveChannelShortCircuits(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)

	c, err := rt.CreateChannel("test", nil)
	require.NoError(t, err)

	fired := 0

	c.Events().PreBegin = append(c.Events().PreBegin, func(*Channel, Attribute) { fired++ })

	attr, err := rt.CreateAttribute("r", variant.String, PropDefault)
	require.NoError(t, err)

	rt.DeactivateChannel(c)
	require.NoError(t, rt.Begin(attr, variant.NewString("x")))
	assert.Zero(t, fired)

	rt.ActivateChannel(c)
	require.NoError(t, rt.Begin(attr, variant.NewString("y")))
	assert.Equal(t, 1, fired)
}

func TestPoolExhaustedLeavesBlackboardUnchanged(t *testing.T) {
	t.Parallel()

	rt, err := NewRuntime(Config{NodesPerBlock: 16, NumBlocks: 2})
	require.NoError(t, err)

	fn, err := rt.CreateAttribute("func", variant.String, PropDefault)
	require.NoError(t, err)

	require.NoError(t, rt.Begin(fn, variant.NewString("top")))

	var lastErr error

	for i := 0; lastErr == nil && i < 64; i++ {
		lastErr = rt.Begin(fn, variant.NewString(string(rune('a'+i%26))+"x"+string(rune('0'+i/26))))
	}

	require.ErrorIs(t, lastErr, ErrPoolExhausted)

	before := pathOf(rt, fn)

	assert.ErrorIs(t, rt.Begin(fn, variant.NewString("another")), ErrPoolExhausted)
	assert.Equal(t, before, pathOf(rt, fn))

	// The skipped region can still be ended down to its parent.
	require.NoError(t, rt.End(fn))
}

func TestTryBeginDropsWhenNodeMissing(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)

	fn, err := rt.CreateAttribute("sample", variant.String, PropDefault)
	require.NoError(t, err)

	// The node does not exist and the sampler path never creates nodes.
	assert.False(t, rt.TryBegin(fn, variant.NewString("missing")))
	assert.Equal(t, int64(1), rt.DroppedSamples())
	assert.True(t, rt.Get(fn).Empty())

	// Once a regular begin created the node, the sampler path succeeds.
	require.NoError(t, rt.Begin(fn, variant.NewString("hot")))
	require.NoError(t, rt.End(fn))

	assert.True(t, rt.TryBegin(fn, variant.NewString("hot")))
	assert.Equal(t, []string{"hot"}, pathOf(rt, fn))
	assert.Equal(t, int64(1), rt.DroppedSamples())
}

func TestScopeCallbackRoutesThreadEntries(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)

	cb := rt.CreateContextBuffer()

	require.NoError(t, rt.SetScopeCallback(ScopeThread, func() *ContextBuffer { return cb }))

	// A second install fails.
	assert.ErrorIs(t, rt.SetScopeCallback(ScopeThread, func() *ContextBuffer { return cb }),
		ErrAlreadyInitialized)

	fn, err := rt.CreateAttribute("func", variant.String, PropDefault)
	require.NoError(t, err)

	require.NoError(t, rt.Begin(fn, variant.NewString("worker")))
	assert.Equal(t, []string{"worker"}, pathOf(rt, fn))

	rt.ReleaseContextBuffer(cb)
}
