package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLNL/caliper-go/pkg/caliper"
	"github.com/LLNL/caliper-go/pkg/variant"
)

func newTracedChannel(t *testing.T, config map[string]string) (*caliper.Runtime, *caliper.Channel) {
	t.Helper()

	rt, err := caliper.NewRuntime(caliper.Config{})
	require.NoError(t, err)

	if config == nil {
		config = map[string]string{}
	}

	config[caliper.KeyServicesEnable] = "trace"

	c, err := rt.CreateChannel("trace", config)
	require.NoError(t, err)

	return rt, c
}

func TestRetainsAndReplaysSnapshots(t *testing.T) {
	t.Parallel()

	rt, c := newTracedChannel(t, nil)

	iter, err := rt.CreateAttribute("iter", variant.Int, caliper.PropAsValue)
	require.NoError(t, err)

	for i := range 3 {
		require.NoError(t, rt.Set(iter, variant.NewInt(int64(i))))
		rt.PushSnapshot(c, caliper.ScopeThread, caliper.Entry{})
	}

	var values []int64

	rt.Flush(c, func(rec *caliper.SnapshotRecord) {
		for _, e := range rec.Entries() {
			if e.AttributeID() == iter.ID() {
				v, _ := e.Value().AsInt()
				values = append(values, v)
			}
		}
	})

	// Replay preserves capture order and captured values.
	assert.Equal(t, []int64{0, 1, 2}, values)
}

func TestRetainedRecordsAreCopies(t *testing.T) {
	t.Parallel()

	rt, c := newTracedChannel(t, nil)

	iter, err := rt.CreateAttribute("iter", variant.Int, caliper.PropAsValue)
	require.NoError(t, err)

	require.NoError(t, rt.Set(iter, variant.NewInt(1)))
	rt.PushSnapshot(c, caliper.ScopeThread, caliper.Entry{})

	// Mutating the blackboard after the snapshot does not rewrite the
	// retained record.
	require.NoError(t, rt.Set(iter, variant.NewInt(99)))

	count := 0

	rt.Flush(c, func(rec *caliper.SnapshotRecord) {
		count++

		for _, e := range rec.Entries() {
			if e.AttributeID() == iter.ID() {
				assert.True(t, e.Value().Equal(variant.NewInt(1)))
			}
		}
	})

	assert.Equal(t, 1, count)
}

func TestBufferSizeCapsRetention(t *testing.T) {
	t.Parallel()

	rt, c := newTracedChannel(t, map[string]string{KeyBufferSize: "2"})

	for range 5 {
		rt.PushSnapshot(c, 0, caliper.Entry{})
	}

	count := 0

	rt.Flush(c, func(*caliper.SnapshotRecord) { count++ })

	assert.Equal(t, 2, count)
}

func TestFinishClearsBuffer(t *testing.T) {
	t.Parallel()

	rt, c := newTracedChannel(t, nil)

	rt.PushSnapshot(c, 0, caliper.Entry{})
	rt.DeleteChannel(c)

	count := 0

	rt.Flush(c, func(*caliper.SnapshotRecord) { count++ })

	assert.Zero(t, count)
}
