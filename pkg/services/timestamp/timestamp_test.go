package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLNL/caliper-go/pkg/caliper"
)

func TestSnapshotCarriesTimestampAndDuration(t *testing.T) {
	t.Parallel()

	rt, err := caliper.NewRuntime(caliper.Config{})
	require.NoError(t, err)

	c, err := rt.CreateChannel("ts", map[string]string{
		caliper.KeyServicesEnable: "timestamp",
	})
	require.NoError(t, err)

	before := uint64(time.Now().UnixNano())

	rec := rt.PullSnapshot(c, 0, caliper.Entry{})

	after := uint64(time.Now().UnixNano())

	tsAttr, ok := rt.GetAttribute(timestampAttrName)
	require.True(t, ok)

	durAttr, ok := rt.GetAttribute(durationAttrName)
	require.True(t, ok)

	var haveTS, haveDur bool

	for _, e := range rec.Entries() {
		switch e.AttributeID() {
		case tsAttr.ID():
			haveTS = true

			ts, ok := e.Value().AsUint()
			require.True(t, ok)
			assert.GreaterOrEqual(t, ts, before)
			assert.LessOrEqual(t, ts, after)
		case durAttr.ID():
			haveDur = true

			_, ok := e.Value().AsUint()
			assert.True(t, ok)
		}
	}

	assert.True(t, haveTS)
	assert.True(t, haveDur)
}

func TestOptionsDisableEntries(t *testing.T) {
	t.Parallel()

	rt, err := caliper.NewRuntime(caliper.Config{})
	require.NoError(t, err)

	c, err := rt.CreateChannel("ts", map[string]string{
		caliper.KeyServicesEnable: "timestamp",
		KeyTimestamp:              "false",
		KeyDuration:               "false",
	})
	require.NoError(t, err)

	rec := rt.PullSnapshot(c, 0, caliper.Entry{})

	assert.Zero(t, rec.Len())
}

func TestDurationIncreasesBetweenSnapshots(t *testing.T) {
	t.Parallel()

	rt, err := caliper.NewRuntime(caliper.Config{})
	require.NoError(t, err)

	c, err := rt.CreateChannel("ts", map[string]string{
		caliper.KeyServicesEnable: "timestamp",
		KeyTimestamp:              "false",
	})
	require.NoError(t, err)

	rt.PullSnapshot(c, 0, caliper.Entry{})

	time.Sleep(5 * time.Millisecond)

	rec := rt.PullSnapshot(c, 0, caliper.Entry{})

	require.Equal(t, 1, rec.Len())

	dur, ok := rec.Entries()[0].Value().AsUint()
	require.True(t, ok)
	assert.GreaterOrEqual(t, dur, uint64(5*time.Millisecond))
}
