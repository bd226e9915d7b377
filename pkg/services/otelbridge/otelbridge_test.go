package otelbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLNL/caliper-go/pkg/caliper"
	"github.com/LLNL/caliper-go/pkg/variant"
)

func TestDrainsCountersOnSnapshot(t *testing.T) {
	t.Parallel()

	rt, err := caliper.NewRuntime(caliper.Config{})
	require.NoError(t, err)

	c, err := rt.CreateChannel("otel", map[string]string{
		caliper.KeyServicesEnable: "otelbridge",
	})
	require.NoError(t, err)

	fn, err := rt.CreateAttribute("func", variant.String, caliper.PropDefault)
	require.NoError(t, err)

	require.NoError(t, rt.Begin(fn, variant.NewString("main")))

	rt.PushSnapshot(c, caliper.ScopeThread, caliper.Entry{})

	// The bridge drained the hot-path counters into instruments.
	snapshots, dropped, updates := rt.Counters().Drain()

	assert.Zero(t, snapshots)
	assert.Zero(t, dropped)
	assert.Zero(t, updates)

	rt.DeleteChannel(c)
}

func TestPrometheusEndpointLifecycle(t *testing.T) {
	t.Parallel()

	rt, err := caliper.NewRuntime(caliper.Config{})
	require.NoError(t, err)

	c, err := rt.CreateChannel("otel", map[string]string{
		caliper.KeyServicesEnable: "otelbridge",
		KeyPrometheus:             "true",
		KeyPrometheusAddr:         "127.0.0.1:0",
	})
	require.NoError(t, err)

	rt.PushSnapshot(c, caliper.ScopeThread, caliper.Entry{})

	// Finish closes the scrape endpoint.
	rt.DeleteChannel(c)
}
