package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRuntimeMetricsRecord(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	rm, err := NewRuntimeMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()

	rm.RecordSnapshot(ctx, "trace")
	rm.RecordSnapshot(ctx, "trace")
	rm.RecordNodes(ctx, 5)
	rm.RecordDropped(ctx, 1)
	rm.RecordUpdates(ctx, 7)
	rm.RecordFlushed(ctx, "trace", 2)

	var data metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(ctx, &data))
	require.NotEmpty(t, data.ScopeMetrics)

	found := map[string]bool{}

	for _, sm := range data.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
		}
	}

	for _, name := range []string{
		metricSnapshotsTotal, metricNodesTotal, metricDroppedTotal,
		metricUpdatesTotal, metricFlushedSnapshots,
	} {
		assert.True(t, found[name], "missing instrument %s", name)
	}
}

func TestCountersDrain(t *testing.T) {
	t.Parallel()

	var c Counters

	c.Snapshots.Add(3)
	c.DroppedSamples.Add(1)
	c.Updates.Add(4)

	snapshots, dropped, updates := c.Drain()

	assert.Equal(t, int64(3), snapshots)
	assert.Equal(t, int64(1), dropped)
	assert.Equal(t, int64(4), updates)

	snapshots, dropped, updates = c.Drain()
	assert.Zero(t, snapshots)
	assert.Zero(t, dropped)
	assert.Zero(t, updates)
}

func TestPrometheusProviderServesMetrics(t *testing.T) {
	t.Parallel()

	provider, handler, err := PrometheusProvider()
	require.NoError(t, err)

	rm, err := NewRuntimeMetrics(provider.Meter("cali"))
	require.NoError(t, err)

	rm.RecordSnapshot(context.Background(), "test")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cali_snapshots_total")
}
