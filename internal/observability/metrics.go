// Package observability exposes the runtime's self-metrics as OTel
// instruments, plus the Prometheus exposition plumbing the otel bridge
// service uses. Counters are mirrored in plain atomics so the core can bump
// them on paths where an OTel call is not signal-safe.
package observability

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names.
const (
	metricSnapshotsTotal   = "cali.snapshots.total"
	metricNodesTotal       = "cali.tree.nodes.total"
	metricDroppedTotal     = "cali.samples.dropped.total"
	metricUpdatesTotal     = "cali.blackboard.updates.total"
	metricFlushedSnapshots = "cali.flush.snapshots.total"

	attrChannel = "channel"
)

// RuntimeMetrics holds the OTel instruments describing runtime activity.
type RuntimeMetrics struct {
	snapshotsTotal   metric.Int64Counter
	nodesTotal       metric.Int64Counter
	droppedTotal     metric.Int64Counter
	updatesTotal     metric.Int64Counter
	flushedSnapshots metric.Int64Counter
}

// NewRuntimeMetrics creates the runtime instruments from the given meter.
func NewRuntimeMetrics(mt metric.Meter) (*RuntimeMetrics, error) {
	b := newMetricBuilder(mt)

	rm := &RuntimeMetrics{
		snapshotsTotal:   b.counter(metricSnapshotsTotal, "Snapshots taken", "{snapshot}"),
		nodesTotal:       b.counter(metricNodesTotal, "Metadata tree nodes created", "{node}"),
		droppedTotal:     b.counter(metricDroppedTotal, "Samples dropped on lock contention", "{sample}"),
		updatesTotal:     b.counter(metricUpdatesTotal, "Blackboard updates", "{update}"),
		flushedSnapshots: b.counter(metricFlushedSnapshots, "Snapshots written on flush", "{snapshot}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return rm, nil
}

// RecordSnapshot counts one snapshot on the named channel.
func (rm *RuntimeMetrics) RecordSnapshot(ctx context.Context, channel string) {
	rm.snapshotsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrChannel, channel)))
}

// RecordNodes counts n created tree nodes.
func (rm *RuntimeMetrics) RecordNodes(ctx context.Context, n int64) {
	rm.nodesTotal.Add(ctx, n)
}

// RecordDropped counts n dropped samples.
func (rm *RuntimeMetrics) RecordDropped(ctx context.Context, n int64) {
	rm.droppedTotal.Add(ctx, n)
}

// RecordUpdates counts n blackboard updates.
func (rm *RuntimeMetrics) RecordUpdates(ctx context.Context, n int64) {
	rm.updatesTotal.Add(ctx, n)
}

// RecordFlushed counts snapshots replayed by a flush on the named channel.
func (rm *RuntimeMetrics) RecordFlushed(ctx context.Context, channel string, n int64) {
	rm.flushedSnapshots.Add(ctx, n, metric.WithAttributes(attribute.String(attrChannel, channel)))
}

// Counters are the signal-safe mirrors of the hot-path counts. The runtime
// bumps these; the otel bridge drains them into instruments on snapshot
// events.
type Counters struct {
	Snapshots      atomic.Int64
	DroppedSamples atomic.Int64
	Updates        atomic.Int64
}

// Drain returns the counts accumulated since the previous drain and resets
// them.
func (c *Counters) Drain() (snapshots, dropped, updates int64) {
	return c.Snapshots.Swap(0), c.DroppedSamples.Swap(0), c.Updates.Swap(0)
}
