// Package timestamp implements the timestamp producer service: it appends
// wall-clock timestamps and inter-snapshot durations to every snapshot taken
// on its channel.
package timestamp

import (
	"sync/atomic"
	"time"

	"github.com/LLNL/caliper-go/pkg/caliper"
	"github.com/LLNL/caliper-go/pkg/variant"
)

// Configuration keys.
const (
	// KeyTimestamp includes the absolute timestamp (ns since epoch).
	// Default true.
	KeyTimestamp = "CALI_TIMESTAMP_TIMESTAMP"

	// KeyDuration includes the duration since the channel's previous
	// snapshot (ns). Default true.
	KeyDuration = "CALI_TIMESTAMP_SNAPSHOT_DURATION"
)

// Attribute names.
const (
	timestampAttrName = "time.timestamp"
	durationAttrName  = "time.duration"
)

func init() {
	caliper.RegisterService(caliper.Service{
		Name:        "timestamp",
		Description: "Append timestamps and snapshot durations",
		Options:     []string{KeyTimestamp, KeyDuration},
		Register:    register,
	})
}

type service struct {
	timestampAttr caliper.Attribute
	durationAttr  caliper.Attribute

	withTimestamp bool
	withDuration  bool

	// prev is the previous snapshot time in ns since epoch.
	prev atomic.Int64
}

func register(c *caliper.Channel) error {
	rt := c.Runtime()

	s := &service{
		withTimestamp: c.Config().GetBool(KeyTimestamp, true),
		withDuration:  c.Config().GetBool(KeyDuration, true),
	}

	props := caliper.PropAsValue | caliper.PropScopeProcess | caliper.PropSkipEvents

	var err error

	if s.timestampAttr, err = rt.CreateAttribute(timestampAttrName, variant.Uint, props); err != nil {
		return err
	}

	if s.durationAttr, err = rt.CreateAttribute(durationAttrName, variant.Uint, props|caliper.PropAggregatable); err != nil {
		return err
	}

	s.prev.Store(time.Now().UnixNano())

	events := c.Events()
	events.Snapshot = append(events.Snapshot, s.snapshot)

	return nil
}

func (s *service) snapshot(_ *caliper.Channel, _ caliper.Scope, rec *caliper.SnapshotRecord) {
	now := time.Now().UnixNano()

	if s.withDuration {
		prev := s.prev.Swap(now)

		rec.Append(caliper.ImmediateEntry(s.durationAttr, variant.NewUint(uint64(now-prev))))
	}

	if s.withTimestamp {
		rec.Append(caliper.ImmediateEntry(s.timestampAttr, variant.NewUint(uint64(now))))
	}
}
