// Package trace implements the trace consumer service: it retains every
// snapshot taken on its channel and replays the buffer when the channel
// flushes. The runtime core itself never retains snapshots; this service is
// what makes flush observable.
package trace

import (
	"sync"

	"github.com/LLNL/caliper-go/internal/log"
	"github.com/LLNL/caliper-go/pkg/caliper"
)

// Configuration keys.
const (
	// KeyBufferSize caps the number of retained snapshots. Snapshots
	// beyond the cap are dropped and counted. Zero means unbounded.
	KeyBufferSize = "CALI_TRACE_BUFFER_SIZE"
)

func init() {
	caliper.RegisterService(caliper.Service{
		Name:        "trace",
		Description: "Retain snapshots and replay them on flush",
		Options:     []string{KeyBufferSize},
		Register:    register,
	})
}

type service struct {
	mu      sync.Mutex
	records []*caliper.SnapshotRecord
	dropped int

	maxRecords int
}

func register(c *caliper.Channel) error {
	s := &service{maxRecords: c.Config().GetInt(KeyBufferSize, 0)}

	events := c.Events()

	events.ProcessSnapshot = append(events.ProcessSnapshot, s.process)
	events.Flush = append(events.Flush, s.flush)
	events.Finish = append(events.Finish, s.finish)

	return nil
}

func (s *service) process(_ *caliper.Channel, rec *caliper.SnapshotRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxRecords > 0 && len(s.records) >= s.maxRecords {
		s.dropped++
		return
	}

	// Handlers must not retain the live record.
	s.records = append(s.records, rec.Clone())
}

func (s *service) flush(_ *caliper.Channel, proc func(*caliper.SnapshotRecord)) {
	s.mu.Lock()
	records := make([]*caliper.SnapshotRecord, len(s.records))
	copy(records, s.records)
	s.mu.Unlock()

	for _, rec := range records {
		proc(rec)
	}
}

func (s *service) finish(c *caliper.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dropped > 0 {
		log.Info("trace buffer overflow", "channel", c.Name(), "dropped", s.dropped)
	}

	s.records = nil
}

// Len returns the number of retained records.
func (s *service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}
