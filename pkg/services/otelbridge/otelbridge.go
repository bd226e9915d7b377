// Package otelbridge implements the OpenTelemetry bridge service: it drains
// the runtime's self-metrics into OTel instruments on every snapshot and can
// expose them on a Prometheus scrape endpoint.
package otelbridge

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/LLNL/caliper-go/internal/log"
	"github.com/LLNL/caliper-go/internal/observability"
	"github.com/LLNL/caliper-go/pkg/caliper"
)

// Configuration keys.
const (
	// KeyPrometheus enables the Prometheus scrape endpoint.
	KeyPrometheus = "CALI_OTELBRIDGE_PROMETHEUS"

	// KeyPrometheusAddr sets the scrape endpoint listen address.
	KeyPrometheusAddr = "CALI_OTELBRIDGE_PROMETHEUS_ADDR"

	defaultAddr = ":9464"
)

const meterName = "github.com/LLNL/caliper-go"

func init() {
	caliper.RegisterService(caliper.Service{
		Name:        "otelbridge",
		Description: "Export runtime metrics through OpenTelemetry",
		Options:     []string{KeyPrometheus, KeyPrometheusAddr},
		Register:    register,
	})
}

type service struct {
	rm *observability.RuntimeMetrics

	mu        sync.Mutex
	lastNodes int
	flushed   int64

	server   *http.Server
	listener net.Listener
}

func register(c *caliper.Channel) error {
	s := &service{}

	provider := metric.MeterProvider(otel.GetMeterProvider())

	if c.Config().GetBool(KeyPrometheus, false) {
		promProvider, handler, err := observability.PrometheusProvider()
		if err != nil {
			return err
		}

		provider = promProvider

		if err := s.serve(c.Config().Get(KeyPrometheusAddr, defaultAddr), handler); err != nil {
			return err
		}
	}

	rm, err := observability.NewRuntimeMetrics(provider.Meter(meterName))
	if err != nil {
		return err
	}

	s.rm = rm
	s.lastNodes = c.Runtime().Tree().Stats().Nodes

	events := c.Events()

	events.ProcessSnapshot = append(events.ProcessSnapshot, s.process)
	events.PostprocessSnapshot = append(events.PostprocessSnapshot, s.postprocess)
	events.Finish = append(events.Finish, s.finish)

	return nil
}

func (s *service) serve(addr string, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.listener = listener
	s.server = &http.Server{Handler: mux}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("otelbridge: metrics endpoint stopped", "error", err)
		}
	}()

	log.Info("otelbridge: serving metrics", "addr", listener.Addr().String())

	return nil
}

// drain moves the hot-path counters into instruments.
func (s *service) drain(ctx context.Context, c *caliper.Channel) {
	rt := c.Runtime()

	snapshots, dropped, updates := rt.Counters().Drain()

	for range snapshots {
		s.rm.RecordSnapshot(ctx, c.Name())
	}

	if dropped > 0 {
		s.rm.RecordDropped(ctx, dropped)
	}

	if updates > 0 {
		s.rm.RecordUpdates(ctx, updates)
	}

	s.mu.Lock()

	nodes := rt.Tree().Stats().Nodes
	delta := nodes - s.lastNodes
	s.lastNodes = nodes

	s.mu.Unlock()

	if delta > 0 {
		s.rm.RecordNodes(ctx, int64(delta))
	}
}

func (s *service) process(c *caliper.Channel, _ *caliper.SnapshotRecord) {
	s.drain(context.Background(), c)
}

// postprocess fires once per record replayed by a flush.
func (s *service) postprocess(_ *caliper.Channel, _ *caliper.SnapshotRecord) {
	s.mu.Lock()
	s.flushed++
	s.mu.Unlock()
}

func (s *service) finish(c *caliper.Channel) {
	s.mu.Lock()
	flushed := s.flushed
	s.flushed = 0
	s.mu.Unlock()

	if flushed > 0 {
		s.rm.RecordFlushed(context.Background(), c.Name(), flushed)
	}

	s.drain(context.Background(), c)

	if s.server != nil {
		if err := s.server.Close(); err != nil {
			log.Error("otelbridge: close metrics endpoint", "error", err)
		}

		s.server = nil
	}
}
