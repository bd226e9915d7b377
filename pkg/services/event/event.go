// Package event implements the event trigger service: it takes a snapshot
// on every begin, set, and end of a non-hidden attribute, which turns the
// region annotations of an instrumented program into a snapshot stream for
// trace and output services downstream.
package event

import (
	"github.com/LLNL/caliper-go/pkg/caliper"
)

// Configuration keys.
const (
	// KeyTrigger restricts snapshots to a comma-separated list of
	// attribute names. Empty triggers on every attribute.
	KeyTrigger = "CALI_EVENT_TRIGGER"
)

func init() {
	caliper.RegisterService(caliper.Service{
		Name:        "event",
		Description: "Take snapshots on region begin/set/end",
		Options:     []string{KeyTrigger},
		Register:    register,
	})
}

type service struct {
	trigger map[string]struct{}
}

func register(c *caliper.Channel) error {
	s := &service{}

	if list := c.Config().GetList(KeyTrigger); len(list) > 0 {
		s.trigger = make(map[string]struct{}, len(list))

		for _, name := range list {
			s.trigger[name] = struct{}{}
		}
	}

	events := c.Events()

	events.PostBegin = append(events.PostBegin, s.snapshotCurrent)
	events.PostSet = append(events.PostSet, s.snapshotCurrent)

	// End snapshots fire before the blackboard pops so the record still
	// carries the ending region.
	events.PreEnd = append(events.PreEnd, s.snapshotCurrent)

	return nil
}

func (s *service) triggers(attr caliper.Attribute) bool {
	if attr.Properties().Hidden() {
		return false
	}

	if s.trigger == nil {
		return true
	}

	_, ok := s.trigger[attr.Name()]

	return ok
}

func (s *service) snapshotCurrent(c *caliper.Channel, attr caliper.Attribute) {
	if !s.triggers(attr) {
		return
	}

	rt := c.Runtime()

	rt.PushSnapshot(c, caliper.ScopeAll, rt.Get(attr))
}
