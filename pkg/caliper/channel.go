package caliper

import (
	"sync"
	"sync/atomic"
)

// Channel is an independently configurable measurement pipeline: its own
// configuration, event dispatcher, region filter, and active flag, layered
// over the shared metadata tree and blackboards. Multiple channels coexist;
// an inactive channel short-circuits event dispatch.
type Channel struct {
	id   uint64
	name string

	rt     *Runtime
	config *ChannelConfig
	filter *RegionFilter

	events Events
	active atomic.Bool

	// poolWarn gates the once-per-channel pool exhaustion log.
	poolWarn sync.Once
}

// ID returns the channel id.
func (c *Channel) ID() uint64 {
	return c.id
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return c.name
}

// Runtime returns the runtime the channel belongs to.
func (c *Channel) Runtime() *Runtime {
	return c.rt
}

// Config returns the channel's configuration.
func (c *Channel) Config() *ChannelConfig {
	return c.config
}

// Events returns the channel's dispatcher. Services append handlers to its
// lists at registration time.
func (c *Channel) Events() *Events {
	return &c.events
}

// IsActive reports whether the channel reacts to events.
func (c *Channel) IsActive() bool {
	return c.active.Load()
}

// Filter returns the channel's region filter, or nil.
func (c *Channel) Filter() *RegionFilter {
	return c.filter
}
