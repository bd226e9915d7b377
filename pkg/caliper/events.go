package caliper

// Handler signatures. Handlers run synchronously on the calling thread, in
// subscription order. Snapshot-building handlers receive the mutable record;
// everything else sees immutable context.
type (
	// AttributeHandler observes attribute lifecycle events.
	AttributeHandler func(*Channel, Attribute)

	// RegionHandler observes begin/end/set events.
	RegionHandler func(*Channel, Attribute)

	// SnapshotHandler contributes measurement entries to a snapshot being
	// built.
	SnapshotHandler func(*Channel, Scope, *SnapshotRecord)

	// RecordHandler consumes or postprocesses a finalized record.
	RecordHandler func(*Channel, *SnapshotRecord)

	// FlushHandler replays records a service retained, handing each to
	// proc.
	FlushHandler func(c *Channel, proc func(*SnapshotRecord))

	// ChannelHandler observes channel lifecycle events.
	ChannelHandler func(*Channel)
)

// Events is a channel's dispatcher: one subscription list per event kind.
// Services append their handlers at registration; firing walks the list in
// order.
type Events struct {
	AttributeCreated []AttributeHandler

	PreBegin  []RegionHandler
	PostBegin []RegionHandler
	PreEnd    []RegionHandler
	PostEnd   []RegionHandler
	PreSet    []RegionHandler
	PostSet   []RegionHandler

	Snapshot            []SnapshotHandler
	ProcessSnapshot     []RecordHandler
	PostprocessSnapshot []RecordHandler

	PreFlush    []ChannelHandler
	Flush       []FlushHandler
	WriteOutput []ChannelHandler

	CreateThread  []ChannelHandler
	ReleaseThread []ChannelHandler

	PostInit []ChannelHandler
	Finish   []ChannelHandler
}

func fireAttribute(c *Channel, handlers []AttributeHandler, attr Attribute) {
	for _, h := range handlers {
		h(c, attr)
	}
}

func fireRegion(c *Channel, handlers []RegionHandler, attr Attribute) {
	for _, h := range handlers {
		h(c, attr)
	}
}

func fireRecord(c *Channel, handlers []RecordHandler, rec *SnapshotRecord) {
	for _, h := range handlers {
		h(c, rec)
	}
}

func fireChannel(c *Channel, handlers []ChannelHandler) {
	for _, h := range handlers {
		h(c)
	}
}
