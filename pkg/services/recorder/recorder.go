// Package recorder implements the stream writer service: on write-output it
// replays the channel's retained snapshots into a caliper text stream on
// disk, stdout, or stderr, with optional lz4 compression. Metadata nodes are
// written incrementally before the first record that references them.
package recorder

import (
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"

	"github.com/LLNL/caliper-go/internal/log"
	"github.com/LLNL/caliper-go/internal/tree"
	"github.com/LLNL/caliper-go/pkg/caliper"
	"github.com/LLNL/caliper-go/pkg/calistream"
	"github.com/LLNL/caliper-go/pkg/variant"
)

// Configuration keys.
const (
	// KeyFilename names the output: a path, "stdout", "stderr", or empty
	// for an auto-generated <channel>-<run id>.cali name.
	KeyFilename = "CALI_RECORDER_FILENAME"

	// KeyCompress wraps the output in an lz4 frame and appends .lz4 to
	// generated filenames.
	KeyCompress = "CALI_RECORDER_COMPRESS"
)

func init() {
	caliper.RegisterService(caliper.Service{
		Name:        "recorder",
		Description: "Write snapshots to a .cali stream on flush",
		Options:     []string{KeyFilename, KeyCompress},
		Register:    register,
	})
}

type service struct {
	filename string
	compress bool
}

func register(c *caliper.Channel) error {
	s := &service{
		filename: c.Config().Get(KeyFilename, ""),
		compress: c.Config().GetBool(KeyCompress, false),
	}

	events := c.Events()
	events.WriteOutput = append(events.WriteOutput, s.writeOutput)

	return nil
}

func (s *service) writeOutput(c *caliper.Channel) {
	sink, closeSink, err := s.openSink(c)
	if err != nil {
		log.Error("recorder: cannot open output", "channel", c.Name(), "error", err)
		return
	}

	defer func() {
		if err := closeSink(); err != nil {
			log.Error("recorder: close output", "channel", c.Name(), "error", err)
		}
	}()

	rt := c.Runtime()

	sw := &streamWriter{
		rt:      rt,
		w:       calistream.NewWriter(sink),
		written: make(map[uint64]struct{}, 256),
	}

	count := 0

	rt.Flush(c, func(rec *caliper.SnapshotRecord) {
		if err := sw.writeSnapshot(rec); err != nil {
			log.Error("recorder: write snapshot", "channel", c.Name(), "error", err)
			return
		}

		count++
	})

	if err := sw.writeGlobals(rt.Globals()); err != nil {
		log.Error("recorder: write globals", "channel", c.Name(), "error", err)
	}

	log.Info("recorder: stream written", "channel", c.Name(), "records", count)
}

// openSink resolves the output target. The returned close function flushes
// compression frames before closing files.
func (s *service) openSink(c *caliper.Channel) (io.Writer, func() error, error) {
	filename := s.filename

	switch filename {
	case "stdout":
		return os.Stdout, func() error { return nil }, nil
	case "stderr":
		return os.Stderr, func() error { return nil }, nil
	case "":
		filename = fmt.Sprintf("%s-%s.cali", c.Name(), c.Runtime().RunID())
		if s.compress {
			filename += ".lz4"
		}
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", filename, err)
	}

	if !s.compress {
		return f, f.Close, nil
	}

	zw := lz4.NewWriter(f)

	return zw, func() error {
		if err := zw.Close(); err != nil {
			_ = f.Close()
			return fmt.Errorf("close lz4 frame: %w", err)
		}

		return f.Close()
	}, nil
}

// streamWriter tracks which metadata nodes the stream already carries.
type streamWriter struct {
	rt      *caliper.Runtime
	w       *calistream.Writer
	written map[uint64]struct{}
}

// writeNodeChain emits node and its unwritten dependencies: the attribute
// node first, then the parent chain. The bootstrap prefix is implicit on
// the reader side and never written.
func (sw *streamWriter) writeNodeChain(n *tree.Node) error {
	if n == nil || n.IsRoot() || int(n.ID()) < tree.NumBootstrapNodes() {
		return nil
	}

	if _, ok := sw.written[n.ID()]; ok {
		return nil
	}

	// Mark first: the attribute chain of a meta node can reach itself.
	sw.written[n.ID()] = struct{}{}

	if attrNode := sw.rt.Tree().Node(n.Attribute()); attrNode != nil {
		if err := sw.writeNodeChain(attrNode); err != nil {
			return err
		}
	}

	if err := sw.writeNodeChain(n.Parent()); err != nil {
		return err
	}

	return sw.w.WriteNode(caliper.NodeInfo(n))
}

func (sw *streamWriter) writeAttrChain(attrID uint64) error {
	return sw.writeNodeChain(sw.rt.Tree().Node(attrID))
}

func (sw *streamWriter) splitEntries(entries []caliper.Entry) ([]uint64, []uint64, []variant.Variant, error) {
	var (
		refs  []uint64
		attrs []uint64
		data  []variant.Variant
	)

	for _, e := range entries {
		if e.IsReference() {
			if err := sw.writeNodeChain(e.Node()); err != nil {
				return nil, nil, nil, err
			}

			refs = append(refs, e.Node().ID())

			continue
		}

		if e.Empty() {
			continue
		}

		if err := sw.writeAttrChain(e.AttributeID()); err != nil {
			return nil, nil, nil, err
		}

		attrs = append(attrs, e.AttributeID())
		data = append(data, e.Value())
	}

	return refs, attrs, data, nil
}

func (sw *streamWriter) writeSnapshot(rec *caliper.SnapshotRecord) error {
	refs, attrs, data, err := sw.splitEntries(rec.Entries())
	if err != nil {
		return err
	}

	return sw.w.WriteSnapshot(refs, attrs, data)
}

func (sw *streamWriter) writeGlobals(entries []caliper.Entry) error {
	refs, attrs, data, err := sw.splitEntries(entries)
	if err != nil {
		return err
	}

	if len(refs) == 0 && len(attrs) == 0 {
		return nil
	}

	return sw.w.WriteGlobals(refs, attrs, data)
}
