package recorder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLNL/caliper-go/pkg/caliper"
	"github.com/LLNL/caliper-go/pkg/calistream"
	"github.com/LLNL/caliper-go/pkg/variant"

	_ "github.com/LLNL/caliper-go/pkg/services/event"
	_ "github.com/LLNL/caliper-go/pkg/services/timestamp"
	_ "github.com/LLNL/caliper-go/pkg/services/trace"
)

func recordStream(t *testing.T, config map[string]string) {
	t.Helper()

	rt, err := caliper.NewRuntime(caliper.Config{})
	require.NoError(t, err)

	config[caliper.KeyServicesEnable] = "event,timestamp,trace,recorder"

	c, err := rt.CreateChannel("rec", config)
	require.NoError(t, err)

	fn, err := rt.CreateAttribute("function", variant.String, caliper.PropNested)
	require.NoError(t, err)

	iter, err := rt.CreateAttribute("iteration", variant.Int,
		caliper.PropAsValue|caliper.PropSkipEvents)
	require.NoError(t, err)

	require.NoError(t, rt.Begin(fn, variant.NewString("main")))
	require.NoError(t, rt.Set(iter, variant.NewInt(4)))
	require.NoError(t, rt.Begin(fn, variant.NewString("work")))
	require.NoError(t, rt.End(fn))
	require.NoError(t, rt.End(fn))

	rt.FlushAndWrite(c)
}

func readStream(t *testing.T, path string) *struct {
	db        *calistream.DB
	snapshots []calistream.EntryRecord
	globals   []calistream.EntryRecord
} {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)

	defer f.Close()

	var r = f

	out := &struct {
		db        *calistream.DB
		snapshots []calistream.EntryRecord
		globals   []calistream.EntryRecord
	}{db: calistream.NewDB()}

	reader := calistream.Handler{
		Node: func(rec calistream.NodeRecord) error {
			out.db.AddNode(rec)
			return nil
		},
		Entry: func(rec calistream.EntryRecord) error {
			if rec.Globals {
				out.globals = append(out.globals, rec)
			} else {
				out.snapshots = append(out.snapshots, rec)
			}

			return nil
		},
	}

	if strings.HasSuffix(path, ".lz4") {
		require.NoError(t, calistream.Read(lz4.NewReader(r), reader))
	} else {
		require.NoError(t, calistream.Read(r, reader))
	}

	return out
}

func TestWritesReadableStream(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.cali")

	recordStream(t, map[string]string{KeyFilename: path})

	stream := readStream(t, path)

	// The event service produced four snapshots: two begins, two ends.
	require.Len(t, stream.snapshots, 4)

	// The globals line carries the run metadata.
	require.Len(t, stream.globals, 1)

	foundRunID := false

	for _, attr := range stream.globals[0].Attrs {
		if stream.db.AttrName(attr) == "cali.run.id" {
			foundRunID = true
		}
	}

	assert.True(t, foundRunID)

	// Region paths resolve through the node records.
	var paths [][]string

	for _, rec := range stream.snapshots {
		for _, ref := range rec.Refs {
			if node, ok := stream.db.Node(ref); ok &&
				stream.db.AttrName(node.AttrID) == "function" {
				paths = append(paths, stream.db.Path(ref))
			}
		}
	}

	assert.Contains(t, paths, []string{"main"})
	assert.Contains(t, paths, []string{"main", "work"})

	// Every snapshot carries the timestamp service's entries.
	for _, rec := range stream.snapshots {
		names := make(map[string]bool, len(rec.Attrs))

		for _, attr := range rec.Attrs {
			names[stream.db.AttrName(attr)] = true
		}

		assert.True(t, names["time.timestamp"], "missing timestamp entry")
	}

	// The iteration value shows up in the snapshots taken after the set.
	foundIter := false

	for _, rec := range stream.snapshots {
		for i, attr := range rec.Attrs {
			if stream.db.AttrName(attr) == "iteration" && rec.Data[i] == "4" {
				foundIter = true
			}
		}
	}

	assert.True(t, foundIter)
}

func TestCompressedStream(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.cali.lz4")

	recordStream(t, map[string]string{
		KeyFilename: path,
		KeyCompress: "true",
	})

	stream := readStream(t, path)

	require.Len(t, stream.snapshots, 4)
}

func TestNodeRecordsWrittenBeforeUse(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.cali")

	recordStream(t, map[string]string{KeyFilename: path})

	f, err := os.Open(path)
	require.NoError(t, err)

	defer f.Close()

	seen := make(map[uint64]bool)

	require.NoError(t, calistream.Read(f, calistream.Handler{
		Node: func(rec calistream.NodeRecord) error {
			// A node's attribute and parent precede it in the stream
			// (bootstrap ids are implicit).
			if int(rec.AttrID) >= calistream.NumReservedIDs() {
				assert.True(t, seen[rec.AttrID], "attr %d after node %d", rec.AttrID, rec.ID)
			}

			if rec.ParentID != ^uint64(0) && int(rec.ParentID) >= calistream.NumReservedIDs() {
				assert.True(t, seen[rec.ParentID], "parent %d after node %d", rec.ParentID, rec.ID)
			}

			seen[rec.ID] = true

			return nil
		},
		Entry: func(rec calistream.EntryRecord) error {
			for _, ref := range rec.Refs {
				assert.True(t, seen[ref], "ref %d before its node record", ref)
			}

			for _, attr := range rec.Attrs {
				if int(attr) >= calistream.NumReservedIDs() {
					assert.True(t, seen[attr], "attr %d before its node record", attr)
				}
			}

			return nil
		},
	}))
}
