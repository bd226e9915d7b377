package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/LLNL/caliper-go/pkg/calistream"
)

// openStream opens a record stream argument: a path, "-" for stdin, with
// transparent lz4 decompression for .lz4 files.
func openStream(path string) (io.Reader, func() error, error) {
	if path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}

	if strings.HasSuffix(path, ".lz4") {
		return lz4.NewReader(f), f.Close, nil
	}

	return f, f.Close, nil
}

// loadedStream is a record stream read into memory.
type loadedStream struct {
	db        *calistream.DB
	snapshots []calistream.EntryRecord
	globals   []calistream.EntryRecord
	nodeCount int
}

// loadStream reads a whole stream, building the metadata database.
func loadStream(path string) (*loadedStream, error) {
	r, closeFn, err := openStream(path)
	if err != nil {
		return nil, err
	}

	defer func() { _ = closeFn() }()

	ls := &loadedStream{db: calistream.NewDB()}

	err = calistream.Read(r, calistream.Handler{
		Node: func(rec calistream.NodeRecord) error {
			ls.db.AddNode(rec)
			ls.nodeCount++

			return nil
		},
		Entry: func(rec calistream.EntryRecord) error {
			if rec.Globals {
				ls.globals = append(ls.globals, rec)
			} else {
				ls.snapshots = append(ls.snapshots, rec)
			}

			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return ls, nil
}
