package calistream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/LLNL/caliper-go/pkg/encoding"
)

// ErrMalformedRecord is returned for lines that do not parse as a caliper
// record. The wrapping error names the offending line.
var ErrMalformedRecord = errors.New("malformed record")

// NodeRecord is a decoded node line. Data is the textual value rendering;
// its kind follows from the attribute's type in the metadata.
type NodeRecord struct {
	ID       uint64
	AttrID   uint64
	ParentID uint64
	Data     string
}

// EntryRecord is a decoded ctx or globals line.
type EntryRecord struct {
	// Globals is true for a globals record.
	Globals bool

	Refs  []uint64
	Attrs []uint64
	Data  []string
}

// Handler receives decoded records in stream order.
type Handler struct {
	Node  func(NodeRecord) error
	Entry func(EntryRecord) error
}

// Read parses a record stream and dispatches each record to h. Parsing stops
// at the first malformed line.
func Read(r io.Reader, h Handler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := scanner.Text()
		if line == "" {
			continue
		}

		if err := readLine(line, h); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}

	return nil
}

func readLine(line string, h Handler) error {
	fields := splitUnescaped(line, ',', true)

	kind := ""

	for _, f := range fields {
		if len(f) > 6 && f[:6] == "__rec=" {
			kind = f[6:]
			break
		}
	}

	switch kind {
	case recNode:
		rec, err := parseNode(fields)
		if err != nil {
			return err
		}

		if h.Node != nil {
			return h.Node(rec)
		}

		return nil
	case recCtx, recGlobals:
		rec, err := parseEntries(fields)
		if err != nil {
			return err
		}

		rec.Globals = kind == recGlobals

		if h.Entry != nil {
			return h.Entry(rec)
		}

		return nil
	default:
		return fmt.Errorf("%w: missing or unknown __rec kind in %q", ErrMalformedRecord, line)
	}
}

func parseNode(fields []string) (NodeRecord, error) {
	rec := NodeRecord{
		ID:       encoding.InvalidID,
		AttrID:   encoding.InvalidID,
		ParentID: encoding.InvalidID,
	}

	for _, f := range fields {
		keyval := splitUnescaped(f, '=', false)
		if len(keyval) < 2 {
			continue
		}

		var err error

		switch keyval[0] {
		case "id":
			rec.ID, err = strconv.ParseUint(keyval[1], 10, 64)
		case "attr":
			rec.AttrID, err = strconv.ParseUint(keyval[1], 10, 64)
		case "parent":
			rec.ParentID, err = strconv.ParseUint(keyval[1], 10, 64)
		case "data":
			rec.Data = keyval[1]
		}

		if err != nil {
			return rec, fmt.Errorf("%w: bad %s field", ErrMalformedRecord, keyval[0])
		}
	}

	if rec.ID == encoding.InvalidID || rec.AttrID == encoding.InvalidID {
		return rec, fmt.Errorf("%w: node record without id or attr", ErrMalformedRecord)
	}

	return rec, nil
}

func parseEntries(fields []string) (EntryRecord, error) {
	var rec EntryRecord

	for _, f := range fields {
		keyval := splitUnescaped(f, '=', false)
		if len(keyval) < 2 {
			continue
		}

		switch keyval[0] {
		case "ref":
			for _, s := range keyval[1:] {
				id, err := strconv.ParseUint(s, 10, 64)
				if err != nil {
					return rec, fmt.Errorf("%w: bad ref %q", ErrMalformedRecord, s)
				}

				rec.Refs = append(rec.Refs, id)
			}
		case "attr":
			for _, s := range keyval[1:] {
				id, err := strconv.ParseUint(s, 10, 64)
				if err != nil {
					return rec, fmt.Errorf("%w: bad attr %q", ErrMalformedRecord, s)
				}

				rec.Attrs = append(rec.Attrs, id)
			}
		case "data":
			rec.Data = append(rec.Data, keyval[1:]...)
		}
	}

	if len(rec.Attrs) != len(rec.Data) {
		return rec, fmt.Errorf("%w: attr/data length mismatch", ErrMalformedRecord)
	}

	return rec, nil
}
