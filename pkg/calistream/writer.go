package calistream

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/LLNL/caliper-go/pkg/encoding"
	"github.com/LLNL/caliper-go/pkg/variant"
)

// Writer emits caliper text records to an io.Writer. It is not safe for
// concurrent use; output services serialize around it.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteNode emits a node record:
//
//	__rec=node,id=12,attr=9[,parent=4],data=function
func (w *Writer) WriteNode(info encoding.NodeInfo) error {
	var sb strings.Builder

	sb.WriteString("__rec=node,id=")
	sb.WriteString(strconv.FormatUint(info.ID, 10))
	sb.WriteString(",attr=")
	sb.WriteString(strconv.FormatUint(info.AttrID, 10))

	if info.ParentID != encoding.InvalidID {
		sb.WriteString(",parent=")
		sb.WriteString(strconv.FormatUint(info.ParentID, 10))
	}

	sb.WriteString(",data=")
	sb.WriteString(Escape(info.Value.String()))

	sb.WriteByte('\n')

	_, err := io.WriteString(w.w, sb.String())
	if err != nil {
		return fmt.Errorf("write node record: %w", err)
	}

	return nil
}

// WriteSnapshot emits a ctx record:
//
//	__rec=ctx,ref=101=88,attr=5=6,data=3=0.5
//
// Empty sections are omitted.
func (w *Writer) WriteSnapshot(refs []uint64, attrs []uint64, values []variant.Variant) error {
	return w.writeEntryRecord(recCtx, refs, attrs, values)
}

// WriteGlobals emits the run-wide metadata record in the same layout as a
// ctx record.
func (w *Writer) WriteGlobals(refs []uint64, attrs []uint64, values []variant.Variant) error {
	return w.writeEntryRecord(recGlobals, refs, attrs, values)
}

func (w *Writer) writeEntryRecord(kind string, refs []uint64, attrs []uint64, values []variant.Variant) error {
	var sb strings.Builder

	sb.WriteString("__rec=")
	sb.WriteString(kind)

	if len(refs) > 0 {
		sb.WriteString(",ref")

		for _, id := range refs {
			sb.WriteByte('=')
			sb.WriteString(strconv.FormatUint(id, 10))
		}
	}

	if len(attrs) > 0 {
		sb.WriteString(",attr")

		for _, id := range attrs {
			sb.WriteByte('=')
			sb.WriteString(strconv.FormatUint(id, 10))
		}

		sb.WriteString(",data")

		for _, v := range values {
			sb.WriteByte('=')
			sb.WriteString(Escape(v.String()))
		}
	}

	sb.WriteByte('\n')

	_, err := io.WriteString(w.w, sb.String())
	if err != nil {
		return fmt.Errorf("write %s record: %w", kind, err)
	}

	return nil
}
