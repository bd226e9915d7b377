package encoding

import (
	"errors"

	"github.com/LLNL/caliper-go/pkg/variant"
	"github.com/LLNL/caliper-go/pkg/vlenc"
)

// MaxRecordEntries caps node and immediate entries per compressed record.
// The count fields are single bytes and the writer keeps each below 128, so
// a record holds at most 127 of each flavor; larger snapshots must be split.
const MaxRecordEntries = 127

// ErrRecordOverflow is returned when a record would exceed MaxRecordEntries.
var ErrRecordOverflow = errors.New("snapshot record entry limit exceeded")

// CompressedRecord builds the wire form of one snapshot:
//
//	<num_nodes : u8> <node_id : varint>*
//	<num_imm : u8> (<attr_id : varint> <packed variant>)*
type CompressedRecord struct {
	numNodes int
	numImm   int

	nodeBuf []byte
	immBuf  []byte
}

// NewCompressedRecord returns an empty record.
func NewCompressedRecord() *CompressedRecord {
	return &CompressedRecord{}
}

// AppendNode adds a node reference entry.
func (r *CompressedRecord) AppendNode(id uint64) error {
	if r.numNodes >= MaxRecordEntries {
		return ErrRecordOverflow
	}

	r.nodeBuf = vlenc.AppendUint64(r.nodeBuf, id)
	r.numNodes++

	return nil
}

// AppendImmediate adds an (attribute, value) entry.
func (r *CompressedRecord) AppendImmediate(attrID uint64, value variant.Variant) error {
	if r.numImm >= MaxRecordEntries {
		return ErrRecordOverflow
	}

	r.immBuf = vlenc.AppendUint64(r.immBuf, attrID)
	r.immBuf = value.Pack(r.immBuf)
	r.numImm++

	return nil
}

// NumNodes returns the number of node entries.
func (r *CompressedRecord) NumNodes() int {
	return r.numNodes
}

// NumImmediates returns the number of immediate entries.
func (r *CompressedRecord) NumImmediates() int {
	return r.numImm
}

// Size returns the encoded size in bytes.
func (r *CompressedRecord) Size() int {
	return 2 + len(r.nodeBuf) + len(r.immBuf)
}

// AppendTo appends the encoded record to buf and returns the extended slice.
func (r *CompressedRecord) AppendTo(buf []byte) []byte {
	buf = append(buf, byte(r.numNodes))
	buf = append(buf, r.nodeBuf...)
	buf = append(buf, byte(r.numImm))
	buf = append(buf, r.immBuf...)

	return buf
}

// Bytes returns the encoded record.
func (r *CompressedRecord) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, r.Size()))
}

// RecordView is the decoded form of one compressed record.
type RecordView struct {
	NodeIDs []uint64
	AttrIDs []uint64
	Values  []variant.Variant
}

// NumNodes returns the number of node entries.
func (v *RecordView) NumNodes() int {
	return len(v.NodeIDs)
}

// NumImmediates returns the number of immediate entries.
func (v *RecordView) NumImmediates() int {
	return len(v.AttrIDs)
}

// DecodeRecord parses one compressed record from the start of buf and
// returns the view together with the number of bytes consumed.
func DecodeRecord(buf []byte) (RecordView, int, error) {
	var view RecordView

	if len(buf) < 1 {
		return view, 0, variant.ErrBadEncoding
	}

	numNodes := int(buf[0])
	pos := 1

	view.NodeIDs = make([]uint64, 0, numNodes)

	for range numNodes {
		id, n, err := vlenc.Uint64(buf[pos:])
		if err != nil {
			return view, 0, variant.ErrBadEncoding
		}

		view.NodeIDs = append(view.NodeIDs, id)
		pos += n
	}

	if pos >= len(buf) {
		return view, 0, variant.ErrBadEncoding
	}

	numImm := int(buf[pos])
	pos++

	view.AttrIDs = make([]uint64, 0, numImm)
	view.Values = make([]variant.Variant, 0, numImm)

	for range numImm {
		attr, n, err := vlenc.Uint64(buf[pos:])
		if err != nil {
			return view, 0, variant.ErrBadEncoding
		}

		pos += n

		value, n, err := variant.Unpack(buf[pos:])
		if err != nil {
			return view, 0, err
		}

		pos += n

		view.AttrIDs = append(view.AttrIDs, attr)
		view.Values = append(view.Values, value)
	}

	return view, pos, nil
}
