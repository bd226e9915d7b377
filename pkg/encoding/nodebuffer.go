// Package encoding implements the wire formats that cross process
// boundaries: the node buffer carrying metadata tree nodes and the snapshot
// buffer carrying compressed snapshot records. Both are stable contracts;
// cross-process aggregators read them back.
package encoding

import (
	"fmt"

	"github.com/LLNL/caliper-go/pkg/variant"
	"github.com/LLNL/caliper-go/pkg/vlenc"
)

// InvalidID marks a missing node or parent reference.
const InvalidID = ^uint64(0)

// NodeInfo is one node buffer record. ParentID is InvalidID for children of
// the root.
type NodeInfo struct {
	ID       uint64
	AttrID   uint64
	ParentID uint64
	Value    variant.Variant
}

// NodeBuffer serializes a sequence of nodes. Each record stores the node id
// doubled, with the low bit flagging the presence of a parent id, followed by
// the attribute id, the optional parent id, and the packed value.
type NodeBuffer struct {
	count int
	buf   []byte
}

// NewNodeBuffer returns an empty node buffer.
func NewNodeBuffer() *NodeBuffer {
	return &NodeBuffer{}
}

// NewNodeBufferFromBytes wraps data received from another process.
func NewNodeBufferFromBytes(data []byte, count int) *NodeBuffer {
	return &NodeBuffer{count: count, buf: data}
}

// Append adds one node record.
func (b *NodeBuffer) Append(info NodeInfo) {
	haveParent := info.ParentID != InvalidID

	idField := info.ID * 2
	if haveParent {
		idField++
	}

	b.buf = vlenc.AppendUint64(b.buf, idField)
	b.buf = vlenc.AppendUint64(b.buf, info.AttrID)

	if haveParent {
		b.buf = vlenc.AppendUint64(b.buf, info.ParentID)
	}

	b.buf = info.Value.Pack(b.buf)
	b.count++
}

// Count returns the number of records.
func (b *NodeBuffer) Count() int {
	return b.count
}

// Size returns the encoded size in bytes.
func (b *NodeBuffer) Size() int {
	return len(b.buf)
}

// Bytes returns the encoded records.
func (b *NodeBuffer) Bytes() []byte {
	return b.buf
}

// ForEach decodes every record in order and hands it to fn. Decoding stops
// at the first malformed record.
func (b *NodeBuffer) ForEach(fn func(NodeInfo) error) error {
	pos := 0

	for i := 0; i < b.count; i++ {
		info, n, err := decodeNode(b.buf[pos:])
		if err != nil {
			return fmt.Errorf("node record %d: %w", i, err)
		}

		pos += n

		if err := fn(info); err != nil {
			return err
		}
	}

	return nil
}

func decodeNode(buf []byte) (NodeInfo, int, error) {
	info := NodeInfo{ParentID: InvalidID}

	idField, pos, err := vlenc.Uint64(buf)
	if err != nil {
		return info, 0, variant.ErrBadEncoding
	}

	haveParent := idField%2 == 1
	info.ID = idField / 2

	attr, n, err := vlenc.Uint64(buf[pos:])
	if err != nil {
		return info, 0, variant.ErrBadEncoding
	}

	info.AttrID = attr
	pos += n

	if haveParent {
		parent, n, err := vlenc.Uint64(buf[pos:])
		if err != nil {
			return info, 0, variant.ErrBadEncoding
		}

		info.ParentID = parent
		pos += n
	}

	value, n, err := variant.Unpack(buf[pos:])
	if err != nil {
		return info, 0, err
	}

	info.Value = value
	pos += n

	return info, pos, nil
}
