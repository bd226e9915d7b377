package encoding

import "fmt"

// SnapshotBuffer concatenates compressed snapshot records for transport.
type SnapshotBuffer struct {
	count int
	buf   []byte
}

// NewSnapshotBuffer returns an empty snapshot buffer.
func NewSnapshotBuffer() *SnapshotBuffer {
	return &SnapshotBuffer{}
}

// NewSnapshotBufferFromBytes wraps data received from another process.
func NewSnapshotBufferFromBytes(data []byte, count int) *SnapshotBuffer {
	return &SnapshotBuffer{count: count, buf: data}
}

// Append adds one record.
func (b *SnapshotBuffer) Append(rec *CompressedRecord) {
	b.buf = rec.AppendTo(b.buf)
	b.count++
}

// Count returns the number of records.
func (b *SnapshotBuffer) Count() int {
	return b.count
}

// Size returns the encoded size in bytes.
func (b *SnapshotBuffer) Size() int {
	return len(b.buf)
}

// Bytes returns the encoded records.
func (b *SnapshotBuffer) Bytes() []byte {
	return b.buf
}

// ForEach decodes every record in order and hands it to fn.
func (b *SnapshotBuffer) ForEach(fn func(RecordView) error) error {
	pos := 0

	for i := 0; i < b.count; i++ {
		view, n, err := DecodeRecord(b.buf[pos:])
		if err != nil {
			return fmt.Errorf("snapshot record %d: %w", i, err)
		}

		pos += n

		if err := fn(view); err != nil {
			return err
		}
	}

	return nil
}
