package variant

import (
	"encoding/binary"
	"errors"

	"github.com/LLNL/caliper-go/pkg/vlenc"
)

// ErrBadEncoding is returned when a packed value cannot be decoded: unknown
// kind tag, payload size disagreeing with the kind, or a size running past the
// end of the buffer.
var ErrBadEncoding = errors.New("bad variant encoding")

// Pack appends the wire encoding of v to buf: one varint kind tag, one varint
// payload size, then the raw payload bytes. Fixed-width kinds store their
// little-endian byte representation; type tags store a single varint.
func (v Variant) Pack(buf []byte) []byte {
	buf = vlenc.AppendUint64(buf, uint64(v.kind))

	switch v.kind {
	case Int, Uint, Addr, Double:
		var tmp [8]byte

		binary.LittleEndian.PutUint64(tmp[:], v.num)

		buf = vlenc.AppendUint64(buf, 8)
		buf = append(buf, tmp[:]...)
	case Bool, Type:
		buf = vlenc.AppendUint64(buf, 1)
		buf = append(buf, byte(v.num))
	case String, Usr:
		buf = vlenc.AppendUint64(buf, uint64(len(v.str)))
		buf = append(buf, v.str...)
	default:
		buf = vlenc.AppendUint64(buf, 0)
	}

	return buf
}

// PackedSize returns the number of bytes Pack will append for v.
func (v Variant) PackedSize() int {
	size := v.Size()

	return vlenc.Len64(uint64(v.kind)) + vlenc.Len64(uint64(size)) + size
}

// Unpack decodes a Variant from the start of buf and returns it together with
// the number of bytes consumed. String and blob payloads are copied out of buf
// so the decoded value does not alias the input.
func Unpack(buf []byte) (Variant, int, error) {
	tag, n, err := vlenc.Uint64(buf)
	if err != nil {
		return Variant{}, 0, ErrBadEncoding
	}

	if tag > uint64(maxKind) {
		return Variant{}, 0, ErrBadEncoding
	}

	kind := Kind(tag)
	pos := n

	size, n, err := vlenc.Uint64(buf[pos:])
	if err != nil {
		return Variant{}, 0, ErrBadEncoding
	}

	pos += n

	if size > uint64(len(buf)-pos) {
		return Variant{}, 0, ErrBadEncoding
	}

	payload := buf[pos : pos+int(size)]
	pos += int(size)

	v, err := fromPayload(kind, payload)
	if err != nil {
		return Variant{}, 0, err
	}

	return v, pos, nil
}

func fromPayload(kind Kind, payload []byte) (Variant, error) {
	switch kind {
	case Int, Uint, Addr, Double:
		if len(payload) != 8 {
			return Variant{}, ErrBadEncoding
		}

		return Variant{kind: kind, num: binary.LittleEndian.Uint64(payload)}, nil
	case Bool, Type:
		if len(payload) != 1 {
			return Variant{}, ErrBadEncoding
		}

		return Variant{kind: kind, num: uint64(payload[0])}, nil
	case String, Usr:
		return Variant{kind: kind, str: string(payload)}, nil
	case Inv:
		if len(payload) != 0 {
			return Variant{}, ErrBadEncoding
		}

		return Variant{}, nil
	default:
		return Variant{}, ErrBadEncoding
	}
}
