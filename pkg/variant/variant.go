// Package variant implements the small tagged value carried in metadata tree
// nodes and snapshot entries. A Variant holds one of the primitive kinds below.
// String payloads share the caller's immutable Go string; blob payloads are
// copied by NewBytes and by Unpack, so a Variant never aliases a byte slice.
package variant

import (
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the type of value a Variant carries.
type Kind uint8

// Variant kinds. The zero value Inv marks an empty Variant.
const (
	Inv Kind = iota
	Usr
	Int
	Uint
	String
	Addr
	Double
	Bool
	Type

	maxKind = Type
)

// kindNames are the canonical spelling used in attribute declarations and the
// text stream format.
var kindNames = [...]string{
	Inv:    "inv",
	Usr:    "usr",
	Int:    "int",
	Uint:   "uint",
	String: "string",
	Addr:   "addr",
	Double: "double",
	Bool:   "bool",
	Type:   "type",
}

// Valid reports whether k names a concrete value kind.
func (k Kind) Valid() bool {
	return k > Inv && k <= maxKind
}

// String returns the canonical kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return "inv"
}

// KindFromString resolves a canonical kind name. It returns Inv for unknown
// names.
func KindFromString(s string) Kind {
	for k, name := range kindNames {
		if Kind(k).Valid() && name == s {
			return Kind(k)
		}
	}

	return Inv
}

// Variant is a tagged value. The zero value is the empty Variant.
type Variant struct {
	kind Kind

	// num holds the fixed-width payload: the two's-complement bits of an
	// int, the value of a uint or addr, the IEEE-754 bits of a double,
	// 0/1 for a bool, or the inner tag for a type value.
	num uint64

	// str holds string and usr payloads as an immutable view.
	str string
}

// NewInt returns an int Variant.
func NewInt(v int64) Variant {
	return Variant{kind: Int, num: uint64(v)}
}

// NewUint returns a uint Variant.
func NewUint(v uint64) Variant {
	return Variant{kind: Uint, num: v}
}

// NewDouble returns a double Variant.
func NewDouble(v float64) Variant {
	return Variant{kind: Double, num: math.Float64bits(v)}
}

// NewBool returns a bool Variant.
func NewBool(v bool) Variant {
	var u uint64
	if v {
		u = 1
	}

	return Variant{kind: Bool, num: u}
}

// NewAddr returns an address Variant.
func NewAddr(v uint64) Variant {
	return Variant{kind: Addr, num: v}
}

// NewString returns a string Variant borrowing s.
func NewString(s string) Variant {
	return Variant{kind: String, str: s}
}

// NewBytes returns an opaque-blob Variant holding a copy of b; it does not
// borrow b, so later changes to b do not affect the Variant.
func NewBytes(b []byte) Variant {
	return Variant{kind: Usr, str: string(b)}
}

// NewType returns a type-tag Variant.
func NewType(k Kind) Variant {
	return Variant{kind: Type, num: uint64(k)}
}

// Kind returns the kind tag.
func (v Variant) Kind() Kind {
	return v.kind
}

// Empty reports whether v carries no value.
func (v Variant) Empty() bool {
	return v.kind == Inv
}

// Size returns the payload size in bytes as used by the pack encoding.
func (v Variant) Size() int {
	switch v.kind {
	case Int, Uint, Addr, Double:
		return 8
	case Bool, Type:
		return 1
	case String, Usr:
		return len(v.str)
	default:
		return 0
	}
}

// AsInt returns the int payload. ok is false for other kinds.
func (v Variant) AsInt() (int64, bool) {
	if v.kind != Int {
		return 0, false
	}

	return int64(v.num), true
}

// AsUint returns the uint payload. ok is false for other kinds.
func (v Variant) AsUint() (uint64, bool) {
	if v.kind != Uint {
		return 0, false
	}

	return v.num, true
}

// AsAddr returns the address payload. ok is false for other kinds.
func (v Variant) AsAddr() (uint64, bool) {
	if v.kind != Addr {
		return 0, false
	}

	return v.num, true
}

// AsDouble returns the double payload. ok is false for other kinds.
func (v Variant) AsDouble() (float64, bool) {
	if v.kind != Double {
		return 0, false
	}

	return math.Float64frombits(v.num), true
}

// AsBool returns the bool payload. ok is false for other kinds.
func (v Variant) AsBool() (bool, bool) {
	if v.kind != Bool {
		return false, false
	}

	return v.num != 0, true
}

// AsString returns the string payload. ok is false for other kinds.
func (v Variant) AsString() (string, bool) {
	if v.kind != String {
		return "", false
	}

	return v.str, true
}

// AsBytes returns the blob payload. ok is false for other kinds.
func (v Variant) AsBytes() ([]byte, bool) {
	if v.kind != Usr {
		return nil, false
	}

	return []byte(v.str), true
}

// AsType returns the type-tag payload. ok is false for other kinds.
func (v Variant) AsType() (Kind, bool) {
	if v.kind != Type {
		return Inv, false
	}

	return Kind(v.num), true
}

// Equal reports structural equality. Values of different kinds are never
// equal; there is no cross-kind numeric coercion.
func (v Variant) Equal(o Variant) bool {
	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case String, Usr:
		return v.str == o.str
	default:
		return v.num == o.num
	}
}

// String renders the value for logs and the text stream format. Blobs render
// as hex, addresses as hex with an 0x prefix.
func (v Variant) String() string {
	switch v.kind {
	case Int:
		return strconv.FormatInt(int64(v.num), 10)
	case Uint:
		return strconv.FormatUint(v.num, 10)
	case Addr:
		return "0x" + strconv.FormatUint(v.num, 16)
	case Double:
		return strconv.FormatFloat(math.Float64frombits(v.num), 'g', -1, 64)
	case Bool:
		if v.num != 0 {
			return "true"
		}

		return "false"
	case Type:
		return Kind(v.num).String()
	case String:
		return v.str
	case Usr:
		return hex.EncodeToString([]byte(v.str))
	default:
		return ""
	}
}

// FromString parses the text-stream rendering of a value of kind k.
func FromString(k Kind, s string) (Variant, error) {
	switch k {
	case Int:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Variant{}, err
		}

		return NewInt(i), nil
	case Uint:
		u, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return Variant{}, err
		}

		return NewUint(u), nil
	case Addr:
		u, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
		if err != nil {
			return Variant{}, err
		}

		return NewAddr(u), nil
	case Double:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Variant{}, err
		}

		return NewDouble(f), nil
	case Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Variant{}, err
		}

		return NewBool(b), nil
	case Type:
		return NewType(KindFromString(s)), nil
	case String:
		return NewString(s), nil
	case Usr:
		b, err := hex.DecodeString(s)
		if err != nil {
			return Variant{}, err
		}

		return NewBytes(b), nil
	default:
		return Variant{}, ErrBadEncoding
	}
}
