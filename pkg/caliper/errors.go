package caliper

import (
	"errors"

	"github.com/LLNL/caliper-go/internal/blackboard"
	"github.com/LLNL/caliper-go/internal/tree"
	"github.com/LLNL/caliper-go/pkg/encoding"
	"github.com/LLNL/caliper-go/pkg/variant"
)

// Error kinds surfaced by runtime operations. Core functions never panic;
// every failure is a return value.
var (
	// ErrInvalidAttribute reports an unknown or invalid attribute handle.
	ErrInvalidAttribute = errors.New("invalid attribute")

	// ErrTypeMismatch reports a value whose kind disagrees with the
	// attribute's declared type.
	ErrTypeMismatch = errors.New("value type does not match attribute type")

	// ErrWrongStorageMode reports node-api use on a value-typed attribute
	// or vice versa.
	ErrWrongStorageMode = blackboard.ErrWrongStorageMode

	// ErrMissingEntry reports end or unset on an attribute with no
	// current value.
	ErrMissingEntry = blackboard.ErrMissingEntry

	// ErrPoolExhausted reports a full node pool or arena; the operation
	// had no effect.
	ErrPoolExhausted = tree.ErrPoolExhausted

	// ErrBadEncoding reports a malformed serialized record.
	ErrBadEncoding = variant.ErrBadEncoding

	// ErrRecordOverflow reports a snapshot exceeding the per-record entry
	// limits of the wire format.
	ErrRecordOverflow = encoding.ErrRecordOverflow

	// ErrUnknownConfig reports an unrecognized config name in a
	// configuration string.
	ErrUnknownConfig = errors.New("unknown config")

	// ErrUnknownArgument reports an unrecognized argument name in a
	// configuration string.
	ErrUnknownArgument = errors.New("unknown argument")

	// ErrAlreadyInitialized reports a second initialization of the
	// process runtime.
	ErrAlreadyInitialized = errors.New("runtime already initialized")

	// ErrUnknownService reports a service name with no registry entry.
	ErrUnknownService = errors.New("unknown service")
)
