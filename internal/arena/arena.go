// Package arena provides the bump-pointer chunk allocator backing the
// metadata tree. Allocation never frees; a thread arena is merged into the
// process arena when its owner goes away, which keeps every value ever handed
// out alive for the lifetime of the runtime.
package arena

import "unsafe"

// DefaultChunkSize is the allocation granularity used when no size is given.
const DefaultChunkSize = 64 * 1024

// Arena is a chunked bump allocator. It is not safe for concurrent use; each
// owner holds its own Arena and merges it into a parent on teardown.
type Arena struct {
	chunkSize int

	chunks [][]byte
	cur    []byte
	used   int

	totalReserved int
	totalUsed     int
}

// New creates an arena with the given chunk size. A non-positive size selects
// DefaultChunkSize.
func New(chunkSize int) *Arena {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &Arena{chunkSize: chunkSize}
}

// Alloc returns a zeroed byte slice of length n from the arena. Requests
// larger than the chunk size get a dedicated chunk rather than failing.
func (a *Arena) Alloc(n int) []byte {
	if n <= 0 {
		return nil
	}

	if a.cur == nil || n > len(a.cur)-a.used {
		size := a.chunkSize
		if n > size {
			// Oversized request: dedicated chunk.
			size = n
		}

		a.cur = make([]byte, size)
		a.used = 0

		a.chunks = append(a.chunks, a.cur)
		a.totalReserved += size
	}

	buf := a.cur[a.used : a.used+n : a.used+n]

	a.used += n
	a.totalUsed += n

	return buf
}

// Copy stores a copy of b in the arena and returns the stored view.
func (a *Arena) Copy(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}

	dst := a.Alloc(len(b))
	copy(dst, b)

	return dst
}

// CopyString stores a copy of s in the arena and returns the stored view.
// The returned string aliases arena memory and stays valid until process
// shutdown.
func (a *Arena) CopyString(s string) string {
	if len(s) == 0 {
		return ""
	}

	dst := a.Alloc(len(s))
	copy(dst, s)

	// Arena memory is written once and never reused, so handing out a
	// string view of it is safe.
	return unsafe.String(&dst[0], len(dst))
}

// Merge moves every chunk of other into a and resets other to empty. Used
// when a thread exits: its arena folds into the process arena so node
// payloads stay reachable.
func (a *Arena) Merge(other *Arena) {
	if other == nil || len(other.chunks) == 0 {
		return
	}

	a.chunks = append(a.chunks, other.chunks...)
	a.totalReserved += other.totalReserved
	a.totalUsed += other.totalUsed

	other.chunks = nil
	other.cur = nil
	other.used = 0
	other.totalReserved = 0
	other.totalUsed = 0
}

// Statistics describes arena usage.
type Statistics struct {
	Chunks        int
	BytesReserved int
	BytesUsed     int
}

// Stats returns current usage counters.
func (a *Arena) Stats() Statistics {
	return Statistics{
		Chunks:        len(a.chunks),
		BytesReserved: a.totalReserved,
		BytesUsed:     a.totalUsed,
	}
}
