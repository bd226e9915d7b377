// Package sigsafe implements the reader/writer lock protecting the metadata
// tree and blackboards against reentrant access from asynchronous samplers.
//
// Regular callers take the underlying RWMutex and then wait out any sampler
// that slipped in; samplers never block, they probe with the Sig* try-variants
// and drop their sample when the probe fails.
package sigsafe

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// RWLock is a reader/writer lock with a non-blocking probe path for
// asynchronous samplers. The zero value is ready to use.
type RWLock struct {
	mu sync.RWMutex

	// Holders of mu, visible to the sampler probe path.
	readers atomic.Int32
	writers atomic.Int32

	// Samplers currently inside the critical section.
	sigReaders atomic.Int32
	sigWriters atomic.Int32
}

// RLock acquires the lock for reading. It waits until no sampler writer is
// inside the critical section.
func (l *RWLock) RLock() {
	l.mu.RLock()
	l.readers.Add(1)

	for l.sigWriters.Load() != 0 {
		runtime.Gosched()
	}
}

// RUnlock releases a read acquisition.
func (l *RWLock) RUnlock() {
	l.readers.Add(-1)
	l.mu.RUnlock()
}

// Lock acquires the lock for writing. After winning the underlying mutex it
// waits until every sampler has left the critical section.
func (l *RWLock) Lock() {
	l.mu.Lock()
	l.writers.Add(1)

	for l.sigReaders.Load() != 0 || l.sigWriters.Load() != 0 {
		runtime.Gosched()
	}
}

// Unlock releases a write acquisition.
func (l *RWLock) Unlock() {
	l.writers.Add(-1)
	l.mu.Unlock()
}

// SigTryRLock attempts a sampler read acquisition. It fails immediately when
// a regular writer is active. On success the caller must release with
// SigRUnlock.
func (l *RWLock) SigTryRLock() bool {
	if l.writers.Load() != 0 {
		return false
	}

	l.sigReaders.Add(1)

	// A writer may have entered between the check and the registration;
	// back out rather than race it.
	if l.writers.Load() != 0 {
		l.sigReaders.Add(-1)
		return false
	}

	return true
}

// SigRUnlock releases a sampler read acquisition.
func (l *RWLock) SigRUnlock() {
	l.sigReaders.Add(-1)
}

// SigTryWLock attempts a sampler write acquisition. It fails when any regular
// reader or writer is active. On success the caller must release with
// SigWUnlock.
func (l *RWLock) SigTryWLock() bool {
	if l.writers.Load() != 0 || l.readers.Load() != 0 {
		return false
	}

	l.sigWriters.Add(1)

	if l.writers.Load() != 0 || l.readers.Load() != 0 {
		l.sigWriters.Add(-1)
		return false
	}

	return true
}

// SigWUnlock releases a sampler write acquisition.
func (l *RWLock) SigWUnlock() {
	l.sigWriters.Add(-1)
}

// samplerDepth counts active sampler entries process-wide; it is not tied to
// any goroutine. The runtime's entry points do not consult it: sampler code
// calls the Try variants directly.
var samplerDepth atomic.Int32

// EnterSampler marks entry into an asynchronous sampler. Callers must pair it
// with LeaveSampler.
func EnterSampler() {
	samplerDepth.Add(1)
}

// LeaveSampler marks exit from an asynchronous sampler.
func LeaveSampler() {
	samplerDepth.Add(-1)
}

// InSampler reports whether any sampler is currently active.
func InSampler() bool {
	return samplerDepth.Load() != 0
}
