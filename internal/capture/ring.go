// SPDX-License-Identifier: MIT
/*
Package capture holds the shared store between the audio producer and the
analysis tick.

Ring keeps the most recent Capacity() samples. One producer calls Write from
the audio callback, one consumer calls Snapshot from the analysis tick. Both
take the same mutex, so a snapshot never observes a half-written slot and the
producer never blocks for longer than one full-buffer copy.

Snapshot order is chronological: element 0 is the oldest retained sample and
the last element is the most recent one. Slots never written read as zero.
*/
package capture

import (
	"fmt"
	"sync"

	"tuner/pkg/bitint"
)

// Sample is one signed 16-bit mono amplitude.
type Sample = int16

// DefaultCapacity is the default ring size, ~1.49 s at 44.1 kHz.
const DefaultCapacity = 65536

// Ring is a fixed-size circular buffer of the most recent samples, safe for
// one writer and concurrent snapshot readers.
type Ring struct {
	mu      sync.Mutex
	buf     []Sample
	mask    int
	cursor  int    // next slot to write
	written uint64 // total samples ever written
}

// NewRing allocates a zeroed ring. Capacity must be a power of two so the
// cursor can wrap with a mask.
func NewRing(capacity int) (*Ring, error) {
	if !bitint.IsPowerOfTwo(capacity) || capacity < 2 {
		return nil, fmt.Errorf("ring capacity must be a power of 2 >= 2, got %d", capacity)
	}
	return &Ring{
		buf:  make([]Sample, capacity),
		mask: bitint.Mask(capacity),
	}, nil
}

// Capacity returns the fixed number of samples held.
func (r *Ring) Capacity() int {
	return len(r.buf)
}

// Write appends samples at the cursor, overwriting the oldest ones. Chunks
// larger than the capacity keep only their tail.
func (r *Ring) Write(samples []Sample) {
	if len(samples) == 0 {
		return
	}

	r.mu.Lock()
	r.written += uint64(len(samples))

	size := len(r.buf)
	if len(samples) >= size {
		// Only the last size samples survive; they land so that the cursor
		// ends where a sample-by-sample write would have left it.
		tail := samples[len(samples)-size:]
		r.cursor = (r.cursor + len(samples)) & r.mask
		n := copy(r.buf[r.cursor:], tail)
		copy(r.buf, tail[n:])
		r.mu.Unlock()
		return
	}

	n := copy(r.buf[r.cursor:], samples)
	if n < len(samples) {
		copy(r.buf, samples[n:])
	}
	r.cursor = (r.cursor + len(samples)) & r.mask
	r.mu.Unlock()
}

// Snapshot returns a chronological copy of the full buffer.
func (r *Ring) Snapshot() []Sample {
	out := make([]Sample, len(r.buf))
	r.SnapshotInto(out)
	return out
}

// SnapshotInto copies the buffer into dst in chronological order without
// allocating. dst must have exactly Capacity() elements.
func (r *Ring) SnapshotInto(dst []Sample) error {
	if len(dst) != len(r.buf) {
		return fmt.Errorf("snapshot destination length %d does not match capacity %d", len(dst), len(r.buf))
	}

	r.mu.Lock()
	n := copy(dst, r.buf[r.cursor:])
	copy(dst[n:], r.buf[:r.cursor])
	r.mu.Unlock()

	return nil
}

// Written returns the total number of samples written since creation.
func (r *Ring) Written() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Reset zeroes the buffer and rewinds the cursor.
func (r *Ring) Reset() {
	r.mu.Lock()
	clear(r.buf)
	r.cursor = 0
	r.written = 0
	r.mu.Unlock()
}
