// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bytebuf

import "fmt"

// growThreshold is the point at which HeapBuffer's grow policy switches
// from doubling to a fixed increment, so a single large write can't double
// capacity into gigabytes.
const growThreshold = 4 << 20 // 4 MiB

// growTarget computes the capacity HeapBuffer.adjustCapacity grows to in
// order to hold want bytes: below growThreshold, the next power of two;
// at or above it, the next multiple of growThreshold.
func growTarget(want int) int {
	if want < growThreshold {
		n := 1
		for n < want {
			n <<= 1
		}
		return n
	}
	return ((want + growThreshold - 1) / growThreshold) * growThreshold
}

// heapStorage holds a HeapBuffer's backing slice in its own allocation.
// The RefCount's deallocate closure captures only this struct, never the
// HeapBuffer itself; the buffer value stays collectible while released
// storage is dropped, which is what lets the leak tracker's GC cleanup
// observe a buffer that was collected without ever being released.
type heapStorage struct {
	buf []byte
}

// HeapBuffer is a Buffer backed by a plain Go byte slice. It is the
// default variant for short-lived or small buffers where pooling overhead
// isn't worth it.
type HeapBuffer struct {
	*cursor

	rc     *RefCount
	st     *heapStorage
	maxCap int
}

// NewHeapBuffer allocates a HeapBuffer with exactly initialCapacity bytes
// of storage, growable up to maxCapacity.
func NewHeapBuffer(initialCapacity, maxCapacity int) *HeapBuffer {
	if initialCapacity < 0 || maxCapacity < initialCapacity {
		panic("bytebuf: invalid heap buffer capacities")
	}
	st := &heapStorage{buf: make([]byte, initialCapacity)}
	h := &HeapBuffer{
		st:     st,
		maxCap: maxCapacity,
	}
	h.rc = newRefCount(func() { st.buf = nil })
	h.cursor = newCursor(h)
	trackOwner(globalLeakTracker, h, h.rc, "heap")
	return h
}

func (h *HeapBuffer) capacity() int    { return len(h.st.buf) }
func (h *HeapBuffer) maxCapacity() int { return h.maxCap }

func (h *HeapBuffer) adjustCapacity(n int) error {
	if n > h.maxCap {
		return fmt.Errorf("grow to %d, max capacity %d: %w", n, h.maxCap, ErrInsufficientCapacity)
	}
	switch {
	case n == len(h.st.buf):
		return nil
	case n < len(h.st.buf):
		h.st.buf = h.st.buf[:n]
	default:
		// Grow target is the rounded size clamped to max capacity, so a
		// near-max buffer lands exactly on the ceiling instead of
		// reallocating again on the next write.
		target := growTarget(n)
		if target > h.maxCap {
			target = h.maxCap
		}
		grown := make([]byte, target)
		copy(grown, h.st.buf)
		h.st.buf = grown
	}
	return nil
}

func (h *HeapBuffer) rawGet(index, length int) []byte {
	out := make([]byte, length)
	copy(out, h.st.buf[index:index+length])
	return out
}

func (h *HeapBuffer) rawSet(index int, src []byte) {
	copy(h.st.buf[index:], src)
}

func (h *HeapBuffer) refcount() *RefCount { return h.rc }
