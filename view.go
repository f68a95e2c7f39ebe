// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bytebuf

import "fmt"

// genericBuffer wraps any byteStore with the full Buffer interface via the
// shared cursor. It is the concrete type behind Slice, RetainedSlice,
// Duplicate, and RetainedDuplicate: all four only differ in which
// byteStore they install, never in behavior, so one type suffices for all.
type genericBuffer struct {
	*cursor
}

func newGenericBuffer(store byteStore) *genericBuffer {
	return &genericBuffer{cursor: newCursor(store)}
}

// sliceStore adapts a parent byteStore into a fixed [offset, offset+length)
// window. Its capacity never changes: AdjustCapacity always fails, since a
// Slice's window is part of its contract with the caller.
type sliceStore struct {
	parent byteStore
	offset int
	length int
}

func (s *sliceStore) capacity() int    { return s.length }
func (s *sliceStore) maxCapacity() int { return s.length }

func (s *sliceStore) adjustCapacity(n int) error {
	return fmt.Errorf("slice capacity is fixed at %d: %w", s.length, ErrUnsupported)
}

func (s *sliceStore) rawGet(index, length int) []byte {
	return s.parent.rawGet(s.offset+index, length)
}

func (s *sliceStore) rawSet(index int, src []byte) {
	s.parent.rawSet(s.offset+index, src)
}

func (s *sliceStore) refcount() *RefCount { return s.parent.refcount() }

// duplicateStore adapts a parent byteStore into a view over its entire,
// possibly still-growing, capacity. Index 0 in the duplicate is index 0 in
// the parent; AdjustCapacity is forwarded straight through.
type duplicateStore struct {
	parent byteStore
}

func (d *duplicateStore) capacity() int    { return d.parent.capacity() }
func (d *duplicateStore) maxCapacity() int { return d.parent.maxCapacity() }

func (d *duplicateStore) adjustCapacity(n int) error { return d.parent.adjustCapacity(n) }

func (d *duplicateStore) rawGet(index, length int) []byte { return d.parent.rawGet(index, length) }
func (d *duplicateStore) rawSet(index int, src []byte)    { d.parent.rawSet(index, src) }

func (d *duplicateStore) refcount() *RefCount { return d.parent.refcount() }

// emptyStore backs the package-level Empty buffer: zero capacity in every
// direction, every access other than a zero-length one fails.
type emptyStore struct {
	rc *RefCount
}

func (e *emptyStore) capacity() int    { return 0 }
func (e *emptyStore) maxCapacity() int { return 0 }

func (e *emptyStore) adjustCapacity(n int) error {
	if n == 0 {
		return nil
	}
	return fmt.Errorf("empty buffer capacity is always 0: %w", ErrUnsupported)
}

func (e *emptyStore) rawGet(index, length int) []byte { return nil }
func (e *emptyStore) rawSet(index int, src []byte)    {}

func (e *emptyStore) refcount() *RefCount { return e.rc }

// Empty returns a shared, zero-capacity buffer with an unreleasable
// reference count (Release is always a no-op), suitable as a safe
// zero-value placeholder wherever a Buffer is required but no bytes are
// needed.
func Empty() Buffer {
	return emptyBuffer
}

var emptyBuffer = newUnreleasableEmptyBuffer()

func newUnreleasableEmptyBuffer() *genericBuffer {
	c := newCursor(&emptyStore{rc: newRefCount(nil)})
	c.unreleasable = true
	return &genericBuffer{cursor: c}
}

// storer is implemented by every Buffer variant in this package via its
// embedded *cursor, exposing the byteStore underneath so Unreleasable and
// the composite accessor can reach it directly.
type storer interface {
	storeForView() byteStore
}

func (c *cursor) storeForView() byteStore { return c.store }

// Unreleasable wraps buf so that Retain, Release, and RefCnt on the
// returned Buffer no longer touch the underlying reference count at all
// (RefCnt always reports 1): the underlying buf's lifetime is managed only
// by whoever still holds the original reference. buf must be one of this
// package's own Buffer implementations. Reads and writes still check the
// real underlying buffer's accessibility, so the view becomes unusable the
// instant the real owner fully releases it.
func Unreleasable(buf Buffer) Buffer {
	s, ok := buf.(storer)
	if !ok {
		panic("bytebuf: Unreleasable requires a buffer created by this package")
	}
	c := newCursor(s.storeForView())
	c.unreleasable = true
	return &genericBuffer{cursor: c}
}
