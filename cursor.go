// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bytebuf

import (
	"bytes"
	"fmt"
	"io"
)

// checkAccessible gates every buffer access against its reference count
// being non-zero. Disabling it (Options.CheckAccessible = false, applied
// process-wide) removes a branch from the hot read/write path.
var checkAccessible = true

// setCheckAccessible is called by an Allocator built from Options; it is a
// process-wide knob in the same spirit as SetPageSize.
func setCheckAccessible(v bool) { checkAccessible = v }

// byteStore is the narrow contract every buffer variant implements. Every
// multi-byte, relative, search, and view operation in the Buffer interface
// is built exactly once on top of these six methods, so a variant's own
// file only has to provide raw, already-validated access to its backing
// memory plus its capacity and reference-count policy.
type byteStore interface {
	capacity() int
	maxCapacity() int
	adjustCapacity(n int) error // n is validated by the caller to be <= maxCapacity()
	rawGet(index, length int) []byte
	rawSet(index int, src []byte)
	refcount() *RefCount
}

// Buffer is a readable and writable sequence of bytes with independent
// reader and writer cursors, reference-counted lifetime, and growable
// capacity up to a fixed maximum. All implementations are safe for
// concurrent Retain/Release; concurrent reads and writes to the same
// Buffer from multiple goroutines are not safe, matching the single-writer
// assumption the whole package is built around.
type Buffer interface {
	Capacity() int
	MaxCapacity() int
	AdjustCapacity(n int) error

	ReaderIndex() int
	SetReaderIndex(index int) error
	WriterIndex() int
	SetWriterIndex(index int) error

	ReadableBytes() int
	WritableBytes() int
	IsReadable() bool
	IsWritable() bool

	MarkReader()
	ResetReader() error
	MarkWriter()
	ResetWriter() error

	Clear()
	DiscardReadBytes() error
	DiscardSomeReadBytes()

	GetByte(index int) (byte, error)
	SetByte(index int, v byte) error
	GetBytes(index, length int) ([]byte, error)
	SetBytes(index int, src []byte) error

	ReadByte() (byte, error)
	WriteByte(v byte) error
	ReadBytes(length int) ([]byte, error)
	WriteBytes(src []byte) error

	GetUint16BE(index int) (uint16, error)
	GetUint16LE(index int) (uint16, error)
	SetUint16BE(index int, v uint16) error
	SetUint16LE(index int, v uint16) error
	ReadUint16BE() (uint16, error)
	ReadUint16LE() (uint16, error)
	WriteUint16BE(v uint16) error
	WriteUint16LE(v uint16) error

	GetInt16BE(index int) (int16, error)
	GetInt16LE(index int) (int16, error)
	SetInt16BE(index int, v int16) error
	SetInt16LE(index int, v int16) error
	ReadInt16BE() (int16, error)
	ReadInt16LE() (int16, error)
	WriteInt16BE(v int16) error
	WriteInt16LE(v int16) error

	GetUint24BE(index int) (uint32, error)
	GetUint24LE(index int) (uint32, error)
	SetUint24BE(index int, v uint32) error
	SetUint24LE(index int, v uint32) error
	ReadUint24BE() (uint32, error)
	ReadUint24LE() (uint32, error)
	WriteUint24BE(v uint32) error
	WriteUint24LE(v uint32) error

	GetInt24BE(index int) (int32, error)
	GetInt24LE(index int) (int32, error)
	SetInt24BE(index int, v int32) error
	SetInt24LE(index int, v int32) error
	ReadInt24BE() (int32, error)
	ReadInt24LE() (int32, error)
	WriteInt24BE(v int32) error
	WriteInt24LE(v int32) error

	GetUint32BE(index int) (uint32, error)
	GetUint32LE(index int) (uint32, error)
	SetUint32BE(index int, v uint32) error
	SetUint32LE(index int, v uint32) error
	ReadUint32BE() (uint32, error)
	ReadUint32LE() (uint32, error)
	WriteUint32BE(v uint32) error
	WriteUint32LE(v uint32) error

	GetInt32BE(index int) (int32, error)
	GetInt32LE(index int) (int32, error)
	SetInt32BE(index int, v int32) error
	SetInt32LE(index int, v int32) error
	ReadInt32BE() (int32, error)
	ReadInt32LE() (int32, error)
	WriteInt32BE(v int32) error
	WriteInt32LE(v int32) error

	GetUint64BE(index int) (uint64, error)
	GetUint64LE(index int) (uint64, error)
	SetUint64BE(index int, v uint64) error
	SetUint64LE(index int, v uint64) error
	ReadUint64BE() (uint64, error)
	ReadUint64LE() (uint64, error)
	WriteUint64BE(v uint64) error
	WriteUint64LE(v uint64) error

	GetInt64BE(index int) (int64, error)
	GetInt64LE(index int) (int64, error)
	SetInt64BE(index int, v int64) error
	SetInt64LE(index int, v int64) error
	ReadInt64BE() (int64, error)
	ReadInt64LE() (int64, error)
	WriteInt64BE(v int64) error
	WriteInt64LE(v int64) error

	GetFloat32BE(index int) (float32, error)
	GetFloat32LE(index int) (float32, error)
	SetFloat32BE(index int, v float32) error
	SetFloat32LE(index int, v float32) error
	ReadFloat32BE() (float32, error)
	ReadFloat32LE() (float32, error)
	WriteFloat32BE(v float32) error
	WriteFloat32LE(v float32) error

	GetFloat64BE(index int) (float64, error)
	GetFloat64LE(index int) (float64, error)
	SetFloat64BE(index int, v float64) error
	SetFloat64LE(index int, v float64) error
	ReadFloat64BE() (float64, error)
	ReadFloat64LE() (float64, error)
	WriteFloat64BE(v float64) error
	WriteFloat64LE(v float64) error

	IndexOf(from, to int, value byte) int
	ForEachByte(from, length int, fn ByteProcessor) (int, error)
	ForEachByteDesc(from, length int, fn ByteProcessor) (int, error)

	ReadFrom(src StreamSource, length int) (int, error)
	WriteTo(dst StreamSink, length int) (int, error)

	GetString(index, length int, enc ByteEncoder) (string, error)
	SetString(index int, s string, enc ByteEncoder) error
	ReadString(length int, enc ByteEncoder) (string, error)
	WriteString(s string, enc ByteEncoder) error

	Slice(index, length int) (Buffer, error)
	RetainedSlice(index, length int) (Buffer, error)
	Duplicate() (Buffer, error)
	RetainedDuplicate() (Buffer, error)

	RefCnt() int
	Retain() error
	RetainN(n int) error
	Release() (bool, error)
	ReleaseN(n int) (bool, error)
	Touch(hint string)
}

// cursor implements every Buffer method on top of a byteStore. Every
// concrete variant (HeapBuffer, PooledBuffer, DirectBuffer, and the
// generic view used for Slice/Duplicate) embeds *cursor and gets the whole
// Buffer interface for free, supplying only the byteStore primitives.
type cursor struct {
	store byteStore

	r, w             int
	markedR, markedW int

	// unreleasable is set only for the view returned by Unreleasable: it
	// makes Retain/Release/RefCnt ignore the underlying store's RefCount
	// entirely rather than forwarding to it.
	unreleasable bool
}

func newCursor(store byteStore) *cursor {
	return &cursor{store: store}
}

func (c *cursor) checkAccess() error {
	if checkAccessible && !c.store.refcount().Accessible() {
		return ErrIllegalReferenceCount
	}
	return nil
}

func (c *cursor) checkIndex(index, length int) error {
	if index < 0 || length < 0 || index+length > c.store.capacity() {
		return fmt.Errorf("index %d length %d capacity %d: %w", index, length, c.store.capacity(), ErrOutOfBounds)
	}
	return nil
}

func (c *cursor) checkReadable(length int) error {
	if length < 0 || c.r+length > c.w {
		return fmt.Errorf("read %d bytes at reader index %d writer index %d: %w", length, c.r, c.w, ErrOutOfBounds)
	}
	return nil
}

func (c *cursor) ensureWritable(length int) error {
	need := c.w + length
	if need <= c.store.capacity() {
		return nil
	}
	if need > c.store.maxCapacity() {
		return fmt.Errorf("need %d bytes, max capacity %d: %w", need, c.store.maxCapacity(), ErrInsufficientCapacity)
	}
	return c.store.adjustCapacity(need)
}

func (c *cursor) Capacity() int    { return c.store.capacity() }
func (c *cursor) MaxCapacity() int { return c.store.maxCapacity() }

func (c *cursor) AdjustCapacity(n int) error {
	if n < 0 || n > c.store.maxCapacity() {
		return fmt.Errorf("adjust capacity to %d, max %d: %w", n, c.store.maxCapacity(), ErrInsufficientCapacity)
	}
	if err := c.store.adjustCapacity(n); err != nil {
		return err
	}
	if c.w > n {
		c.w = n
	}
	if c.r > c.w {
		c.r = c.w
	}
	return nil
}

func (c *cursor) ReaderIndex() int { return c.r }
func (c *cursor) WriterIndex() int { return c.w }

func (c *cursor) SetReaderIndex(index int) error {
	if index < 0 || index > c.w {
		return fmt.Errorf("set reader index %d, writer index %d: %w", index, c.w, ErrOutOfBounds)
	}
	c.r = index
	return nil
}

func (c *cursor) SetWriterIndex(index int) error {
	if index < c.r || index > c.store.capacity() {
		return fmt.Errorf("set writer index %d, reader index %d capacity %d: %w", index, c.r, c.store.capacity(), ErrOutOfBounds)
	}
	c.w = index
	return nil
}

func (c *cursor) ReadableBytes() int { return c.w - c.r }
func (c *cursor) WritableBytes() int { return c.store.capacity() - c.w }
func (c *cursor) IsReadable() bool   { return c.r < c.w }
func (c *cursor) IsWritable() bool   { return c.w < c.store.capacity() }

func (c *cursor) MarkReader() { c.markedR = c.r }
func (c *cursor) MarkWriter() { c.markedW = c.w }

func (c *cursor) ResetReader() error {
	if c.markedR > c.w {
		return fmt.Errorf("reset reader index to %d, writer index %d: %w", c.markedR, c.w, ErrOutOfBounds)
	}
	c.r = c.markedR
	return nil
}

func (c *cursor) ResetWriter() error {
	if c.markedW < c.r {
		return fmt.Errorf("reset writer index to %d, reader index %d: %w", c.markedW, c.r, ErrOutOfBounds)
	}
	c.w = c.markedW
	return nil
}

func (c *cursor) Clear() {
	c.r, c.w, c.markedR, c.markedW = 0, 0, 0, 0
}

// DiscardReadBytes shifts the readable region down to index 0, freeing the
// space already consumed by the reader for reuse by future writes.
func (c *cursor) DiscardReadBytes() error {
	if c.r == 0 {
		return nil
	}
	if err := c.checkAccess(); err != nil {
		return err
	}
	n := c.w - c.r
	if n > 0 {
		c.store.rawSet(0, c.store.rawGet(c.r, n))
	}
	// Markers shift down with the compacted window, flooring at 0.
	if c.markedR -= c.r; c.markedR < 0 {
		c.markedR = 0
	}
	if c.markedW -= c.r; c.markedW < 0 {
		c.markedW = 0
	}
	c.w = n
	c.r = 0
	return nil
}

// DiscardSomeReadBytes compacts the buffer only when doing so would free a
// worthwhile amount of space, avoiding a copy on every single read like
// DiscardReadBytes would.
func (c *cursor) DiscardSomeReadBytes() {
	if c.r == 0 {
		return
	}
	if c.r == c.w {
		c.Clear()
		return
	}
	if c.r >= c.store.capacity()/2 {
		_ = c.DiscardReadBytes()
	}
}

func (c *cursor) GetByte(index int) (byte, error) {
	return getFixed(c, index, 1, func(b []byte) byte { return b[0] })
}

func (c *cursor) SetByte(index int, v byte) error {
	return setFixed(c, index, 1, v, func(b []byte, v byte) { b[0] = v })
}

func (c *cursor) GetBytes(index, length int) ([]byte, error) {
	if err := c.checkAccess(); err != nil {
		return nil, err
	}
	if err := c.checkIndex(index, length); err != nil {
		return nil, err
	}
	return c.store.rawGet(index, length), nil
}

func (c *cursor) SetBytes(index int, src []byte) error {
	if err := c.checkAccess(); err != nil {
		return err
	}
	if err := c.checkIndex(index, len(src)); err != nil {
		return err
	}
	c.store.rawSet(index, src)
	return nil
}

func (c *cursor) ReadByte() (byte, error) {
	return readFixed(c, 1, func(b []byte) byte { return b[0] })
}

func (c *cursor) WriteByte(v byte) error {
	return writeFixed(c, 1, v, func(b []byte, v byte) { b[0] = v })
}

func (c *cursor) ReadBytes(length int) ([]byte, error) {
	if err := c.checkAccess(); err != nil {
		return nil, err
	}
	if err := c.checkReadable(length); err != nil {
		return nil, err
	}
	b := c.store.rawGet(c.r, length)
	c.r += length
	return b, nil
}

func (c *cursor) WriteBytes(src []byte) error {
	if err := c.checkAccess(); err != nil {
		return err
	}
	if err := c.ensureWritable(len(src)); err != nil {
		return err
	}
	c.store.rawSet(c.w, src)
	c.w += len(src)
	return nil
}

// getFixed/setFixed/readFixed/writeFixed implement the absolute and
// relative accessors for every fixed-width primitive exactly once; each
// typed method below only names its width and codec functions.
func getFixed[T any](c *cursor, index, width int, decode func([]byte) T) (T, error) {
	var zero T
	if err := c.checkAccess(); err != nil {
		return zero, err
	}
	if err := c.checkIndex(index, width); err != nil {
		return zero, err
	}
	return decode(c.store.rawGet(index, width)), nil
}

func setFixed[T any](c *cursor, index, width int, v T, encode func([]byte, T)) error {
	if err := c.checkAccess(); err != nil {
		return err
	}
	if err := c.checkIndex(index, width); err != nil {
		return err
	}
	b := make([]byte, width)
	encode(b, v)
	c.store.rawSet(index, b)
	return nil
}

func readFixed[T any](c *cursor, width int, decode func([]byte) T) (T, error) {
	var zero T
	if err := c.checkAccess(); err != nil {
		return zero, err
	}
	if err := c.checkReadable(width); err != nil {
		return zero, err
	}
	v := decode(c.store.rawGet(c.r, width))
	c.r += width
	return v, nil
}

func writeFixed[T any](c *cursor, width int, v T, encode func([]byte, T)) error {
	if err := c.checkAccess(); err != nil {
		return err
	}
	if err := c.ensureWritable(width); err != nil {
		return err
	}
	b := make([]byte, width)
	encode(b, v)
	c.store.rawSet(c.w, b)
	c.w += width
	return nil
}

func (c *cursor) GetUint16BE(index int) (uint16, error) { return getFixed(c, index, 2, readU16BE) }
func (c *cursor) GetUint16LE(index int) (uint16, error) { return getFixed(c, index, 2, readU16LE) }
func (c *cursor) SetUint16BE(index int, v uint16) error { return setFixed(c, index, 2, v, writeU16BE) }
func (c *cursor) SetUint16LE(index int, v uint16) error { return setFixed(c, index, 2, v, writeU16LE) }
func (c *cursor) ReadUint16BE() (uint16, error)         { return readFixed(c, 2, readU16BE) }
func (c *cursor) ReadUint16LE() (uint16, error)         { return readFixed(c, 2, readU16LE) }
func (c *cursor) WriteUint16BE(v uint16) error          { return writeFixed(c, 2, v, writeU16BE) }
func (c *cursor) WriteUint16LE(v uint16) error          { return writeFixed(c, 2, v, writeU16LE) }

func (c *cursor) GetInt16BE(index int) (int16, error) { return getFixed(c, index, 2, readI16BE) }
func (c *cursor) GetInt16LE(index int) (int16, error) { return getFixed(c, index, 2, readI16LE) }
func (c *cursor) SetInt16BE(index int, v int16) error { return setFixed(c, index, 2, v, writeI16BE) }
func (c *cursor) SetInt16LE(index int, v int16) error { return setFixed(c, index, 2, v, writeI16LE) }
func (c *cursor) ReadInt16BE() (int16, error)         { return readFixed(c, 2, readI16BE) }
func (c *cursor) ReadInt16LE() (int16, error)         { return readFixed(c, 2, readI16LE) }
func (c *cursor) WriteInt16BE(v int16) error          { return writeFixed(c, 2, v, writeI16BE) }
func (c *cursor) WriteInt16LE(v int16) error          { return writeFixed(c, 2, v, writeI16LE) }

func (c *cursor) GetUint24BE(index int) (uint32, error) { return getFixed(c, index, 3, readU24BE) }
func (c *cursor) GetUint24LE(index int) (uint32, error) { return getFixed(c, index, 3, readU24LE) }
func (c *cursor) SetUint24BE(index int, v uint32) error { return setFixed(c, index, 3, v, writeU24BE) }
func (c *cursor) SetUint24LE(index int, v uint32) error { return setFixed(c, index, 3, v, writeU24LE) }
func (c *cursor) ReadUint24BE() (uint32, error)         { return readFixed(c, 3, readU24BE) }
func (c *cursor) ReadUint24LE() (uint32, error)         { return readFixed(c, 3, readU24LE) }
func (c *cursor) WriteUint24BE(v uint32) error          { return writeFixed(c, 3, v, writeU24BE) }
func (c *cursor) WriteUint24LE(v uint32) error          { return writeFixed(c, 3, v, writeU24LE) }

func (c *cursor) GetInt24BE(index int) (int32, error) { return getFixed(c, index, 3, readI24BE) }
func (c *cursor) GetInt24LE(index int) (int32, error) { return getFixed(c, index, 3, readI24LE) }
func (c *cursor) SetInt24BE(index int, v int32) error { return setFixed(c, index, 3, v, writeI24BE) }
func (c *cursor) SetInt24LE(index int, v int32) error { return setFixed(c, index, 3, v, writeI24LE) }
func (c *cursor) ReadInt24BE() (int32, error)         { return readFixed(c, 3, readI24BE) }
func (c *cursor) ReadInt24LE() (int32, error)         { return readFixed(c, 3, readI24LE) }
func (c *cursor) WriteInt24BE(v int32) error          { return writeFixed(c, 3, v, writeI24BE) }
func (c *cursor) WriteInt24LE(v int32) error          { return writeFixed(c, 3, v, writeI24LE) }

func (c *cursor) GetUint32BE(index int) (uint32, error) { return getFixed(c, index, 4, readU32BE) }
func (c *cursor) GetUint32LE(index int) (uint32, error) { return getFixed(c, index, 4, readU32LE) }
func (c *cursor) SetUint32BE(index int, v uint32) error { return setFixed(c, index, 4, v, writeU32BE) }
func (c *cursor) SetUint32LE(index int, v uint32) error { return setFixed(c, index, 4, v, writeU32LE) }
func (c *cursor) ReadUint32BE() (uint32, error)         { return readFixed(c, 4, readU32BE) }
func (c *cursor) ReadUint32LE() (uint32, error)         { return readFixed(c, 4, readU32LE) }
func (c *cursor) WriteUint32BE(v uint32) error          { return writeFixed(c, 4, v, writeU32BE) }
func (c *cursor) WriteUint32LE(v uint32) error          { return writeFixed(c, 4, v, writeU32LE) }

func (c *cursor) GetInt32BE(index int) (int32, error) { return getFixed(c, index, 4, readI32BE) }
func (c *cursor) GetInt32LE(index int) (int32, error) { return getFixed(c, index, 4, readI32LE) }
func (c *cursor) SetInt32BE(index int, v int32) error { return setFixed(c, index, 4, v, writeI32BE) }
func (c *cursor) SetInt32LE(index int, v int32) error { return setFixed(c, index, 4, v, writeI32LE) }
func (c *cursor) ReadInt32BE() (int32, error)         { return readFixed(c, 4, readI32BE) }
func (c *cursor) ReadInt32LE() (int32, error)         { return readFixed(c, 4, readI32LE) }
func (c *cursor) WriteInt32BE(v int32) error          { return writeFixed(c, 4, v, writeI32BE) }
func (c *cursor) WriteInt32LE(v int32) error          { return writeFixed(c, 4, v, writeI32LE) }

func (c *cursor) GetUint64BE(index int) (uint64, error) { return getFixed(c, index, 8, readU64BE) }
func (c *cursor) GetUint64LE(index int) (uint64, error) { return getFixed(c, index, 8, readU64LE) }
func (c *cursor) SetUint64BE(index int, v uint64) error { return setFixed(c, index, 8, v, writeU64BE) }
func (c *cursor) SetUint64LE(index int, v uint64) error { return setFixed(c, index, 8, v, writeU64LE) }
func (c *cursor) ReadUint64BE() (uint64, error)         { return readFixed(c, 8, readU64BE) }
func (c *cursor) ReadUint64LE() (uint64, error)         { return readFixed(c, 8, readU64LE) }
func (c *cursor) WriteUint64BE(v uint64) error          { return writeFixed(c, 8, v, writeU64BE) }
func (c *cursor) WriteUint64LE(v uint64) error          { return writeFixed(c, 8, v, writeU64LE) }

func (c *cursor) GetInt64BE(index int) (int64, error) { return getFixed(c, index, 8, readI64BE) }
func (c *cursor) GetInt64LE(index int) (int64, error) { return getFixed(c, index, 8, readI64LE) }
func (c *cursor) SetInt64BE(index int, v int64) error { return setFixed(c, index, 8, v, writeI64BE) }
func (c *cursor) SetInt64LE(index int, v int64) error { return setFixed(c, index, 8, v, writeI64LE) }
func (c *cursor) ReadInt64BE() (int64, error)         { return readFixed(c, 8, readI64BE) }
func (c *cursor) ReadInt64LE() (int64, error)         { return readFixed(c, 8, readI64LE) }
func (c *cursor) WriteInt64BE(v int64) error          { return writeFixed(c, 8, v, writeI64BE) }
func (c *cursor) WriteInt64LE(v int64) error          { return writeFixed(c, 8, v, writeI64LE) }

func (c *cursor) GetFloat32BE(index int) (float32, error) { return getFixed(c, index, 4, readF32BE) }
func (c *cursor) GetFloat32LE(index int) (float32, error) { return getFixed(c, index, 4, readF32LE) }
func (c *cursor) SetFloat32BE(index int, v float32) error {
	return setFixed(c, index, 4, v, writeF32BE)
}
func (c *cursor) SetFloat32LE(index int, v float32) error {
	return setFixed(c, index, 4, v, writeF32LE)
}
func (c *cursor) ReadFloat32BE() (float32, error) { return readFixed(c, 4, readF32BE) }
func (c *cursor) ReadFloat32LE() (float32, error) { return readFixed(c, 4, readF32LE) }
func (c *cursor) WriteFloat32BE(v float32) error  { return writeFixed(c, 4, v, writeF32BE) }
func (c *cursor) WriteFloat32LE(v float32) error  { return writeFixed(c, 4, v, writeF32LE) }

func (c *cursor) GetFloat64BE(index int) (float64, error) { return getFixed(c, index, 8, readF64BE) }
func (c *cursor) GetFloat64LE(index int) (float64, error) { return getFixed(c, index, 8, readF64LE) }
func (c *cursor) SetFloat64BE(index int, v float64) error {
	return setFixed(c, index, 8, v, writeF64BE)
}
func (c *cursor) SetFloat64LE(index int, v float64) error {
	return setFixed(c, index, 8, v, writeF64LE)
}
func (c *cursor) ReadFloat64BE() (float64, error) { return readFixed(c, 8, readF64BE) }
func (c *cursor) ReadFloat64LE() (float64, error) { return readFixed(c, 8, readF64LE) }
func (c *cursor) WriteFloat64BE(v float64) error  { return writeFixed(c, 8, v, writeF64BE) }
func (c *cursor) WriteFloat64LE(v float64) error  { return writeFixed(c, 8, v, writeF64LE) }

// IndexOf scans [from, to) forward, or [to, from) backward if to < from,
// for the first occurrence of value, returning its absolute index or -1.
// Out-of-range endpoints are clamped to the buffer's capacity rather than
// failing: a scan over an empty range simply finds nothing, and so does a
// scan of a released buffer.
func (c *cursor) IndexOf(from, to int, value byte) int {
	if c.checkAccess() != nil {
		return -1
	}
	from = clampIndex(from, c.store.capacity())
	to = clampIndex(to, c.store.capacity())
	if from == to {
		return -1
	}
	if from < to {
		b := c.store.rawGet(from, to-from)
		if i := bytes.IndexByte(b, value); i >= 0 {
			return from + i
		}
		return -1
	}
	b := c.store.rawGet(to, from-to)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == value {
			return to + i
		}
	}
	return -1
}

func clampIndex(i, capacity int) int {
	if i < 0 {
		return 0
	}
	if i > capacity {
		return capacity
	}
	return i
}

func (c *cursor) ForEachByte(from, length int, fn ByteProcessor) (int, error) {
	if err := c.checkAccess(); err != nil {
		return -1, err
	}
	if err := c.checkIndex(from, length); err != nil {
		return -1, err
	}
	b := c.store.rawGet(from, length)
	for i, v := range b {
		if !fn(from+i, v) {
			return from + i, nil
		}
	}
	return -1, nil
}

func (c *cursor) ForEachByteDesc(from, length int, fn ByteProcessor) (int, error) {
	if err := c.checkAccess(); err != nil {
		return -1, err
	}
	if err := c.checkIndex(from, length); err != nil {
		return -1, err
	}
	b := c.store.rawGet(from, length)
	for i := len(b) - 1; i >= 0; i-- {
		if !fn(from+i, b[i]) {
			return from + i, nil
		}
	}
	return -1, nil
}

// ReadFrom pulls up to length bytes from src directly into the buffer's
// writable region, advancing the writer index by however many bytes were
// actually transferred before any error (including a short read).
func (c *cursor) ReadFrom(src StreamSource, length int) (int, error) {
	if err := c.checkAccess(); err != nil {
		return 0, err
	}
	if err := c.ensureWritable(length); err != nil {
		return 0, err
	}
	buf := make([]byte, length)
	n, err := io.ReadFull(src, buf)
	if n > 0 {
		c.store.rawSet(c.w, buf[:n])
		c.w += n
	}
	if err != nil {
		return n, fmt.Errorf("read %d of %d bytes: %w (%v)", n, length, ErrIoFailure, err)
	}
	return n, nil
}

// WriteTo pushes up to length readable bytes to dst, advancing the reader
// index by however many bytes were actually transferred before any error.
func (c *cursor) WriteTo(dst StreamSink, length int) (int, error) {
	if err := c.checkAccess(); err != nil {
		return 0, err
	}
	if err := c.checkReadable(length); err != nil {
		return 0, err
	}
	b := c.store.rawGet(c.r, length)
	n, err := dst.Write(b)
	if n > 0 {
		c.r += n
	}
	if err != nil {
		return n, fmt.Errorf("write %d of %d bytes: %w (%v)", n, length, ErrIoFailure, err)
	}
	return n, nil
}

// GetString decodes the length bytes starting at index as a string without
// touching R/W. A nil enc takes the UTF-8/ASCII fast path (Go strings are
// already UTF-8, so this is a direct conversion); a non-nil enc decodes
// through the caller-supplied charset provider.
func (c *cursor) GetString(index, length int, enc ByteEncoder) (string, error) {
	b, err := c.GetBytes(index, length)
	if err != nil {
		return "", err
	}
	if enc == nil {
		return string(b), nil
	}
	return enc.Decode(b)
}

// SetString encodes s at index without touching R/W, via the UTF-8 fast
// path when enc is nil.
func (c *cursor) SetString(index int, s string, enc ByteEncoder) error {
	if enc == nil {
		return c.SetBytes(index, []byte(s))
	}
	b, err := enc.Encode(s)
	if err != nil {
		return err
	}
	return c.SetBytes(index, b)
}

// ReadString consumes length bytes from R and decodes them as a string.
func (c *cursor) ReadString(length int, enc ByteEncoder) (string, error) {
	b, err := c.ReadBytes(length)
	if err != nil {
		return "", err
	}
	if enc == nil {
		return string(b), nil
	}
	return enc.Decode(b)
}

// WriteString encodes s at W, growing capacity as WriteBytes would.
func (c *cursor) WriteString(s string, enc ByteEncoder) error {
	if enc == nil {
		return c.WriteBytes([]byte(s))
	}
	b, err := enc.Encode(s)
	if err != nil {
		return err
	}
	return c.WriteBytes(b)
}

// Slice returns a fixed-window view of [index, index+length) that shares
// the parent's backing memory and reference count but does not retain it:
// the parent must outlive the slice. The slice starts fully readable
// (reader index 0, writer index length), with cursors independent of the
// parent's. A slice of an unreleasable view is itself unreleasable.
func (c *cursor) Slice(index, length int) (Buffer, error) {
	if err := c.checkIndex(index, length); err != nil {
		return nil, err
	}
	b := newGenericBuffer(&sliceStore{parent: c.store, offset: index, length: length})
	b.w = length
	b.unreleasable = c.unreleasable
	return b, nil
}

// RetainedSlice is Slice plus a single Retain on the parent, so the slice
// may safely outlive the call site that created it. On an unreleasable
// view the retain is a no-op, like every other reference-count operation
// through it.
func (c *cursor) RetainedSlice(index, length int) (Buffer, error) {
	b, err := c.Slice(index, length)
	if err != nil {
		return nil, err
	}
	if c.unreleasable {
		return b, nil
	}
	if err := c.store.refcount().Retain(); err != nil {
		return nil, err
	}
	return b, nil
}

// Duplicate returns a view over the parent's full (and possibly still
// growing) capacity. The duplicate starts with the parent's current
// reader/writer indices and markers, then moves them independently: the
// readable window is the same bytes, but consuming it leaves the parent's
// cursors where they were. A duplicate of an unreleasable view is itself
// unreleasable.
func (c *cursor) Duplicate() (Buffer, error) {
	b := newGenericBuffer(&duplicateStore{parent: c.store})
	b.r, b.w = c.r, c.w
	b.markedR, b.markedW = c.markedR, c.markedW
	b.unreleasable = c.unreleasable
	return b, nil
}

// RetainedDuplicate is Duplicate plus a single Retain on the parent.
func (c *cursor) RetainedDuplicate() (Buffer, error) {
	if c.unreleasable {
		return c.Duplicate()
	}
	if err := c.store.refcount().Retain(); err != nil {
		return nil, err
	}
	return c.Duplicate()
}

func (c *cursor) RefCnt() int {
	if c.unreleasable {
		return 1
	}
	return c.store.refcount().Count()
}

func (c *cursor) Retain() error {
	if c.unreleasable {
		return nil
	}
	c.store.refcount().Touch("retain")
	return c.store.refcount().Retain()
}

func (c *cursor) RetainN(n int) error {
	if c.unreleasable {
		return nil
	}
	c.store.refcount().Touch("retainN")
	return c.store.refcount().RetainN(n)
}

func (c *cursor) Release() (bool, error) {
	if c.unreleasable {
		return false, nil
	}
	c.store.refcount().Touch("release")
	return c.store.refcount().Release()
}

func (c *cursor) ReleaseN(n int) (bool, error) {
	if c.unreleasable {
		return false, nil
	}
	c.store.refcount().Touch("releaseN")
	return c.store.refcount().ReleaseN(n)
}

// Touch records a caller-supplied diagnostic hint on the buffer's leak
// trail, surfaced in a leak report if the buffer is collected without
// being released.
func (c *cursor) Touch(hint string) {
	if c.unreleasable {
		return
	}
	c.store.refcount().Touch(hint)
}
