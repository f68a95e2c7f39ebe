// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bytebuf_test

import (
	"errors"
	"testing"

	"code.hybscloud.com/bytebuf"
)

func TestSlice_SharesBackingMemory(t *testing.T) {
	h := bytebuf.NewHeapBuffer(16, 16)
	_ = h.WriteBytes([]byte("0123456789abcdef"))

	s, err := h.Slice(4, 4)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	got, err := s.GetBytes(0, 4)
	if err != nil {
		t.Fatalf("GetBytes on slice: %v", err)
	}
	if string(got) != "4567" {
		t.Fatalf("slice contents = %q, want %q", got, "4567")
	}

	if err := s.SetByte(0, 'X'); err != nil {
		t.Fatalf("SetByte on slice: %v", err)
	}
	parentByte, _ := h.GetByte(4)
	if parentByte != 'X' {
		t.Fatal("write through a Slice should mutate the parent's backing memory")
	}
}

func TestSlice_ReadableWindowAndParentUntouched(t *testing.T) {
	h := bytebuf.NewHeapBuffer(11, 11)
	_ = h.WriteBytes([]byte("hello world"))

	s, err := h.Slice(6, 5)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	got, err := s.ReadString(5, nil)
	if err != nil {
		t.Fatalf("ReadString on slice: %v", err)
	}
	if got != "world" {
		t.Fatalf("ReadString = %q, want %q", got, "world")
	}
	if h.ReaderIndex() != 0 {
		t.Fatalf("parent ReaderIndex = %d, want 0 (untouched by the slice's reads)", h.ReaderIndex())
	}
}

func TestSlice_FixedCapacityCannotGrow(t *testing.T) {
	h := bytebuf.NewHeapBuffer(16, 16)
	s, err := h.Slice(0, 4)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if err := s.AdjustCapacity(2); !errors.Is(err, bytebuf.ErrUnsupported) {
		t.Fatalf("AdjustCapacity on a Slice: err = %v, want ErrUnsupported", err)
	}
}

func TestSlice_OutOfBounds(t *testing.T) {
	h := bytebuf.NewHeapBuffer(8, 8)
	if _, err := h.Slice(4, 8); !errors.Is(err, bytebuf.ErrOutOfBounds) {
		t.Fatalf("Slice out of bounds: err = %v, want ErrOutOfBounds", err)
	}
}

func TestRetainedSlice_RetainsParent(t *testing.T) {
	h := bytebuf.NewHeapBuffer(8, 8)
	if h.RefCnt() != 1 {
		t.Fatalf("initial RefCnt = %d, want 1", h.RefCnt())
	}
	s, err := h.RetainedSlice(0, 4)
	if err != nil {
		t.Fatalf("RetainedSlice: %v", err)
	}
	if h.RefCnt() != 2 {
		t.Fatalf("RefCnt after RetainedSlice = %d, want 2", h.RefCnt())
	}
	if _, err := s.Release(); err != nil {
		t.Fatalf("Release on slice: %v", err)
	}
	if h.RefCnt() != 1 {
		t.Fatalf("RefCnt after releasing the slice = %d, want 1", h.RefCnt())
	}
}

func TestDuplicate_IndependentCursors(t *testing.T) {
	h := bytebuf.NewHeapBuffer(8, 8)
	_ = h.WriteBytes([]byte("abcdefgh"))
	_, _ = h.ReadBytes(3)

	d, err := h.Duplicate()
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	// The duplicate starts where the parent's cursors are, so its readable
	// window is exactly the parent's readable content.
	if d.ReaderIndex() != 3 || d.WriterIndex() != 8 {
		t.Fatalf("Duplicate's indices = (%d, %d), want the parent's (3, 8)", d.ReaderIndex(), d.WriterIndex())
	}
	all, err := d.ReadBytes(d.ReadableBytes())
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if string(all) != "defgh" {
		t.Fatalf("duplicate readable content = %q, want %q", all, "defgh")
	}
	if h.ReaderIndex() != 3 {
		t.Fatal("advancing the duplicate's reader index must not affect the parent")
	}

	// But the backing bytes are shared.
	if err := d.SetByte(0, 'Z'); err != nil {
		t.Fatalf("SetByte: %v", err)
	}
	got, _ := h.GetByte(0)
	if got != 'Z' {
		t.Fatal("Duplicate should share the parent's backing memory")
	}
}

func TestRetainedDuplicate_RetainsParent(t *testing.T) {
	h := bytebuf.NewHeapBuffer(8, 8)
	d, err := h.RetainedDuplicate()
	if err != nil {
		t.Fatalf("RetainedDuplicate: %v", err)
	}
	if h.RefCnt() != 2 {
		t.Fatalf("RefCnt after RetainedDuplicate = %d, want 2", h.RefCnt())
	}
	_, _ = d.Release()
	if h.RefCnt() != 1 {
		t.Fatalf("RefCnt after releasing the duplicate = %d, want 1", h.RefCnt())
	}
}

func TestEmpty_ZeroCapacityAndUnreleasable(t *testing.T) {
	e := bytebuf.Empty()
	if e.Capacity() != 0 || e.MaxCapacity() != 0 {
		t.Fatalf("Empty Capacity/MaxCapacity = %d/%d, want 0/0", e.Capacity(), e.MaxCapacity())
	}
	if e.RefCnt() != 1 {
		t.Fatalf("Empty RefCnt = %d, want 1", e.RefCnt())
	}
	zero, err := e.Release()
	if err != nil || zero {
		t.Fatalf("Release on Empty = (%v, %v), want (false, nil)", zero, err)
	}
	if e.RefCnt() != 1 {
		t.Fatal("Release on Empty must be a no-op")
	}
	if _, err := e.GetBytes(0, 1); !errors.Is(err, bytebuf.ErrOutOfBounds) {
		t.Fatalf("GetBytes(0,1) on Empty: err = %v, want ErrOutOfBounds", err)
	}
}

func TestUnreleasable_IgnoresRefCounting(t *testing.T) {
	h := bytebuf.NewHeapBuffer(8, 8)
	u := bytebuf.Unreleasable(h)
	if u.RefCnt() != 1 {
		t.Fatalf("Unreleasable RefCnt = %d, want 1", u.RefCnt())
	}
	if err := u.Retain(); err != nil {
		t.Fatalf("Retain on Unreleasable: %v", err)
	}
	if h.RefCnt() != 1 {
		t.Fatal("Retain via an Unreleasable view must not touch the underlying RefCount")
	}
	zero, err := u.Release()
	if err != nil || zero {
		t.Fatalf("Release on Unreleasable = (%v, %v), want (false, nil)", zero, err)
	}

	// The real owner's release still works and invalidates the view.
	if _, err := h.Release(); err != nil {
		t.Fatalf("Release on the real owner: %v", err)
	}
	if _, err := u.GetByte(0); !errors.Is(err, bytebuf.ErrIllegalReferenceCount) {
		t.Fatalf("access through Unreleasable after the owner released: err = %v, want ErrIllegalReferenceCount", err)
	}
}

func TestUnreleasable_PanicsOnForeignBuffer(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for a Buffer not created by this package")
		}
	}()
	bytebuf.Unreleasable(fakeBuffer{})
}

type fakeBuffer struct{ bytebuf.Buffer }
