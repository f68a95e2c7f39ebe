// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bytebuf

import (
	"errors"
	"testing"
)

func TestGrowTarget_BelowThreshold(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 3: 4, 5: 8, 9: 16, 1000: 1024, 1 << 20: 1 << 20}
	for want, target := range cases {
		if got := growTarget(want); got != target {
			t.Errorf("growTarget(%d) = %d, want %d", want, got, target)
		}
	}
}

func TestGrowTarget_AtOrAboveThreshold(t *testing.T) {
	cases := map[int]int{
		growThreshold:     growThreshold,
		growThreshold + 1: 2 * growThreshold,
		3 * growThreshold: 3 * growThreshold,
	}
	for want, target := range cases {
		if got := growTarget(want); got != target {
			t.Errorf("growTarget(%d) = %d, want %d", want, got, target)
		}
	}
}

func TestNewHeapBuffer_ExactInitialCapacity(t *testing.T) {
	h := NewHeapBuffer(8, 32)
	if h.Capacity() != 8 {
		t.Fatalf("Capacity = %d, want 8 (no rounding of initial capacity)", h.Capacity())
	}
	if h.MaxCapacity() != 32 {
		t.Fatalf("MaxCapacity = %d, want 32", h.MaxCapacity())
	}
}

func TestNewHeapBuffer_PanicsOnInvalidCapacities(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for maxCapacity < initialCapacity")
		}
	}()
	NewHeapBuffer(10, 5)
}

func TestHeapBuffer_WriteGrowsWithinMax(t *testing.T) {
	h := NewHeapBuffer(4, 64)
	if err := h.WriteBytes([]byte("hello world")); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if h.Capacity() < 11 {
		t.Fatalf("Capacity = %d, want >= 11 after growing to fit the write", h.Capacity())
	}
	got, err := h.ReadBytes(11)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("ReadBytes = %q, want %q", got, "hello world")
	}
}

func TestHeapBuffer_GrowBeyondMaxCapacityFails(t *testing.T) {
	h := NewHeapBuffer(4, 8)
	err := h.WriteBytes([]byte("123456789"))
	if !errors.Is(err, ErrInsufficientCapacity) {
		t.Fatalf("WriteBytes beyond max capacity: err = %v, want ErrInsufficientCapacity", err)
	}
}

func TestHeapBuffer_AdjustCapacityShrink(t *testing.T) {
	h := NewHeapBuffer(16, 16)
	if err := h.AdjustCapacity(4); err != nil {
		t.Fatalf("AdjustCapacity(4): %v", err)
	}
	if h.Capacity() != 4 {
		t.Fatalf("Capacity = %d, want 4", h.Capacity())
	}
}

func TestHeapBuffer_ReleaseInvalidatesAccess(t *testing.T) {
	h := NewHeapBuffer(4, 4)
	zero, err := h.Release()
	if err != nil || !zero {
		t.Fatalf("Release = (%v, %v), want (true, nil)", zero, err)
	}
	if _, err := h.GetByte(0); !errors.Is(err, ErrIllegalReferenceCount) {
		t.Fatalf("GetByte after Release: err = %v, want ErrIllegalReferenceCount", err)
	}
}

func TestHeapBuffer_CapacityAtMaxIsNotRoundedAboveMax(t *testing.T) {
	h := NewHeapBuffer(0, 10) // max not a power of two, below growThreshold
	if err := h.WriteBytes(make([]byte, 10)); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if h.Capacity() != 10 {
		t.Fatalf("Capacity = %d, want 10 (clamped to max capacity, not rounded up to 16)", h.Capacity())
	}
}
