// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunk

import (
	"testing"

	"code.hybscloud.com/bytebuf/internal/subpage"
)

func TestHandlePacking(t *testing.T) {
	h := NewHandle(12345, 0, false)
	if h.MemMapIndex() != 12345 {
		t.Errorf("MemMapIndex = %d, want 12345", h.MemMapIndex())
	}
	if h.IsSubpage() {
		t.Error("IsSubpage should be false for a plain page-run handle")
	}
	if h.BitmapIndex() != 0 {
		t.Errorf("BitmapIndex = %d, want 0", h.BitmapIndex())
	}

	h2 := NewHandle(7, 42, true)
	if h2.MemMapIndex() != 7 {
		t.Errorf("MemMapIndex = %d, want 7", h2.MemMapIndex())
	}
	if !h2.IsSubpage() {
		t.Error("IsSubpage should be true")
	}
	if h2.BitmapIndex() != 42 {
		t.Errorf("BitmapIndex = %d, want 42", h2.BitmapIndex())
	}
}

func TestNew(t *testing.T) {
	c := New(4096, 4) // 16 pages, 64 KiB
	if c.Size != 4096*16 {
		t.Fatalf("Size = %d, want %d", c.Size, 4096*16)
	}
	if c.FreeBytes() != c.Size {
		t.Fatalf("FreeBytes = %d, want %d", c.FreeBytes(), c.Size)
	}
	if c.Usage() != 0 {
		t.Fatalf("Usage = %v, want 0", c.Usage())
	}
	if len(c.Bytes()) != c.Size {
		t.Fatalf("len(Bytes()) = %d, want %d", len(c.Bytes()), c.Size)
	}
}

func TestNew_PanicsOnOrderOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for maxOrder out of range")
		}
	}()
	New(4096, 15)
}

func TestAllocateRunAndFree(t *testing.T) {
	c := New(4096, 4) // 64 KiB total, 16 pages
	h, ok := c.AllocateRun(4096)
	if !ok {
		t.Fatal("AllocateRun failed unexpectedly")
	}
	if c.FreeBytes() != c.Size-4096 {
		t.Fatalf("FreeBytes after alloc = %d, want %d", c.FreeBytes(), c.Size-4096)
	}
	offset, length := c.Region(h)
	if length != 4096 {
		t.Fatalf("Region length = %d, want 4096", length)
	}
	if offset < 0 || offset+length > c.Size {
		t.Fatalf("Region offset/length out of bounds: %d/%d", offset, length)
	}

	c.Free(h)
	if c.FreeBytes() != c.Size {
		t.Fatalf("FreeBytes after free = %d, want %d", c.FreeBytes(), c.Size)
	}
}

func TestAllocateRun_ExhaustsChunk(t *testing.T) {
	c := New(4096, 2) // 4 pages
	var handles []Handle
	for i := 0; i < 4; i++ {
		h, ok := c.AllocateRun(4096)
		if !ok {
			t.Fatalf("AllocateRun %d failed unexpectedly", i)
		}
		handles = append(handles, h)
	}
	if _, ok := c.AllocateRun(4096); ok {
		t.Fatal("AllocateRun should fail once the chunk is exhausted")
	}
	for _, h := range handles {
		c.Free(h)
	}
	if c.FreeBytes() != c.Size {
		t.Fatalf("FreeBytes after freeing everything = %d, want %d", c.FreeBytes(), c.Size)
	}
}

func TestAllocateRun_BuddyCoalescing(t *testing.T) {
	c := New(4096, 2) // 4 pages, 16 KiB
	whole, ok := c.AllocateRun(4096 * 4)
	if !ok {
		t.Fatal("AllocateRun for the whole chunk failed")
	}
	c.Free(whole)

	// After freeing the whole-chunk run, the tree must have coalesced back
	// to fully free: a second whole-chunk allocation should succeed.
	_, ok = c.AllocateRun(4096 * 4)
	if !ok {
		t.Fatal("AllocateRun for the whole chunk failed after coalescing")
	}
}

func TestAllocateRun_RoundTripRestoresMemoryMap(t *testing.T) {
	c := New(4096, 4)
	before := append([]uint8(nil), c.memoryMap...)

	h1, ok := c.AllocateRun(4096)
	if !ok {
		t.Fatal("AllocateRun failed")
	}
	c.Free(h1)

	for i := range before {
		if c.memoryMap[i] != before[i] {
			t.Fatalf("memoryMap[%d] = %d after free, want %d (round-trip must restore the tree exactly)", i, c.memoryMap[i], before[i])
		}
	}

	// The same region must be recycled for an identical follow-up request.
	h2, ok := c.AllocateRun(4096)
	if !ok {
		t.Fatal("AllocateRun after free failed")
	}
	if h1 != h2 {
		t.Fatalf("handle after round-trip = %v, want %v (same region recycled)", h2, h1)
	}
}

func TestFree_PanicsOnSubpageHandle(t *testing.T) {
	c := New(4096, 2)
	h := NewHandle(0, 1, true)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic freeing a subpage handle via Free")
		}
	}()
	c.Free(h)
}

func TestLeafIndexAndPageOffset(t *testing.T) {
	c := New(4096, 2) // 4 leaves
	h, ok := c.AllocateRun(4096)
	if !ok {
		t.Fatal("AllocateRun failed")
	}
	leaf := c.LeafIndex(h.MemMapIndex())
	if leaf < 0 || leaf >= 4 {
		t.Fatalf("LeafIndex = %d, out of range", leaf)
	}
	if off := c.PageOffset(leaf); off != leaf*4096 {
		t.Fatalf("PageOffset(%d) = %d, want %d", leaf, off, leaf*4096)
	}
}

func TestSubpageBookkeeping(t *testing.T) {
	c := New(4096, 2)
	h, _ := c.AllocateRun(4096)
	leaf := c.LeafIndex(h.MemMapIndex())
	if c.Subpage(leaf) != nil {
		t.Fatal("fresh leaf should have no subpage installed")
	}

	sp := subpage.New(4096, 1024)
	c.SetSubpage(leaf, sp)
	if c.Subpage(leaf) != sp {
		t.Fatal("SetSubpage/Subpage did not round-trip")
	}

	c.FreeLeaf(leaf)
	if c.Subpage(leaf) != nil {
		t.Fatal("FreeLeaf should clear the installed subpage")
	}
	if c.FreeBytes() != c.Size {
		t.Fatalf("FreeBytes after FreeLeaf = %d, want %d", c.FreeBytes(), c.Size)
	}
}
