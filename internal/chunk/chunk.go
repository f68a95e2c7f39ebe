// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package chunk implements a buddy-tree page allocator carving a single
// contiguous memory chunk into power-of-two page runs. It is the "normal"
// allocation path beneath an arena (huge requests bypass chunks entirely);
// tiny and small requests are carved further by package subpage out of a
// single leaf page.
package chunk

import (
	"math/bits"
	"unsafe"

	"code.hybscloud.com/bytebuf/internal/subpage"
)

// Handle packs a buddy-tree allocation into a single integer so callers
// can hold an allocation reference without keeping a pointer into the
// chunk's internal bookkeeping slices.
//
// Layout: bits 0..31 hold the memory-map index of the allocated node;
// bits 32..61 hold a subpage bitmap index (1-based, 0 meaning "this
// handle names a whole page run, not a subpage element"); bit 62 flags
// the handle as naming a subpage element rather than a page run.
type Handle uint64

const (
	bitmapIndexBits  = 30
	bitmapIndexShift = 32
	bitmapIndexMask  = uint64(1)<<bitmapIndexBits - 1
	subpageFlagBit   = 62
)

// NewHandle packs a memory-map index, a 1-based subpage bitmap index (0
// for a plain page run), and the subpage flag into a Handle.
func NewHandle(memMapIndex, bitmapIndex int, isSubpage bool) Handle {
	h := Handle(uint32(memMapIndex))
	h |= Handle(uint64(bitmapIndex) & bitmapIndexMask << bitmapIndexShift)
	if isSubpage {
		h |= 1 << subpageFlagBit
	}
	return h
}

// MemMapIndex returns the buddy-tree node index the handle refers to.
func (h Handle) MemMapIndex() int { return int(uint32(h)) }

// BitmapIndex returns the 1-based subpage element index, or 0 if this
// handle names a whole page run.
func (h Handle) BitmapIndex() int { return int(uint64(h) >> bitmapIndexShift & bitmapIndexMask) }

// IsSubpage reports whether the handle names an element carved out of a
// subpage, as opposed to a whole page run.
func (h Handle) IsSubpage() bool { return uint64(h)&(1<<subpageFlagBit) != 0 }

// Chunk is a contiguous memory region of PageSize*2^MaxOrder bytes,
// managed as a balanced binary buddy tree flattened level-order into
// MemoryMap/DepthMap (index 1 is the root; children of i are 2i, 2i+1).
type Chunk struct {
	PageSize uintptr
	MaxOrder int
	Size     int

	mem []byte

	memoryMap []uint8
	depthMap  []uint8

	subpages []*subpage.Subpage

	freeBytes int
}

// New allocates a fresh chunk of pageSize*2^maxOrder bytes with a fully
// free buddy tree. The backing memory is carved out page-aligned, the
// same unsafe.Add/unsafe.Slice idiom used for page-aligned I/O buffers
// elsewhere in this module.
func New(pageSize uintptr, maxOrder int) *Chunk {
	if maxOrder < 0 || maxOrder > 14 {
		panic("chunk: maxOrder out of range")
	}
	size := int(pageSize) << uint(maxOrder)
	nodes := 2 << uint(maxOrder) // 2 * 2^maxOrder, index 0 unused
	c := &Chunk{
		PageSize:  pageSize,
		MaxOrder:  maxOrder,
		Size:      size,
		mem:       alignedMem(size, pageSize),
		memoryMap: make([]uint8, nodes),
		depthMap:  make([]uint8, nodes),
		subpages:  make([]*subpage.Subpage, 1<<uint(maxOrder)),
		freeBytes: size,
	}
	for i := 1; i < nodes; i++ {
		d := uint8(bits.Len(uint(i)) - 1)
		c.depthMap[i] = d
		c.memoryMap[i] = d
	}
	return c
}

func alignedMem(size int, pageSize uintptr) []byte {
	p := make([]byte, uintptr(size)+pageSize-1)
	base := unsafe.Pointer(unsafe.SliceData(p))
	offset := ((uintptr(base)+pageSize-1)/pageSize)*pageSize - uintptr(base)
	return unsafe.Slice((*byte)(unsafe.Add(base, offset)), size)
}

// Bytes returns the chunk's entire backing memory.
func (c *Chunk) Bytes() []byte { return c.mem }

// FreeBytes returns the number of bytes currently unallocated in the chunk.
func (c *Chunk) FreeBytes() int { return c.freeBytes }

// Usage returns the fraction of the chunk currently allocated, in [0,1].
func (c *Chunk) Usage() float64 {
	return 1 - float64(c.freeBytes)/float64(c.Size)
}

func (c *Chunk) runLength(depth int) int {
	return c.Size >> uint(depth)
}

// allocateNode finds a free node at exactly depth d, marks it fully
// allocated, and propagates the change to every ancestor. It returns the
// node's memory-map index, or ok=false if no node at depth d is free.
func (c *Chunk) allocateNode(d int) (memMapIndex int, ok bool) {
	if int(c.memoryMap[1]) > d {
		return 0, false
	}
	id := 1
	for int(c.depthMap[id]) != d {
		left := 2 * id
		if int(c.memoryMap[left]) <= d {
			id = left
		} else {
			id = left + 1
		}
	}
	c.memoryMap[id] = uint8(c.MaxOrder + 1)
	for p := id / 2; p >= 1; p /= 2 {
		c.memoryMap[p] = min(c.memoryMap[2*p], c.memoryMap[2*p+1])
	}
	return id, true
}

// AllocateRun allocates a page run able to hold size bytes (size must be
// a power of two between PageSize and the chunk's total size) and
// returns a Handle naming it.
func (c *Chunk) AllocateRun(size int) (Handle, bool) {
	d := c.MaxOrder - (log2(size) - log2(int(c.PageSize)))
	if d < 0 {
		d = 0
	}
	memMapIndex, ok := c.allocateNode(d)
	if !ok {
		return 0, false
	}
	c.freeBytes -= c.runLength(d)
	return NewHandle(memMapIndex, 0, false), true
}

// freeNode returns the node at memMapIndex to the free pool and
// propagates the change to ancestors, mirroring allocateNode in reverse.
func (c *Chunk) freeNode(memMapIndex int) {
	id := memMapIndex
	depth := int(c.depthMap[id])
	c.memoryMap[id] = c.depthMap[id]
	for id > 1 {
		id /= 2
		leftVal, rightVal := c.memoryMap[2*id], c.memoryMap[2*id+1]
		if leftVal == c.depthMap[2*id] && rightVal == c.depthMap[2*id+1] {
			c.memoryMap[id] = c.depthMap[id]
		} else {
			c.memoryMap[id] = min(leftVal, rightVal)
		}
	}
	c.freeBytes += c.runLength(depth)
}

// Free releases a page run previously returned by AllocateRun. Free
// panics if handle names a subpage element; callers must route those
// through the owning Subpage first (see LeafIndex/Subpage/SetSubpage).
func (c *Chunk) Free(handle Handle) {
	if handle.IsSubpage() {
		panic("chunk: Free called with a subpage handle")
	}
	c.freeNode(handle.MemMapIndex())
}

// FreeLeaf releases the single page at leafIndex (0-based, within
// [0, 2^MaxOrder)) back to the buddy tree. Used once a subpage carved
// from that page has become entirely empty.
func (c *Chunk) FreeLeaf(leafIndex int) {
	c.freeNode((1 << uint(c.MaxOrder)) + leafIndex)
	c.subpages[leafIndex] = nil
}

// LeafIndex converts a memory-map index for a leaf node into its 0-based
// page index.
func (c *Chunk) LeafIndex(memMapIndex int) int {
	return memMapIndex - (1 << uint(c.MaxOrder))
}

// Subpage returns the subpage allocator for leaf page leafIndex, or nil
// if that page has not been carved into a subpage.
func (c *Chunk) Subpage(leafIndex int) *subpage.Subpage { return c.subpages[leafIndex] }

// SetSubpage installs sp as the subpage allocator for leaf page leafIndex.
func (c *Chunk) SetSubpage(leafIndex int, sp *subpage.Subpage) { c.subpages[leafIndex] = sp }

// Region returns the byte range of the chunk's backing memory named by a
// plain page-run handle (offset, length).
func (c *Chunk) Region(handle Handle) (offset, length int) {
	id := handle.MemMapIndex()
	depth := int(c.depthMap[id])
	length = c.runLength(depth)
	firstOfDepth := 1 << uint(depth)
	offset = (id - firstOfDepth) * length
	return offset, length
}

// PageOffset returns the byte offset of leaf page leafIndex within the
// chunk's backing memory.
func (c *Chunk) PageOffset(leafIndex int) int {
	return leafIndex * int(c.PageSize)
}

func log2(n int) int {
	return bits.Len(uint(n)) - 1
}
