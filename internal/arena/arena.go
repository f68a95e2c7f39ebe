// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package arena coordinates chunk and subpage allocators behind a single
// per-arena mutex: free lists of chunks segregated by utilisation band,
// plus per-size-class doubly-linked lists of partially-used subpages.
package arena

import (
	"errors"
	"sync"

	"code.hybscloud.com/bytebuf/internal/chunk"
	"code.hybscloud.com/bytebuf/internal/subpage"
)

// ErrAllocationFailure is returned when the underlying page allocator
// cannot satisfy a pooled request (even a fresh chunk could not serve
// it). Requests larger than a chunk do not fail this way: they are
// served by an unpooled slice.
var ErrAllocationFailure = errors.New("arena: allocation failure")

// ErrBusy is returned by TryAllocate when the arena's mutex is currently
// held by another goroutine.
var ErrBusy = errors.New("arena: busy")

const (
	tinyStep       = 16
	tinyMax        = 512 // sizes < tinyMax are tiny
	tinyNumClasses = tinyMax/tinyStep - 1
)

// Hook observes allocation/free events for diagnostics. A nil Hook is a
// no-op; this mirrors the external "leak reporter sink" contract without
// pulling a logging dependency into the allocator itself.
type Hook interface {
	OnAllocate(size int, pooled bool)
	OnFree(size int, pooled bool)
}

// Region names a live allocation: which chunk (nil for an unpooled huge
// allocation) and handle it came from, and the byte range within the
// chunk's backing memory (or within Bytes for huge allocations).
type Region struct {
	Chunk  *chunk.Chunk
	Handle chunk.Handle
	Bytes  []byte // for huge (unpooled) allocations only
	Pooled bool
	Size   int // logical size class this region was carved for
}

const numBands = 5 // <25%, 25-50%, 50-75%, 75-100%, 100%

func band(usage float64) int {
	switch {
	case usage >= 1:
		return 4
	case usage >= 0.75:
		return 3
	case usage >= 0.5:
		return 2
	case usage >= 0.25:
		return 1
	default:
		return 0
	}
}

// Arena is a single coordinator of chunk and subpage allocators. An
// allocator typically creates several arenas (2x CPU count is the usual
// default) and round-robins or least-contention-picks across them.
type Arena struct {
	mu noCopyMutex

	pageSize   uintptr
	maxOrder   int
	chunkBytes int

	bands [numBands][]*chunk.Chunk

	tinyHeads  []*subpage.Subpage
	smallHeads []*subpage.Subpage

	owners map[*subpage.Subpage]subpageOwner

	hook Hook
}

type subpageOwner struct {
	chunk           *chunk.Chunk
	leafMemMapIndex int
}

type noCopyMutex struct {
	_ [0]func() // prevents comparison/copy by value in vet-aware tooling
	sync.Mutex
}

// New creates an Arena carving chunks of pageSize*2^maxOrder bytes.
func New(pageSize uintptr, maxOrder int, hook Hook) *Arena {
	smallClasses := 0
	for s := tinyMax; s < int(pageSize); s <<= 1 {
		smallClasses++
	}
	return &Arena{
		pageSize:   pageSize,
		maxOrder:   maxOrder,
		chunkBytes: int(pageSize) << uint(maxOrder),
		tinyHeads:  make([]*subpage.Subpage, tinyNumClasses),
		smallHeads: make([]*subpage.Subpage, smallClasses),
		hook:       hook,
	}
}

// tinyIndex returns the tiny class index for size, or tinyNumClasses for
// a size in the top tiny band (497..511) that rounds up to 512, the first
// small class.
func tinyIndex(size int) int {
	idx := (size+tinyStep-1)/tinyStep - 1
	if idx < 0 {
		idx = 0
	}
	return idx
}

func tinyClassSize(idx int) int { return (idx + 1) * tinyStep }

func smallIndex(size int) int {
	idx, s := 0, tinyMax
	for s < size {
		s <<= 1
		idx++
	}
	return idx
}

func smallClassSize(idx int) int { return tinyMax << uint(idx) }

func normalClassSize(size, pageSize int) int {
	if size <= pageSize {
		return pageSize
	}
	n := pageSize
	for n < size {
		n <<= 1
	}
	return n
}

// ClassSize returns the size class Allocate would round size up to: tiny
// sizes step in 16-byte increments, small and normal sizes round to the
// next power of two, and anything larger than a chunk is unchanged. A
// thread cache uses it to index its per-class rings so a cached region is
// only ever handed back for a request of exactly its class.
func (a *Arena) ClassSize(size int) int {
	switch {
	case size < tinyMax:
		if idx := tinyIndex(size); idx < tinyNumClasses {
			return tinyClassSize(idx)
		}
		return smallClassSize(0)
	case size < int(a.pageSize):
		return smallClassSize(smallIndex(size))
	case size <= a.chunkBytes:
		return normalClassSize(size, int(a.pageSize))
	default:
		return size
	}
}

// Allocate satisfies a request for at least size bytes, classifying it
// into the tiny/small/normal/huge size classes described on ClassSize
// and returning the Region backing it. It blocks on the arena's mutex
// if another goroutine is mutating the same arena's structures.
func (a *Arena) Allocate(size int) (Region, error) {
	return a.allocate(size, true)
}

// TryAllocate is Allocate's non-blocking counterpart: if the arena's mutex
// is currently held by another goroutine, it returns ErrBusy immediately
// instead of waiting, so a caller (see the allocator's AllocateNonBlocking
// and allocateFromArena) can
// retry with backoff or fall back to a different arena rather than stall a
// latency-sensitive goroutine on lock contention.
func (a *Arena) TryAllocate(size int) (Region, error) {
	return a.allocate(size, false)
}

func (a *Arena) allocate(size int, blocking bool) (Region, error) {
	switch {
	case size < tinyMax:
		idx := tinyIndex(size)
		if idx >= tinyNumClasses {
			return a.allocateFromSizeClass(a.smallHeads, 0, smallClassSize(0), blocking)
		}
		return a.allocateFromSizeClass(a.tinyHeads, idx, tinyClassSize(idx), blocking)
	case size < int(a.pageSize):
		idx := smallIndex(size)
		cls := smallClassSize(idx)
		// A size in the top small band rounds up to the page size itself;
		// that class is a whole page, served by the buddy tree directly.
		if cls >= int(a.pageSize) {
			return a.allocateNormal(cls, blocking)
		}
		return a.allocateFromSizeClass(a.smallHeads, idx, cls, blocking)
	case size <= a.chunkBytes:
		return a.allocateNormal(normalClassSize(size, int(a.pageSize)), blocking)
	default:
		return Region{Bytes: make([]byte, size), Pooled: false, Size: size}, nil
	}
}

// lock acquires the arena's mutex, blocking if blocking is true; otherwise
// it attempts a TryLock and reports whether it succeeded.
func (a *Arena) lock(blocking bool) bool {
	if blocking {
		a.mu.Lock()
		return true
	}
	return a.mu.TryLock()
}

func (a *Arena) allocateFromSizeClass(heads []*subpage.Subpage, classIdx, classSize int, blocking bool) (Region, error) {
	if !a.lock(blocking) {
		return Region{}, ErrBusy
	}
	defer a.mu.Unlock()

	head := heads[classIdx]
	for sp := head; sp != nil; sp = sp.Next {
		if sp.Full() {
			continue
		}
		elem, ok := sp.Allocate()
		if !ok {
			continue
		}
		if sp.Full() {
			a.unlinkFromList(sp, heads, classIdx)
		}
		c := a.chunkOwning(sp)
		if a.hook != nil {
			a.hook.OnAllocate(classSize, true)
		}
		return Region{Chunk: c.chunk, Handle: chunk.NewHandle(c.leafMemMapIndex, elem+1, true), Pooled: true, Size: classSize}, nil
	}

	// No partially-free subpage: carve a fresh one out of some chunk's page.
	c, leafMemMapIndex, ok := a.acquirePage()
	if !ok {
		return Region{}, ErrAllocationFailure
	}
	leafIndex := c.LeafIndex(leafMemMapIndex)
	sp := subpage.New(a.pageSize, classSize)
	c.SetSubpage(leafIndex, sp)
	a.linkOwner(sp, c, leafMemMapIndex)
	sp.Next = heads[classIdx]
	if heads[classIdx] != nil {
		heads[classIdx].Prev = sp
	}
	heads[classIdx] = sp

	elem, _ := sp.Allocate()
	// A fresh subpage with exactly one element (classSize == PageSize, the
	// boundary between small and normal) is already full after this one
	// allocation: unlink it immediately so the list never holds dead weight.
	if sp.Full() {
		a.unlinkFromList(sp, heads, classIdx)
	}
	if a.hook != nil {
		a.hook.OnAllocate(classSize, true)
	}
	return Region{Chunk: c, Handle: chunk.NewHandle(leafMemMapIndex, elem+1, true), Pooled: true, Size: classSize}, nil
}

func (a *Arena) allocateNormal(size int, blocking bool) (Region, error) {
	if !a.lock(blocking) {
		return Region{}, ErrBusy
	}
	defer a.mu.Unlock()

	for band := numBands - 2; band >= 0; band-- {
		for _, c := range a.bands[band] {
			if h, ok := c.AllocateRun(size); ok {
				a.migrate(c, band)
				if a.hook != nil {
					a.hook.OnAllocate(size, true)
				}
				return Region{Chunk: c, Handle: h, Pooled: true, Size: size}, nil
			}
		}
	}

	c := chunk.New(a.pageSize, a.maxOrder)
	h, ok := c.AllocateRun(size)
	if !ok {
		return Region{}, ErrAllocationFailure
	}
	a.bands[band(c.Usage())] = append(a.bands[band(c.Usage())], c)
	if a.hook != nil {
		a.hook.OnAllocate(size, true)
	}
	return Region{Chunk: c, Handle: h, Pooled: true, Size: size}, nil
}

// Free returns a region to the arena. Unpooled (huge) regions are simply
// dropped for the garbage collector to reclaim.
func (a *Arena) Free(r Region) {
	if !r.Pooled {
		if a.hook != nil {
			a.hook.OnFree(len(r.Bytes), false)
		}
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if r.Handle.IsSubpage() {
		leafIndex := r.Chunk.LeafIndex(r.Handle.MemMapIndex())
		sp := r.Chunk.Subpage(leafIndex)
		wasFull := sp.Full()
		elem := r.Handle.BitmapIndex() - 1
		nowEmpty := sp.Free(elem)
		if wasFull {
			a.relinkToHead(sp)
		}
		if nowEmpty && a.hasSibling(sp) {
			a.unlink(sp)
			r.Chunk.FreeLeaf(leafIndex)
		}
		if a.hook != nil {
			a.hook.OnFree(sp.ElemSize, true)
		}
		return
	}

	_, length := r.Chunk.Region(r.Handle)
	r.Chunk.Free(r.Handle)
	a.migrate(r.Chunk, -1)
	if a.hook != nil {
		a.hook.OnFree(length, true)
	}
}

func (a *Arena) chunkOwning(sp *subpage.Subpage) subpageOwner {
	return a.owners[sp]
}

func (a *Arena) linkOwner(sp *subpage.Subpage, c *chunk.Chunk, leafMemMapIndex int) {
	if a.owners == nil {
		a.owners = make(map[*subpage.Subpage]subpageOwner)
	}
	a.owners[sp] = subpageOwner{chunk: c, leafMemMapIndex: leafMemMapIndex}
}

// acquirePage finds (or creates) a chunk with a free page and carves a
// fresh page-sized run out of it, returning the chunk and the memory-map
// index of the leaf node backing the page.
func (a *Arena) acquirePage() (*chunk.Chunk, int, bool) {
	for b := numBands - 2; b >= 0; b-- {
		for _, c := range a.bands[b] {
			if h, ok := c.AllocateRun(int(a.pageSize)); ok {
				a.migrate(c, b)
				return c, h.MemMapIndex(), true
			}
		}
	}
	c := chunk.New(a.pageSize, a.maxOrder)
	h, ok := c.AllocateRun(int(a.pageSize))
	if !ok {
		return nil, 0, false
	}
	a.bands[band(c.Usage())] = append(a.bands[band(c.Usage())], c)
	return c, h.MemMapIndex(), true
}

// migrate moves c between utilisation bands if its usage has crossed a
// band boundary since it was last placed. knownBand may be -1 if the
// chunk's current band is not known to the caller.
func (a *Arena) migrate(c *chunk.Chunk, knownBand int) {
	newBand := band(c.Usage())
	if knownBand == newBand {
		return
	}
	for b := 0; b < numBands; b++ {
		for i, cc := range a.bands[b] {
			if cc == c {
				a.bands[b] = append(a.bands[b][:i], a.bands[b][i+1:]...)
				a.bands[newBand] = append(a.bands[newBand], c)
				return
			}
		}
	}
	a.bands[newBand] = append(a.bands[newBand], c)
}

func (a *Arena) headsFor(elemSize int) ([]*subpage.Subpage, int) {
	if elemSize < tinyMax {
		return a.tinyHeads, tinyIndex(elemSize)
	}
	return a.smallHeads, smallIndex(elemSize)
}

func (a *Arena) unlinkFromList(sp *subpage.Subpage, heads []*subpage.Subpage, idx int) {
	if sp.Prev != nil {
		sp.Prev.Next = sp.Next
	} else if heads[idx] == sp {
		heads[idx] = sp.Next
	}
	if sp.Next != nil {
		sp.Next.Prev = sp.Prev
	}
	sp.Prev, sp.Next = nil, nil
}

// relinkToHead moves sp to the front of its size class's free list,
// called when sp transitions from full to having an available element
// so the next allocation finds it quickly.
func (a *Arena) relinkToHead(sp *subpage.Subpage) {
	heads, idx := a.headsFor(sp.ElemSize)
	if heads[idx] == sp {
		return
	}
	a.unlinkFromList(sp, heads, idx)
	sp.Prev = nil
	sp.Next = heads[idx]
	if heads[idx] != nil {
		heads[idx].Prev = sp
	}
	heads[idx] = sp
}

// unlink removes sp from its size class's free list entirely, used right
// before its backing page is handed back to the chunk.
func (a *Arena) unlink(sp *subpage.Subpage) {
	heads, idx := a.headsFor(sp.ElemSize)
	a.unlinkFromList(sp, heads, idx)
	delete(a.owners, sp)
}

// hasSibling reports whether sp shares its size class's free list with
// at least one other subpage.
func (a *Arena) hasSibling(sp *subpage.Subpage) bool {
	return sp.Prev != nil || sp.Next != nil
}
