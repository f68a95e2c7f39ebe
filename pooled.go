// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bytebuf

import (
	"fmt"

	"code.hybscloud.com/bytebuf/internal/arena"
	"code.hybscloud.com/bytebuf/internal/tcache"
)

// PooledBuffer is a Buffer backed by a region carved from an Allocator's
// arenas (tiny/small/normal classes) or, for requests larger than a chunk,
// a single unpooled slice (the huge class). Its reference count's
// deallocate callback returns the region to the owning thread cache, or
// straight to the arena when it was allocated without one.
type PooledBuffer struct {
	*cursor

	rc     *RefCount
	reg    arena.Region
	cap    int // logical capacity, cap <= reg size
	maxCap int // min(caller's max capacity, carved region size)
}

// newPooledBuffer wraps reg, carved from ar (optionally via tc's fast
// path), as a Buffer with logical capacity logicalCap, growable in place
// up to maxCap. The deallocate closure captures only the region and its
// return path, never the PooledBuffer value, so a buffer that is dropped
// without being released stays collectible for the leak tracker's GC
// cleanup to observe.
func newPooledBuffer(ar *arena.Arena, tc *tcache.ThreadCache, reg arena.Region, logicalCap, maxCap int) *PooledBuffer {
	p := &PooledBuffer{reg: reg, cap: logicalCap, maxCap: maxCap}
	p.rc = newRefCount(func() {
		if tc != nil {
			tc.Free(ar, reg)
		} else {
			ar.Free(reg)
		}
	})
	p.cursor = newCursor(p)
	if regionLen(reg) < maxCap {
		p.maxCap = regionLen(reg)
	}
	trackOwner(globalLeakTracker, p, p.rc, "pooled")
	return p
}

func regionLen(reg arena.Region) int {
	if !reg.Pooled {
		return len(reg.Bytes)
	}
	if reg.Handle.IsSubpage() {
		return reg.Size
	}
	_, length := reg.Chunk.Region(reg.Handle)
	return length
}

func (p *PooledBuffer) backing() []byte {
	if !p.reg.Pooled {
		return p.reg.Bytes
	}
	offset, length := p.reg.Chunk.Region(p.reg.Handle)
	if p.reg.Handle.IsSubpage() {
		leafIndex := p.reg.Chunk.LeafIndex(p.reg.Handle.MemMapIndex())
		base := p.reg.Chunk.PageOffset(leafIndex)
		elem := p.reg.Handle.BitmapIndex() - 1
		offset = base + elem*p.reg.Size
		length = p.reg.Size
	}
	return p.reg.Chunk.Bytes()[offset : offset+length]
}

func (p *PooledBuffer) capacity() int    { return p.cap }
func (p *PooledBuffer) maxCapacity() int { return p.maxCap }

func (p *PooledBuffer) adjustCapacity(n int) error {
	if n > p.maxCap {
		return fmt.Errorf("grow to %d beyond carved region of %d: %w", n, p.maxCap, ErrInsufficientCapacity)
	}
	p.cap = n
	return nil
}

func (p *PooledBuffer) rawGet(index, length int) []byte {
	out := make([]byte, length)
	copy(out, p.backing()[index:index+length])
	return out
}

func (p *PooledBuffer) rawSet(index int, src []byte) {
	copy(p.backing()[index:], src)
}

func (p *PooledBuffer) refcount() *RefCount { return p.rc }
