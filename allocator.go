// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bytebuf

import (
	"errors"
	"fmt"
	"sync/atomic"

	"code.hybscloud.com/bytebuf/internal/arena"
	"code.hybscloud.com/bytebuf/internal/tcache"
	"code.hybscloud.com/iox"
)

// Allocator coordinates a fixed set of arenas and hands out PooledBuffer
// values (for requests too large to pool, a PooledBuffer over an unpooled
// slice). A single Allocator is typically shared process-wide;
// DefaultOptions sets the arena count to twice the available CPUs so
// concurrent allocators don't all contend on the same handful of arenas.
type Allocator struct {
	opts   Options
	arenas []*arena.Arena
	next   atomic.Uint64
}

// NewAllocator creates an Allocator from o, applying o process-wide via
// ApplyOptions as a side effect (the same knobs govern directly-constructed
// HeapBuffer/DirectBuffer values too).
func NewAllocator(o Options) *Allocator {
	ApplyOptions(o)

	n := o.NumArenas
	if n < 1 {
		n = 1
	}
	arenas := make([]*arena.Arena, n)
	for i := range arenas {
		arenas[i] = arena.New(o.PageSize, o.MaxOrder, nil)
	}
	return &Allocator{opts: o, arenas: arenas}
}

// pickArena returns the next arena in round-robin order. A production
// implementation might instead pick the least-contended arena by sampling
// trylock state; round-robin is the simplest policy that still spreads
// load evenly across goroutines.
func (a *Allocator) pickArena() *arena.Arena {
	idx := a.next.Add(1) % uint64(len(a.arenas))
	return a.arenas[idx]
}

// NewThreadCache creates a ThreadCache sized per this Allocator's Options,
// meant to be owned by a single goroutine (or a fixed worker in a worker
// pool) for the lifetime of that goroutine.
func (a *Allocator) NewThreadCache() *tcache.ThreadCache {
	return tcache.New(tcache.Sizes{
		Tiny:   a.opts.TinyCacheSize,
		Small:  a.opts.SmallCacheSize,
		Normal: a.opts.NormalCacheSize,
	})
}

// Allocate returns a Buffer with at least size bytes of writable capacity,
// up to maxCapacity. If the Allocator is configured AllocatorUnpooled it
// falls back to a plain HeapBuffer; otherwise it carves a region from one
// of the Allocator's arenas (an unpooled slice when size exceeds a chunk),
// optionally through tc
// (pass nil to go straight to the arena, taking its lock every time). A
// pooled buffer never grows past the region it was carved from, so its
// effective MaxCapacity is min(maxCapacity, carved region size).
func (a *Allocator) Allocate(tc *tcache.ThreadCache, size, maxCapacity int) (Buffer, error) {
	if a.opts.AllocatorType == AllocatorUnpooled {
		return NewHeapBuffer(size, maxCapacity), nil
	}

	ar := a.pickArena()
	var reg arena.Region
	var err error
	if tc != nil {
		reg, err = tc.Allocate(ar, size)
	} else {
		reg, err = a.allocateFromArena(ar, size)
	}
	if err != nil {
		return nil, fmt.Errorf("allocate %d bytes: %w: %w", size, ErrAllocationFailure, err)
	}
	return newPooledBuffer(ar, tc, reg, size, maxCapacity), nil
}

// AllocateNonBlocking is Allocate's non-blocking counterpart for a caller
// that would rather fail fast than stall on arena lock contention (e.g. a
// latency-sensitive goroutine that can retry against a different arena, or
// report backpressure upstream). It bypasses the thread cache, since a
// cache hit never contends the arena mutex anyway. It returns
// iox.ErrWouldBlock if the chosen arena's mutex is currently held elsewhere.
func (a *Allocator) AllocateNonBlocking(size, maxCapacity int) (Buffer, error) {
	if a.opts.AllocatorType == AllocatorUnpooled {
		return NewHeapBuffer(size, maxCapacity), nil
	}

	ar := a.pickArena()
	reg, err := ar.TryAllocate(size)
	if err != nil {
		if errors.Is(err, arena.ErrBusy) {
			return nil, iox.ErrWouldBlock
		}
		return nil, fmt.Errorf("allocate %d bytes: %w: %w", size, ErrAllocationFailure, err)
	}
	return newPooledBuffer(ar, nil, reg, size, maxCapacity), nil
}

// allocateFromArena carves a region directly from ar, the way Allocate does
// when bypassing the thread cache. It polls ar.TryAllocate and backs off
// adaptively (iox.Backoff) across attempts rather than blocking the
// goroutine scheduler on the arena's mutex for an unbounded stretch, since
// the mutex is held only for the short structural-mutation fast path and
// is expected to clear quickly.
func (a *Allocator) allocateFromArena(ar *arena.Arena, size int) (arena.Region, error) {
	var aw iox.Backoff
	for {
		reg, err := ar.TryAllocate(size)
		if err == nil {
			return reg, nil
		}
		if errors.Is(err, arena.ErrBusy) {
			aw.Wait()
			continue
		}
		return arena.Region{}, err
	}
}
