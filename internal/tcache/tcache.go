// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tcache implements per-thread free-region caches that avoid
// taking the arena's mutex on the hot allocate/free path. Every size
// class gets its own bounded ring, so a cached region is only ever
// handed back for a request of exactly its class: any goroutine may push
// a freed region (multi-producer), but only the cache's owner drains it
// (single consumer), matching the MPSC shape described for thread
// caches.
package tcache

import (
	"math/bits"
	"sync/atomic"

	"code.hybscloud.com/bytebuf/internal/arena"
	"code.hybscloud.com/spin"
)

// Sizes is the bounded capacity of a ThreadCache's rings, one bound per
// tier applied to every size class in that tier. Tiny allocations churn
// the most and get the largest rings.
type Sizes struct {
	Tiny   int
	Small  int
	Normal int
}

// DefaultSizes mirrors the typical bounds called out in the allocator
// design: 512 entries per tiny class, 256 per small, 64 per normal.
var DefaultSizes = Sizes{Tiny: 512, Small: 256, Normal: 64}

const (
	tinyStep = 16
	tinyMax  = 512
	// smallMinLog is log2 of the smallest power-of-two class (512 bytes); every
	// class at or above it is a power of two, so rings for those classes
	// are indexed by log2.
	smallMinLog = 9

	numTinyRings = tinyMax/tinyStep - 1 // 16, 32, ..., 496
	numPow2Rings = 22                   // 2^9 (512 B) .. 2^30 (1 GiB), beyond any real chunk

	trimInterval = 4096 // allocations between periodic trims
)

// ThreadCache is owned by a single consumer goroutine. It is safe for
// any goroutine to call Free (the cross-thread free path); only the
// owner should call Allocate/Trim.
type ThreadCache struct {
	// rings[0..numTinyRings) hold the tiny classes (16-byte steps);
	// rings[numTinyRings..] hold the power-of-two classes from 512 bytes
	// up. All rings are created up front so the cross-thread Free path
	// never races ring creation against the owner.
	rings [numTinyRings + numPow2Rings]*ring

	allocs uint64
}

// New creates a ThreadCache with the given per-class ring capacities.
func New(sizes Sizes) *ThreadCache {
	tc := &ThreadCache{}
	for i := range tc.rings {
		tc.rings[i] = newRing(tierCapacity(ringClassSize(i), sizes))
	}
	return tc
}

// tierCapacity maps a class size onto its tier's configured ring bound.
func tierCapacity(classSize int, sizes Sizes) int {
	switch {
	case classSize < tinyMax:
		return sizes.Tiny
	case classSize < 8192:
		return sizes.Small
	default:
		return sizes.Normal
	}
}

// ringClassSize is the inverse of ringIndex: the class size slot i serves.
func ringClassSize(i int) int {
	if i < numTinyRings {
		return (i + 1) * tinyStep
	}
	return 1 << (smallMinLog + i - numTinyRings)
}

// ringIndex maps an exact class size onto its ring slot, or -1 for a size
// no ring serves (a huge allocation, or any non-class size).
func ringIndex(classSize int) int {
	if classSize < tinyMax {
		if classSize <= 0 || classSize%tinyStep != 0 {
			return -1
		}
		return classSize/tinyStep - 1
	}
	if classSize&(classSize-1) != 0 {
		return -1
	}
	i := numTinyRings + bits.Len(uint(classSize)) - 1 - smallMinLog
	if i >= numTinyRings+numPow2Rings {
		return -1
	}
	return i
}

func (tc *ThreadCache) ringFor(classSize int) *ring {
	i := ringIndex(classSize)
	if i < 0 {
		return nil
	}
	return tc.rings[i]
}

// Allocate attempts to satisfy size from the cache first; on a miss it
// falls through to a. The request is normalised to a's size class before
// the ring lookup, so a cache hit always returns a region carved for
// exactly the class the arena itself would serve. Every call counts
// toward the periodic trim.
func (tc *ThreadCache) Allocate(a *arena.Arena, size int) (arena.Region, error) {
	tc.allocs++
	if tc.allocs%trimInterval == 0 {
		tc.Trim(a, 4) // return 1/4 of cached entries to the arena
	}
	if r := tc.ringFor(a.ClassSize(size)); r != nil {
		if reg, ok := r.tryPop(); ok {
			return reg, nil
		}
	}
	return a.Allocate(size)
}

// Free returns r to the cache if its class has a ring with room;
// otherwise it frees directly to the arena (taking the arena lock).
func (tc *ThreadCache) Free(a *arena.Arena, r arena.Region) {
	if !r.Pooled {
		a.Free(r)
		return
	}
	if ring := tc.ringFor(r.Size); ring != nil && ring.tryPush(r) {
		return
	}
	a.Free(r)
}

// Trim returns roughly 1/fraction of each ring's currently cached
// entries to the arena, bounding memory held by an idle thread cache.
func (tc *ThreadCache) Trim(a *arena.Arena, fraction int) {
	for _, r := range tc.rings {
		n := r.len() / fraction
		for i := 0; i < n; i++ {
			region, ok := r.tryPop()
			if !ok {
				break
			}
			a.Free(region)
		}
	}
}

type slotState uint32

const (
	slotEmpty slotState = iota
	slotFilled
)

type slot struct {
	state  atomic.Uint32
	region arena.Region
}

// ring is a bounded single-consumer multi-producer queue: any goroutine
// may tryPush (CAS on tail), but only one goroutine at a time may call
// tryPop, matching a thread cache's ownership model.
type ring struct {
	slots []slot
	mask  uint32
	head  atomic.Uint32
	tail  atomic.Uint32
}

func nextPow2(n int) int {
	if n < 1 {
		n = 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func newRing(capacity int) *ring {
	capacity = nextPow2(capacity)
	return &ring{
		slots: make([]slot, capacity),
		mask:  uint32(capacity - 1),
	}
}

func (r *ring) len() int {
	return int(r.tail.Load() - r.head.Load())
}

func (r *ring) tryPush(region arena.Region) bool {
	for {
		tail := r.tail.Load()
		head := r.head.Load()
		if tail-head >= uint32(len(r.slots)) {
			return false
		}
		if r.tail.CompareAndSwap(tail, tail+1) {
			idx := tail & r.mask
			r.slots[idx].region = region
			r.slots[idx].state.Store(uint32(slotFilled))
			return true
		}
	}
}

func (r *ring) tryPop() (arena.Region, bool) {
	head := r.head.Load()
	tail := r.tail.Load()
	if head == tail {
		return arena.Region{}, false
	}
	idx := head & r.mask
	var sw spin.Wait
	for slotState(r.slots[idx].state.Load()) == slotEmpty {
		sw.Once()
	}
	region := r.slots[idx].region
	r.slots[idx].region = arena.Region{}
	r.slots[idx].state.Store(uint32(slotEmpty))
	r.head.Store(head + 1)
	return region, true
}
