// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tcache

import (
	"sync"
	"sync/atomic"
	"testing"

	"code.hybscloud.com/bytebuf/internal/arena"
)

func TestAllocateFree_HitsCacheOnReuse(t *testing.T) {
	a := arena.New(4096, 4, nil)
	tc := New(DefaultSizes)

	reg, err := tc.Allocate(a, 64)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	tc.Free(a, reg)

	// The freed region should now be sitting in its class ring; a same-size
	// allocation should come back out without taking the arena lock. We
	// can't observe lock-freedom directly, but we can assert correctness:
	// the second allocation must return the identical cached region.
	reg2, err := tc.Allocate(a, 64)
	if err != nil {
		t.Fatalf("Allocate after Free: %v", err)
	}
	if reg2.Chunk != reg.Chunk || reg2.Handle != reg.Handle {
		t.Fatalf("Allocate after Free returned %+v, want the cached region %+v", reg2, reg)
	}
	tc.Free(a, reg2)
}

func TestAllocate_NeverServesSmallerCachedClass(t *testing.T) {
	a := arena.New(4096, 4, nil)
	tc := New(DefaultSizes)

	reg, err := tc.Allocate(a, 16)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	tc.Free(a, reg) // 16-byte class now cached

	big, err := tc.Allocate(a, 64)
	if err != nil {
		t.Fatalf("Allocate(64): %v", err)
	}
	if big.Size < 64 {
		t.Fatalf("Allocate(64) returned a region of class %d; a cached smaller class must never be substituted", big.Size)
	}
	tc.Free(a, big)
}

func TestFree_UnpooledGoesStraightToArena(t *testing.T) {
	a := arena.New(4096, 4, nil)
	tc := New(DefaultSizes)

	reg, err := a.Allocate(1 << 20) // huge, unpooled
	if err != nil {
		t.Fatalf("arena.Allocate: %v", err)
	}
	tc.Free(a, reg) // must not panic despite reg.Pooled == false
}

func TestTrim_ReturnsFractionToArena(t *testing.T) {
	a := arena.New(4096, 6, nil)
	tc := New(Sizes{Tiny: 64, Small: 64, Normal: 64})

	var regions []arena.Region
	for i := 0; i < 16; i++ {
		r, err := tc.Allocate(a, 32)
		if err != nil {
			t.Fatalf("Allocate %d: %v", i, err)
		}
		regions = append(regions, r)
	}
	for _, r := range regions {
		tc.Free(a, r)
	}

	ring := tc.ringFor(a.ClassSize(32))
	before := ring.len()
	tc.Trim(a, 2)
	after := ring.len()
	if after >= before {
		t.Fatalf("Trim did not shrink the ring: before=%d after=%d", before, after)
	}
}

func TestRingIndex_RoundTripsEveryClass(t *testing.T) {
	for i := 0; i < numTinyRings+numPow2Rings; i++ {
		class := ringClassSize(i)
		if got := ringIndex(class); got != i {
			t.Errorf("ringIndex(ringClassSize(%d)) = %d, want %d (class %d)", i, got, i, class)
		}
	}
}

func TestRingIndex_RejectsNonClassSizes(t *testing.T) {
	cases := []int{0, -16, 17, 100, 511, 768, 1 << 31}
	for _, size := range cases {
		if got := ringIndex(size); got != -1 {
			t.Errorf("ringIndex(%d) = %d, want -1", size, got)
		}
	}
}

func TestRing_ConcurrentPushPop(t *testing.T) {
	// Multi-producer, single-consumer: producers race tryPush while exactly
	// one goroutine drains, matching the ring's ownership contract.
	r := newRing(64)
	const producers = 8
	const perProducer = 50

	var wg sync.WaitGroup
	wg.Add(producers)
	pushed := make([]int, producers)
	for p := 0; p < producers; p++ {
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				region := arena.Region{Pooled: true, Size: seed*1000 + i}
				if r.tryPush(region) {
					pushed[seed]++
				}
			}
		}(p)
	}

	var producersDone atomic.Bool
	done := make(chan int)
	go func() {
		popped := 0
		for {
			if _, ok := r.tryPop(); ok {
				popped++
				continue
			}
			if producersDone.Load() && r.len() == 0 {
				done <- popped
				return
			}
		}
	}()
	wg.Wait()
	producersDone.Store(true)
	popped := <-done

	totalPushed := 0
	for _, n := range pushed {
		totalPushed += n
	}
	if popped != totalPushed {
		t.Fatalf("popped %d entries, want exactly the %d successfully pushed", popped, totalPushed)
	}
}

func TestRing_FullPushFails(t *testing.T) {
	r := newRing(2) // rounds up to next pow2, capacity 2
	if !r.tryPush(arena.Region{Size: 1}) {
		t.Fatal("first push into an empty ring should succeed")
	}
	if !r.tryPush(arena.Region{Size: 2}) {
		t.Fatal("second push into a capacity-2 ring should succeed")
	}
	if r.tryPush(arena.Region{Size: 3}) {
		t.Fatal("push into a full ring should fail")
	}
}

func TestNextPow2(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 64: 64, 65: 128}
	for in, want := range cases {
		if got := nextPow2(in); got != want {
			t.Errorf("nextPow2(%d) = %d, want %d", in, got, want)
		}
	}
}
