// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bytebuf provides reference-counted, pooled binary buffers for
// high-performance I/O code: a single Buffer abstraction over heap,
// pooled, direct, and composite storage, with independent reader/writer
// cursors, a primitive codec for every fixed-width numeric type, and an
// arena-based slab allocator behind it for the pooled variant.
//
// # Buffer Variants
//
// Every variant implements the same Buffer interface:
//
//	HeapBuffer      plain Go byte slice, grows by doubling below a fixed
//	                threshold and by fixed increments above it
//	DirectBuffer    single page-aligned allocation, never reallocates
//	PooledBuffer    carved from an Allocator's arenas via a thread cache
//	Composite       concatenates other buffers without copying their bytes
//	Slice           fixed window into a parent, does not retain it
//	Duplicate       full view of a parent with its own cursors
//	Empty           shared zero-capacity placeholder
//	Unreleasable    wraps a buffer so Retain/Release become no-ops
//
// # Reference Counting
//
// A freshly created buffer starts with a reference count of 1. Retain
// increments it; Release decrements it and frees the underlying storage
// exactly once, the instant the count reaches zero. Every read or write of
// the bytes of a buffer whose count has reached zero fails with
// ErrIllegalReferenceCount (IndexOf, which has no error result, reports -1).
//
// # Pooled Allocation
//
// An Allocator spreads allocations across several arenas
// (internal/arena), each of which carves tiny and small requests out of
// bitmap subpages (internal/subpage) and normal requests out of a buddy
// tree of chunks (internal/chunk). A ThreadCache (internal/tcache) sits in
// front of an Allocator's arenas as a lock-free fast path for a single
// owning goroutine.
//
//	a := bytebuf.NewAllocator(bytebuf.DefaultOptions())
//	tc := a.NewThreadCache()
//	buf, err := a.Allocate(tc, 256, 4096)
//	defer buf.Release()
//
// # Leak Detection
//
// Configure's LeakDetectionLevel controls whether the garbage collector
// reports buffers that were never released; see Options and LeakReporter.
//
// # Dependencies
//
// bytebuf depends on:
//   - iox: ErrWouldBlock and the adaptive Backoff waiter, surfaced by
//     Allocator.AllocateNonBlocking and used internally to poll a
//     contended arena rather than block on its mutex
//   - spin: Spin-wait primitives used by the thread cache's ring buffers
package bytebuf
