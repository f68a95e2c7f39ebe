// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bytebuf

import (
	"os"
	"runtime"
	"strconv"
)

// LeakDetectionLevel controls how much work the leak tracker does per
// buffer. Higher levels catch more but cost more.
type LeakDetectionLevel int

const (
	// LeakDetectionDisabled never tracks a buffer for leaks.
	LeakDetectionDisabled LeakDetectionLevel = iota
	// LeakDetectionSimple samples 1 in 128 allocations and reports only
	// the buffer kind and its outstanding count, with no access hints.
	LeakDetectionSimple
	// LeakDetectionAdvanced samples 1 in 128 allocations and also
	// reports the most recent access hints (up to 32 per buffer).
	LeakDetectionAdvanced
	// LeakDetectionParanoid tracks every allocation and reports the most
	// recent access hints. Intended for test suites, not production.
	LeakDetectionParanoid
)

// AllocatorType selects how a Allocator obtains memory for pooled
// buffers.
type AllocatorType int

const (
	// AllocatorPooled carves memory from arenas of pooled chunks
	// (the default).
	AllocatorPooled AllocatorType = iota
	// AllocatorUnpooled always allocates a fresh Go slice, skipping the
	// arena/thread-cache machinery entirely. Useful for short-lived
	// processes or when profiling the allocator itself.
	AllocatorUnpooled
)

// Options configures a Allocator. The zero value is not valid; use
// DefaultOptions and override individual fields, or Configure to read from
// the environment.
type Options struct {
	AllocatorType AllocatorType

	LeakDetectionLevel LeakDetectionLevel

	// NumArenas is the number of independent arenas an Allocator spreads
	// allocations across. More arenas reduce lock contention at the
	// cost of more address space held open.
	NumArenas int

	PageSize uintptr
	MaxOrder int

	TinyCacheSize   int
	SmallCacheSize  int
	NormalCacheSize int

	// CheckAccessible gates every read/write against the buffer's
	// reference count being non-zero. Disabling it removes a branch
	// from the hot path at the cost of memory safety on a use-after-
	// release bug; leave enabled unless profiling shows it matters.
	CheckAccessible bool

	LeakReporter LeakReporter
}

// defaultPageSize is the default for the single BYTEBUF_PAGE_SIZE tunable,
// which ApplyOptions installs into the package-level PageSize global: the
// same granularity governs both AlignedMem's OS-page alignment and the
// pooled allocator's chunk/subpage carving.
const defaultPageSize = 8192

// DefaultOptions returns the module's default configuration: pooled
// allocation, simple leak detection, two arenas per CPU (minimum one),
// 8 KiB pages, an 11-order buddy tree (8 KiB * 2048 = 16 MiB chunks), and the
// thread-cache sizes used throughout internal/tcache.
func DefaultOptions() Options {
	arenas := runtime.GOMAXPROCS(0) * 2
	if arenas < 1 {
		arenas = 1
	}
	return Options{
		AllocatorType:      AllocatorPooled,
		LeakDetectionLevel: LeakDetectionSimple,
		NumArenas:          arenas,
		PageSize:           defaultPageSize,
		MaxOrder:           11,
		TinyCacheSize:      512,
		SmallCacheSize:     256,
		NormalCacheSize:    64,
		CheckAccessible:    true,
	}
}

// env tunable names, read by Configure.
const (
	envCheckAccessible = "BYTEBUF_CHECK_ACCESSIBLE"
	envAllocatorType   = "BYTEBUF_ALLOCATOR_TYPE"
	envLeakDetection   = "BYTEBUF_LEAK_DETECTION_LEVEL"
	envNumArenas       = "BYTEBUF_NUM_ARENAS"
	envPageSize        = "BYTEBUF_PAGE_SIZE"
	envMaxOrder        = "BYTEBUF_MAX_ORDER"
	envTinyCacheSize   = "BYTEBUF_TINY_CACHE_SIZE"
	envSmallCacheSize  = "BYTEBUF_SMALL_CACHE_SIZE"
	envNormalCacheSize = "BYTEBUF_NORMAL_CACHE_SIZE"
)

// Configure builds an Options starting from DefaultOptions and overriding
// any field whose environment variable is set. Malformed or out-of-range
// environment values are ignored and the default is kept.
func Configure() Options {
	o := DefaultOptions()

	if v, ok := os.LookupEnv(envCheckAccessible); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			o.CheckAccessible = b
		}
	}
	if v, ok := os.LookupEnv(envAllocatorType); ok {
		switch v {
		case "pooled":
			o.AllocatorType = AllocatorPooled
		case "unpooled":
			o.AllocatorType = AllocatorUnpooled
		}
	}
	if v, ok := os.LookupEnv(envLeakDetection); ok {
		switch v {
		case "disabled":
			o.LeakDetectionLevel = LeakDetectionDisabled
		case "simple":
			o.LeakDetectionLevel = LeakDetectionSimple
		case "advanced":
			o.LeakDetectionLevel = LeakDetectionAdvanced
		case "paranoid":
			o.LeakDetectionLevel = LeakDetectionParanoid
		}
	}
	if v, ok := os.LookupEnv(envNumArenas); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			o.NumArenas = n
		}
	}
	if v, ok := os.LookupEnv(envPageSize); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 4096 && n&(n-1) == 0 {
			o.PageSize = uintptr(n)
		}
	}
	if v, ok := os.LookupEnv(envMaxOrder); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 14 {
			o.MaxOrder = n
		}
	}
	if v, ok := os.LookupEnv(envTinyCacheSize); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			o.TinyCacheSize = n
		}
	}
	if v, ok := os.LookupEnv(envSmallCacheSize); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			o.SmallCacheSize = n
		}
	}
	if v, ok := os.LookupEnv(envNormalCacheSize); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			o.NormalCacheSize = n
		}
	}
	return o
}

// ApplyOptions installs o as the process-wide configuration consulted by
// every buffer created directly with NewHeapBuffer/NewDirectBuffer (buffers
// created through an Allocator pick it up via NewAllocator instead, which
// calls this for its own Options automatically). It is not safe to call
// concurrently with buffer allocation; call it once during startup.
func ApplyOptions(o Options) {
	setCheckAccessible(o.CheckAccessible)
	globalLeakTracker = newLeakTracker(o.LeakDetectionLevel, o.LeakReporter)
	if o.PageSize != 0 {
		PageSize = o.PageSize
	}
}
