// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bytebuf

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// leakTracker samples buffer allocations and registers a GC cleanup that
// fires a LeakReporter.ReportLeak call if the buffer is collected while its
// reference count is still above zero (i.e. it was never fully released).
//
// At LeakDetectionSimple and LeakDetectionAdvanced only a fraction of
// allocations are sampled, since registering a cleanup on every allocation
// would noticeably slow down a hot allocate/free path. Paranoid tracks
// every single one and is meant for test suites, not production traffic.
type leakTracker struct {
	level    LeakDetectionLevel
	reporter LeakReporter

	sample atomic.Uint32
}

const leakSampleRate = 128

func newLeakTracker(level LeakDetectionLevel, reporter LeakReporter) *leakTracker {
	return &leakTracker{level: level, reporter: reporter}
}

// globalLeakTracker is the tracker every directly-constructed variant
// (NewHeapBuffer, NewDirectBuffer) registers against. ApplyOptions installs
// a new one; the zero value is disabled, matching DefaultOptions's
// LeakDetectionSimple only once an Allocator or ApplyOptions call is made.
var globalLeakTracker = newLeakTracker(LeakDetectionDisabled, nil)

func (lt *leakTracker) enabled() bool {
	return lt != nil && lt.level != LeakDetectionDisabled && lt.reporter != nil
}

// recordsHints reports whether Touch hints are worth recording at all:
// only the Advanced and Paranoid levels ever surface them in a report.
func (lt *leakTracker) recordsHints() bool {
	return lt.enabled() && lt.level >= LeakDetectionAdvanced
}

func (lt *leakTracker) shouldSample() bool {
	if !lt.enabled() {
		return false
	}
	if lt.level == LeakDetectionParanoid {
		return true
	}
	return lt.sample.Add(1)%leakSampleRate == 0
}

// trackOwner registers owner, the user-facing buffer value, for leak
// detection. owner must not be reachable from rc (for instance through
// rc's deallocate closure), since the cleanup keeps rc alive and the
// cleanup would then never fire.
func trackOwner[T any](lt *leakTracker, owner *T, rc *RefCount, kind string) {
	if !lt.shouldSample() {
		return
	}
	advanced := lt.level >= LeakDetectionAdvanced
	reporter := lt.reporter
	runtime.AddCleanup(owner, func(rc *RefCount) {
		if rc.Count() <= 0 {
			return // released properly before collection
		}
		hints := []string{fmt.Sprintf("count=%d at collection time", rc.Count())}
		if advanced {
			hints = append(hints, rc.hintTrail()...)
		}
		reporter.ReportLeak(kind, hints)
	}, rc)
}
