// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bytebuf

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// RefCount is the atomic reference-count core shared by every releasable
// buffer variant. A freshly allocated buffer starts at count 1; Retain
// increments it, Release decrements it and invokes the buffer's deallocate
// callback exactly once, the instant the count reaches zero.
//
// Slice and Duplicate views do not embed their own RefCount: they hold a
// pointer to their parent's, so retaining or releasing a view retains or
// releases the underlying buffer directly.
type RefCount struct {
	n atomic.Int32

	deallocate func()

	hintMu sync.Mutex
	hints  []string
}

// newRefCount creates a RefCount starting at 1, invoking deallocate exactly
// once when the count is released down to zero.
func newRefCount(deallocate func()) *RefCount {
	rc := &RefCount{deallocate: deallocate}
	rc.n.Store(1)
	return rc
}

// Count returns the current reference count. A count of zero means the
// buffer has been fully released and must not be accessed.
func (rc *RefCount) Count() int {
	return int(rc.n.Load())
}

// Accessible reports whether the buffer may currently be read or written.
func (rc *RefCount) Accessible() bool {
	return rc.n.Load() > 0
}

// Retain increments the reference count by one. It returns
// ErrIllegalReferenceCount if the buffer has already reached zero.
func (rc *RefCount) Retain() error {
	return rc.RetainN(1)
}

// RetainN increments the reference count by n. It returns
// ErrIllegalReferenceCount if the buffer has already reached zero, if n is
// not positive, or if the increment would overflow an int32.
func (rc *RefCount) RetainN(n int) error {
	if n <= 0 {
		return fmt.Errorf("retain %d: %w", n, ErrIllegalReferenceCount)
	}
	for {
		cur := rc.n.Load()
		if cur <= 0 {
			return fmt.Errorf("retain on released buffer: %w", ErrIllegalReferenceCount)
		}
		next := cur + int32(n)
		if next < cur {
			return fmt.Errorf("retain overflow: %w", ErrIllegalReferenceCount)
		}
		if rc.n.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

// Release decrements the reference count by one, invoking the buffer's
// deallocate callback if the count reaches zero. It reports whether the
// count reached zero as a result of this call.
func (rc *RefCount) Release() (bool, error) {
	return rc.ReleaseN(1)
}

// ReleaseN decrements the reference count by n, invoking deallocate exactly
// once if the count reaches zero as a result. It returns
// ErrIllegalReferenceCount if n is not positive or exceeds the current
// count.
func (rc *RefCount) ReleaseN(n int) (bool, error) {
	if n <= 0 {
		return false, fmt.Errorf("release %d: %w", n, ErrIllegalReferenceCount)
	}
	for {
		cur := rc.n.Load()
		if cur <= 0 || int32(n) > cur {
			return false, fmt.Errorf("release %d on count %d: %w", n, cur, ErrIllegalReferenceCount)
		}
		next := cur - int32(n)
		if rc.n.CompareAndSwap(cur, next) {
			if next == 0 {
				if rc.deallocate != nil {
					rc.deallocate()
				}
				return true, nil
			}
			return false, nil
		}
	}
}

// maxHintTrail bounds the per-buffer hint trail; once full, the oldest
// hint is dropped for each new one, keeping the most recent activity.
const maxHintTrail = 32

// Touch appends a diagnostic hint to the buffer's leak-tracker trail.
// Hints are only recorded when the installed leak tracker is at
// LeakDetectionAdvanced or higher; at lower levels Touch is a no-op, so
// the Retain/Release hot path never accumulates per-buffer state. The
// hint slice itself is mutex-guarded so concurrent touches from different
// goroutines never race or corrupt the trail. What remains unsynchronized
// is ordering against a concurrent release reaching zero: a Touch racing
// the final release may land just before or just after the deallocate
// callback runs, and either order is accepted since hints are advisory
// only, never consulted for correctness, only surfaced in a leak report.
func (rc *RefCount) Touch(hint string) {
	if rc == nil || hint == "" || !globalLeakTracker.recordsHints() {
		return
	}
	rc.hintMu.Lock()
	if len(rc.hints) >= maxHintTrail {
		copy(rc.hints, rc.hints[1:])
		rc.hints[len(rc.hints)-1] = hint
	} else {
		rc.hints = append(rc.hints, hint)
	}
	rc.hintMu.Unlock()
}

func (rc *RefCount) hintTrail() []string {
	if rc == nil {
		return nil
	}
	rc.hintMu.Lock()
	defer rc.hintMu.Unlock()
	return append([]string(nil), rc.hints...)
}
