// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package bytebuf_test

// raceEnabled is true when the race detector is active.
// Pooled-allocator concurrency tests use this to shrink their iteration
// counts, since the race detector's instrumentation makes each iteration
// far slower.
const raceEnabled = true
