// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bytebuf

import "net"

// PageSize defines the standard memory page size (4 KiB) used for alignment
// and as the pooled allocator's subpage/leaf-page granularity.
var PageSize uintptr = 4096

// SetPageSize updates the package-level page size used for allocations.
func SetPageSize(size int) {
	PageSize = uintptr(size)
}

// Buffers is an alias for net.Buffers, providing a standard way to group
// multiple byte slices for vectored I/O operations. Composite.Iovecs builds
// one from its components, one copied slice per component.
type Buffers = net.Buffers

// noCopy is a sentinel used to prevent copying of synchronization primitives.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// ByteEncoder transcodes between a buffer's raw bytes and a string, for
// callers that need charset-aware text access via GetString/SetString/
// ReadString/WriteString. Passing a nil ByteEncoder to those methods takes
// the buffer core's own UTF-8/ASCII fast path instead of calling out here.
type ByteEncoder interface {
	Encode(s string) ([]byte, error)
	Decode(b []byte) (string, error)
}

// StreamSource is anything Buffer.ReadFrom can pull readable bytes from.
// It is satisfied by io.Reader; declared separately so callers are not
// forced to import io just to pass a Buffer around.
type StreamSource interface {
	Read(p []byte) (n int, err error)
}

// StreamSink is anything Buffer.WriteTo can push readable bytes into. It is
// satisfied by io.Writer.
type StreamSink interface {
	Write(p []byte) (n int, err error)
}

// ByteProcessor is invoked once per byte by ForEachByte/ForEachByteDesc. It
// returns false to stop the scan early.
type ByteProcessor func(index int, b byte) bool

// LeakReporter receives reports from the leak tracker when a pooled or
// heap buffer is garbage collected while still holding outstanding
// references. A nil LeakReporter installed via ApplyOptions disables
// reporting entirely regardless of the configured detection level.
type LeakReporter interface {
	ReportLeak(kind string, hints []string)
}
