// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bytebuf

import "errors"

// Error taxonomy for buffer operations. Every precondition violation
// described by the package resolves to one of these sentinels, always
// wrapped with additional detail via fmt.Errorf's %w so callers can
// still errors.Is/errors.As against the sentinel.
var (
	// ErrOutOfBounds is returned when an index or length violates a
	// read, write, or absolute get/set precondition.
	ErrOutOfBounds = errors.New("bytebuf: index out of bounds")

	// ErrInsufficientCapacity is returned when growth would exceed a
	// buffer's max capacity.
	ErrInsufficientCapacity = errors.New("bytebuf: insufficient capacity")

	// ErrIllegalReferenceCount is returned for any operation on a
	// buffer whose reference count is zero, a release that would drop
	// below zero, or a retain that would overflow.
	ErrIllegalReferenceCount = errors.New("bytebuf: illegal reference count")

	// ErrUnsupported is returned when an operation does not apply to a
	// buffer variant (e.g. AdjustCapacity on a Slice).
	ErrUnsupported = errors.New("bytebuf: unsupported operation")

	// ErrAllocationFailure is returned when the pooled allocator cannot
	// satisfy a request.
	ErrAllocationFailure = errors.New("bytebuf: allocation failure")

	// ErrIoFailure is returned when a stream source/sink returns an
	// error partway through a transfer. After a failed ReadFrom the
	// writer index has advanced by exactly the bytes successfully
	// transferred and the reader index is unchanged; after a failed
	// WriteTo the reader index has advanced by exactly the bytes written.
	ErrIoFailure = errors.New("bytebuf: i/o failure")
)
