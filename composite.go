// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bytebuf

import (
	"fmt"
	"sort"
)

// compositeComponent is one retained slice view spliced into a Composite's
// logical address space at [offset, offset+length).
type compositeComponent struct {
	view   Buffer
	offset int
	length int
}

// compositeState holds a Composite's component list in its own allocation,
// for the same reason heapStorage exists: the RefCount's deallocate closure
// captures only this struct, never the Composite value, so a Composite
// dropped without being released stays collectible for the leak tracker.
type compositeState struct {
	components []compositeComponent
	total      int
}

func (st *compositeState) release() {
	for _, comp := range st.components {
		_, _ = comp.view.Release()
	}
	st.components = nil
	st.total = 0
}

// Composite presents a sequence of independently allocated buffers as one
// logically contiguous Buffer, without copying their bytes together. Each
// component is held as a retained slice view over the region it
// contributed; removing a component or releasing the Composite itself
// releases that view exactly once.
type Composite struct {
	*cursor

	rc *RefCount
	st *compositeState

	// autoConsolidateThreshold triggers Consolidate once len(components)
	// exceeds it on the next AddComponent, bounding the cost of the
	// binary search and per-byte component walk in rawGet/rawSet. Zero
	// disables auto-consolidation.
	autoConsolidateThreshold int
}

// NewComposite creates an empty Composite. autoConsolidateThreshold, if
// positive, merges all components into a single backing buffer once more
// than that many components have accumulated.
func NewComposite(autoConsolidateThreshold int) *Composite {
	st := &compositeState{}
	c := &Composite{st: st, autoConsolidateThreshold: autoConsolidateThreshold}
	c.rc = newRefCount(st.release)
	c.cursor = newCursor(c)
	trackOwner(globalLeakTracker, c, c.rc, "composite")
	return c
}

func (c *Composite) capacity() int    { return c.st.total }
func (c *Composite) maxCapacity() int { return c.st.total }

// adjustCapacity on a Composite only ever shrinks, by trimming or dropping
// trailing components; it cannot grow a Composite's capacity (use
// AddComponent for that).
func (c *Composite) adjustCapacity(n int) error {
	if n == c.st.total {
		return nil
	}
	if n > c.st.total {
		return fmt.Errorf("composite capacity only grows via AddComponent: %w", ErrUnsupported)
	}
	for len(c.st.components) > 0 {
		last := &c.st.components[len(c.st.components)-1]
		if last.offset >= n {
			_, _ = last.view.Release()
			c.st.components = c.st.components[:len(c.st.components)-1]
			continue
		}
		if last.offset+last.length > n {
			last.length = n - last.offset
		}
		break
	}
	c.st.total = n
	return nil
}

// AddComponent appends buf's current readable bytes as a new trailing
// component, retaining a slice view over exactly that range so the
// Composite's later lifetime no longer depends on buf's own cursor moving.
func (c *Composite) AddComponent(buf Buffer) error {
	return c.AddComponentAt(len(c.st.components), buf, false)
}

// AddComponentAt inserts buf's current readable bytes as a new component at
// component-index at (not a logical byte offset), shifting every
// following component's logical offset up by buf's readable length. When
// advanceWriter is true, the composite's writer index advances by that same
// length, matching a caller that is appending already-written data.
func (c *Composite) AddComponentAt(at int, buf Buffer, advanceWriter bool) error {
	if at < 0 || at > len(c.st.components) {
		return fmt.Errorf("component index %d of %d: %w", at, len(c.st.components), ErrOutOfBounds)
	}
	length := buf.ReadableBytes()
	view, err := buf.RetainedSlice(buf.ReaderIndex(), length)
	if err != nil {
		return err
	}
	offset := c.st.total
	if at < len(c.st.components) {
		offset = c.st.components[at].offset
	}
	c.st.components = append(c.st.components, compositeComponent{})
	copy(c.st.components[at+1:], c.st.components[at:])
	c.st.components[at] = compositeComponent{view: view, offset: offset, length: length}
	for i := at + 1; i < len(c.st.components); i++ {
		c.st.components[i].offset += length
	}
	c.st.total += length
	if advanceWriter {
		c.w += length
	}
	if c.autoConsolidateThreshold > 0 && len(c.st.components) > c.autoConsolidateThreshold {
		return c.Consolidate()
	}
	return nil
}

// componentIndexAtOffset returns the index into the component list of the
// component covering logical offset index, via binary search over the
// sorted (monotonically increasing) component offsets.
func (c *Composite) componentIndexAtOffset(index int) int {
	return sort.Search(len(c.st.components), func(i int) bool {
		return c.st.components[i].offset+c.st.components[i].length > index
	})
}

// ComponentAtOffset returns the component Buffer covering logical index,
// plus index translated into that component's own local coordinate space.
func (c *Composite) ComponentAtOffset(index int) (Buffer, int, error) {
	if index < 0 || index >= c.st.total {
		return nil, 0, fmt.Errorf("offset %d outside composite of length %d: %w", index, c.st.total, ErrOutOfBounds)
	}
	i := c.componentIndexAtOffset(index)
	comp := c.st.components[i]
	return comp.view, index - comp.offset, nil
}

// NumComponents reports how many components currently make up the
// Composite.
func (c *Composite) NumComponents() int { return len(c.st.components) }

// RemoveComponent releases and removes the component at components index
// i (not a logical byte offset), shifting every later component's logical
// offset down by the removed component's length.
func (c *Composite) RemoveComponent(i int) error {
	if i < 0 || i >= len(c.st.components) {
		return fmt.Errorf("component index %d of %d: %w", i, len(c.st.components), ErrOutOfBounds)
	}
	removed := c.st.components[i]
	_, err := removed.view.Release()
	if err != nil {
		return err
	}
	c.st.components = append(c.st.components[:i], c.st.components[i+1:]...)
	for j := i; j < len(c.st.components); j++ {
		c.st.components[j].offset -= removed.length
	}
	c.st.total -= removed.length
	if c.r > c.st.total {
		c.r = c.st.total
	}
	if c.w > c.st.total {
		c.w = c.st.total
	}
	return nil
}

// RemoveComponents releases and removes the n components starting at
// components index at, shifting every later component's logical offset
// down by their combined length.
func (c *Composite) RemoveComponents(at, n int) error {
	if at < 0 || n < 0 || at+n > len(c.st.components) {
		return fmt.Errorf("component range [%d, %d) of %d: %w", at, at+n, len(c.st.components), ErrOutOfBounds)
	}
	if n == 0 {
		return nil
	}
	var removedLength int
	for i := at; i < at+n; i++ {
		if _, err := c.st.components[i].view.Release(); err != nil {
			return err
		}
		removedLength += c.st.components[i].length
	}
	c.st.components = append(c.st.components[:at], c.st.components[at+n:]...)
	for j := at; j < len(c.st.components); j++ {
		c.st.components[j].offset -= removedLength
	}
	c.st.total -= removedLength
	if c.r > c.st.total {
		c.r = c.st.total
	}
	if c.w > c.st.total {
		c.w = c.st.total
	}
	return nil
}

// Decompose returns the Composite's current components as a slice of
// Buffer views, in logical order. The returned slice shares the
// Composite's own retained references; callers must not release them
// independently of the Composite.
func (c *Composite) Decompose() []Buffer {
	out := make([]Buffer, len(c.st.components))
	for i, comp := range c.st.components {
		out[i] = comp.view
	}
	return out
}

// DecomposeRange returns retained slice views spanning exactly
// [offset, offset+length) of the composite's logical address space, one per
// component the range touches, in logical order. Each returned Buffer
// retains its source component, so the caller owns a reference to every
// element and must release them independently of the Composite.
func (c *Composite) DecomposeRange(offset, length int) ([]Buffer, error) {
	if offset < 0 || length < 0 || offset+length > c.st.total {
		return nil, fmt.Errorf("range [%d, %d) outside composite of length %d: %w", offset, offset+length, c.st.total, ErrOutOfBounds)
	}
	if length == 0 {
		return nil, nil
	}
	var out []Buffer
	pos := 0
	i := c.componentIndexAtOffset(offset)
	for pos < length {
		comp := c.st.components[i]
		localOffset := offset + pos - comp.offset
		n := comp.length - localOffset
		if remaining := length - pos; n > remaining {
			n = remaining
		}
		view, err := comp.view.RetainedSlice(localOffset, n)
		if err != nil {
			for _, v := range out {
				_, _ = v.Release()
			}
			return nil, err
		}
		out = append(out, view)
		pos += n
		i++
	}
	return out, nil
}

// Consolidate copies every component's bytes into a single fresh
// HeapBuffer and replaces the component list with it as the sole
// component, trading the Composite's zero-copy property for O(1) future
// rawGet/rawSet instead of a binary search plus per-component copy.
func (c *Composite) Consolidate() error {
	if len(c.st.components) <= 1 {
		return nil
	}
	merged := NewHeapBuffer(c.st.total, c.st.total)
	for _, comp := range c.st.components {
		b, err := comp.view.GetBytes(0, comp.length)
		if err != nil {
			return err
		}
		if err := merged.SetBytes(comp.offset, b); err != nil {
			return err
		}
		_, _ = comp.view.Release()
	}
	_ = merged.SetWriterIndex(c.st.total)
	c.st.components = []compositeComponent{{view: merged, offset: 0, length: c.st.total}}
	return nil
}

// ConsolidateRange merges the n components starting at components index
// cIndex into a single fresh HeapBuffer replacing them in place, leaving
// components outside that range untouched. It is Consolidate's partial
// counterpart, for callers that only want to flatten a hot sub-range (e.g.
// a header that's about to be parsed repeatedly) without giving up the
// zero-copy property for the rest of the Composite.
func (c *Composite) ConsolidateRange(cIndex, n int) error {
	if cIndex < 0 || n < 0 || cIndex+n > len(c.st.components) {
		return fmt.Errorf("component range [%d, %d) of %d: %w", cIndex, cIndex+n, len(c.st.components), ErrOutOfBounds)
	}
	if n <= 1 {
		return nil
	}
	span := c.st.components[cIndex : cIndex+n]
	rangeOffset := span[0].offset
	var rangeLength int
	for _, comp := range span {
		rangeLength += comp.length
	}
	merged := NewHeapBuffer(rangeLength, rangeLength)
	for _, comp := range span {
		b, err := comp.view.GetBytes(0, comp.length)
		if err != nil {
			return err
		}
		if err := merged.SetBytes(comp.offset-rangeOffset, b); err != nil {
			return err
		}
		_, _ = comp.view.Release()
	}
	_ = merged.SetWriterIndex(rangeLength)
	replacement := compositeComponent{view: merged, offset: rangeOffset, length: rangeLength}
	tail := append([]compositeComponent(nil), c.st.components[cIndex+n:]...)
	c.st.components = append(c.st.components[:cIndex], replacement)
	c.st.components = append(c.st.components, tail...)
	return nil
}

func (c *Composite) rawGet(index, length int) []byte {
	out := make([]byte, length)
	pos := 0
	i := c.componentIndexAtOffset(index)
	for pos < length {
		comp := c.st.components[i]
		localOffset := index + pos - comp.offset
		n := comp.length - localOffset
		if remaining := length - pos; n > remaining {
			n = remaining
		}
		b, _ := comp.view.GetBytes(localOffset, n)
		copy(out[pos:], b)
		pos += n
		i++
	}
	return out
}

func (c *Composite) rawSet(index int, src []byte) {
	pos := 0
	i := c.componentIndexAtOffset(index)
	for pos < len(src) {
		comp := c.st.components[i]
		localOffset := index + pos - comp.offset
		n := comp.length - localOffset
		if remaining := len(src) - pos; n > remaining {
			n = remaining
		}
		_ = comp.view.SetBytes(localOffset, src[pos:pos+n])
		pos += n
		i++
	}
}

func (c *Composite) refcount() *RefCount { return c.rc }

// Iovecs builds a Buffers (net.Buffers) vectored-write descriptor from the
// Composite's components, one copied slice per component, so the whole
// Composite can be handed directly to a writev-backed net.Conn or similar
// scatter/gather sink without first flattening it with Consolidate.
func (c *Composite) Iovecs() Buffers {
	out := make(Buffers, len(c.st.components))
	for i, comp := range c.st.components {
		b, _ := comp.view.GetBytes(0, comp.length)
		out[i] = b
	}
	return out
}
