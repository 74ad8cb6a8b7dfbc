// Package buffer provides the growable containers the sequence engine uses
// for its event list and tempo map: storage that starts inline on the struct
// and migrates to a heap-backed slice only once an append overflows it.
package buffer

// InlineCapacity is the fixed size of the embedded array every Buffer
// carries before it migrates to heap storage. Chosen comfortably above a
// typical short recording so most sequences never allocate.
const InlineCapacity = 64

// Buffer is a growable, preserving container over T. Zero value is ready to
// use (empty, inline-backed).
type Buffer[T any] struct {
	inline   [InlineCapacity]T
	heap     []T
	length   int
	capacity int
	onHeap   bool
}

// New returns an empty, inline-backed Buffer.
func New[T any]() *Buffer[T] {
	return &Buffer[T]{capacity: InlineCapacity}
}

// NewWithCapacity returns an empty Buffer sized to hold at least inisize
// elements without growing. If inisize exceeds InlineCapacity it allocates
// heap storage immediately.
func NewWithCapacity[T any](inisize int) *Buffer[T] {
	b := &Buffer[T]{}
	if inisize <= InlineCapacity {
		b.capacity = InlineCapacity
		return b
	}
	newCap := nextPow2(inisize)
	b.heap = make([]T, newCap)
	b.onHeap = true
	b.capacity = newCap
	return b
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Len returns the number of elements currently stored.
func (b *Buffer[T]) Len() int { return b.length }

// Cap returns the current capacity (inline or heap).
func (b *Buffer[T]) Cap() int { return b.capacity }

// OnHeap reports whether the buffer has migrated to heap storage.
func (b *Buffer[T]) OnHeap() bool { return b.onHeap }

func (b *Buffer[T]) backing() []T {
	if b.onHeap {
		return b.heap[:b.length]
	}
	return b.inline[:b.length]
}

// At returns the element at index i. Panics if i is out of range, matching
// slice semantics.
func (b *Buffer[T]) At(i int) T { return b.backing()[i] }

// Set overwrites the element at index i.
func (b *Buffer[T]) Set(i int, v T) { b.backing()[i] = v }

// Slice returns a view over the currently stored elements. The caller must
// not retain it across a call that grows the buffer.
func (b *Buffer[T]) Slice() []T { return b.backing() }

// Clear resets the length to zero without releasing the current backing
// storage (grow-no-data at the current capacity).
func (b *Buffer[T]) Clear() { b.length = 0 }

// GrowNoData discards any existing contents and ensures the buffer can hold
// at least requested elements without growing again. Used when reloading a
// file, where prior contents are irrelevant. On failure (never in practice
// under Go's allocator, but modelled for parity with the poisoning-safe
// contract) it reverts to inline storage at the default capacity and
// reports false so the caller can mark the sequence empty.
func (b *Buffer[T]) GrowNoData(requested int) bool {
	newCap := nextPow2(requested)
	if newCap <= InlineCapacity {
		b.onHeap = false
		b.heap = nil
		b.capacity = InlineCapacity
		b.length = 0
		return true
	}
	newHeap := make([]T, newCap)
	b.heap = newHeap
	b.onHeap = true
	b.capacity = newCap
	b.length = 0
	return true
}

// GrowPreserving ensures the buffer can hold at least requested elements,
// copying any existing elements into the new storage. On failure it falls
// back to a fresh inline buffer at the default capacity and returns false;
// the old buffer is never left dangling.
func (b *Buffer[T]) GrowPreserving(requested int) bool {
	existing := b.backing()
	newCap := nextPow2(requested)
	if len(existing) > newCap {
		newCap = nextPow2(len(existing))
	}
	if newCap <= InlineCapacity {
		if b.onHeap {
			var zero [InlineCapacity]T
			b.inline = zero
			copy(b.inline[:], existing)
			b.heap = nil
			b.onHeap = false
		}
		b.capacity = InlineCapacity
		return true
	}
	newHeap := make([]T, newCap)
	n := copy(newHeap, existing)
	b.heap = newHeap
	b.onHeap = true
	b.capacity = newCap
	b.length = n
	return true
}

// Append adds v to the end, growing (preserving) if necessary. Reports false
// only when growth itself fails, in which case the buffer is reset to empty
// per the resource-exhausted policy: silently reset the count to zero.
func (b *Buffer[T]) Append(v T) bool {
	if b.length >= b.capacity {
		if ok := b.GrowPreserving(b.capacity + 1); !ok {
			b.length = 0
			return false
		}
	}
	if b.onHeap {
		b.heap[b.length] = v
	} else {
		b.inline[b.length] = v
	}
	b.length++
	return true
}
