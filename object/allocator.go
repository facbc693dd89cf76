// Package object implements the object model of spec.md §4.7: the Physical/Logical tagged variant, logical
// file-tree records, and the chunk-id allocator a logical object's files share.
package object

import "sync"

// ChunkAllocator hands out contiguous, non-overlapping chunk number ranges to the files of one logical object, so
// that every file can be written independently while still ending up with a dense, strictly increasing chunk
// numbering across the whole object (spec.md §3 invariant, §4.7 "a chunk-id allocator that is shared across all
// files of the logical object").
type ChunkAllocator struct {
	mu   sync.Mutex
	next uint64
}

// Reserve hands out count consecutive chunk numbers starting at the allocator's current position, returning the
// inclusive [first, last] range. A zero-chunk file (an empty regular file) should not call Reserve.
func (a *ChunkAllocator) Reserve(count uint64) (first, last uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	first = a.next
	last = first + count - 1
	a.next += count

	return first, last
}

// Next returns the next chunk number that would be handed out, without reserving it.
func (a *ChunkAllocator) Next() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.next
}
