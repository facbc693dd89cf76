// Package segindex implements the in-memory cross-segment chunk index a write or read session keeps alongside the
// on-disk per-segment footers (spec.md §4.6): Merged folds every segment's footer entries into one lookup surface
// so chunk.Reader can resolve a (object_no, chunk_no) pair without caring how many segment files a container spans.
package segindex

import (
	"sync"

	"github.com/zffdev/zff/zffheader"
)

// Entry is one chunk's location within a segment file.
type Entry struct {
	Offset    int64
	StoredLen uint64
	Flags     uint8
}

// SegmentLocation extends Entry with the segment a chunk lives in.
type SegmentLocation struct {
	SegmentNo uint64
	Entry
}

// Merged is an in-memory union of every segment's chunk index, giving chunk.Reader a single lookup surface across
// an entire container regardless of how many segment files it spans (spec.md §3 "a container is a sequence of one
// or more segment files"). It implements chunk.Locator.
type Merged struct {
	mu      sync.RWMutex
	byChunk map[mergedKey]SegmentLocation
}

type mergedKey struct {
	objectNo uint32
	chunkNo  uint64
}

// NewMerged returns an empty merged index.
func NewMerged() *Merged {
	return &Merged{byChunk: make(map[mergedKey]SegmentLocation)}
}

// LoadFooter folds every chunk entry in a segment's on-disk footer into the merged view under segmentNo. Entries
// of any other kind (object headers, file records, main header copies) are skipped; a Merged only resolves chunks.
func (m *Merged) LoadFooter(segmentNo uint64, footer zffheader.SegmentFooter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range footer.Entries {
		if e.Kind != zffheader.FooterKindChunk {
			continue
		}

		m.byChunk[mergedKey{e.ObjectNo, e.Key}] = SegmentLocation{
			SegmentNo: segmentNo,
			Entry:     Entry{Offset: int64(e.Offset), StoredLen: e.StoredLen, Flags: e.Flags},
		}
	}
}

// Record adds or overwrites a single entry directly, used by segment.Writer to keep the merged view current as it
// appends chunks without waiting for a reload from disk.
func (m *Merged) Record(segmentNo uint64, objectNo uint32, chunkNo uint64, entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byChunk[mergedKey{objectNo, chunkNo}] = SegmentLocation{SegmentNo: segmentNo, Entry: entry}
}

// Locate implements chunk.Locator.
func (m *Merged) Locate(objectNo uint32, chunkNo uint64) (segmentNo uint64, offset int64, found bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loc, ok := m.byChunk[mergedKey{objectNo, chunkNo}]
	if !ok {
		return 0, 0, false
	}

	return loc.SegmentNo, loc.Offset, true
}

// ChunkCount returns the number of chunks currently indexed, for progress reporting during verification.
func (m *Merged) ChunkCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.byChunk)
}
