package segment

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/zffdev/zff/chunk"
	"github.com/zffdev/zff/errdefs"
	"github.com/zffdev/zff/fsio"
	"github.com/zffdev/zff/segindex"
	"github.com/zffdev/zff/zffheader"
)

// Reader discovers every segment file belonging to a container, loads each one's footer into a merged chunk index,
// and serves random-access reads by segment number (spec.md §4.6 "Read"). It implements chunk.SegmentOpener.
type Reader struct {
	stem          string
	merged        *segindex.Merged
	files         map[uint64]*os.File
	footers       map[uint64]zffheader.SegmentFooter
	footerOffsets map[uint64]uint64
}

var _ chunk.SegmentOpener = (*Reader)(nil)

// Open discovers segments 1..N for stem by probing for `<stem>.zNN` files in sequence, stopping at the first gap.
// A gap before any segment referenced by the container's object headers is reported by the caller as
// errdefs.MissingSegmentError once it tries to locate a chunk that would have lived there.
func Open(stem string) (*Reader, error) {
	r := &Reader{
		stem:          stem,
		merged:        segindex.NewMerged(),
		files:         make(map[uint64]*os.File),
		footers:       make(map[uint64]zffheader.SegmentFooter),
		footerOffsets: make(map[uint64]uint64),
	}

	for n := uint64(1); ; n++ {
		path := Path(stem, n)

		exists, err := fsio.FileExists(path)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("segment: probe segment %d: %w", n, err)
		}

		if !exists {
			break
		}

		if err := r.loadSegment(n); err != nil {
			r.Close()
			return nil, err
		}
	}

	if len(r.files) == 0 {
		return nil, &errdefs.MissingSegmentError{SegmentNo: 1}
	}

	return r, nil
}

func (r *Reader) loadSegment(n uint64) error {
	file, err := fsio.OpenRandAccess(Path(r.stem, n), 0, 0)
	if err != nil {
		return fmt.Errorf("segment: open segment %d: %w", n, err)
	}

	header, err := zffheader.DecodeSegmentHeader(io.NewSectionReader(file, 0, math.MaxInt64))
	if err != nil {
		file.Close()
		return fmt.Errorf("segment: read header for segment %d: %w", n, err)
	}

	footer, err := zffheader.DecodeSegmentFooter(io.NewSectionReader(file, int64(header.FooterOffset), math.MaxInt64-int64(header.FooterOffset)), n)
	if err != nil {
		file.Close()
		return fmt.Errorf("segment: read footer for segment %d: %w", n, err)
	}

	r.merged.LoadFooter(n, footer)

	r.files[n] = file
	r.footers[n] = footer
	r.footerOffsets[n] = header.FooterOffset

	return nil
}

// Locate implements chunk.Locator by delegating to the merged cross-segment index.
func (r *Reader) Locate(objectNo uint32, chunkNo uint64) (uint64, int64, bool) {
	return r.merged.Locate(objectNo, chunkNo)
}

// OpenSegment implements chunk.SegmentOpener.
func (r *Reader) OpenSegment(segmentNo uint64) (io.ReaderAt, error) {
	file, ok := r.files[segmentNo]
	if !ok {
		return nil, &errdefs.MissingSegmentError{SegmentNo: segmentNo}
	}

	return file, nil
}

// Footer returns the decoded footer for segmentNo, discovered when the segment was opened.
func (r *Reader) Footer(segmentNo uint64) (zffheader.SegmentFooter, bool) {
	footer, ok := r.footers[segmentNo]
	return footer, ok
}

// ReadRecord returns a reader positioned at offset within segmentNo, bounded by that segment's footer (every
// non-chunk record a caller resolves this way — object headers, file records, main header copies — is written
// before the footer). zffheader's envelope decoders read exactly the length they declare, so the bound only needs
// to be generous, not exact.
func (r *Reader) ReadRecord(segmentNo, offset uint64) (io.Reader, error) {
	file, ok := r.files[segmentNo]
	if !ok {
		return nil, &errdefs.MissingSegmentError{SegmentNo: segmentNo}
	}

	limit, ok := r.footerOffsets[segmentNo]
	if !ok || limit < offset {
		limit = offset
	}

	return io.NewSectionReader(file, int64(offset), int64(limit-offset)), nil
}

// SegmentNumbers returns every segment number discovered, in ascending order.
func (r *Reader) SegmentNumbers() []uint64 {
	nums := make([]uint64, 0, len(r.files))
	for n := range r.files {
		nums = append(nums, n)
	}

	for i := 1; i < len(nums); i++ {
		for j := i; j > 0 && nums[j-1] > nums[j]; j-- {
			nums[j-1], nums[j] = nums[j], nums[j-1]
		}
	}

	return nums
}

// Close closes every open segment file handle.
func (r *Reader) Close() error {
	var first error

	for _, file := range r.files {
		if err := file.Close(); err != nil && first == nil {
			first = err
		}
	}

	return first
}
