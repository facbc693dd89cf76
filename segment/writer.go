package segment

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/zffdev/zff/chunk"
	"github.com/zffdev/zff/fsio"
	"github.com/zffdev/zff/segindex"
	"github.com/zffdev/zff/zffheader"
)

// Writer appends records to a rolling sequence of segment files, finalizing the current one and opening the next
// whenever the next record would exceed the configured size budget (spec.md §4.6). It implements chunk.Sink, so a
// chunk.Writer can dispatch directly into it. Every record it writes — chunk records, object headers, file
// records, and the main header copies a ContainerBuilder writes at HeaderWritten and at Seal — is tracked in
// footerEntries and flushed as the segment's trailing footer when the segment finalizes.
type Writer struct {
	stem          string
	containerUUID int64
	budget        uint64

	mu            sync.Mutex
	segmentNo     uint64
	file          *os.File
	written       uint64
	headerLen     int64
	footerEntries []zffheader.FooterEntry
	merged        *segindex.Merged
	segmentNos    []uint64
}

var _ chunk.Sink = (*Writer)(nil)

// NewWriter opens (creating) the first segment of a new container. merged may be nil if the caller doesn't need a
// live cross-segment index (e.g. a one-shot acquisition that will reopen the container for reading afterwards).
func NewWriter(stem string, containerUUID int64, sizeBudget uint64, merged *segindex.Merged) (*Writer, error) {
	w := &Writer{
		stem:          stem,
		containerUUID: containerUUID,
		budget:        sizeBudget,
		merged:        merged,
	}

	if err := w.openSegment(1); err != nil {
		return nil, err
	}

	return w, nil
}

// NewAppendWriter opens a new segment, numbered startSegmentNo, onto an already-sealed container (spec.md §3
// Lifecycle, container append: "writes a new segment, updates the container index, and re-seals"). Earlier
// segments are left untouched; the caller must pick a startSegmentNo one past the highest segment already on disk.
func NewAppendWriter(stem string, containerUUID int64, sizeBudget uint64, merged *segindex.Merged, startSegmentNo uint64) (*Writer, error) {
	w := &Writer{
		stem:          stem,
		containerUUID: containerUUID,
		budget:        sizeBudget,
		merged:        merged,
	}

	if err := w.openSegment(startSegmentNo); err != nil {
		return nil, err
	}

	return w, nil
}

func (w *Writer) openSegment(segmentNo uint64) error {
	file, err := fsio.Create(Path(w.stem, segmentNo))
	if err != nil {
		return fmt.Errorf("segment: create segment %d: %w", segmentNo, err)
	}

	header := zffheader.SegmentHeader{ContainerUUID: w.containerUUID, SegmentNo: segmentNo}

	var buf bytes.Buffer
	if err := header.Encode(&buf); err != nil {
		file.Close()
		return fmt.Errorf("segment: encode header for segment %d: %w", segmentNo, err)
	}

	if _, err := file.Write(buf.Bytes()); err != nil {
		file.Close()
		return fmt.Errorf("segment: write header for segment %d: %w", segmentNo, err)
	}

	w.segmentNo = segmentNo
	w.file = file
	w.written = uint64(buf.Len())
	w.headerLen = int64(buf.Len())
	w.footerEntries = nil
	w.segmentNos = append(w.segmentNos, segmentNo)

	return nil
}

// appendRecord rolls the segment over first if a non-empty segment can't fit len(data) more bytes, then writes
// data at the current end of file and returns the offset it landed at. Records must not be split across segments
// (spec.md §4.6).
func (w *Writer) appendRecord(data []byte) (uint64, error) {
	if w.written > uint64(w.headerLen) && w.budget > 0 && w.written+uint64(len(data)) > w.budget {
		if err := w.rollover(); err != nil {
			return 0, err
		}
	}

	offset := w.written

	if _, err := w.file.Write(data); err != nil {
		return 0, fmt.Errorf("segment: write record to segment %d: %w", w.segmentNo, err)
	}

	w.written += uint64(len(data))

	return offset, nil
}

// WriteChunkRecord implements chunk.Sink.
func (w *Writer) WriteChunkRecord(objectNo uint32, rec *chunk.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var buf bytes.Buffer
	if err := rec.Encode(&buf); err != nil {
		return fmt.Errorf("segment: encode chunk record: %w", err)
	}

	offset, err := w.appendRecord(buf.Bytes())
	if err != nil {
		return err
	}

	segmentNo := w.segmentNo

	entry := zffheader.FooterEntry{
		Kind: zffheader.FooterKindChunk, ObjectNo: objectNo, Key: rec.Header.ChunkNo,
		Offset: offset, StoredLen: rec.Header.StoredSize, Flags: rec.Header.Flags,
	}
	w.footerEntries = append(w.footerEntries, entry)

	if w.merged != nil {
		w.merged.Record(segmentNo, objectNo, rec.Header.ChunkNo,
			segindex.Entry{Offset: int64(offset), StoredLen: entry.StoredLen, Flags: entry.Flags})
	}

	return nil
}

// WriteObjectHeader appends an encoded object header record to the segment stream (spec.md §4.6 "a stream of
// records (object headers, chunk records, footers)").
func (w *Writer) WriteObjectHeader(header zffheader.ObjectHeader) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var buf bytes.Buffer
	if err := header.Encode(&buf); err != nil {
		return fmt.Errorf("segment: encode object header %d: %w", header.ObjectNo, err)
	}

	offset, err := w.appendRecord(buf.Bytes())
	if err != nil {
		return err
	}

	w.footerEntries = append(w.footerEntries, zffheader.FooterEntry{
		Kind: zffheader.FooterKindObjectHeader, ObjectNo: header.ObjectNo, Offset: offset,
	})

	return nil
}

// WriteFileRecord appends an encoded file record belonging to objectNo to the segment stream.
func (w *Writer) WriteFileRecord(objectNo uint32, rec zffheader.FileRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var buf bytes.Buffer
	if err := rec.Encode(&buf); err != nil {
		return fmt.Errorf("segment: encode file record %d/%d: %w", objectNo, rec.ID, err)
	}

	offset, err := w.appendRecord(buf.Bytes())
	if err != nil {
		return err
	}

	w.footerEntries = append(w.footerEntries, zffheader.FooterEntry{
		Kind: zffheader.FooterKindFileRecord, ObjectNo: objectNo, Key: rec.ID, Offset: offset,
	})

	return nil
}

// WriteMainHeader appends an already-encoded main header envelope to the segment stream: once at HeaderWritten
// (a placeholder, before any data key's canary exists) and once more as the last record before Seal's segment
// finalizes (the authoritative copy, with final totals and the canary). A reader resolves the authoritative main
// header by taking the last FooterKindMainHeader entry found scanning every segment's footer in ascending order,
// which naturally prefers this call's later copy and falls back to an earlier one if a later segment is missing.
func (w *Writer) WriteMainHeader(encoded []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	offset, err := w.appendRecord(encoded)
	if err != nil {
		return err
	}

	w.footerEntries = append(w.footerEntries, zffheader.FooterEntry{
		Kind: zffheader.FooterKindMainHeader, Offset: offset,
	})

	return nil
}

// rollover finalizes the current segment and opens the next one, incrementing the segment number.
func (w *Writer) rollover() error {
	if err := w.finalizeLocked(); err != nil {
		return err
	}

	return w.openSegment(w.segmentNo + 1)
}

// finalizeLocked appends the segment's footer (the local index of everything written into it), back-patches the
// segment header with the final segment length and footer offset, syncs, and closes the segment file.
func (w *Writer) finalizeLocked() error {
	footer := zffheader.SegmentFooter{Entries: w.footerEntries}

	var footerBuf bytes.Buffer
	if err := footer.Encode(&footerBuf); err != nil {
		return fmt.Errorf("segment: encode footer for segment %d: %w", w.segmentNo, err)
	}

	footerOffset := w.written

	if _, err := w.file.Write(footerBuf.Bytes()); err != nil {
		return fmt.Errorf("segment: write footer for segment %d: %w", w.segmentNo, err)
	}

	w.written += uint64(footerBuf.Len())

	header := zffheader.SegmentHeader{
		ContainerUUID: w.containerUUID,
		SegmentNo:     w.segmentNo,
		SegmentLength: w.written,
		FooterOffset:  footerOffset,
	}

	var buf bytes.Buffer
	if err := header.Encode(&buf); err != nil {
		return fmt.Errorf("segment: re-encode header for segment %d: %w", w.segmentNo, err)
	}

	if int64(buf.Len()) != w.headerLen {
		return fmt.Errorf("segment: header length changed on back-patch for segment %d", w.segmentNo)
	}

	if _, err := w.file.WriteAt(buf.Bytes(), 0); err != nil {
		return fmt.Errorf("segment: back-patch header for segment %d: %w", w.segmentNo, err)
	}

	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("segment: sync segment %d: %w", w.segmentNo, err)
	}

	return w.file.Close()
}

// Close finalizes the current (final) segment. Call once, after every object has been closed.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.finalizeLocked()
}

// SegmentCount returns the number of segment files created so far.
func (w *Writer) SegmentCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.segmentNos)
}
