package zffheader

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/zffdev/zff/errdefs"
)

// Footer entry kinds: what a FooterEntry's Offset points at (spec.md §4.6 "a stream of records (object headers,
// chunk records, footers)").
const (
	FooterKindChunk        uint8 = 0
	FooterKindObjectHeader uint8 = 1
	FooterKindFileRecord   uint8 = 2
	FooterKindMainHeader   uint8 = 3
)

// FooterEntry locates one record written into a segment's byte stream. Key holds the chunk number for
// FooterKindChunk or the file id for FooterKindFileRecord; it is unused (0) for FooterKindObjectHeader and
// FooterKindMainHeader, which are keyed by ObjectNo alone (or by nothing, for the main header). Offset is the
// absolute byte offset, from the start of the segment file, of the record's own envelope.
type FooterEntry struct {
	Kind      uint8
	ObjectNo  uint32
	Key       uint64
	Offset    uint64
	StoredLen uint64
	Flags     uint8
}

const footerEntrySize = 1 + 4 + 8 + 8 + 8 + 1

// SegmentFooter is the local index a segment ends with (spec.md §4.6, §3 invariant: "Index corruption is detected
// by a CRC at the end of the footer"). It lets a reader resolve (object, chunk) pairs, discover object headers and
// file records, and find whichever copy of the main header this segment carries, without scanning the whole file.
type SegmentFooter struct {
	Entries []FooterEntry
}

// Encode writes the footer to w as one envelope: entry count, every entry, then a CRC32 over both.
func (f SegmentFooter) Encode(w io.Writer) error {
	body := make([]byte, 0, 4+len(f.Entries)*footerEntrySize+4)
	body = binary.BigEndian.AppendUint32(body, uint32(len(f.Entries)))

	for _, e := range f.Entries {
		body = append(body, e.Kind)
		body = binary.BigEndian.AppendUint32(body, e.ObjectNo)
		body = binary.BigEndian.AppendUint64(body, e.Key)
		body = binary.BigEndian.AppendUint64(body, e.Offset)
		body = binary.BigEndian.AppendUint64(body, e.StoredLen)
		body = append(body, e.Flags)
	}

	body = binary.BigEndian.AppendUint32(body, crc32.ChecksumIEEE(body))

	return WriteEnvelope(w, MagicSegmentFooter, CurrentVersion, body)
}

// DecodeSegmentFooter reads and validates a segment footer from r, rejecting it with errdefs.FooterCorruptError if
// the trailing CRC doesn't match.
func DecodeSegmentFooter(r io.Reader, segmentNo uint64) (SegmentFooter, error) {
	_, body, err := ReadEnvelope(r, MagicSegmentFooter, MaxSupportedVersion)
	if err != nil {
		return SegmentFooter{}, err
	}

	if len(body) < 8 {
		return SegmentFooter{}, &errdefs.TruncatedError{Want: 8, Got: len(body)}
	}

	payload, wantCRC := body[:len(body)-4], binary.BigEndian.Uint32(body[len(body)-4:])

	if crc32.ChecksumIEEE(payload) != wantCRC {
		return SegmentFooter{}, &errdefs.FooterCorruptError{SegmentNo: segmentNo}
	}

	rest := bytes.NewReader(payload)

	var count [4]byte
	if _, err := io.ReadFull(rest, count[:]); err != nil {
		return SegmentFooter{}, &errdefs.TruncatedError{Want: 4, Got: 0}
	}

	n := binary.BigEndian.Uint32(count[:])

	footer := SegmentFooter{Entries: make([]FooterEntry, 0, n)}

	for i := uint32(0); i < n; i++ {
		var buf [footerEntrySize]byte
		if _, err := io.ReadFull(rest, buf[:]); err != nil {
			return SegmentFooter{}, &errdefs.TruncatedError{Want: footerEntrySize, Got: 0}
		}

		footer.Entries = append(footer.Entries, FooterEntry{
			Kind:      buf[0],
			ObjectNo:  binary.BigEndian.Uint32(buf[1:5]),
			Key:       binary.BigEndian.Uint64(buf[5:13]),
			Offset:    binary.BigEndian.Uint64(buf[13:21]),
			StoredLen: binary.BigEndian.Uint64(buf[21:29]),
			Flags:     buf[29],
		})
	}

	return footer, nil
}
