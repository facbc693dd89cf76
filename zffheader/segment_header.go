package zffheader

import (
	"encoding/binary"
	"io"

	"github.com/zffdev/zff/errdefs"
)

// SegmentHeader opens every segment file: container_uuid ties the file to its container, segment_no is its
// position in the `.z01, .z02, ...` sequence, segment_length and footer_offset are back-patched once the segment
// is finalized and its footer written (spec.md §4.6 "Ends with a segment footer containing the local index").
type SegmentHeader struct {
	ContainerUUID int64
	SegmentNo     uint64
	SegmentLength uint64
	FooterOffset  uint64
}

// Encode writes the segment header to w.
func (h SegmentHeader) Encode(w io.Writer) error {
	body := make([]byte, 0, 32)
	body = binary.BigEndian.AppendUint64(body, uint64(h.ContainerUUID))
	body = binary.BigEndian.AppendUint64(body, h.SegmentNo)
	body = binary.BigEndian.AppendUint64(body, h.SegmentLength)
	body = binary.BigEndian.AppendUint64(body, h.FooterOffset)

	return WriteEnvelope(w, MagicSegmentHeader, CurrentVersion, body)
}

// DecodeSegmentHeader reads and validates a segment header from r.
func DecodeSegmentHeader(r io.Reader) (SegmentHeader, error) {
	_, body, err := ReadEnvelope(r, MagicSegmentHeader, MaxSupportedVersion)
	if err != nil {
		return SegmentHeader{}, err
	}

	if len(body) < 32 {
		return SegmentHeader{}, &errdefs.TruncatedError{Want: 32, Got: len(body)}
	}

	return SegmentHeader{
		ContainerUUID: int64(binary.BigEndian.Uint64(body[0:8])),
		SegmentNo:     binary.BigEndian.Uint64(body[8:16]),
		SegmentLength: binary.BigEndian.Uint64(body[16:24]),
		FooterOffset:  binary.BigEndian.Uint64(body[24:32]),
	}, nil
}
