package zffheader

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/zffdev/zff/errdefs"
)

// Description identifiers (spec §3/§6): case number, evidence id, examiner, notes, acquisition start/end.
const (
	DescCaseNumber      = "cn"
	DescEvidenceID      = "ev"
	DescExaminer        = "ex"
	DescNotes           = "no"
	DescAcquisitionStart = "as"
	DescAcquisitionEnd   = "ae"
)

// descTypeString is the only type tag this implementation writes; readers tolerate unknown type tags by skipping
// the record (using the length field), so future versions can add richer types without breaking old readers.
const descTypeString uint8 = 0

// DescriptionHeader carries free-form evidence metadata, keyed by two-letter identifiers. Unknown identifiers
// encountered on decode (e.g. written by a newer version) are preserved in Unknown rather than dropped.
type DescriptionHeader struct {
	Fields  map[string]string
	Unknown map[string][]byte
}

// NewDescriptionHeader returns an empty, ready to use DescriptionHeader.
func NewDescriptionHeader() DescriptionHeader {
	return DescriptionHeader{Fields: map[string]string{}, Unknown: map[string][]byte{}}
}

// Encode writes the description header to w. Fields are emitted in a stable (sorted) order so encoding is
// deterministic, which matters for reproducible acquisition images.
func (h DescriptionHeader) Encode(w io.Writer) error {
	keys := make([]string, 0, len(h.Fields))
	for k := range h.Fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var body []byte

	for _, k := range keys {
		body = appendDescRecord(body, k, descTypeString, []byte(h.Fields[k]))
	}

	return WriteEnvelope(w, MagicDescriptionHeader, CurrentVersion, body)
}

func appendDescRecord(body []byte, id string, typeTag uint8, value []byte) []byte {
	var idBytes [2]byte

	copy(idBytes[:], id)
	body = append(body, idBytes[:]...)
	body = append(body, typeTag)
	body = binary.BigEndian.AppendUint32(body, uint32(len(value)))
	body = append(body, value...)

	return body
}

// DecodeDescriptionHeader reads and validates a description header from r.
func DecodeDescriptionHeader(r io.Reader) (DescriptionHeader, error) {
	_, body, err := ReadEnvelope(r, MagicDescriptionHeader, MaxSupportedVersion)
	if err != nil {
		return DescriptionHeader{}, err
	}

	h := NewDescriptionHeader()

	for len(body) > 0 {
		if len(body) < 7 {
			return DescriptionHeader{}, &errdefs.TrailingGarbageError{Unconsumed: len(body)}
		}

		id := string(body[0:2])
		typeTag := body[2]
		valueLen := binary.BigEndian.Uint32(body[3:7])
		body = body[7:]

		if uint32(len(body)) < valueLen {
			return DescriptionHeader{}, &errdefs.TruncatedError{Want: int(valueLen), Got: len(body)}
		}

		value := body[:valueLen]
		body = body[valueLen:]

		if typeTag == descTypeString {
			switch id {
			case DescCaseNumber, DescEvidenceID, DescExaminer, DescNotes, DescAcquisitionStart, DescAcquisitionEnd:
				h.Fields[id] = string(value)

				continue
			}
		}

		h.Unknown[id] = append([]byte(nil), value...)
	}

	return h, nil
}
