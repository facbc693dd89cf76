// Package chunk implements the write and read pipelines described in spec.md §4.4/§4.5: fixed-size chunking,
// compress→encrypt→sign on write, and locate→verify→decrypt→decompress on read.
package chunk

import (
	"io"

	"github.com/zffdev/zff/errdefs"
	"github.com/zffdev/zff/zffheader"
)

// Record is a decoded chunk: its header (with signature, when present) and stored payload bytes.
type Record struct {
	Header  zffheader.ChunkRecordHeader
	Payload []byte
}

// Encode writes the chunk record (header, optional signature, payload) to w.
func (r *Record) Encode(w io.Writer) error {
	if err := r.Header.Encode(w); err != nil {
		return err
	}

	if r.Header.Flags&zffheader.FlagSigned != 0 {
		if _, err := w.Write(r.Header.Signature[:]); err != nil {
			return err
		}
	}

	_, err := w.Write(r.Payload)

	return err
}

// DecodeRecord reads a chunk record (header, optional signature, payload) from r.
func DecodeRecord(r io.Reader) (*Record, error) {
	header, err := zffheader.DecodeChunkRecordHeader(r)
	if err != nil {
		return nil, err
	}

	if header.Flags&zffheader.FlagSigned != 0 {
		if _, err := io.ReadFull(r, header.Signature[:]); err != nil {
			return nil, &errdefs.TruncatedError{Want: zffheader.SignatureSize, Got: 0}
		}
	}

	payload := make([]byte, header.StoredSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, &errdefs.TruncatedError{Want: int(header.StoredSize), Got: 0}
	}

	return &Record{Header: header, Payload: payload}, nil
}

// Sink receives finished chunk records from the Writer's serial committer, in strictly increasing chunk-number
// order for a given object. Implemented by segment.Writer.
type Sink interface {
	WriteChunkRecord(objectNo uint32, rec *Record) error
}

// sameByteValue returns (b, true) if every byte in data equals b; data must be non-empty.
func sameByteValue(data []byte) (byte, bool) {
	if len(data) == 0 {
		return 0, false
	}

	first := data[0]

	for _, b := range data[1:] {
		if b != first {
			return 0, false
		}
	}

	return first, true
}
