package zffheader

import (
	"encoding/binary"
	"io"

	"github.com/zffdev/zff/errdefs"
)

// Chunk flags, packed into a single byte. They describe what was done to the chunk's payload and how to reverse
// the pipeline on read.
const (
	FlagCompressed uint8 = 1 << iota
	FlagEncrypted
	FlagSigned
	FlagSameBytes

	// FlagDegraded marks a chunk that replaces source bytes the acquisition coordinator could not read after
	// exhausting its retry budget (spec.md §7, §9 "Resumable acquisition"); the payload is zero-filled.
	FlagDegraded
)

// SignatureSize is the length in bytes of an Ed25519 signature.
const SignatureSize = 64

// ChunkRecordHeader precedes every chunk's payload bytes on disk. It does not include the payload itself; callers
// read `StoredSize` bytes (plus `SignatureSize` more if FlagSigned is set) immediately following the header.
type ChunkRecordHeader struct {
	ChunkNo    uint64
	StoredSize uint64
	Flags      uint8
	CRC32      uint32
	Signature  [SignatureSize]byte // valid only when Flags&FlagSigned != 0
}

// Encode writes the chunk record header to w. It does not write the payload or signature bytes.
func (h ChunkRecordHeader) Encode(w io.Writer) error {
	body := make([]byte, 0, 21)
	body = binary.BigEndian.AppendUint64(body, h.ChunkNo)
	body = binary.BigEndian.AppendUint64(body, h.StoredSize)
	body = append(body, h.Flags)
	body = binary.BigEndian.AppendUint32(body, h.CRC32)

	return WriteEnvelope(w, MagicChunkRecord, CurrentVersion, body)
}

// DecodeChunkRecordHeader reads and validates a chunk record header from r. The Signature field is left zero; the
// chunk package reads the signature bytes itself immediately after the header when FlagSigned is set.
func DecodeChunkRecordHeader(r io.Reader) (ChunkRecordHeader, error) {
	_, body, err := ReadEnvelope(r, MagicChunkRecord, MaxSupportedVersion)
	if err != nil {
		return ChunkRecordHeader{}, err
	}

	if len(body) < 21 {
		return ChunkRecordHeader{}, &errdefs.TruncatedError{Want: 21, Got: len(body)}
	}

	return ChunkRecordHeader{
		ChunkNo:    binary.BigEndian.Uint64(body[0:8]),
		StoredSize: binary.BigEndian.Uint64(body[8:16]),
		Flags:      body[16],
		CRC32:      binary.BigEndian.Uint32(body[17:21]),
	}, nil
}
