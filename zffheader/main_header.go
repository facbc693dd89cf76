package zffheader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zffdev/zff/errdefs"
)

// MinChunkSizeExponent and MaxChunkSizeExponent bound chunk_size_exponent (spec §6: "valid range 9..=24").
const (
	MinChunkSizeExponent uint8 = 9
	MaxChunkSizeExponent uint8 = 24
)

// MainHeader is the outer header of a zff container, written once at HeaderWritten and rewritten with final totals
// at Sealed (spec §3 Lifecycle).
type MainHeader struct {
	EncFlag     uint8
	Encryption  *EncryptionHeader // nil when EncFlag == EncNone
	Compression CompressionHeader
	Description DescriptionHeader
	Hash        HashHeader

	ChunkSizeExponent uint8
	SigFlag           uint8
	SegmentSize       uint64
	TotalDataLen      uint64

	// Canary is the AEAD ciphertext of a fixed plaintext marker under the container's data key, checked on unlock
	// before any object reader is handed to the caller (spec.md §4.8). Empty for an unencrypted container, and
	// for the initial placeholder copy a builder writes at HeaderWritten before a data key's canary exists.
	Canary []byte

	Segment SegmentHeader
}

// ChunkSize returns 1 << ChunkSizeExponent.
func (h MainHeader) ChunkSize() uint64 {
	return 1 << h.ChunkSizeExponent
}

// Encode writes the main header to w, either in the clear or (if EncFlag == EncHeaderData) as an opaque AEAD
// ciphertext wrapped in a second envelope under MagicEncryptedMainHdr, per spec.md §3 invariant 5. sealFn, when
// EncFlag == EncHeaderData, encrypts the plaintext body and returns the ciphertext; it is supplied by the
// cryptofmt-aware caller since zffheader itself has no key material.
func (h MainHeader) Encode(w io.Writer, sealFn func(plaintext []byte) ([]byte, error)) error {
	var buf bytes.Buffer

	buf.WriteByte(h.EncFlag)

	if h.Encryption != nil {
		if err := h.Encryption.Encode(&buf); err != nil {
			return err
		}
	}

	if h.EncFlag == EncHeaderData {
		// Everything from here on is itself AEAD ciphertext; encrypt it and wrap in the second envelope.
		var rest bytes.Buffer

		if err := h.encodeRest(&rest); err != nil {
			return err
		}

		ciphertext, err := sealFn(rest.Bytes())
		if err != nil {
			return fmt.Errorf("zffheader: seal main header: %w", err)
		}

		if err := WriteEnvelope(w, MagicMainHeader, CurrentVersion, buf.Bytes()); err != nil {
			return err
		}

		return WriteEnvelope(w, MagicEncryptedMainHdr, CurrentVersion, ciphertext)
	}

	if err := h.encodeRest(&buf); err != nil {
		return err
	}

	return WriteEnvelope(w, MagicMainHeader, CurrentVersion, buf.Bytes())
}

func (h MainHeader) encodeRest(buf *bytes.Buffer) error {
	if err := h.Compression.Encode(buf); err != nil {
		return err
	}

	if err := h.Description.Encode(buf); err != nil {
		return err
	}

	if err := h.Hash.Encode(buf); err != nil {
		return err
	}

	buf.WriteByte(h.ChunkSizeExponent)
	buf.WriteByte(h.SigFlag)

	var tail [16]byte
	binary.BigEndian.PutUint64(tail[0:8], h.SegmentSize)
	binary.BigEndian.PutUint64(tail[8:16], h.TotalDataLen)
	buf.Write(tail[:])

	var canaryLen [4]byte
	binary.BigEndian.PutUint32(canaryLen[:], uint32(len(h.Canary)))
	buf.Write(canaryLen[:])
	buf.Write(h.Canary)

	return h.Segment.Encode(buf)
}

// DecodeMainHeader reads and validates a main header from r. unsealFn is invoked to decrypt the
// MagicEncryptedMainHdr payload when EncFlag == EncHeaderData; it may be nil for any other EncFlag. With
// EncFlag == EncHeaderData and a nil unsealFn, DecodeMainHeader returns an error and no header fields.
func DecodeMainHeader(r io.Reader, unsealFn func(ciphertext []byte) ([]byte, error)) (MainHeader, error) {
	_, body, err := ReadEnvelope(r, MagicMainHeader, MaxSupportedVersion)
	if err != nil {
		return MainHeader{}, err
	}

	if len(body) < 1 {
		return MainHeader{}, &errdefs.TruncatedError{Want: 1, Got: 0}
	}

	h := MainHeader{EncFlag: body[0]}
	rest := bytes.NewReader(body[1:])

	if h.EncFlag != EncNone {
		enc, err := DecodeEncryptionHeader(rest)
		if err != nil {
			return MainHeader{}, err
		}

		h.Encryption = &enc
	}

	if h.EncFlag == EncHeaderData {
		if unsealFn == nil {
			return MainHeader{}, fmt.Errorf("zffheader: main header body is encrypted, no unseal function supplied")
		}

		_, ciphertext, err := ReadEnvelope(r, MagicEncryptedMainHdr, MaxSupportedVersion)
		if err != nil {
			return MainHeader{}, err
		}

		plaintext, err := unsealFn(ciphertext)
		if err != nil {
			return MainHeader{}, fmt.Errorf("zffheader: unseal main header: %w", err)
		}

		rest = bytes.NewReader(plaintext)
	}

	if err := h.decodeRest(rest); err != nil {
		return MainHeader{}, err
	}

	return h, nil
}

func (h *MainHeader) decodeRest(r *bytes.Reader) error {
	compression, err := DecodeCompressionHeader(r)
	if err != nil {
		return err
	}

	h.Compression = compression

	description, err := DecodeDescriptionHeader(r)
	if err != nil {
		return err
	}

	h.Description = description

	hash, err := DecodeHashHeader(r)
	if err != nil {
		return err
	}

	h.Hash = hash

	var tail [18]byte
	if _, err := io.ReadFull(r, tail[:]); err != nil {
		return &errdefs.TruncatedError{Want: len(tail), Got: 0}
	}

	h.ChunkSizeExponent = tail[0]
	h.SigFlag = tail[1]
	h.SegmentSize = binary.BigEndian.Uint64(tail[2:10])
	h.TotalDataLen = binary.BigEndian.Uint64(tail[10:18])

	var canaryLen [4]byte
	if _, err := io.ReadFull(r, canaryLen[:]); err != nil {
		return &errdefs.TruncatedError{Want: len(canaryLen), Got: 0}
	}

	if n := binary.BigEndian.Uint32(canaryLen[:]); n > 0 {
		h.Canary = make([]byte, n)
		if _, err := io.ReadFull(r, h.Canary); err != nil {
			return &errdefs.TruncatedError{Want: int(n), Got: 0}
		}
	}

	segment, err := DecodeSegmentHeader(r)
	if err != nil {
		return err
	}

	h.Segment = segment

	return nil
}
