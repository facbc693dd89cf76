package zffheader

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/zffdev/zff/errdefs"
)

// Object kind tag (spec.md §3 "Object"): a physical object is a byte-addressable source dump, a logical object is
// a file-tree dump.
const (
	ObjectPhysical uint8 = 0
	ObjectLogical  uint8 = 1
)

// Per-object signature mode (spec.md §4.2: "A per-object 'signatures' mode can also sign only the hash value, not
// every chunk").
const (
	SigNone     uint8 = 0
	SigPerChunk uint8 = 1
	SigHashOnly uint8 = 2
)

// MagicObjectHeader identifies an ObjectHeader envelope.
const MagicObjectHeader uint32 = 0x7A666F68

// ObjectHeader carries the per-object configuration the chunk engine needs to reconstruct that object's bytes: its
// kind, chunk size, compression/encryption/hash configuration, and (for a physical object) its total logical
// length.
type ObjectHeader struct {
	ObjectNo             uint32
	Kind                 uint8
	ChunkSizeExponent    uint8
	CompressionAlgorithm uint8
	CompressionLevel     uint8
	EncFlag              uint8
	Encryption           *EncryptionHeader // nil when EncFlag == EncNone
	HashAlgorithms       []uint8
	SigMode              uint8
	SigningPublicKey     []byte // nil when SigMode == SigNone; the Ed25519 public key verifying this object's signatures
	HashSignature        []byte // set only when SigMode == SigHashOnly: the signature over the object's aggregated hash digests
	TotalLength          uint64 // physical objects only; 0 for logical objects
}

// ChunkSize returns 1 << ChunkSizeExponent, the fixed plaintext size of every chunk but the last in this object.
func (h ObjectHeader) ChunkSize() uint64 {
	return 1 << h.ChunkSizeExponent
}

// Encode writes the object header to w.
func (h ObjectHeader) Encode(w io.Writer) error {
	var buf bytes.Buffer

	buf.Write(mustUint32(h.ObjectNo))
	buf.WriteByte(h.Kind)
	buf.WriteByte(h.ChunkSizeExponent)
	buf.WriteByte(h.CompressionAlgorithm)
	buf.WriteByte(h.CompressionLevel)
	buf.WriteByte(h.EncFlag)

	if h.EncFlag != EncNone {
		if err := h.Encryption.Encode(&buf); err != nil {
			return err
		}
	}

	buf.WriteByte(uint8(len(h.HashAlgorithms)))
	buf.Write(h.HashAlgorithms)
	buf.WriteByte(h.SigMode)
	buf.WriteByte(uint8(len(h.SigningPublicKey)))
	buf.Write(h.SigningPublicKey)
	buf.WriteByte(uint8(len(h.HashSignature)))
	buf.Write(h.HashSignature)
	buf.Write(mustUint64(h.TotalLength))

	return WriteEnvelope(w, MagicObjectHeader, CurrentVersion, buf.Bytes())
}

// DecodeObjectHeader reads and validates an object header from r.
func DecodeObjectHeader(r io.Reader) (ObjectHeader, error) {
	_, body, err := ReadEnvelope(r, MagicObjectHeader, MaxSupportedVersion)
	if err != nil {
		return ObjectHeader{}, err
	}

	if len(body) < 9 {
		return ObjectHeader{}, &errdefs.TruncatedError{Want: 9, Got: len(body)}
	}

	h := ObjectHeader{
		ObjectNo:             binary.BigEndian.Uint32(body[0:4]),
		Kind:                 body[4],
		ChunkSizeExponent:    body[5],
		CompressionAlgorithm: body[6],
		CompressionLevel:     body[7],
		EncFlag:              body[8],
	}

	rest := bytes.NewReader(body[9:])

	if h.EncFlag != EncNone {
		enc, err := DecodeEncryptionHeader(rest)
		if err != nil {
			return ObjectHeader{}, err
		}

		h.Encryption = &enc
	}

	hashCount, err := rest.ReadByte()
	if err != nil {
		return ObjectHeader{}, &errdefs.TruncatedError{Want: 1, Got: 0}
	}

	h.HashAlgorithms = make([]uint8, hashCount)
	if _, err := io.ReadFull(rest, h.HashAlgorithms); err != nil {
		return ObjectHeader{}, &errdefs.TruncatedError{Want: int(hashCount), Got: 0}
	}

	sigMode, err := rest.ReadByte()
	if err != nil {
		return ObjectHeader{}, &errdefs.TruncatedError{Want: 1, Got: 0}
	}

	h.SigMode = sigMode

	pubKeyLen, err := rest.ReadByte()
	if err != nil {
		return ObjectHeader{}, &errdefs.TruncatedError{Want: 1, Got: 0}
	}

	if pubKeyLen > 0 {
		h.SigningPublicKey = make([]byte, pubKeyLen)
		if _, err := io.ReadFull(rest, h.SigningPublicKey); err != nil {
			return ObjectHeader{}, &errdefs.TruncatedError{Want: int(pubKeyLen), Got: 0}
		}
	}

	hashSigLen, err := rest.ReadByte()
	if err != nil {
		return ObjectHeader{}, &errdefs.TruncatedError{Want: 1, Got: 0}
	}

	if hashSigLen > 0 {
		h.HashSignature = make([]byte, hashSigLen)
		if _, err := io.ReadFull(rest, h.HashSignature); err != nil {
			return ObjectHeader{}, &errdefs.TruncatedError{Want: int(hashSigLen), Got: 0}
		}
	}

	var totalLen [8]byte
	if _, err := io.ReadFull(rest, totalLen[:]); err != nil {
		return ObjectHeader{}, &errdefs.TruncatedError{Want: len(totalLen), Got: 0}
	}

	h.TotalLength = binary.BigEndian.Uint64(totalLen[:])

	return h, nil
}

func mustUint32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)

	return b[:]
}

func mustUint64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)

	return b[:]
}
