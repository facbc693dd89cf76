package zffheader

import (
	"encoding/binary"
	"io"

	"github.com/zffdev/zff/errdefs"
)

// Encryption flags (spec §3 invariant 5 / §6).
const (
	EncNone       uint8 = 0
	EncDataOnly   uint8 = 1
	EncHeaderData uint8 = 2
)

// AEAD algorithm ids (spec §6).
const (
	AlgoAES128GCM        uint8 = 0
	AlgoAES256GCM        uint8 = 1
	AlgoChaCha20Poly1305 uint8 = 2
)

// KDF method ids, packed into the low bits of the PBES2 subheader's kdf_flag byte.
const (
	KdfPBKDF2   uint8 = 0
	KdfArgon2id uint8 = 1
)

// Key wrap scheme ids.
const (
	WrapAESCBC uint8 = 0
)

// KdfParams carries the parameters for whichever KDF method a PBES2Subheader names. Only the fields relevant to
// the active Method are meaningful.
type KdfParams struct {
	Salt [32]byte

	// PBKDF2
	Iterations uint32

	// Argon2id
	MemoryKiB   uint32
	TimeCost    uint32
	Parallelism uint8
}

// PBES2Subheader is the password-based key wrap: a KDF derives a key-encryption-key from the caller's password and
// the salt, which then unwraps (AES-CBC decrypts) the random data key stored in WrappedKey.
type PBES2Subheader struct {
	KdfMethod  uint8
	WrapScheme uint8
	Params     KdfParams
	IV         [16]byte
	WrappedKey []byte
}

// Encode writes the PBES2 subheader to w.
func (h PBES2Subheader) Encode(w io.Writer) error {
	body := []byte{h.KdfMethod, h.WrapScheme}
	body = append(body, h.Params.Salt[:]...)

	if h.KdfMethod == KdfArgon2id {
		body = binary.BigEndian.AppendUint32(body, h.Params.MemoryKiB)
		body = binary.BigEndian.AppendUint32(body, h.Params.TimeCost)
		body = append(body, h.Params.Parallelism)
	} else {
		body = binary.BigEndian.AppendUint32(body, h.Params.Iterations)
	}

	body = append(body, h.IV[:]...)
	body = binary.BigEndian.AppendUint32(body, uint32(len(h.WrappedKey)))
	body = append(body, h.WrappedKey...)

	return WriteEnvelope(w, MagicPBES2Subheader, CurrentVersion, body)
}

// DecodePBES2Subheader reads and validates a PBES2 subheader from r.
func DecodePBES2Subheader(r io.Reader) (PBES2Subheader, error) {
	_, body, err := ReadEnvelope(r, MagicPBES2Subheader, MaxSupportedVersion)
	if err != nil {
		return PBES2Subheader{}, err
	}

	if len(body) < 2+32 {
		return PBES2Subheader{}, &errdefs.TruncatedError{Want: 34, Got: len(body)}
	}

	h := PBES2Subheader{KdfMethod: body[0], WrapScheme: body[1]}
	copy(h.Params.Salt[:], body[2:34])
	body = body[34:]

	if h.KdfMethod == KdfArgon2id {
		if len(body) < 9 {
			return PBES2Subheader{}, &errdefs.TruncatedError{Want: 9, Got: len(body)}
		}

		h.Params.MemoryKiB = binary.BigEndian.Uint32(body[0:4])
		h.Params.TimeCost = binary.BigEndian.Uint32(body[4:8])
		h.Params.Parallelism = body[8]
		body = body[9:]
	} else {
		if len(body) < 4 {
			return PBES2Subheader{}, &errdefs.TruncatedError{Want: 4, Got: len(body)}
		}

		h.Params.Iterations = binary.BigEndian.Uint32(body[0:4])
		body = body[4:]
	}

	if len(body) < 16+4 {
		return PBES2Subheader{}, &errdefs.TruncatedError{Want: 20, Got: len(body)}
	}

	copy(h.IV[:], body[0:16])
	body = body[16:]

	wrappedLen := binary.BigEndian.Uint32(body[0:4])
	body = body[4:]

	if uint32(len(body)) < wrappedLen {
		return PBES2Subheader{}, &errdefs.TruncatedError{Want: int(wrappedLen), Got: len(body)}
	}

	h.WrappedKey = append([]byte(nil), body[:wrappedLen]...)

	return h, nil
}

// EncryptionHeader describes how chunk payloads (and, if EncFlag==EncHeaderData, the rest of the main header) are
// protected. NoncePrefix is reserved per spec.md §9's open question on nonce derivation; this implementation
// derives nonces purely from (object_no, chunk_no) and leaves NoncePrefix zeroed, but carries the field so a future
// version combining a random prefix with the deterministic counter can do so without a format break.
type EncryptionHeader struct {
	EncFlag     uint8
	Algorithm   uint8
	NoncePrefix [12]byte
	PBES2       *PBES2Subheader // nil when a raw data key is supplied directly instead of via a password
}

// Encode writes the encryption header to w.
func (h EncryptionHeader) Encode(w io.Writer) error {
	body := []byte{h.EncFlag, h.Algorithm}
	body = append(body, h.NoncePrefix[:]...)

	hasPBES2 := byte(0)
	if h.PBES2 != nil {
		hasPBES2 = 1
	}

	body = append(body, hasPBES2)

	if err := WriteEnvelope(w, MagicEncryptionHeader, CurrentVersion, body); err != nil {
		return err
	}

	if h.PBES2 != nil {
		return h.PBES2.Encode(w)
	}

	return nil
}

// DecodeEncryptionHeader reads and validates an encryption header (and its PBES2 subheader, if present) from r.
func DecodeEncryptionHeader(r io.Reader) (EncryptionHeader, error) {
	_, body, err := ReadEnvelope(r, MagicEncryptionHeader, MaxSupportedVersion)
	if err != nil {
		return EncryptionHeader{}, err
	}

	if len(body) < 15 {
		return EncryptionHeader{}, &errdefs.TruncatedError{Want: 15, Got: len(body)}
	}

	h := EncryptionHeader{EncFlag: body[0], Algorithm: body[1]}
	copy(h.NoncePrefix[:], body[2:14])

	if body[14] != 0 {
		sub, err := DecodePBES2Subheader(r)
		if err != nil {
			return EncryptionHeader{}, err
		}

		h.PBES2 = &sub
	}

	return h, nil
}
