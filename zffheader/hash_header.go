package zffheader

import (
	"encoding/binary"
	"io"

	"github.com/zffdev/zff/errdefs"
)

// Hash type ids (spec §6).
const (
	HashBlake2b512 uint8 = 0
	HashSHA256     uint8 = 1
	HashSHA512     uint8 = 2
	HashSHA3_256   uint8 = 3
	HashBlake3     uint8 = 4
	HashXXH3       uint8 = 5
)

// HashEntry pairs a hash algorithm with its expected digest, computed streaming over the reconstructed object
// during acquisition. Digest is nil until the object is sealed.
type HashEntry struct {
	Algorithm uint8
	Digest    []byte
}

// HashHeader is the ordered list of hash algorithms configured for an object.
type HashHeader struct {
	Entries []HashEntry
}

// Encode writes the hash header to w.
func (h HashHeader) Encode(w io.Writer) error {
	body := binary.BigEndian.AppendUint32(nil, uint32(len(h.Entries)))

	for _, e := range h.Entries {
		body = append(body, e.Algorithm)

		if e.Digest == nil {
			body = append(body, 0)

			continue
		}

		body = append(body, 1, byte(len(e.Digest)))
		body = append(body, e.Digest...)
	}

	return WriteEnvelope(w, MagicHashHeader, CurrentVersion, body)
}

// DecodeHashHeader reads and validates a hash header from r.
func DecodeHashHeader(r io.Reader) (HashHeader, error) {
	_, body, err := ReadEnvelope(r, MagicHashHeader, MaxSupportedVersion)
	if err != nil {
		return HashHeader{}, err
	}

	if len(body) < 4 {
		return HashHeader{}, &errdefs.TruncatedError{Want: 4, Got: len(body)}
	}

	count := binary.BigEndian.Uint32(body[0:4])
	body = body[4:]

	entries := make([]HashEntry, 0, count)

	for i := uint32(0); i < count; i++ {
		if len(body) < 2 {
			return HashHeader{}, &errdefs.TruncatedError{Want: 2, Got: len(body)}
		}

		algo := body[0]
		present := body[1]
		body = body[2:]

		entry := HashEntry{Algorithm: algo}

		if present != 0 {
			if len(body) < 1 {
				return HashHeader{}, &errdefs.TruncatedError{Want: 1, Got: 0}
			}

			digestLen := int(body[0])
			body = body[1:]

			if len(body) < digestLen {
				return HashHeader{}, &errdefs.TruncatedError{Want: digestLen, Got: len(body)}
			}

			entry.Digest = append([]byte(nil), body[:digestLen]...)
			body = body[digestLen:]
		}

		entries = append(entries, entry)
	}

	return HashHeader{Entries: entries}, nil
}
