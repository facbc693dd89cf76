package zffheader

import (
	"io"

	"github.com/zffdev/zff/errdefs"
)

// Compression algorithm ids (spec §6).
const (
	CompressionNone uint8 = 0
	CompressionZstd uint8 = 1
	CompressionLZ4  uint8 = 2
)

// CompressionHeader records the algorithm and level applied uniformly to every chunk of an object.
type CompressionHeader struct {
	Algorithm uint8
	Level     uint8
}

// Encode writes the compression header to w.
func (h CompressionHeader) Encode(w io.Writer) error {
	return WriteEnvelope(w, MagicCompressionHeader, CurrentVersion, []byte{h.Algorithm, h.Level})
}

// DecodeCompressionHeader reads and validates a compression header from r.
func DecodeCompressionHeader(r io.Reader) (CompressionHeader, error) {
	_, body, err := ReadEnvelope(r, MagicCompressionHeader, MaxSupportedVersion)
	if err != nil {
		return CompressionHeader{}, err
	}

	if len(body) < 2 {
		return CompressionHeader{}, &errdefs.TruncatedError{Want: 2, Got: len(body)}
	}

	return CompressionHeader{Algorithm: body[0], Level: body[1]}, nil
}
