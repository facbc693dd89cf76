// Package compress implements the stateless per-chunk compress/decompress step of the zff write and read pipelines:
// Zstd and LZ4, plus the "stored raw" fallback the chunk engine applies when compression doesn't shrink a chunk.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/zffdev/zff/errdefs"
	"github.com/zffdev/zff/zffheader"
)

// Compress compresses data with the given algorithm and level. If the compressed output is not smaller than data,
// stored is true and out is data itself (unmodified): the caller should clear the chunk's compressed flag and
// store raw bytes instead (spec.md §4.3).
func Compress(algorithm uint8, level int, data []byte) (out []byte, stored bool, err error) {
	if algorithm == zffheader.CompressionNone {
		return data, true, nil
	}

	compressed, err := compressBytes(algorithm, level, data)
	if err != nil {
		return nil, false, err
	}

	if len(compressed) >= len(data) {
		return data, true, nil
	}

	return compressed, false, nil
}

// Decompress reverses Compress. expectedMax bounds the decompressed size (the chunk size) to guard against a
// corrupt or hostile length field causing unbounded memory use.
func Decompress(algorithm uint8, data []byte, expectedMax int) ([]byte, error) {
	if algorithm == zffheader.CompressionNone {
		return data, nil
	}

	switch algorithm {
	case zffheader.CompressionZstd:
		return decompressZstd(data, expectedMax)
	case zffheader.CompressionLZ4:
		return decompressLZ4(data, expectedMax)
	default:
		return nil, &errdefs.UnsupportedAlgorithmError{ID: algorithm}
	}
}

func compressBytes(algorithm uint8, level int, data []byte) ([]byte, error) {
	var buf bytes.Buffer

	var w io.WriteCloser

	switch algorithm {
	case zffheader.CompressionZstd:
		enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstdLevel(level)))
		if err != nil {
			return nil, fmt.Errorf("compress: new zstd writer: %w", err)
		}

		w = enc
	case zffheader.CompressionLZ4:
		lw := lz4.NewWriter(&buf)

		if err := lw.Apply(lz4.CompressionLevelOption(lz4Level(level))); err != nil {
			return nil, fmt.Errorf("compress: configure lz4 writer: %w", err)
		}

		w = lw
	default:
		return nil, &errdefs.UnsupportedAlgorithmError{ID: algorithm}
	}

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compress: write: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress: close: %w", err)
	}

	return buf.Bytes(), nil
}

func decompressZstd(data []byte, expectedMax int) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("compress: new zstd reader: %w", err)
	}
	defer dec.Close()

	out, err := io.ReadAll(io.LimitReader(dec, int64(expectedMax)+1))
	if err != nil {
		return nil, fmt.Errorf("compress: zstd decompress: %w", err)
	}

	if len(out) > expectedMax {
		return nil, fmt.Errorf("compress: decompressed size exceeds expected maximum of %d bytes", expectedMax)
	}

	return out, nil
}

func decompressLZ4(data []byte, expectedMax int) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))

	out, err := io.ReadAll(io.LimitReader(r, int64(expectedMax)+1))
	if err != nil {
		return nil, fmt.Errorf("compress: lz4 decompress: %w", err)
	}

	if len(out) > expectedMax {
		return nil, fmt.Errorf("compress: decompressed size exceeds expected maximum of %d bytes", expectedMax)
	}

	return out, nil
}

// zstdLevel maps a generic 1-9 level knob onto zstd's named encoder levels.
func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 3:
		return zstd.SpeedDefault
	case level <= 6:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

// lz4Level maps a generic 0-9 level knob onto lz4's named compression levels.
func lz4Level(level int) lz4.CompressionLevel {
	switch {
	case level <= 0:
		return lz4.Fast
	case level == 1:
		return lz4.Level1
	case level == 2:
		return lz4.Level2
	case level == 3:
		return lz4.Level3
	case level == 4:
		return lz4.Level4
	case level == 5:
		return lz4.Level5
	case level == 6:
		return lz4.Level6
	case level == 7:
		return lz4.Level7
	case level == 8:
		return lz4.Level8
	default:
		return lz4.Level9
	}
}
