package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zffdev/zff/zffheader"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	for _, algo := range []uint8{zffheader.CompressionZstd, zffheader.CompressionLZ4} {
		data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)

		out, stored, err := Compress(algo, 3, data)
		require.NoError(t, err)
		require.False(t, stored)
		require.Less(t, len(out), len(data))

		got, err := Decompress(algo, out, len(data))
		require.NoError(t, err)
		require.Equal(t, data, got)
	}
}

func TestCompressFallsBackToStoredRawOnIncompressibleData(t *testing.T) {
	random := make([]byte, 256)
	for i := range random {
		random[i] = byte(i*97 + 53)
	}

	out, stored, err := Compress(zffheader.CompressionZstd, 3, random)
	require.NoError(t, err)

	if stored {
		require.Equal(t, random, out)
	}
}

func TestCompressNoneIsIdentity(t *testing.T) {
	data := []byte("hello world")

	out, stored, err := Compress(zffheader.CompressionNone, 0, data)
	require.NoError(t, err)
	require.True(t, stored)
	require.Equal(t, data, out)

	got, err := Decompress(zffheader.CompressionNone, out, len(data))
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestDecompressUnsupportedAlgorithm(t *testing.T) {
	_, err := Decompress(99, []byte{}, 10)
	require.Error(t, err)
}
