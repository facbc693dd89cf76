package segment

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zffdev/zff/chunk"
	"github.com/zffdev/zff/segindex"
	"github.com/zffdev/zff/zffheader"
)

func TestWriterRolloverProducesMultipleSegments(t *testing.T) {
	stem := filepath.Join(t.TempDir(), "image")

	merged := segindex.NewMerged()

	sw, err := NewWriter(stem, 42, 64, merged) // tiny budget forces rollover
	require.NoError(t, err)

	opts := chunk.EngineOptions{ObjectNo: 0, ChunkSize: 16, Workers: 1}

	cw, err := chunk.NewWriter(sw, opts)
	require.NoError(t, err)

	data := bytes.Repeat([]byte("abcdefgh12345678"), 10)

	for i := 0; i < len(data); i += 16 {
		_, err := cw.Write(data[i : i+16])
		require.NoError(t, err)
	}

	_, lastChunk, err := cw.Close()
	require.NoError(t, err)

	require.NoError(t, sw.Close())
	require.Greater(t, sw.SegmentCount(), 1)

	reader, err := Open(stem)
	require.NoError(t, err)
	defer reader.Close()

	ropts := opts
	cr, err := chunk.NewReader(reader, reader, ropts)
	require.NoError(t, err)

	var out bytes.Buffer

	for chunkNo := uint64(0); chunkNo <= lastChunk; chunkNo++ {
		plain, err := cr.ReadChunk(0, chunkNo, 16)
		require.NoError(t, err)
		out.Write(plain)
	}

	require.Equal(t, data, out.Bytes())
}

func TestOpenMissingContainerReturnsMissingSegment(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nonexistent"))
	require.Error(t, err)
}

func TestSegmentHeaderLengthBackpatched(t *testing.T) {
	stem := filepath.Join(t.TempDir(), "image")

	sw, err := NewWriter(stem, 7, 0, nil)
	require.NoError(t, err)

	sink := sw

	rec := &chunk.Record{
		Header: zffheader.ChunkRecordHeader{ChunkNo: 0, StoredSize: 3, Flags: 0, CRC32: 0},
		Payload: []byte{1, 2, 3},
	}

	require.NoError(t, sink.WriteChunkRecord(0, rec))
	require.NoError(t, sw.Close())

	reader, err := Open(stem)
	require.NoError(t, err)
	defer reader.Close()

	require.Equal(t, []uint64{1}, reader.SegmentNumbers())
}
