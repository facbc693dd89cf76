package object

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zffdev/zff/zffheader"
)

func TestChunkAllocatorReservesContiguousRanges(t *testing.T) {
	var a ChunkAllocator

	first, last := a.Reserve(5)
	require.Equal(t, uint64(0), first)
	require.Equal(t, uint64(4), last)

	first, last = a.Reserve(3)
	require.Equal(t, uint64(5), first)
	require.Equal(t, uint64(7), last)

	require.Equal(t, uint64(8), a.Next())
}

func TestNewPhysicalObject(t *testing.T) {
	o := NewPhysical(0, 1<<20, Config{
		ChunkSizeExponent:    12,
		CompressionAlgorithm: zffheader.CompressionZstd,
		HashAlgorithms:       []uint8{zffheader.HashBlake3},
	})

	require.Equal(t, zffheader.ObjectPhysical, o.Header.Kind)
	require.Equal(t, uint64(1<<20), o.Header.TotalLength)

	first, last := ChunkRange(o.Header.TotalLength, o.Header.ChunkSize())
	require.Equal(t, uint64(0), first)
	require.Equal(t, uint64((1<<20)/(1<<12)-1), last)
}

func TestLogicalObjectAddFile(t *testing.T) {
	o := NewLogical(1, Config{ChunkSizeExponent: 16})

	var alloc ChunkAllocator

	first, last := alloc.Reserve(2)

	err := o.AddFile(zffheader.FileRecord{
		ID:            1,
		ParentID:      zffheader.RootParentID,
		Name:          "a.txt",
		Kind:          zffheader.FileRegular,
		FirstChunk:    first,
		LastChunk:     last,
		LogicalLength: 100000,
	})
	require.NoError(t, err)

	got, ok := o.FileByID(1)
	require.True(t, ok)
	require.Equal(t, "a.txt", got.Name)

	_, ok = o.FileByID(99)
	require.False(t, ok)
}

func TestAddFileRejectsPhysicalObject(t *testing.T) {
	o := NewPhysical(0, 100, Config{ChunkSizeExponent: 12})

	err := o.AddFile(zffheader.FileRecord{ID: 1})
	require.Error(t, err)
}
