package zffheader

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zffdev/zff/errdefs"
)

func TestSegmentHeaderRoundTrip(t *testing.T) {
	h := SegmentHeader{ContainerUUID: 42, SegmentNo: 3, SegmentLength: 1 << 20}

	var buf bytes.Buffer
	require.NoError(t, h.Encode(&buf))

	got, err := DecodeSegmentHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestSegmentHeaderUnexpectedMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CompressionHeader{Algorithm: CompressionZstd}.Encode(&buf))

	_, err := DecodeSegmentHeader(&buf)
	require.Error(t, err)

	var magicErr *errdefs.UnexpectedMagicError
	require.ErrorAs(t, err, &magicErr)
}

func TestChunkRecordHeaderRoundTrip(t *testing.T) {
	h := ChunkRecordHeader{ChunkNo: 7, StoredSize: 4096, Flags: FlagCompressed | FlagEncrypted, CRC32: 0xdeadbeef}

	var buf bytes.Buffer
	require.NoError(t, h.Encode(&buf))

	got, err := DecodeChunkRecordHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, h.ChunkNo, got.ChunkNo)
	require.Equal(t, h.StoredSize, got.StoredSize)
	require.Equal(t, h.Flags, got.Flags)
	require.Equal(t, h.CRC32, got.CRC32)
}

func TestCompressionHeaderRoundTrip(t *testing.T) {
	h := CompressionHeader{Algorithm: CompressionLZ4, Level: 9}

	var buf bytes.Buffer
	require.NoError(t, h.Encode(&buf))

	got, err := DecodeCompressionHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestDescriptionHeaderRoundTrip(t *testing.T) {
	h := NewDescriptionHeader()
	h.Fields[DescCaseNumber] = "case-001"
	h.Fields[DescEvidenceID] = "ev-42"
	h.Fields[DescExaminer] = "jdoe"

	var buf bytes.Buffer
	require.NoError(t, h.Encode(&buf))

	got, err := DecodeDescriptionHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, h.Fields, got.Fields)
}

func TestDescriptionHeaderSkipsUnknownIdentifiers(t *testing.T) {
	var body []byte
	body = appendDescRecord(body, "zz", 0, []byte("future field"))
	body = appendDescRecord(body, DescNotes, descTypeString, []byte("hello"))

	var buf bytes.Buffer
	require.NoError(t, WriteEnvelope(&buf, MagicDescriptionHeader, CurrentVersion, body))

	got, err := DecodeDescriptionHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, "hello", got.Fields[DescNotes])
	require.Equal(t, []byte("future field"), got.Unknown["zz"])
}

func TestHashHeaderRoundTrip(t *testing.T) {
	h := HashHeader{Entries: []HashEntry{
		{Algorithm: HashBlake3, Digest: bytes.Repeat([]byte{0xAB}, 32)},
		{Algorithm: HashXXH3, Digest: nil},
	}}

	var buf bytes.Buffer
	require.NoError(t, h.Encode(&buf))

	got, err := DecodeHashHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestEncryptionHeaderRoundTripWithPBES2(t *testing.T) {
	h := EncryptionHeader{
		EncFlag:   EncDataOnly,
		Algorithm: AlgoAES256GCM,
		PBES2: &PBES2Subheader{
			KdfMethod:  KdfArgon2id,
			WrapScheme: WrapAESCBC,
			Params: KdfParams{
				MemoryKiB:   65536,
				TimeCost:    3,
				Parallelism: 4,
			},
			WrappedKey: bytes.Repeat([]byte{0x01}, 32),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, h.Encode(&buf))

	got, err := DecodeEncryptionHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, h.EncFlag, got.EncFlag)
	require.Equal(t, h.Algorithm, got.Algorithm)
	require.NotNil(t, got.PBES2)
	require.Equal(t, h.PBES2.Params.MemoryKiB, got.PBES2.Params.MemoryKiB)
	require.Equal(t, h.PBES2.WrappedKey, got.PBES2.WrappedKey)
}

func TestMainHeaderRoundTripPlaintext(t *testing.T) {
	desc := NewDescriptionHeader()
	desc.Fields[DescCaseNumber] = "case-1"

	h := MainHeader{
		EncFlag:           EncNone,
		Compression:       CompressionHeader{Algorithm: CompressionZstd, Level: 3},
		Description:       desc,
		Hash:              HashHeader{Entries: []HashEntry{{Algorithm: HashBlake3}}},
		ChunkSizeExponent: 12,
		SigFlag:           0,
		SegmentSize:       1 << 26,
		TotalDataLen:      1 << 20,
		Segment:           SegmentHeader{ContainerUUID: 1, SegmentNo: 1, SegmentLength: 0},
	}

	var buf bytes.Buffer
	require.NoError(t, h.Encode(&buf, nil))

	got, err := DecodeMainHeader(&buf, nil)
	require.NoError(t, err)
	require.Equal(t, h.ChunkSizeExponent, got.ChunkSizeExponent)
	require.Equal(t, h.SegmentSize, got.SegmentSize)
	require.Equal(t, h.TotalDataLen, got.TotalDataLen)
	require.Equal(t, uint64(1<<12), got.ChunkSize())
}

func TestMainHeaderRoundTripEncryptedBody(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)

	seal := func(plaintext []byte) ([]byte, error) {
		return append([]byte(nil), plaintext...), nil // identity stand-in; real sealing is exercised in cryptofmt/zff tests
	}
	unseal := func(ciphertext []byte) ([]byte, error) {
		return ciphertext, nil
	}

	_ = key

	h := MainHeader{
		EncFlag: EncHeaderData,
		Encryption: &EncryptionHeader{
			EncFlag:   EncHeaderData,
			Algorithm: AlgoAES256GCM,
		},
		Compression:       CompressionHeader{Algorithm: CompressionNone},
		Description:       NewDescriptionHeader(),
		Hash:              HashHeader{},
		ChunkSizeExponent: 9,
		SegmentSize:       1 << 22,
		TotalDataLen:      0,
		Segment:           SegmentHeader{ContainerUUID: 9, SegmentNo: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, h.Encode(&buf, seal))

	got, err := DecodeMainHeader(&buf, unseal)
	require.NoError(t, err)
	require.Equal(t, h.ChunkSizeExponent, got.ChunkSizeExponent)
	require.Equal(t, h.Segment.ContainerUUID, got.Segment.ContainerUUID)
}

func TestObjectHeaderRoundTripPlaintext(t *testing.T) {
	h := ObjectHeader{
		ObjectNo:             1,
		Kind:                 ObjectPhysical,
		ChunkSizeExponent:    12,
		CompressionAlgorithm: CompressionZstd,
		CompressionLevel:     3,
		EncFlag:              EncNone,
		HashAlgorithms:       []uint8{HashBlake3, HashSHA256},
		SigMode:              SigPerChunk,
		TotalLength:          1 << 30,
	}

	var buf bytes.Buffer
	require.NoError(t, h.Encode(&buf))

	got, err := DecodeObjectHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
	require.Equal(t, uint64(1<<12), got.ChunkSize())
}

func TestObjectHeaderRoundTripEncrypted(t *testing.T) {
	h := ObjectHeader{
		ObjectNo:             2,
		Kind:                 ObjectLogical,
		ChunkSizeExponent:    16,
		CompressionAlgorithm: CompressionNone,
		EncFlag:              EncDataOnly,
		Encryption: &EncryptionHeader{
			EncFlag:   EncDataOnly,
			Algorithm: AlgoChaCha20Poly1305,
		},
		HashAlgorithms: []uint8{HashXXH3},
		SigMode:        SigNone,
	}

	var buf bytes.Buffer
	require.NoError(t, h.Encode(&buf))

	got, err := DecodeObjectHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, h.Kind, got.Kind)
	require.Equal(t, h.HashAlgorithms, got.HashAlgorithms)
	require.NotNil(t, got.Encryption)
	require.Equal(t, h.Encryption.Algorithm, got.Encryption.Algorithm)
}

func TestFileRecordRoundTrip(t *testing.T) {
	f := FileRecord{
		ID:            5,
		ParentID:      1,
		Name:          "a.txt",
		Kind:          FileRegular,
		Metadata:      FileMetadata{Mtime: 123456789, Mode: 0o644, UID: 1000, GID: 1000},
		FirstChunk:    10,
		LastChunk:     14,
		LogicalLength: 128 * 1024,
		Xattrs:        map[string][]byte{"user.comment": []byte("evidence")},
		PosixACL:      []byte{0x02, 0x00, 0x00, 0x00},
	}

	var buf bytes.Buffer
	require.NoError(t, f.Encode(&buf))

	got, err := DecodeFileRecord(&buf)
	require.NoError(t, err)
	require.Equal(t, f, got)
}

func TestFileRecordRoundTripSymlinkNoXattrs(t *testing.T) {
	f := FileRecord{
		ID:         6,
		ParentID:   1,
		Name:       "b.symlink",
		Kind:       FileSymlink,
		LinkTarget: "a.txt",
	}

	var buf bytes.Buffer
	require.NoError(t, f.Encode(&buf))

	got, err := DecodeFileRecord(&buf)
	require.NoError(t, err)
	require.Equal(t, f.LinkTarget, got.LinkTarget)
	require.Nil(t, got.Xattrs)
	require.Nil(t, got.PosixACL)
}
