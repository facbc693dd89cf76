package zff

import "github.com/zffdev/zff/zffheader"

// EncryptionMode configures password-based encryption for every object a ContainerBuilder opens. Leave the
// BuilderConfig's Encryption field nil for an unencrypted container.
type EncryptionMode struct {
	// Algorithm is one of zffheader.AlgoAES128GCM, AlgoAES256GCM, AlgoChaCha20Poly1305.
	Algorithm uint8

	Password []byte

	// KdfMethod selects zffheader.KdfPBKDF2 or zffheader.KdfArgon2id.
	KdfMethod uint8

	// PBKDF2Iterations is used when KdfMethod == zffheader.KdfPBKDF2. Defaults to 600000 if zero.
	PBKDF2Iterations uint32

	// Argon2 parameters, used when KdfMethod == zffheader.KdfArgon2id. Default to 64MiB/1 pass/4 lanes if zero.
	Argon2MemoryKiB   uint32
	Argon2TimeCost    uint32
	Argon2Parallelism uint8

	// EncryptHeaderBody additionally wraps everything past the encryption subheader in the main header as AEAD
	// ciphertext (spec.md §3 invariant 5, EncFlag == EncHeaderData) instead of leaving it in the clear
	// (EncFlag == EncDataOnly).
	EncryptHeaderBody bool
}

func (m *EncryptionMode) pbkdf2Iterations() uint32 {
	if m.PBKDF2Iterations == 0 {
		return 600000
	}

	return m.PBKDF2Iterations
}

func (m *EncryptionMode) argon2Params() (memoryKiB, timeCost uint32, parallelism uint8) {
	memoryKiB, timeCost, parallelism = m.Argon2MemoryKiB, m.Argon2TimeCost, m.Argon2Parallelism

	if memoryKiB == 0 {
		memoryKiB = 64 * 1024
	}

	if timeCost == 0 {
		timeCost = 1
	}

	if parallelism == 0 {
		parallelism = 4
	}

	return memoryKiB, timeCost, parallelism
}

// BuilderConfig configures a new container: its segment layout, per-object chunk/compression/encryption/hash/
// signature defaults, and evidence description fields. Every object opened through the resulting ContainerBuilder
// shares this configuration (spec.md doesn't require per-object divergence within one acquisition session).
type BuilderConfig struct {
	Stem string

	// SegmentSize is the size budget in bytes a segment file may reach before rollover. 0 means unbounded (a
	// single segment file).
	SegmentSize uint64

	// ChunkSizeExponent sets chunk_size = 1 << ChunkSizeExponent; valid range is
	// [zffheader.MinChunkSizeExponent, zffheader.MaxChunkSizeExponent].
	ChunkSizeExponent uint8

	CompressionAlgorithm uint8
	CompressionLevel     int

	// Encryption is nil for an unencrypted container.
	Encryption *EncryptionMode

	HashAlgorithms []uint8

	// SignMode selects zffheader.SigNone (default), SigPerChunk (sign every chunk), or SigHashOnly (sign only the
	// object's aggregated hash digests, spec.md §4.2). A fresh Ed25519 key pair is generated per session whenever
	// it isn't SigNone; the private half never touches disk.
	SignMode uint8

	Description zffheader.DescriptionHeader
}
