package zff

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/zffdev/zff/chunk"
	"github.com/zffdev/zff/cryptofmt"
	"github.com/zffdev/zff/errdefs"
	"github.com/zffdev/zff/object"
	"github.com/zffdev/zff/segindex"
	"github.com/zffdev/zff/segment"
	"github.com/zffdev/zff/zffheader"
)

// canaryObjectNo and canaryChunkNo pick a nonce slot outside any real object's chunk space (object numbers are
// assigned sequentially starting at 0) so the canary ciphertext never shares a nonce with a chunk.
const (
	canaryObjectNo  uint32 = 0xFFFFFFFF
	canaryChunkNo   uint64 = 0
	canaryPlaintext        = "zff-container-unlock-canary"
)

// ContainerBuilder drives one acquisition session: configure once, open one or more objects in sequence, seal.
// It implements the state machine of spec.md §4.8 and is the write-side half of the library surface in §6.
type ContainerBuilder struct {
	cfg           BuilderConfig
	containerUUID int64

	segWriter *segment.Writer
	merged    *segindex.Merged

	dataKey       [cryptofmt.KeySize]byte
	encryption    *zffheader.EncryptionHeader // nil for an unencrypted container
	signingPublic ed25519.PublicKey
	signingPriv   ed25519.PrivateKey // nil unless cfg.SignMode != zffheader.SigNone

	state        sessionState
	nextObjectNo uint32
	sealedCount  int
	totalDataLen uint64

	open *openObject
}

// openObject tracks the object currently being written, between OpenPhysicalObject/OpenLogicalObject and its Close.
type openObject struct {
	objectNo uint32
	obj      object.Object
	writer   *chunk.Writer
	alloc    *object.ChunkAllocator // nil for a physical object
}

// NewContainerBuilder creates the first segment file of a new container and returns a builder ready to accept
// OpenPhysicalObject/OpenLogicalObject calls.
func NewContainerBuilder(cfg BuilderConfig) (*ContainerBuilder, error) {
	if cfg.Stem == "" {
		return nil, &errdefs.BadConfigError{Reason: "stem must not be empty"}
	}

	if cfg.ChunkSizeExponent < zffheader.MinChunkSizeExponent || cfg.ChunkSizeExponent > zffheader.MaxChunkSizeExponent {
		return nil, &errdefs.BadConfigError{
			Reason: fmt.Sprintf("chunk size exponent %d out of range [%d,%d]",
				cfg.ChunkSizeExponent, zffheader.MinChunkSizeExponent, zffheader.MaxChunkSizeExponent),
		}
	}

	containerUUID, err := randomContainerUUID()
	if err != nil {
		return nil, err
	}

	b := &ContainerBuilder{
		cfg:           cfg,
		containerUUID: containerUUID,
		merged:        segindex.NewMerged(),
		state:         stateOpening,
	}

	if cfg.Encryption != nil {
		if err := b.setupEncryption(cfg.Encryption); err != nil {
			return nil, err
		}
	}

	if cfg.SignMode != zffheader.SigNone {
		pub, priv, err := cryptofmt.GenerateSigningKey()
		if err != nil {
			return nil, err
		}

		b.signingPublic, b.signingPriv = pub, priv
	}

	segWriter, err := segment.NewWriter(cfg.Stem, containerUUID, cfg.SegmentSize, b.merged)
	if err != nil {
		return nil, fmt.Errorf("zff: open first segment: %w", err)
	}

	b.segWriter = segWriter

	placeholder := zffheader.MainHeader{
		EncFlag:           b.encFlag(),
		Encryption:        b.encryption,
		Compression:       zffheader.CompressionHeader{Algorithm: cfg.CompressionAlgorithm, Level: uint8(cfg.CompressionLevel)},
		Description:       cfg.Description,
		ChunkSizeExponent: cfg.ChunkSizeExponent,
		SigFlag:           b.sigMode(),
		SegmentSize:       cfg.SegmentSize,
		Segment:           zffheader.SegmentHeader{ContainerUUID: containerUUID, SegmentNo: 1},
	}

	if err := b.writeMainHeaderRecord(placeholder); err != nil {
		segWriter.Close()
		return nil, err
	}

	b.state = stateHeaderWritten

	return b, nil
}

// randomContainerUUID generates a V4 UUID and folds it into the int64 that SegmentHeader.ContainerUUID carries on
// the wire (the header format has no room for a full 128-bit identifier).
func randomContainerUUID() (int64, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return 0, fmt.Errorf("zff: generate container uuid: %w", err)
	}

	return int64(binary.BigEndian.Uint64(id[:8])), nil
}

// setupEncryption derives the KEK from the configured password, generates a random data key, wraps it, and builds
// the EncryptionHeader persisted with every object (spec.md §4.2).
func (b *ContainerBuilder) setupEncryption(mode *EncryptionMode) error {
	if _, err := rand.Read(b.dataKey[:]); err != nil {
		return fmt.Errorf("zff: generate data key: %w", err)
	}

	var salt [32]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return fmt.Errorf("zff: generate kdf salt: %w", err)
	}

	var (
		kek [cryptofmt.KeySize]byte
		err error
	)

	params := zffheader.KdfParams{Salt: salt}

	switch mode.KdfMethod {
	case zffheader.KdfArgon2id:
		memoryKiB, timeCost, parallelism := mode.argon2Params()
		kek, err = cryptofmt.DeriveArgon2id(mode.Password, salt, memoryKiB, timeCost, parallelism)
		params.MemoryKiB, params.TimeCost, params.Parallelism = memoryKiB, timeCost, parallelism
	default:
		iterations := mode.pbkdf2Iterations()
		kek, err = cryptofmt.DerivePBKDF2(mode.Password, salt, iterations)
		params.Iterations = iterations
	}

	if err != nil {
		return err
	}

	iv, wrapped, err := cryptofmt.WrapDataKey(kek, b.dataKey)
	if err != nil {
		return fmt.Errorf("zff: wrap data key: %w", err)
	}

	encFlag := zffheader.EncDataOnly
	if mode.EncryptHeaderBody {
		encFlag = zffheader.EncHeaderData
	}

	b.encryption = &zffheader.EncryptionHeader{
		EncFlag:   encFlag,
		Algorithm: mode.Algorithm,
		PBES2: &zffheader.PBES2Subheader{
			KdfMethod:  mode.KdfMethod,
			WrapScheme: zffheader.WrapAESCBC,
			Params:     params,
			IV:         iv,
			WrappedKey: wrapped,
		},
	}

	return nil
}

func (b *ContainerBuilder) encFlag() uint8 {
	if b.encryption == nil {
		return zffheader.EncNone
	}

	return b.encryption.EncFlag
}

func (b *ContainerBuilder) engineOptions(objectNo uint32) chunk.EngineOptions {
	opts := chunk.EngineOptions{
		ObjectNo:             objectNo,
		ChunkSize:            1 << b.cfg.ChunkSizeExponent,
		CompressionAlgorithm: b.cfg.CompressionAlgorithm,
		CompressionLevel:     b.cfg.CompressionLevel,
		HashAlgorithms:       b.cfg.HashAlgorithms,
	}

	if b.encryption != nil {
		opts.Encryption = &chunk.EncryptionConfig{Algorithm: b.encryption.Algorithm, DataKey: cryptofmt.SealingKey(b.encryption.Algorithm, b.dataKey)}
	}

	if b.signingPriv != nil {
		opts.Signing = &chunk.SigningConfig{
			PublicKey:  b.signingPublic,
			PrivateKey: b.signingPriv,
			HashOnly:   b.cfg.SignMode == zffheader.SigHashOnly,
		}
	}

	return opts
}

func (b *ContainerBuilder) sigMode() uint8 {
	if b.signingPriv == nil {
		return zffheader.SigNone
	}

	return b.cfg.SignMode
}

// Seal finalizes the container (spec.md §3 Lifecycle, §4.8 state machine): it writes the main header with the
// session's final totals and (if encrypted) a canary ciphertext for password unlock, as the last record of the
// active segment, then closes that segment. Sealed is terminal for this builder; a later append opens a fresh
// ContainerBuilder session against the same stem and container UUID.
func (b *ContainerBuilder) Seal() error {
	if err := b.state.require(stateHeaderWritten, stateObjectClosed); err != nil {
		return err
	}

	main := zffheader.MainHeader{
		EncFlag:           b.encFlag(),
		Encryption:        b.encryption,
		Compression:       zffheader.CompressionHeader{Algorithm: b.cfg.CompressionAlgorithm, Level: uint8(b.cfg.CompressionLevel)},
		Description:       b.cfg.Description,
		ChunkSizeExponent: b.cfg.ChunkSizeExponent,
		SigFlag:           b.sigMode(),
		SegmentSize:       b.cfg.SegmentSize,
		TotalDataLen:      b.totalDataLen,
		Segment:           zffheader.SegmentHeader{ContainerUUID: b.containerUUID, SegmentNo: 1},
	}

	if b.encryption != nil {
		canary, err := b.sealCanary()
		if err != nil {
			return err
		}

		main.Canary = canary
	}

	if err := b.writeMainHeaderRecord(main); err != nil {
		return err
	}

	if err := b.segWriter.Close(); err != nil {
		return fmt.Errorf("zff: close segment writer: %w", err)
	}

	b.state = stateSealed

	return nil
}

// writeMainHeaderRecord encodes main (encrypting its body first if EncFlag == EncHeaderData) and appends it to the
// active segment. Used both for the HeaderWritten placeholder and for the authoritative copy Seal writes last.
func (b *ContainerBuilder) writeMainHeaderRecord(main zffheader.MainHeader) error {
	var sealFn func([]byte) ([]byte, error)
	if main.EncFlag == zffheader.EncHeaderData {
		sealFn = b.mainHeaderSealFn()
	}

	var buf bytes.Buffer
	if err := main.Encode(&buf, sealFn); err != nil {
		return fmt.Errorf("zff: encode main header: %w", err)
	}

	return b.segWriter.WriteMainHeader(buf.Bytes())
}

// mainHeaderSealFn encrypts the tail of the main header when EncFlag == EncHeaderData. Each call picks a fresh
// random nonce and prepends it to the ciphertext, since the wire envelope carries no separate nonce field for the
// main header the way chunk records do; unsealMainHeaderFn on the read side reverses this.
func (b *ContainerBuilder) mainHeaderSealFn() func([]byte) ([]byte, error) {
	return func(plaintext []byte) ([]byte, error) {
		aead, err := cryptofmt.NewAEAD(b.encryption.Algorithm, cryptofmt.SealingKey(b.encryption.Algorithm, b.dataKey))
		if err != nil {
			return nil, err
		}

		nonce := make([]byte, aead.NonceSize())
		if _, err := rand.Read(nonce); err != nil {
			return nil, fmt.Errorf("zff: generate main header nonce: %w", err)
		}

		return aead.Seal(nonce, nonce, plaintext, nil), nil
	}
}

// sealCanary encrypts a fixed plaintext marker under the data key so the read side can confirm a candidate password
// unwrapped the right key before exposing any object reader (spec.md §4.8).
func (b *ContainerBuilder) sealCanary() ([]byte, error) {
	aead, err := cryptofmt.NewAEAD(b.encryption.Algorithm, cryptofmt.SealingKey(b.encryption.Algorithm, b.dataKey))
	if err != nil {
		return nil, err
	}

	nonce := cryptofmt.DeriveNonce(canaryObjectNo, canaryChunkNo)
	ad := cryptofmt.AssociatedData(canaryObjectNo, canaryChunkNo, 0)

	return aead.Seal(nil, nonce[:], []byte(canaryPlaintext), ad), nil
}

// objectConfig builds the object.Config shared by every object this builder opens.
func (b *ContainerBuilder) objectConfig() object.Config {
	return object.Config{
		ChunkSizeExponent:    b.cfg.ChunkSizeExponent,
		CompressionAlgorithm: b.cfg.CompressionAlgorithm,
		CompressionLevel:     uint8(b.cfg.CompressionLevel),
		EncFlag:              b.encFlag(),
		Encryption:           b.encryption,
		HashAlgorithms:       b.cfg.HashAlgorithms,
		SigMode:              b.sigMode(),
		SigningPublicKey:     b.signingPublic,
	}
}
