package chunk

import (
	"crypto/cipher"
	"crypto/ed25519"
	"fmt"

	"github.com/zffdev/zff/cryptofmt"
	"github.com/zffdev/zff/errdefs"
	"github.com/zffdev/zff/log"
)

// EncryptionConfig configures per-chunk AEAD encryption for one object.
type EncryptionConfig struct {
	Algorithm uint8
	DataKey   []byte
}

// SigningConfig configures per-chunk Ed25519 signing (write side) or verification (read side) for one object.
type SigningConfig struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey // nil on the read side, where only verification is possible

	// HashOnly selects spec.md §4.2's "signatures mode [that] can also sign only the hash value, not every
	// chunk" (zffheader.SigHashOnly): the writer skips per-chunk signatures and signs only the object's
	// aggregated hash digests once, at Close.
	HashOnly bool
}

// EngineOptions configures a Writer or Reader for one object.
type EngineOptions struct {
	ObjectNo uint32
	ChunkSize uint64

	CompressionAlgorithm uint8
	CompressionLevel     int

	Encryption *EncryptionConfig
	Signing    *SigningConfig

	HashAlgorithms []uint8

	// Workers is the size of the worker pool processing chunks concurrently on the write side. Defaults to
	// runtime.NumCPU() (see hofp.Options).
	Workers int

	// CacheSize bounds the read-side plaintext LRU cache, in chunks. 0 disables caching.
	CacheSize uint

	Logger log.Logger
}

func (o *EngineOptions) defaults() error {
	if o.ChunkSize == 0 {
		return &errdefs.BadConfigError{Reason: "chunk size must be > 0"}
	}

	return nil
}

func newAEAD(enc *EncryptionConfig) (cipher.AEAD, error) {
	if enc == nil {
		return nil, nil
	}

	aead, err := cryptofmt.NewAEAD(enc.Algorithm, enc.DataKey)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}

	return aead, nil
}

// cacheKey packs (objectNo, chunkNo) into a single ordered key for lru.Cache, which requires a constraints.Ordered
// key type. 24 bits of object number and 40 bits of chunk number comfortably exceed any realistic container.
func cacheKey(objectNo uint32, chunkNo uint64) uint64 {
	return (uint64(objectNo&0xFFFFFF) << 40) | (chunkNo & 0xFFFFFFFFFF)
}
