package cryptofmt

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/zffdev/zff/errdefs"
	"github.com/zffdev/zff/zffheader"
)

// NonceSize is the length in bytes of the AEAD nonce used by every algorithm this package supports.
const NonceSize = 12

// NewAEAD returns the cipher.AEAD for the given algorithm id (spec §6), validating that key is the right length.
func NewAEAD(algorithm uint8, key []byte) (cipher.AEAD, error) {
	switch algorithm {
	case zffheader.AlgoAES128GCM:
		if len(key) != 16 {
			return nil, &errdefs.BadConfigError{Reason: fmt.Sprintf("AES-128-GCM requires a 16-byte key, got %d", len(key))}
		}

		return newAESGCM(key)
	case zffheader.AlgoAES256GCM:
		if len(key) != 32 {
			return nil, &errdefs.BadConfigError{Reason: fmt.Sprintf("AES-256-GCM requires a 32-byte key, got %d", len(key))}
		}

		return newAESGCM(key)
	case zffheader.AlgoChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, &errdefs.UnsupportedAlgorithmError{ID: algorithm}
	}
}

// SealingKey returns the bytes of a KeySize-byte data key actually used as the AEAD key for algorithm. Every
// algorithm but AES-128-GCM uses the full KeySize bytes; AES-128-GCM needs only the first 16. The data key itself
// is always generated, wrapped and stored at the full KeySize regardless of which algorithm a container picks, so
// unwrapping never depends on it (see WrapDataKey/UnwrapDataKey).
func SealingKey(algorithm uint8, dataKey [KeySize]byte) []byte {
	if algorithm == zffheader.AlgoAES128GCM {
		return dataKey[:16]
	}

	return dataKey[:]
}

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptofmt: new AES cipher: %w", err)
	}

	return cipher.NewGCM(block)
}

// DeriveNonce computes the deterministic 12-byte AEAD nonce for a chunk: 4 bytes of object number (big-endian,
// truncated to uint32) followed by 8 bytes of chunk number (big-endian). See spec.md §4.2 and §9 "Nonce derivation".
func DeriveNonce(objectNo uint32, chunkNo uint64) [NonceSize]byte {
	var nonce [NonceSize]byte

	binary.BigEndian.PutUint32(nonce[0:4], objectNo)
	binary.BigEndian.PutUint64(nonce[4:12], chunkNo)

	return nonce
}

// AssociatedData builds the AEAD associated data for a chunk: object_no || chunk_no || stored_flags (spec §4.2).
func AssociatedData(objectNo uint32, chunkNo uint64, flags uint8) []byte {
	ad := make([]byte, 13)
	binary.BigEndian.PutUint32(ad[0:4], objectNo)
	binary.BigEndian.PutUint64(ad[4:12], chunkNo)
	ad[12] = flags

	return ad
}

// NonceTracker enforces spec.md §4.2's invariant that a nonce must never repeat within a data key's lifetime. It's
// owned by the coordinator for the duration of one ObjectOpen session and shared read/write across chunk workers.
type NonceTracker struct {
	mu   sync.Mutex
	seen map[uint64]struct{} // keyed by chunk_no; object number is implicit in one tracker-per-object
}

// NewNonceTracker returns a tracker ready to use.
func NewNonceTracker() *NonceTracker {
	return &NonceTracker{seen: make(map[uint64]struct{})}
}

// Use marks chunkNo as having produced a nonce, returning an error if it's been used before.
func (t *NonceTracker) Use(chunkNo uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[chunkNo]; ok {
		return &errdefs.BadConfigError{Reason: fmt.Sprintf("nonce for chunk %d reused within data key lifetime", chunkNo)}
	}

	t.seen[chunkNo] = struct{}{}

	return nil
}
