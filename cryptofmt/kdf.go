// Package cryptofmt implements the cryptographic primitives a zff container uses to protect chunk payloads: key
// derivation from a password, PBES2-style wrapping of the random per-container data key, authenticated chunk
// encryption with a deterministic nonce, and optional per-chunk Ed25519 signatures.
package cryptofmt

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"

	"github.com/zffdev/zff/errdefs"
)

// KeySize is the length in bytes of every key-encryption-key and data key this package produces.
const KeySize = 32

// DerivePBKDF2 derives a 32-byte key-encryption-key from password and salt using PBKDF2/HMAC-SHA256.
func DerivePBKDF2(password []byte, salt [32]byte, iterations uint32) ([KeySize]byte, error) {
	if iterations == 0 {
		return [KeySize]byte{}, &errdefs.KdfFailedError{Err: fmt.Errorf("iterations must be > 0")}
	}

	derived := pbkdf2.Key(password, salt[:], int(iterations), KeySize, sha256.New)

	var kek [KeySize]byte
	copy(kek[:], derived)

	return kek, nil
}

// DeriveArgon2id derives a 32-byte key-encryption-key from password and salt using Argon2id.
func DeriveArgon2id(password []byte, salt [32]byte, memoryKiB, timeCost uint32, parallelism uint8) ([KeySize]byte, error) {
	if memoryKiB == 0 || timeCost == 0 || parallelism == 0 {
		return [KeySize]byte{}, &errdefs.KdfFailedError{
			Err: fmt.Errorf("memory (%d), time (%d) and parallelism (%d) must all be > 0", memoryKiB, timeCost, parallelism),
		}
	}

	derived := argon2.IDKey(password, salt[:], timeCost, memoryKiB, parallelism, KeySize)

	var kek [KeySize]byte
	copy(kek[:], derived)

	return kek, nil
}
