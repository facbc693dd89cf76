package cryptofmt

import (
	"crypto/ed25519"
	"fmt"

	"github.com/zffdev/zff/zffheader"
)

// GenerateSigningKey returns a fresh Ed25519 key pair for per-chunk signing; the private key is held only for the
// lifetime of an acquisition session and is never written to the container (spec.md §9 "Key material lifecycle").
func GenerateSigningKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("cryptofmt: generate signing key: %w", err)
	}

	return pub, priv, nil
}

// Sign signs the plaintext chunk bytes (not ciphertext, per spec.md §4.2) with priv, returning the 64-byte
// signature.
func Sign(priv ed25519.PrivateKey, plaintext []byte) [zffheader.SignatureSize]byte {
	var sig [zffheader.SignatureSize]byte
	copy(sig[:], ed25519.Sign(priv, plaintext))

	return sig
}

// Verify checks a chunk's Ed25519 signature against the object's public key.
func Verify(pub ed25519.PublicKey, plaintext []byte, sig [zffheader.SignatureSize]byte) bool {
	return ed25519.Verify(pub, plaintext, sig[:])
}
