package chunk

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/zeebo/blake3"
	"github.com/zeebo/xxh3"

	"github.com/zffdev/zff/errdefs"
	"github.com/zffdev/zff/zffheader"
)

// newHasher returns a fresh hash.Hash for the given hash type id (spec.md §6).
func newHasher(algorithm uint8) (hash.Hash, error) {
	switch algorithm {
	case zffheader.HashBlake2b512:
		return blake2b.New512(nil)
	case zffheader.HashSHA256:
		return sha256.New(), nil
	case zffheader.HashSHA512:
		return sha512.New(), nil
	case zffheader.HashSHA3_256:
		return sha3.New256(), nil
	case zffheader.HashBlake3:
		return blake3.New(), nil
	case zffheader.HashXXH3:
		return xxh3.New(), nil
	default:
		return nil, &errdefs.UnsupportedAlgorithmError{ID: algorithm}
	}
}

// newHasherSet builds one hasher per requested algorithm, keyed by algorithm id.
func newHasherSet(algorithms []uint8) (map[uint8]hash.Hash, error) {
	set := make(map[uint8]hash.Hash, len(algorithms))

	for _, algo := range algorithms {
		h, err := newHasher(algo)
		if err != nil {
			return nil, fmt.Errorf("chunk: %w", err)
		}

		set[algo] = h
	}

	return set, nil
}

// NewHasherSet builds one hasher per requested algorithm, for a caller outside this package that needs the same
// hash set the write path used (e.g. a hash-only signature verification pass).
func NewHasherSet(algorithms []uint8) (map[uint8]hash.Hash, error) {
	return newHasherSet(algorithms)
}

// digestsInOrder concatenates each algorithm's digest bytes in the order algorithms lists them, giving a
// deterministic byte sequence to sign or verify as a single unit (spec.md §4.2 "signatures ... sign only the hash
// value, not every chunk").
func digestsInOrder(algorithms []uint8, digests map[uint8][]byte) []byte {
	var out []byte

	for _, algo := range algorithms {
		out = append(out, digests[algo]...)
	}

	return out
}

// DigestsInOrder is the exported form of digestsInOrder, for callers outside this package verifying a hash-only
// signature against the same digest ordering the write path signed.
func DigestsInOrder(algorithms []uint8, digests map[uint8][]byte) []byte {
	return digestsInOrder(algorithms, digests)
}
