package chunk

import (
	"crypto/cipher"
	"hash/crc32"
	"io"
	"math"

	"github.com/zffdev/zff/compress"
	"github.com/zffdev/zff/cryptofmt"
	"github.com/zffdev/zff/errdefs"
	"github.com/zffdev/zff/lru"
	"github.com/zffdev/zff/zffheader"
)

// Locator resolves a (objectNo, chunkNo) pair to its on-disk location, as recorded in a segment's index
// (segindex.Merged and segment.Reader implement this). found is false if the pair has never been written.
type Locator interface {
	Locate(objectNo uint32, chunkNo uint64) (segmentNo uint64, offset int64, found bool)
}

// SegmentOpener returns a random-access view of a segment file by number (segment.Reader implements this).
type SegmentOpener interface {
	OpenSegment(segmentNo uint64) (io.ReaderAt, error)
}

// Reader implements the read pipeline of spec.md §4.5: locate the chunk's segment and offset, decode its record,
// verify its CRC, reverse encryption and compression, and (optionally) verify its signature.
type Reader struct {
	opts    EngineOptions
	aead    cipher.AEAD
	locator Locator
	opener  SegmentOpener
	cache   *lru.Cache[uint64, []byte]
	zeroize bool
}

// NewReader returns a Reader that resolves chunks for one object through locator and opener.
func NewReader(locator Locator, opener SegmentOpener, opts EngineOptions) (*Reader, error) {
	if err := opts.defaults(); err != nil {
		return nil, err
	}

	aead, err := newAEAD(opts.Encryption)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		opts:    opts,
		aead:    aead,
		locator: locator,
		opener:  opener,
		zeroize: opts.Encryption != nil,
	}

	if opts.CacheSize > 0 {
		if r.zeroize {
			r.cache = lru.NewWithEvictCallback[uint64, []byte](opts.CacheSize, func(_ uint64, v []byte) {
				zeroize(v)
			})
		} else {
			r.cache = lru.New[uint64, []byte](opts.CacheSize)
		}
	}

	return r, nil
}

// ReadChunk returns the plaintext of one chunk, reversing same-bytes/compress/encrypt/sign as recorded in its
// flags. expectedLen is the chunk's declared plaintext size (chunk_size for every chunk but the last one of an
// object, which may be shorter).
func (r *Reader) ReadChunk(objectNo uint32, chunkNo uint64, expectedLen int) ([]byte, error) {
	key := cacheKey(objectNo, chunkNo)

	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			out := make([]byte, len(cached))
			copy(out, cached)

			return out, nil
		}
	}

	segNo, offset, found := r.locator.Locate(objectNo, chunkNo)
	if !found {
		return nil, &errdefs.MissingSegmentError{SegmentNo: segNo}
	}

	ra, err := r.opener.OpenSegment(segNo)
	if err != nil {
		return nil, err
	}

	rec, err := DecodeRecord(io.NewSectionReader(ra, offset, math.MaxInt64-offset))
	if err != nil {
		return nil, err
	}

	if rec.Header.ChunkNo != chunkNo {
		return nil, &errdefs.IntegrityFailureError{ObjectNo: uint64(objectNo), ChunkNo: chunkNo}
	}

	if crc32.ChecksumIEEE(rec.Payload) != rec.Header.CRC32 {
		return nil, &errdefs.IntegrityFailureError{ObjectNo: uint64(objectNo), ChunkNo: chunkNo}
	}

	plaintext, err := r.reverse(objectNo, chunkNo, rec, expectedLen)
	if err != nil {
		return nil, err
	}

	if r.opts.Signing != nil && r.opts.Signing.PublicKey != nil && rec.Header.Flags&zffheader.FlagSigned != 0 {
		if !cryptofmt.Verify(r.opts.Signing.PublicKey, plaintext, rec.Header.Signature) {
			return nil, &errdefs.SignatureMismatchError{ObjectNo: uint64(objectNo), ChunkNo: chunkNo}
		}
	}

	if r.cache != nil {
		cached := make([]byte, len(plaintext))
		copy(cached, plaintext)
		r.cache.Set(key, cached)
	}

	return plaintext, nil
}

// reverse undoes same-bytes expansion, decryption, and decompression in that order, per the inverse of
// Writer.process.
func (r *Reader) reverse(objectNo uint32, chunkNo uint64, rec *Record, expectedLen int) ([]byte, error) {
	flags := rec.Header.Flags

	if flags&zffheader.FlagSameBytes != 0 {
		if len(rec.Payload) != 1 {
			return nil, &errdefs.TruncatedError{Want: 1, Got: len(rec.Payload)}
		}

		out := make([]byte, expectedLen)
		for i := range out {
			out[i] = rec.Payload[0]
		}

		return out, nil
	}

	body := rec.Payload

	if flags&zffheader.FlagEncrypted != 0 {
		if r.aead == nil {
			return nil, &errdefs.BadConfigError{Reason: "chunk is encrypted but no decryption key was configured"}
		}

		nonce := cryptofmt.DeriveNonce(objectNo, chunkNo)
		ad := cryptofmt.AssociatedData(objectNo, chunkNo, flags)

		plain, err := r.aead.Open(nil, nonce[:], body, ad)
		if err != nil {
			return nil, &errdefs.DecryptionFailedError{ObjectNo: uint64(objectNo), ChunkNo: chunkNo}
		}

		body = plain
	}

	algo := r.opts.CompressionAlgorithm
	if flags&zffheader.FlagCompressed == 0 {
		algo = zffheader.CompressionNone
	}

	out, err := compress.Decompress(algo, body, expectedLen)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
