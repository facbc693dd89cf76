package chunk

import (
	"context"
	"crypto/cipher"
	"hash"
	"hash/crc32"
	"sync"

	"github.com/zffdev/zff/compress"
	"github.com/zffdev/zff/cryptofmt"
	"github.com/zffdev/zff/errdefs"
	"github.com/zffdev/zff/hofp"
	"github.com/zffdev/zff/log"
	"github.com/zffdev/zff/zffheader"
)

// Writer implements the write pipeline of spec.md §4.4: it accepts a stream of bytes via Write, cuts it into
// fixed-size chunks, and for each one updates running hashers (on the calling goroutine, so digests always reflect
// source order per spec.md §5), then dispatches compression/encryption/signing to a worker pool. A serial
// committer drains completed chunks in strictly increasing chunk-number order and forwards them to Sink, buffering
// any that complete out of order in a small reorder window.
type Writer struct {
	opts   EngineOptions
	aead   cipher.AEAD
	nonces *cryptofmt.NonceTracker
	hashes map[uint8]hash.Hash
	pool   *hofp.Pool
	sink   Sink
	logger log.WrappedLogger

	buf         []byte
	nextChunkNo uint64

	commitMu sync.Mutex
	pending  map[uint64]*Record
	nextEmit uint64
	commitErr error

	lastChunk uint64 // last chunk number successfully committed; reported on failure per spec.md §7

	hashSignature []byte // set at Close when opts.Signing.HashOnly; see HashSignature
}

// NewWriter returns a Writer that dispatches finished chunk records to sink.
func NewWriter(sink Sink, opts EngineOptions) (*Writer, error) {
	if err := opts.defaults(); err != nil {
		return nil, err
	}

	aead, err := newAEAD(opts.Encryption)
	if err != nil {
		return nil, err
	}

	hashes, err := newHasherSet(opts.HashAlgorithms)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		opts:    opts,
		aead:    aead,
		nonces:  cryptofmt.NewNonceTracker(),
		hashes:  hashes,
		sink:    sink,
		logger:  log.NewWrappedLogger(opts.Logger),
		pending: make(map[uint64]*Record),
	}

	w.pool = hofp.NewPool(hofp.Options{
		Size:      opts.Workers,
		LogPrefix: "(chunk.Writer)",
		Logger:    opts.Logger,
	})

	return w, nil
}

// Write implements io.Writer, accumulating p into chunk_size-sized chunks and dispatching each complete one to the
// worker pool as it fills.
func (w *Writer) Write(p []byte) (int, error) {
	total := len(p)

	for len(p) > 0 {
		room := int(w.opts.ChunkSize) - len(w.buf)
		if room > len(p) {
			room = len(p)
		}

		w.buf = append(w.buf, p[:room]...)
		p = p[room:]

		if uint64(len(w.buf)) == w.opts.ChunkSize {
			if err := w.submit(w.buf); err != nil {
				return total - len(p), err
			}

			w.buf = make([]byte, 0, w.opts.ChunkSize)
		}
	}

	return total, nil
}

// NextChunkNo returns the chunk number that the next Write-completed chunk will be assigned. A logical object
// writer uses this to confirm a file's reserved chunk range (from object.ChunkAllocator) starts exactly where the
// shared chunk.Writer's own counter is, keeping the two in lockstep.
func (w *Writer) NextChunkNo() uint64 {
	return w.nextChunkNo
}

// WriteDegraded emits a zero-filled, FlagDegraded-tagged chunk in place of a source range the acquisition
// coordinator could not read after exhausting its retry budget (spec.md §7, §9 "Resumable acquisition"). The
// payload still collapses via the same-bytes rule, but FlagDegraded distinguishes it on read from a source range
// that was genuinely all zero, which matters to a verification report.
func (w *Writer) WriteDegraded() error {
	data := make([]byte, w.opts.ChunkSize)

	for _, h := range w.hashes {
		h.Write(data)
	}

	chunkNo := w.nextChunkNo
	w.nextChunkNo++

	payload := []byte{0}

	rec := &Record{
		Header: zffheader.ChunkRecordHeader{
			ChunkNo:    chunkNo,
			StoredSize: uint64(len(payload)),
			Flags:      zffheader.FlagSameBytes | zffheader.FlagDegraded,
			CRC32:      crc32.ChecksumIEEE(payload),
		},
		Payload: payload,
	}

	return w.pool.Queue(func(ctx context.Context) error {
		return w.commit(chunkNo, rec)
	})
}

// Flush dispatches any partial final chunk accumulated by Write. Call it once, after the last Write.
func (w *Writer) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}

	tail := w.buf
	w.buf = nil

	return w.submit(tail)
}

// Close stops the worker pool, waits for every dispatched chunk to commit, and returns the final hash digests.
// LastChunk reports the last chunk number successfully committed, for resumable acquisition.
func (w *Writer) Close() (digests map[uint8][]byte, lastChunk uint64, err error) {
	if stopErr := w.pool.Stop(); stopErr != nil {
		w.commitMu.Lock()
		if w.commitErr == nil {
			w.commitErr = stopErr
		}
		w.commitMu.Unlock()
	}

	w.commitMu.Lock()
	err = w.commitErr
	lastChunk = w.lastChunk
	w.commitMu.Unlock()

	if err != nil {
		return nil, lastChunk, &errdefs.InterruptedError{LastChunk: lastChunk, Err: err}
	}

	digests = make(map[uint8][]byte, len(w.hashes))
	for algo, h := range w.hashes {
		digests[algo] = h.Sum(nil)
	}

	if w.opts.Signing != nil && w.opts.Signing.HashOnly {
		sig := cryptofmt.Sign(w.opts.Signing.PrivateKey, digestsInOrder(w.opts.HashAlgorithms, digests))
		w.hashSignature = sig[:]
	}

	return digests, lastChunk, nil
}

// HashSignature returns the Ed25519 signature over the object's aggregated hash digests, set only when
// EngineOptions.Signing.HashOnly was configured. Valid only after Close returns.
func (w *Writer) HashSignature() []byte {
	return w.hashSignature
}

// submit updates the running hashers (on the calling goroutine, preserving source order) and queues the chunk for
// concurrent processing by the worker pool.
func (w *Writer) submit(data []byte) error {
	for _, h := range w.hashes {
		h.Write(data)
	}

	chunkNo := w.nextChunkNo
	w.nextChunkNo++

	return w.pool.Queue(func(ctx context.Context) error {
		rec, err := w.process(chunkNo, data)
		if err != nil {
			return err
		}

		return w.commit(chunkNo, rec)
	})
}

// process runs the per-chunk pipeline: same-bytes short-circuit, else compress→encrypt→sign→CRC.
func (w *Writer) process(chunkNo uint64, data []byte) (*Record, error) {
	if b, ok := sameByteValue(data); ok {
		payload := []byte{b}

		return &Record{
			Header: zffheader.ChunkRecordHeader{
				ChunkNo:    chunkNo,
				StoredSize: uint64(len(payload)),
				Flags:      zffheader.FlagSameBytes,
				CRC32:      crc32.ChecksumIEEE(payload),
			},
			Payload: payload,
		}, nil
	}

	var flags uint8

	body, stored, err := compress.Compress(w.opts.CompressionAlgorithm, w.opts.CompressionLevel, data)
	if err != nil {
		return nil, err
	}

	if !stored {
		flags |= zffheader.FlagCompressed
	}

	if w.aead != nil {
		flags |= zffheader.FlagEncrypted

		if err := w.nonces.Use(chunkNo); err != nil {
			return nil, err
		}

		nonce := cryptofmt.DeriveNonce(w.opts.ObjectNo, chunkNo)
		ad := cryptofmt.AssociatedData(w.opts.ObjectNo, chunkNo, flags)
		body = w.aead.Seal(nil, nonce[:], body, ad)
	}

	var sig [zffheader.SignatureSize]byte

	if w.opts.Signing != nil && !w.opts.Signing.HashOnly {
		flags |= zffheader.FlagSigned
		sig = cryptofmt.Sign(w.opts.Signing.PrivateKey, data)
	}

	return &Record{
		Header: zffheader.ChunkRecordHeader{
			ChunkNo:    chunkNo,
			StoredSize: uint64(len(body)),
			Flags:      flags,
			CRC32:      crc32.ChecksumIEEE(body),
			Signature:  sig,
		},
		Payload: body,
	}, nil
}

// commit buffers rec in the reorder window and emits every contiguous run starting at nextEmit to the sink. This
// is the "single serial segment writer" of spec.md §5: only one goroutine at a time (the one that happens to find
// itself able to advance nextEmit) calls sink.WriteChunkRecord.
func (w *Writer) commit(chunkNo uint64, rec *Record) error {
	w.commitMu.Lock()
	defer w.commitMu.Unlock()

	if w.commitErr != nil {
		return w.commitErr
	}

	w.pending[chunkNo] = rec

	for {
		next, ok := w.pending[w.nextEmit]
		if !ok {
			break
		}

		if err := w.sink.WriteChunkRecord(w.opts.ObjectNo, next); err != nil {
			w.commitErr = err
			return err
		}

		delete(w.pending, w.nextEmit)
		w.lastChunk = w.nextEmit
		w.nextEmit++
	}

	return nil
}
