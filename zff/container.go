package zff

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/zffdev/zff/chunk"
	"github.com/zffdev/zff/cryptofmt"
	"github.com/zffdev/zff/errdefs"
	"github.com/zffdev/zff/object"
	"github.com/zffdev/zff/segment"
	"github.com/zffdev/zff/zffheader"
)

// Container is the read side of the library surface in spec.md §6: Container.Open/Objects/Read/ReadFile/Verify. It
// owns the segment reader and (once unlocked) the data key; every object header and file record is loaded by
// scanning the footers the segment reader already discovered.
type Container struct {
	stem string
	seg  *segment.Reader
	main zffheader.MainHeader

	dataKey    [cryptofmt.KeySize]byte
	hasDataKey bool

	mu          sync.Mutex
	headers     map[uint32]zffheader.ObjectHeader
	files       map[uint32][]zffheader.FileRecord
	objectOrder []uint32
	readers     map[uint32]*chunk.Reader
}

// Open opens a sealed container at stem, deriving the data key from password if the container is encrypted.
// password is ignored for an unencrypted container; pass nil. Unlocking verifies the stored canary (or, for a
// header-encrypted container, decoding the main header itself fails authentication) before any chunk is exposed
// (spec.md §4.8).
func Open(stem string, password []byte) (*Container, error) {
	seg, err := segment.Open(stem)
	if err != nil {
		return nil, err
	}

	segNo, offset, found := findMainHeader(seg)
	if !found {
		seg.Close()
		return nil, &errdefs.BadConfigError{Reason: "container has no main header"}
	}

	main, dataKey, hasDataKey, err := unlockMainHeaderAt(seg, segNo, offset, password)
	if err != nil {
		seg.Close()
		return nil, err
	}

	c := &Container{
		stem:       stem,
		seg:        seg,
		main:       main,
		dataKey:    dataKey,
		hasDataKey: hasDataKey,
		headers:    make(map[uint32]zffheader.ObjectHeader),
		files:      make(map[uint32][]zffheader.FileRecord),
		readers:    make(map[uint32]*chunk.Reader),
	}

	if err := c.loadObjects(); err != nil {
		seg.Close()
		return nil, err
	}

	return c, nil
}

// findMainHeader scans every segment's footer, in ascending segment number, for FooterKindMainHeader entries and
// returns the location of the last one found. A ContainerBuilder writes a placeholder copy into segment 1 at
// HeaderWritten and the authoritative copy as the last record before whichever segment is active at Seal; scanning
// in order and always keeping the latest match naturally prefers the authoritative copy while falling back to the
// placeholder if a later segment is missing or was never sealed.
func findMainHeader(seg *segment.Reader) (segNo, offset uint64, found bool) {
	for _, n := range seg.SegmentNumbers() {
		footer, ok := seg.Footer(n)
		if !ok {
			continue
		}

		for _, e := range footer.Entries {
			if e.Kind == zffheader.FooterKindMainHeader {
				segNo, offset, found = n, e.Offset, true
			}
		}
	}

	return segNo, offset, found
}

// peekEncryption reads only the EncFlag and (if present) EncryptionHeader of an encoded main header record, without
// requiring an unseal function: enough to decide whether a password is needed and to derive the data key before
// attempting the full decode, which for EncFlag == EncHeaderData needs that key to proceed.
func peekEncryption(r io.Reader) (encFlag uint8, enc *zffheader.EncryptionHeader, err error) {
	_, body, err := zffheader.ReadEnvelope(r, zffheader.MagicMainHeader, zffheader.MaxSupportedVersion)
	if err != nil {
		return 0, nil, err
	}

	if len(body) < 1 {
		return 0, nil, &errdefs.TruncatedError{Want: 1, Got: 0}
	}

	encFlag = body[0]
	if encFlag == zffheader.EncNone {
		return encFlag, nil, nil
	}

	h, err := zffheader.DecodeEncryptionHeader(bytes.NewReader(body[1:]))
	if err != nil {
		return 0, nil, err
	}

	return encFlag, &h, nil
}

// unlockMainHeaderAt derives the data key (if the container is encrypted), decodes the main header record located
// at (segNo, offset), and checks the canary embedded in it before returning, so a caller never receives a data key
// that doesn't actually match this container's chunks (spec.md §4.8).
func unlockMainHeaderAt(seg *segment.Reader, segNo, offset uint64, password []byte) (zffheader.MainHeader, [cryptofmt.KeySize]byte, bool, error) {
	var dataKey [cryptofmt.KeySize]byte

	peekReader, err := seg.ReadRecord(segNo, offset)
	if err != nil {
		return zffheader.MainHeader{}, dataKey, false, err
	}

	encFlag, enc, err := peekEncryption(peekReader)
	if err != nil {
		return zffheader.MainHeader{}, dataKey, false, err
	}

	var (
		unsealFn   func([]byte) ([]byte, error)
		hasDataKey bool
	)

	if encFlag != zffheader.EncNone {
		if enc.PBES2 == nil {
			return zffheader.MainHeader{}, dataKey, false, &errdefs.BadConfigError{Reason: "encrypted container has no PBES2 subheader"}
		}

		kek, err := deriveKEK(password, enc.PBES2)
		if err != nil {
			return zffheader.MainHeader{}, dataKey, false, err
		}

		dataKey, err = cryptofmt.UnwrapDataKey(kek, enc.PBES2.IV, enc.PBES2.WrappedKey)
		if err != nil {
			return zffheader.MainHeader{}, dataKey, false, err
		}

		hasDataKey = true

		if encFlag == zffheader.EncHeaderData {
			unsealFn = unsealMainHeaderFn(dataKey, enc.Algorithm)
		}
	}

	decodeReader, err := seg.ReadRecord(segNo, offset)
	if err != nil {
		return zffheader.MainHeader{}, dataKey, false, err
	}

	main, err := zffheader.DecodeMainHeader(decodeReader, unsealFn)
	if err != nil {
		return zffheader.MainHeader{}, dataKey, false, err
	}

	if hasDataKey {
		if err := verifyCanary(main.Canary, dataKey, enc.Algorithm); err != nil {
			return zffheader.MainHeader{}, dataKey, false, err
		}
	}

	return main, dataKey, hasDataKey, nil
}

// deriveKEK re-derives the key-encryption-key from password using the KDF method and parameters recorded in the
// PBES2 subheader.
func deriveKEK(password []byte, sub *zffheader.PBES2Subheader) ([cryptofmt.KeySize]byte, error) {
	if sub.KdfMethod == zffheader.KdfArgon2id {
		return cryptofmt.DeriveArgon2id(
			password, sub.Params.Salt, sub.Params.MemoryKiB, sub.Params.TimeCost, sub.Params.Parallelism)
	}

	return cryptofmt.DerivePBKDF2(password, sub.Params.Salt, sub.Params.Iterations)
}

// unsealMainHeaderFn reverses mainHeaderSealFn: the nonce is the first NonceSize bytes of the ciphertext.
func unsealMainHeaderFn(dataKey [cryptofmt.KeySize]byte, algorithm uint8) func([]byte) ([]byte, error) {
	return func(ciphertext []byte) ([]byte, error) {
		aead, err := cryptofmt.NewAEAD(algorithm, cryptofmt.SealingKey(algorithm, dataKey))
		if err != nil {
			return nil, err
		}

		if len(ciphertext) < aead.NonceSize() {
			return nil, &errdefs.TruncatedError{Want: aead.NonceSize(), Got: len(ciphertext)}
		}

		nonce, body := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]

		plaintext, err := aead.Open(nil, nonce, body, nil)
		if err != nil {
			return nil, &errdefs.DecryptionFailedError{}
		}

		return plaintext, nil
	}
}

// verifyCanary confirms the derived data key is the right one before any object reader is constructed.
func verifyCanary(ciphertext []byte, dataKey [cryptofmt.KeySize]byte, algorithm uint8) error {
	if len(ciphertext) == 0 {
		return &errdefs.BadConfigError{Reason: "encrypted container has no canary recorded"}
	}

	aead, err := cryptofmt.NewAEAD(algorithm, cryptofmt.SealingKey(algorithm, dataKey))
	if err != nil {
		return err
	}

	nonce := cryptofmt.DeriveNonce(canaryObjectNo, canaryChunkNo)
	ad := cryptofmt.AssociatedData(canaryObjectNo, canaryChunkNo, 0)

	plaintext, err := aead.Open(nil, nonce[:], ciphertext, ad)
	if err != nil || string(plaintext) != canaryPlaintext {
		return &errdefs.DecryptionFailedError{}
	}

	return nil
}

// loadObjects decodes every object header and file record by walking each segment's footer in ascending order.
func (c *Container) loadObjects() error {
	for _, segNo := range c.seg.SegmentNumbers() {
		footer, ok := c.seg.Footer(segNo)
		if !ok {
			continue
		}

		for _, e := range footer.Entries {
			switch e.Kind {
			case zffheader.FooterKindObjectHeader:
				r, err := c.seg.ReadRecord(segNo, e.Offset)
				if err != nil {
					return err
				}

				header, err := zffheader.DecodeObjectHeader(r)
				if err != nil {
					return fmt.Errorf("zff: decode object header %d: %w", e.ObjectNo, err)
				}

				if _, exists := c.headers[header.ObjectNo]; !exists {
					c.objectOrder = append(c.objectOrder, header.ObjectNo)
				}

				c.headers[header.ObjectNo] = header

			case zffheader.FooterKindFileRecord:
				r, err := c.seg.ReadRecord(segNo, e.Offset)
				if err != nil {
					return err
				}

				rec, err := zffheader.DecodeFileRecord(r)
				if err != nil {
					return fmt.Errorf("zff: decode file record in object %d: %w", e.ObjectNo, err)
				}

				c.files[e.ObjectNo] = append(c.files[e.ObjectNo], rec)
			}
		}
	}

	sort.Slice(c.objectOrder, func(i, j int) bool { return c.objectOrder[i] < c.objectOrder[j] })

	for objectNo := range c.files {
		recs := c.files[objectNo]
		sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	}

	return nil
}

// Description returns the evidence description fields recorded in the main header.
func (c *Container) Description() zffheader.DescriptionHeader {
	return c.main.Description
}

// TotalDataLen returns the container's total logical data length as of its last Seal.
func (c *Container) TotalDataLen() uint64 {
	return c.main.TotalDataLen
}

// Objects summarizes every sealed object in write order (spec.md §6 "ObjectInfo").
func (c *Container) Objects() []ObjectInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ObjectInfo, 0, len(c.objectOrder))

	for _, objectNo := range c.objectOrder {
		header := c.headers[objectNo]

		info := ObjectInfo{ObjectNo: objectNo, Kind: header.Kind, TotalLength: header.TotalLength}

		if header.Kind == zffheader.ObjectPhysical {
			_, last := object.ChunkRange(header.TotalLength, header.ChunkSize())
			info.LastChunk = last
		} else {
			for _, f := range c.files[objectNo] {
				if f.Kind == zffheader.FileRegular {
					info.TotalLength += f.LogicalLength

					if f.LastChunk > info.LastChunk {
						info.LastChunk = f.LastChunk
					}
				}
			}
		}

		out = append(out, info)
	}

	return out
}

// readerFor returns (creating if needed) the chunk.Reader for objectNo.
func (c *Container) readerFor(objectNo uint32) (*chunk.Reader, zffheader.ObjectHeader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	header, ok := c.headers[objectNo]
	if !ok {
		return nil, zffheader.ObjectHeader{}, &errdefs.BadConfigError{Reason: fmt.Sprintf("unknown object %d", objectNo)}
	}

	if r, ok := c.readers[objectNo]; ok {
		return r, header, nil
	}

	opts := chunk.EngineOptions{
		ObjectNo:             objectNo,
		ChunkSize:            header.ChunkSize(),
		CompressionAlgorithm: header.CompressionAlgorithm,
		CompressionLevel:     int(header.CompressionLevel),
		HashAlgorithms:       header.HashAlgorithms,
		CacheSize:            64,
	}

	if header.EncFlag != zffheader.EncNone {
		if !c.hasDataKey {
			return nil, header, &errdefs.BadConfigError{Reason: "container is encrypted but was opened without a key"}
		}

		opts.Encryption = &chunk.EncryptionConfig{Algorithm: header.Encryption.Algorithm, DataKey: cryptofmt.SealingKey(header.Encryption.Algorithm, c.dataKey)}
	}

	if header.SigMode == zffheader.SigPerChunk && len(header.SigningPublicKey) > 0 {
		opts.Signing = &chunk.SigningConfig{PublicKey: ed25519.PublicKey(header.SigningPublicKey)}
	}

	r, err := chunk.NewReader(c.seg, c.seg, opts)
	if err != nil {
		return nil, header, err
	}

	c.readers[objectNo] = r

	return r, header, nil
}

// Read returns length bytes of an object's logical content starting at offset (spec.md §4.5 read pipeline: logical
// offset -> chunk range -> decode -> reverse encryption/compression -> slice -> concatenate) of a physical object.
// A logical object's header records a total length of 0, so Read rejects any non-empty range of a logical object
// with a BadConfigError; ReadFile reads the files of a logical object.
func (c *Container) Read(objectNo uint32, offset, length uint64) ([]byte, error) {
	reader, header, err := c.readerFor(objectNo)
	if err != nil {
		return nil, err
	}

	return readRange(reader, objectNo, header.ChunkSize(), 0, header.TotalLength, offset, length)
}

// ReadFile returns length bytes of one logical object's file starting at offset within that file's body.
func (c *Container) ReadFile(objectNo uint32, fileID uint64, offset, length uint64) ([]byte, error) {
	reader, header, err := c.readerFor(objectNo)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	records := c.files[objectNo]
	c.mu.Unlock()

	for _, f := range records {
		if f.ID != fileID {
			continue
		}

		if f.Kind != zffheader.FileRegular {
			return nil, &errdefs.BadConfigError{Reason: fmt.Sprintf("file %d in object %d is not a regular file", fileID, objectNo)}
		}

		return readRange(reader, objectNo, header.ChunkSize(), f.FirstChunk, f.LogicalLength, offset, length)
	}

	return nil, &errdefs.BadConfigError{Reason: fmt.Sprintf("unknown file %d in object %d", fileID, objectNo)}
}

// readRange resolves [offset, offset+length) of a logical byte range whose chunks start at firstChunk, against a
// reader already bound to the right object.
func readRange(reader *chunk.Reader, objectNo uint32, chunkSize, firstChunk, logicalLength, offset, length uint64) ([]byte, error) {
	if offset > logicalLength || offset+length > logicalLength {
		return nil, &errdefs.BadConfigError{
			Reason: fmt.Sprintf("range [%d,%d) exceeds logical length %d", offset, offset+length, logicalLength),
		}
	}

	if length == 0 {
		return nil, nil
	}

	totalChunks := uint64(0)
	if logicalLength > 0 {
		totalChunks = (logicalLength + chunkSize - 1) / chunkSize
	}

	out := make([]byte, 0, length)

	startChunk := offset / chunkSize
	endChunk := (offset + length - 1) / chunkSize

	for rel := startChunk; rel <= endChunk; rel++ {
		chunkNo := firstChunk + rel

		expected := chunkSize
		if rel == totalChunks-1 {
			if rem := logicalLength % chunkSize; rem != 0 {
				expected = rem
			}
		}

		plaintext, err := reader.ReadChunk(objectNo, chunkNo, int(expected))
		if err != nil {
			return nil, err
		}

		chunkStart := rel * chunkSize

		lo := uint64(0)
		if offset > chunkStart {
			lo = offset - chunkStart
		}

		hi := uint64(len(plaintext))
		if chunkStart+hi > offset+length {
			hi = offset + length - chunkStart
		}

		out = append(out, plaintext[lo:hi]...)
	}

	return out, nil
}

// Verify walks every chunk of objectNo through the read pipeline, recording every failure rather than stopping at
// the first one (the SUPPLEMENTED "verification report" operation of spec.md §6). For an object signed with
// SigHashOnly (spec.md §4.2), it additionally recomputes the object's hash digests and checks the aggregate
// signature once, reporting a failure against its last chunk if that check fails.
func (c *Container) Verify(objectNo uint32) (*chunk.VerificationReport, error) {
	reader, header, err := c.readerFor(objectNo)
	if err != nil {
		return nil, err
	}

	report := chunk.NewVerificationReport()

	chunkSize := header.ChunkSize()

	var (
		lastChunk uint64
		totalLen  uint64
		hasChunks bool
	)

	if header.Kind == zffheader.ObjectLogical {
		for _, f := range c.files[objectNo] {
			if f.Kind != zffheader.FileRegular || f.LogicalLength == 0 {
				continue
			}

			hasChunks = true

			if f.LastChunk > lastChunk {
				lastChunk = f.LastChunk
			}
		}

		totalLen = (lastChunk + 1) * chunkSize
	} else {
		hasChunks = header.TotalLength > 0
		_, lastChunk = object.ChunkRange(header.TotalLength, chunkSize)
		totalLen = header.TotalLength
	}

	if !hasChunks {
		return report, nil
	}

	hashers, hasherErr := chunk.NewHasherSet(header.HashAlgorithms)
	hashOnly := header.SigMode == zffheader.SigHashOnly && len(header.SigningPublicKey) > 0 && hasherErr == nil

	for chunkNo := uint64(0); chunkNo <= lastChunk; chunkNo++ {
		expected := chunkSize

		if chunkNo == lastChunk {
			if rem := totalLen % chunkSize; rem != 0 {
				expected = rem
			}
		}

		if !hashOnly {
			report.VerifyChunk(reader, objectNo, chunkNo, int(expected))
			continue
		}

		plaintext, err := reader.ReadChunk(objectNo, chunkNo, int(expected))
		if err != nil {
			report.RecordFailure(objectNo, chunkNo, err)
			continue
		}

		for _, h := range hashers {
			h.Write(plaintext)
		}

		report.RecordChecked()
	}

	if hashOnly {
		digests := make(map[uint8][]byte, len(hashers))
		for algo, h := range hashers {
			digests[algo] = h.Sum(nil)
		}

		var sig [zffheader.SignatureSize]byte
		copy(sig[:], header.HashSignature)

		if !cryptofmt.Verify(ed25519.PublicKey(header.SigningPublicKey), chunk.DigestsInOrder(header.HashAlgorithms, digests), sig) {
			report.RecordFailure(objectNo, lastChunk, &errdefs.SignatureMismatchError{ObjectNo: uint64(objectNo), ChunkNo: lastChunk})
		}
	}

	return report, nil
}

// Close releases every open segment file handle.
func (c *Container) Close() error {
	if c.seg != nil {
		return c.seg.Close()
	}

	return nil
}
