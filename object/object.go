package object

import (
	"github.com/zffdev/zff/errdefs"
	"github.com/zffdev/zff/zffheader"
)

// Object is the tagged Physical/Logical variant of spec.md §4.7: readers dispatch on Header.Kind rather than using
// a deep class hierarchy.
type Object struct {
	Header zffheader.ObjectHeader

	// Files is populated only for a logical object (Header.Kind == zffheader.ObjectLogical), in write order.
	Files []zffheader.FileRecord
}

// NewPhysical returns an empty physical object with the given configuration and total length. It has no chunk
// allocator: its single body range always starts at chunk 0 (see ChunkRange).
func NewPhysical(objectNo uint32, totalLength uint64, cfg Config) Object {
	h := cfg.header(objectNo, zffheader.ObjectPhysical)
	h.TotalLength = totalLength

	return Object{Header: h}
}

// NewLogical returns an empty logical object ready to accept file records via AddFile.
func NewLogical(objectNo uint32, cfg Config) Object {
	return Object{Header: cfg.header(objectNo, zffheader.ObjectLogical)}
}

// Config is the subset of ObjectHeader fields a caller chooses explicitly; ObjectNo, Kind and TotalLength are
// filled in by NewPhysical/NewLogical.
type Config struct {
	ChunkSizeExponent    uint8
	CompressionAlgorithm uint8
	CompressionLevel     uint8
	EncFlag              uint8
	Encryption           *zffheader.EncryptionHeader
	HashAlgorithms       []uint8
	SigMode              uint8
	SigningPublicKey     []byte // nil when SigMode == zffheader.SigNone
}

func (c Config) header(objectNo uint32, kind uint8) zffheader.ObjectHeader {
	return zffheader.ObjectHeader{
		ObjectNo:             objectNo,
		Kind:                 kind,
		ChunkSizeExponent:    c.ChunkSizeExponent,
		CompressionAlgorithm: c.CompressionAlgorithm,
		CompressionLevel:     c.CompressionLevel,
		EncFlag:              c.EncFlag,
		Encryption:           c.Encryption,
		HashAlgorithms:       c.HashAlgorithms,
		SigMode:              c.SigMode,
		SigningPublicKey:     c.SigningPublicKey,
	}
}

// AddFile appends a file record to a logical object. It is the caller's responsibility to have reserved
// file.FirstChunk/LastChunk from the object's ChunkAllocator beforehand for regular files.
func (o *Object) AddFile(file zffheader.FileRecord) error {
	if o.Header.Kind != zffheader.ObjectLogical {
		return &errdefs.BadConfigError{Reason: "AddFile called on a non-logical object"}
	}

	o.Files = append(o.Files, file)

	return nil
}

// FileByID returns the file record with the given ID, if present.
func (o *Object) FileByID(id uint64) (zffheader.FileRecord, bool) {
	for _, f := range o.Files {
		if f.ID == id {
			return f, true
		}
	}

	return zffheader.FileRecord{}, false
}

// ChunkRange returns the [first, last] chunk numbers of a physical object, given its total length: a physical
// object has no explicit allocator since its single body always starts at chunk 0.
func ChunkRange(totalLength, chunkSize uint64) (first, last uint64) {
	if totalLength == 0 {
		return 0, 0
	}

	count := (totalLength + chunkSize - 1) / chunkSize

	return 0, count - 1
}
