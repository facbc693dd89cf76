package zffheader

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/zffdev/zff/errdefs"
)

// File kind tag (spec.md §4.7).
const (
	FileRegular   uint8 = 0
	FileDirectory uint8 = 1
	FileSymlink   uint8 = 2
	FileHardlink  uint8 = 3
)

// RootParentID is the sentinel ParentID for a file record with no parent (spec.md §4.7 "parent id (or sentinel
// for root)").
const RootParentID uint64 = 0

// MagicFileRecord identifies a FileRecord envelope.
const MagicFileRecord uint32 = 0x7A666672

// FileMetadata carries the timestamps, permission bits, and ownership of one file record (spec.md §4.7).
type FileMetadata struct {
	Mtime, Atime, Ctime, Btime int64 // unix nanoseconds
	Mode                       uint32
	UID, GID                   uint32
}

// FileRecord describes one entry of a logical object's file tree: its identity, kind, metadata, and (for a regular
// file) the chunk range holding its body.
type FileRecord struct {
	ID       uint64
	ParentID uint64
	Name     string
	Kind     uint8
	Metadata FileMetadata

	// FirstChunk/LastChunk and LogicalLength are meaningful only for FileRegular entries (spec.md §4.7).
	FirstChunk    uint64
	LastChunk     uint64
	LogicalLength uint64

	// LinkTarget holds the target path for a FileSymlink, or the referenced file's ID (as a decimal string) for a
	// FileHardlink.
	LinkTarget string

	Xattrs   map[string][]byte
	PosixACL []byte // opaque "system.posix_acl_access" blob, captured on Linux only
}

// Encode writes the file record to w.
func (f FileRecord) Encode(w io.Writer) error {
	var buf bytes.Buffer

	buf.Write(mustUint64(f.ID))
	buf.Write(mustUint64(f.ParentID))
	buf.Write(putString(nil, f.Name))
	buf.WriteByte(f.Kind)

	var meta [4*8 + 4 + 4 + 4]byte
	binary.BigEndian.PutUint64(meta[0:8], uint64(f.Metadata.Mtime))
	binary.BigEndian.PutUint64(meta[8:16], uint64(f.Metadata.Atime))
	binary.BigEndian.PutUint64(meta[16:24], uint64(f.Metadata.Ctime))
	binary.BigEndian.PutUint64(meta[24:32], uint64(f.Metadata.Btime))
	binary.BigEndian.PutUint32(meta[32:36], f.Metadata.Mode)
	binary.BigEndian.PutUint32(meta[36:40], f.Metadata.UID)
	binary.BigEndian.PutUint32(meta[40:44], f.Metadata.GID)
	buf.Write(meta[:])

	buf.Write(mustUint64(f.FirstChunk))
	buf.Write(mustUint64(f.LastChunk))
	buf.Write(mustUint64(f.LogicalLength))
	buf.Write(putString(nil, f.LinkTarget))

	buf.Write(mustUint32(uint32(len(f.Xattrs))))

	for key, value := range f.Xattrs {
		buf.Write(putString(nil, key))
		buf.Write(mustUint32(uint32(len(value))))
		buf.Write(value)
	}

	buf.Write(mustUint32(uint32(len(f.PosixACL))))
	buf.Write(f.PosixACL)

	return WriteEnvelope(w, MagicFileRecord, CurrentVersion, buf.Bytes())
}

// DecodeFileRecord reads and validates a file record from r.
func DecodeFileRecord(r io.Reader) (FileRecord, error) {
	_, body, err := ReadEnvelope(r, MagicFileRecord, MaxSupportedVersion)
	if err != nil {
		return FileRecord{}, err
	}

	if len(body) < 16 {
		return FileRecord{}, &errdefs.TruncatedError{Want: 16, Got: len(body)}
	}

	f := FileRecord{
		ID:       binary.BigEndian.Uint64(body[0:8]),
		ParentID: binary.BigEndian.Uint64(body[8:16]),
	}

	rest := body[16:]

	name, rest, err := takeString(rest)
	if err != nil {
		return FileRecord{}, err
	}

	f.Name = name

	if len(rest) < 1+44 {
		return FileRecord{}, &errdefs.TruncatedError{Want: 45, Got: len(rest)}
	}

	f.Kind = rest[0]
	meta := rest[1:45]
	f.Metadata = FileMetadata{
		Mtime: int64(binary.BigEndian.Uint64(meta[0:8])),
		Atime: int64(binary.BigEndian.Uint64(meta[8:16])),
		Ctime: int64(binary.BigEndian.Uint64(meta[16:24])),
		Btime: int64(binary.BigEndian.Uint64(meta[24:32])),
		Mode:  binary.BigEndian.Uint32(meta[32:36]),
		UID:   binary.BigEndian.Uint32(meta[36:40]),
		GID:   binary.BigEndian.Uint32(meta[40:44]),
	}
	rest = rest[45:]

	if len(rest) < 24 {
		return FileRecord{}, &errdefs.TruncatedError{Want: 24, Got: len(rest)}
	}

	f.FirstChunk = binary.BigEndian.Uint64(rest[0:8])
	f.LastChunk = binary.BigEndian.Uint64(rest[8:16])
	f.LogicalLength = binary.BigEndian.Uint64(rest[16:24])
	rest = rest[24:]

	linkTarget, rest, err := takeString(rest)
	if err != nil {
		return FileRecord{}, err
	}

	f.LinkTarget = linkTarget

	if len(rest) < 4 {
		return FileRecord{}, &errdefs.TruncatedError{Want: 4, Got: len(rest)}
	}

	xattrCount := binary.BigEndian.Uint32(rest[0:4])
	rest = rest[4:]

	if xattrCount > 0 {
		f.Xattrs = make(map[string][]byte, xattrCount)
	}

	for i := uint32(0); i < xattrCount; i++ {
		var key string

		key, rest, err = takeString(rest)
		if err != nil {
			return FileRecord{}, err
		}

		if len(rest) < 4 {
			return FileRecord{}, &errdefs.TruncatedError{Want: 4, Got: len(rest)}
		}

		valLen := binary.BigEndian.Uint32(rest[0:4])
		rest = rest[4:]

		if uint64(len(rest)) < uint64(valLen) {
			return FileRecord{}, &errdefs.TruncatedError{Want: int(valLen), Got: len(rest)}
		}

		f.Xattrs[key] = append([]byte(nil), rest[:valLen]...)
		rest = rest[valLen:]
	}

	if len(rest) < 4 {
		return FileRecord{}, &errdefs.TruncatedError{Want: 4, Got: len(rest)}
	}

	aclLen := binary.BigEndian.Uint32(rest[0:4])
	rest = rest[4:]

	if uint64(len(rest)) < uint64(aclLen) {
		return FileRecord{}, &errdefs.TruncatedError{Want: int(aclLen), Got: len(rest)}
	}

	if aclLen > 0 {
		f.PosixACL = append([]byte(nil), rest[:aclLen]...)
	}

	return f, nil
}
