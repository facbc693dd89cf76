// Package zffheader encodes and decodes the magic-prefixed, length-delimited, versioned headers that make up every
// on-disk structure in a zff container: the main header, segment headers, chunk record headers, and the encryption,
// compression, description and hash subheaders they embed.
//
// Every structure follows the same envelope: a 4-byte magic, an 8-byte declared length covering everything from the
// version byte onward, a 1-byte version, then the structure's own fields. The declared length lets a reader bound
// every subsequent read and skip unfamiliar trailing fields without understanding them, which is what keeps a
// container forward compatible.
package zffheader

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zffdev/zff/errdefs"
)

// Magic values, one per structure kind. Each is the big-endian encoding of "zff" followed by a single kind byte.
const (
	MagicMainHeader        uint32 = 0x7A66666D
	MagicEncryptedMainHdr  uint32 = 0x7a666645
	MagicChunkRecord       uint32 = 0x7A666643
	MagicSegmentHeader     uint32 = 0x7A666673
	MagicPBES2Subheader    uint32 = 0x7A666670
	MagicEncryptionHeader  uint32 = 0x7A666665
	MagicCompressionHeader uint32 = 0x7A666663
	MagicDescriptionHeader uint32 = 0x7A666664
	MagicHashHeader        uint32 = 0x7A666668
	MagicSegmentFooter     uint32 = 0x7A666666
)

// CurrentVersion is the version written by this implementation for every structure kind.
const CurrentVersion uint8 = 1

// MaxSupportedVersion is the highest version this implementation knows how to decode.
const MaxSupportedVersion uint8 = 1

// WriteEnvelope writes magic, the declared length (len(body)+1 for the version byte), version and body to w.
func WriteEnvelope(w io.Writer, magic uint32, version uint8, body []byte) error {
	var head [13]byte

	binary.BigEndian.PutUint32(head[0:4], magic)
	binary.BigEndian.PutUint64(head[4:12], uint64(len(body)+1))
	head[12] = version

	if _, err := w.Write(head[:]); err != nil {
		return fmt.Errorf("zffheader: write envelope: %w", err)
	}

	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("zffheader: write body: %w", err)
	}

	return nil
}

// ReadEnvelope reads and validates the magic/length/version envelope, returning the declared version and the raw
// body bytes (everything after the version byte, exactly `length-1` bytes long).
func ReadEnvelope(r io.Reader, expectMagic uint32, maxVersion uint8) (uint8, []byte, error) {
	var head [13]byte

	if _, err := io.ReadFull(r, head[:]); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return 0, nil, &errdefs.TruncatedError{Want: len(head), Got: 0}
		}

		return 0, nil, fmt.Errorf("zffheader: read envelope: %w", err)
	}

	magic := binary.BigEndian.Uint32(head[0:4])
	if magic != expectMagic {
		return 0, nil, &errdefs.UnexpectedMagicError{Expected: expectMagic, Actual: magic}
	}

	length := binary.BigEndian.Uint64(head[4:12])
	version := head[12]

	if version > maxVersion {
		return 0, nil, &errdefs.UnsupportedVersionError{Max: maxVersion, Actual: version}
	}

	if length == 0 {
		return 0, nil, &errdefs.TruncatedError{Want: 1, Got: 0}
	}

	body := make([]byte, length-1)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, &errdefs.TruncatedError{Want: int(length - 1), Got: 0}
	}

	return version, body, nil
}

// putString writes a uint64 length prefix followed by the UTF-8 bytes of s.
func putString(buf []byte, s string) []byte {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, s...)

	return buf
}

// takeString reads a uint64-length-prefixed string from the front of buf, returning the string and the remainder.
func takeString(buf []byte) (string, []byte, error) {
	if len(buf) < 8 {
		return "", nil, &errdefs.TruncatedError{Want: 8, Got: len(buf)}
	}

	n := binary.BigEndian.Uint64(buf[:8])
	buf = buf[8:]

	if uint64(len(buf)) < n {
		return "", nil, &errdefs.TruncatedError{Want: int(n), Got: len(buf)}
	}

	return string(buf[:n]), buf[n:], nil
}
