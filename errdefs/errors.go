package errdefs

import "fmt"

// UnexpectedMagicError is returned when a decoded structure's magic bytes don't match what the decoder expected.
type UnexpectedMagicError struct {
	Expected, Actual uint32
}

func (e *UnexpectedMagicError) Error() string {
	return fmt.Sprintf("unexpected magic: expected 0x%08x got 0x%08x", e.Expected, e.Actual)
}

// UnsupportedVersionError is returned when a decoded structure declares a version newer than this library knows
// how to parse.
type UnsupportedVersionError struct {
	Max, Actual uint8
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported version %d, max supported is %d", e.Actual, e.Max)
}

// TruncatedError is returned when a structure's declared length extends past the available bytes.
type TruncatedError struct {
	Want, Got int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated structure: wanted %d bytes, got %d", e.Want, e.Got)
}

// TrailingGarbageError is returned when a structure's declared length leaves unconsumed bytes after decoding every
// known field.
type TrailingGarbageError struct {
	Unconsumed int
}

func (e *TrailingGarbageError) Error() string {
	return fmt.Sprintf("%d trailing bytes after decoding structure", e.Unconsumed)
}

// MissingSegmentError is returned by the segment reader when a container references a segment number that isn't
// present on disk.
type MissingSegmentError struct {
	SegmentNo uint64
}

func (e *MissingSegmentError) Error() string {
	return fmt.Sprintf("missing segment %d", e.SegmentNo)
}

// IntegrityFailureError is returned when a chunk's CRC (unauthenticated path) doesn't match its stored payload.
type IntegrityFailureError struct {
	ObjectNo, ChunkNo uint64
}

func (e *IntegrityFailureError) Error() string {
	return fmt.Sprintf("integrity failure: object %d chunk %d", e.ObjectNo, e.ChunkNo)
}

// DecryptionFailedError is returned when AEAD authentication fails for a chunk, or when a wrapped data key can't be
// unwrapped because the KEK derived from the given password is wrong.
type DecryptionFailedError struct {
	ObjectNo, ChunkNo uint64
}

func (e *DecryptionFailedError) Error() string {
	return "decryption failed"
}

// UnsupportedAlgorithmError is returned when a header names an algorithm id this build doesn't implement.
type UnsupportedAlgorithmError struct {
	ID uint8
}

func (e *UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("unsupported algorithm id %d", e.ID)
}

// KdfFailedError wraps a failure while deriving a key-encryption-key from a password.
type KdfFailedError struct {
	Err error
}

func (e *KdfFailedError) Error() string { return fmt.Sprintf("key derivation failed: %s", e.Err) }
func (e *KdfFailedError) Unwrap() error { return e.Err }

// BadConfigError is returned when a builder is given an invalid combination of options (e.g. an out of range chunk
// size exponent).
type BadConfigError struct {
	Reason string
}

func (e *BadConfigError) Error() string { return "bad configuration: " + e.Reason }

// StateViolationError is returned when an operation is attempted in a state of the acquisition session state
// machine that doesn't permit it.
type StateViolationError struct {
	Expected, Actual string
}

func (e *StateViolationError) Error() string {
	return fmt.Sprintf("state violation: expected %s, got %s", e.Expected, e.Actual)
}

// HashMismatchError is returned when a post-read hash of reconstructed object bytes doesn't match the digest
// recorded in the object's hash header.
type HashMismatchError struct {
	Algo string
}

func (e *HashMismatchError) Error() string { return fmt.Sprintf("hash mismatch for %s", e.Algo) }

// SignatureMismatchError is returned when an Ed25519 signature doesn't verify against the object's public key.
type SignatureMismatchError struct {
	ObjectNo, ChunkNo uint64
}

func (e *SignatureMismatchError) Error() string {
	return fmt.Sprintf("signature mismatch: object %d chunk %d", e.ObjectNo, e.ChunkNo)
}

// InterruptedError is returned when acquisition aborts mid-object after exhausting sector read retries; LastChunk
// is the last chunk number that was safely persisted, allowing the caller to resume at the object boundary.
type InterruptedError struct {
	LastChunk uint64
	Err       error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("interrupted after chunk %d: %s", e.LastChunk, e.Err)
}
func (e *InterruptedError) Unwrap() error { return e.Err }

// FooterCorruptError is returned when a segment footer's trailing CRC doesn't match its entries, meaning the local
// chunk/object/file index for that segment can't be trusted.
type FooterCorruptError struct {
	SegmentNo uint64
}

func (e *FooterCorruptError) Error() string {
	return fmt.Sprintf("segment %d: footer CRC mismatch", e.SegmentNo)
}

// ErrSealed is returned when a write is attempted against a container that has already been sealed and no new
// session has been opened.
var ErrSealed = sealedError{}

type sealedError struct{}

func (sealedError) Error() string { return "container is sealed" }
