package zff

import (
	"context"
	"fmt"
	"io"

	"github.com/zffdev/zff/chunk"
	"github.com/zffdev/zff/errdefs"
	"github.com/zffdev/zff/object"
	"github.com/zffdev/zff/retry"
	"github.com/zffdev/zff/zffheader"
)

// ObjectWriter acquires a single physical (byte-addressable) source into an object (spec.md §4.7 "Physical
// object"). Obtain one via ContainerBuilder.OpenPhysicalObject.
type ObjectWriter struct {
	b        *ContainerBuilder
	objectNo uint32
	header   zffheader.ObjectHeader
	writer   *chunk.Writer
}

// OpenPhysicalObject begins a new physical object of the given total logical length. Only one object may be open
// at a time per builder (spec.md §4.8 state machine: writing a chunk is legal only in ObjectOpen).
func (b *ContainerBuilder) OpenPhysicalObject(totalLength uint64) (*ObjectWriter, error) {
	if err := b.beginObject(); err != nil {
		return nil, err
	}

	objectNo := b.nextObjectNo
	obj := object.NewPhysical(objectNo, totalLength, b.objectConfig())

	cw, err := chunk.NewWriter(b.segWriter, b.engineOptions(objectNo))
	if err != nil {
		b.abortObject()
		return nil, err
	}

	b.nextObjectNo++
	b.open = &openObject{objectNo: objectNo, obj: obj, writer: cw}

	return &ObjectWriter{b: b, objectNo: objectNo, header: obj.Header, writer: cw}, nil
}

// Write implements io.Writer, feeding source bytes through the chunk engine. The caller is responsible for writing
// exactly TotalLength bytes in total (via Write and/or WriteDegraded) before calling Close.
func (w *ObjectWriter) Write(p []byte) (int, error) {
	return w.writer.Write(p)
}

// WriteDegraded emits one degraded (zero-filled) chunk in place of a source range that could not be read.
func (w *ObjectWriter) WriteDegraded() error {
	return w.writer.WriteDegraded()
}

// AcquireFromReaderAt drives acquisition of the whole object from a random-access source (spec.md §9 "Resumable
// acquisition"): it reads one chunk-sized sector range at a time, retrying a failing range up to opts.MaxRetries
// times with backoff, and substitutes a degraded chunk once the retry budget is exhausted rather than aborting the
// whole object.
func (w *ObjectWriter) AcquireFromReaderAt(ctx context.Context, src io.ReaderAt, opts retry.SectorReadOptions) error {
	chunkSize := w.header.ChunkSize()
	buf := make([]byte, chunkSize)

	var offset int64

	remaining := w.header.TotalLength

	for remaining > 0 {
		want := chunkSize
		if want > remaining {
			want = remaining
		}

		window := buf[:want]

		readErr := retry.RetrySectorRead(ctx, opts, func() error {
			_, err := src.ReadAt(window, offset)
			return err
		})

		if readErr != nil {
			if err := w.writer.WriteDegraded(); err != nil {
				return err
			}
		} else if _, err := w.writer.Write(window); err != nil {
			return err
		}

		offset += int64(want)
		remaining -= want
	}

	return w.writer.Flush()
}

// Close flushes any partial final chunk, finalizes the object's hash digests, persists the object header, and
// transitions the session to ObjectClosed, allowing another object to be opened or the container to be sealed.
func (w *ObjectWriter) Close() (ObjectInfo, error) {
	if err := w.writer.Flush(); err != nil {
		w.b.failObject()
		return ObjectInfo{}, err
	}

	digests, lastChunk, err := w.writer.Close()
	if err != nil {
		w.b.failObject()
		return ObjectInfo{}, fmt.Errorf("zff: close physical object %d: %w", w.objectNo, err)
	}

	w.header.HashSignature = w.writer.HashSignature()

	if err := w.b.finishObject(w.header, digests); err != nil {
		return ObjectInfo{}, err
	}

	return ObjectInfo{
		ObjectNo:    w.objectNo,
		Kind:        zffheader.ObjectPhysical,
		TotalLength: w.header.TotalLength,
		LastChunk:   lastChunk,
	}, nil
}

// beginObject validates the session is in a state that permits opening a new object.
func (b *ContainerBuilder) beginObject() error {
	if err := b.state.require(stateHeaderWritten, stateObjectClosed); err != nil {
		return err
	}

	if b.open != nil {
		return &errdefs.StateViolationError{Expected: "no object open", Actual: "object open"}
	}

	b.state = stateObjectOpen

	return nil
}

// abortObject reverts a beginObject call that failed before an object.writer was fully constructed.
func (b *ContainerBuilder) abortObject() {
	b.open = nil
	b.state = stateObjectClosed
}

// failObject records that the currently open object failed to close cleanly (spec.md §4.8 failure semantics:
// "discards the partial chunk, keeps prior chunks, and transitions to ObjectClosed with an error").
func (b *ContainerBuilder) failObject() {
	b.open = nil
	b.state = stateObjectClosed
}

// finishObject appends the sealed object's header (and, for a logical object, every file record) to the active
// segment and transitions the session to ObjectClosed. digests is unused beyond having already been folded into
// header.HashSignature (for SigHashOnly) by the caller; it's accepted so a future per-object hash listing has
// somewhere natural to hang off of.
func (b *ContainerBuilder) finishObject(header zffheader.ObjectHeader, digests map[uint8][]byte) error {
	if err := b.segWriter.WriteObjectHeader(header); err != nil {
		b.failObject()
		return fmt.Errorf("zff: write object header %d: %w", header.ObjectNo, err)
	}

	if header.Kind == zffheader.ObjectPhysical {
		b.totalDataLen += header.TotalLength
	} else {
		for _, f := range b.open.obj.Files {
			if f.Kind == zffheader.FileRegular {
				b.totalDataLen += f.LogicalLength
			}

			if err := b.segWriter.WriteFileRecord(header.ObjectNo, f); err != nil {
				b.failObject()
				return fmt.Errorf("zff: write file record %d/%d: %w", header.ObjectNo, f.ID, err)
			}
		}
	}

	b.open = nil
	b.sealedCount++
	b.state = stateObjectClosed

	return nil
}

// ObjectInfo summarizes a sealed object for Container.Objects (spec.md §6 "ObjectInfo").
type ObjectInfo struct {
	ObjectNo    uint32
	Kind        uint8
	TotalLength uint64
	LastChunk   uint64
}
