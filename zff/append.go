package zff

import (
	"fmt"

	"github.com/zffdev/zff/cryptofmt"
	"github.com/zffdev/zff/errdefs"
	"github.com/zffdev/zff/segindex"
	"github.com/zffdev/zff/segment"
	"github.com/zffdev/zff/zffheader"
)

// OpenForAppend reopens an already-sealed container for a new acquisition session that adds more objects to it
// (spec.md §3 Lifecycle: "Appending new objects to an existing sealed container is permitted; this writes a new
// segment, updates the container index, and re-seals"). The returned builder continues the same container UUID,
// data key, and object numbering; cfg.Encryption is ignored in favor of the key recovered from password, since
// every object must share one data key for the read side to work. Call Seal when done to re-seal with updated
// totals, exactly as with a freshly created container.
func OpenForAppend(cfg BuilderConfig, password []byte) (*ContainerBuilder, error) {
	if cfg.Stem == "" {
		return nil, &errdefs.BadConfigError{Reason: "stem must not be empty"}
	}

	if cfg.ChunkSizeExponent < zffheader.MinChunkSizeExponent || cfg.ChunkSizeExponent > zffheader.MaxChunkSizeExponent {
		return nil, &errdefs.BadConfigError{
			Reason: fmt.Sprintf("chunk size exponent %d out of range [%d,%d]",
				cfg.ChunkSizeExponent, zffheader.MinChunkSizeExponent, zffheader.MaxChunkSizeExponent),
		}
	}

	seg, err := segment.Open(cfg.Stem)
	if err != nil {
		return nil, err
	}
	defer seg.Close()

	segNo, offset, found := findMainHeader(seg)
	if !found {
		return nil, &errdefs.BadConfigError{Reason: "container has no main header"}
	}

	main, dataKey, hasDataKey, err := unlockMainHeaderAt(seg, segNo, offset, password)
	if err != nil {
		return nil, err
	}

	if hasDataKey != (main.Encryption != nil) {
		return nil, &errdefs.BadConfigError{Reason: "append session encryption state mismatch"}
	}

	b := &ContainerBuilder{
		cfg:           cfg,
		containerUUID: main.Segment.ContainerUUID,
		merged:        segindex.NewMerged(),
		encryption:    main.Encryption,
		dataKey:       dataKey,
		state:         stateOpening,
		nextObjectNo:  nextObjectNumber(seg),
		totalDataLen:  main.TotalDataLen,
	}

	if cfg.SignMode != zffheader.SigNone {
		pub, priv, err := cryptofmt.GenerateSigningKey()
		if err != nil {
			return nil, err
		}

		b.signingPublic, b.signingPriv = pub, priv
	}

	startSegmentNo := nextSegmentNumber(seg)

	segWriter, err := segment.NewAppendWriter(cfg.Stem, b.containerUUID, cfg.SegmentSize, b.merged, startSegmentNo)
	if err != nil {
		return nil, err
	}

	b.segWriter = segWriter
	b.state = stateHeaderWritten

	return b, nil
}

// nextObjectNumber returns one past the highest object number already sealed into the container, found by scanning
// every segment's footer for FooterKindObjectHeader entries rather than decoding each object header in full.
func nextObjectNumber(seg *segment.Reader) uint32 {
	next := uint32(0)

	for _, segNo := range seg.SegmentNumbers() {
		footer, ok := seg.Footer(segNo)
		if !ok {
			continue
		}

		for _, e := range footer.Entries {
			if e.Kind == zffheader.FooterKindObjectHeader && e.ObjectNo+1 > next {
				next = e.ObjectNo + 1
			}
		}
	}

	return next
}

// nextSegmentNumber returns one past the highest segment number already discovered by seg.
func nextSegmentNumber(seg *segment.Reader) uint64 {
	max := uint64(0)

	for _, n := range seg.SegmentNumbers() {
		if n > max {
			max = n
		}
	}

	return max + 1
}
