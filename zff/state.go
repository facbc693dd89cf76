package zff

import (
	"fmt"

	"github.com/zffdev/zff/errdefs"
)

// sessionState is the acquisition session state machine of spec.md §4.8: Opening -> HeaderWritten ->
// ObjectOpen(n) -> ObjectClosed(n) -> ... -> Sealed. Writing a chunk is legal only in objectOpen. sealed is
// terminal for the session; a later append opens a fresh session against the same container UUID.
type sessionState uint8

const (
	stateOpening sessionState = iota
	stateHeaderWritten
	stateObjectOpen
	stateObjectClosed
	stateSealed
)

func (s sessionState) String() string {
	switch s {
	case stateOpening:
		return "opening"
	case stateHeaderWritten:
		return "header_written"
	case stateObjectOpen:
		return "object_open"
	case stateObjectClosed:
		return "object_closed"
	case stateSealed:
		return "sealed"
	default:
		return fmt.Sprintf("sessionState(%d)", uint8(s))
	}
}

// require returns a StateViolationError if the session isn't currently in one of the given states.
func (s sessionState) require(allowed ...sessionState) error {
	for _, a := range allowed {
		if s == a {
			return nil
		}
	}

	expected := ""

	for i, a := range allowed {
		if i > 0 {
			expected += "|"
		}

		expected += a.String()
	}

	return &errdefs.StateViolationError{Expected: expected, Actual: s.String()}
}
