package fsio

import "errors"

// ErrNotFile is returned by FileExists when the path resolves to something other than a regular file (e.g. a
// directory), since callers asking "does this file exist" generally want that distinction surfaced rather than
// silently treated as existence.
var ErrNotFile = errors.New("path exists but is not a regular file")
