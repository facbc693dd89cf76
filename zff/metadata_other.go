//go:build !linux

package zff

import (
	"io/fs"

	"github.com/zffdev/zff/zffheader"
)

// fileMetadataFrom fills in only what fs.FileInfo exposes portably; atime/ctime/uid/gid stay zero outside linux.
func fileMetadataFrom(info fs.FileInfo) zffheader.FileMetadata {
	return zffheader.FileMetadata{
		Mtime: info.ModTime().UnixNano(),
		Mode:  uint32(info.Mode().Perm()),
	}
}
