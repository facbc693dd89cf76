//go:build linux

package zff

import (
	"io/fs"
	"syscall"

	"github.com/zffdev/zff/zffheader"
)

// fileMetadataFrom fills in atime/ctime/uid/gid from the platform-specific stat structure beneath info, which
// os.Lstat/os.ReadDir populate on unix but not on Windows.
func fileMetadataFrom(info fs.FileInfo) zffheader.FileMetadata {
	meta := zffheader.FileMetadata{
		Mtime: info.ModTime().UnixNano(),
		Mode:  uint32(info.Mode().Perm()),
	}

	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		meta.Atime = sys.Atim.Sec*1e9 + sys.Atim.Nsec
		meta.Ctime = sys.Ctim.Sec*1e9 + sys.Ctim.Nsec
		meta.UID = sys.Uid
		meta.GID = sys.Gid
	}

	return meta
}
