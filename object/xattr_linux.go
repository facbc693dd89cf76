//go:build linux
// +build linux

package object

import (
	"golang.org/x/sys/unix"
)

// posixACLAccessXattr is the extended attribute name under which the kernel stores a file's POSIX ACL (when one
// is set beyond the owner/group/other permission bits).
const posixACLAccessXattr = "system.posix_acl_access"

// CollectXattrs reads every user-visible extended attribute of path into a map, skipping posixACLAccessXattr
// (fetched separately by CollectPosixACL). Returns an empty, non-nil map if the filesystem has none.
func CollectXattrs(path string) (map[string][]byte, error) {
	names, err := listXattrNames(path)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(names))

	for _, name := range names {
		if name == posixACLAccessXattr {
			continue
		}

		value, err := getXattr(path, name)
		if err != nil {
			return nil, err
		}

		out[name] = value
	}

	return out, nil
}

// CollectPosixACL reads the raw system.posix_acl_access xattr, if set. Returns (nil, nil) when the file has no
// ACL beyond its standard permission bits.
func CollectPosixACL(path string) ([]byte, error) {
	value, err := getXattr(path, posixACLAccessXattr)
	if err != nil {
		if err == unix.ENODATA {
			return nil, nil
		}

		return nil, err
	}

	return value, nil
}

func listXattrNames(path string) ([]string, error) {
	size, err := unix.Listxattr(path, nil)
	if err != nil {
		return nil, err
	}

	if size == 0 {
		return nil, nil
	}

	buf := make([]byte, size)

	n, err := unix.Listxattr(path, buf)
	if err != nil {
		return nil, err
	}

	return splitNulTerminated(buf[:n]), nil
}

func getXattr(path, name string) ([]byte, error) {
	size, err := unix.Getxattr(path, name, nil)
	if err != nil {
		return nil, err
	}

	if size == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, size)

	n, err := unix.Getxattr(path, name, buf)
	if err != nil {
		return nil, err
	}

	return buf[:n], nil
}

func splitNulTerminated(buf []byte) []string {
	var names []string

	start := 0

	for i, b := range buf {
		if b == 0 {
			if i > start {
				names = append(names, string(buf[start:i]))
			}

			start = i + 1
		}
	}

	return names
}
