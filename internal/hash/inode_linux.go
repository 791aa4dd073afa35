//go:build linux

package hash

import (
	"os"
	"syscall"
)

// inodeOf extracts the inode number from os.FileInfo on Linux, completing
// the (size, mtime, inode) metadata fast-path key from spec.md §4.1.
func inodeOf(fi os.FileInfo) uint64 {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return st.Ino
	}
	return 0
}
