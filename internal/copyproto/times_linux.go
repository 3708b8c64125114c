//go:build linux

package copyproto

import (
	"os"
	"syscall"
)

// FileTimes returns the access and modification times (seconds since the
// epoch) to embed in a preserve-mode T-line (spec.md §4.4). Linux's
// os.FileInfo.Sys() is a *syscall.Stat_t carrying both.
func FileTimes(fi os.FileInfo) (atime, mtime int64) {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return st.Atim.Sec, st.Mtim.Sec
	}
	t := fi.ModTime().Unix()
	return t, t
}
