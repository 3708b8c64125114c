//go:build darwin

package copyproto

import (
	"os"
	"syscall"
)

// FileTimes returns the access and modification times (seconds since the
// epoch) to embed in a preserve-mode T-line.
func FileTimes(fi os.FileInfo) (atime, mtime int64) {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return st.Atimespec.Sec, st.Mtimespec.Sec
	}
	t := fi.ModTime().Unix()
	return t, t
}
