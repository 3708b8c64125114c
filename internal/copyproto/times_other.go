//go:build !linux && !darwin

package copyproto

import "os"

// FileTimes returns the access and modification times (seconds since the
// epoch) to embed in a preserve-mode T-line. On platforms where we don't
// special-case the raw stat structure it falls back to ModTime for both
// fields; spec.md §4.4 allows emitting 0 for the microsecond fields
// regardless, so the precision lost here doesn't change wire compatibility.
func FileTimes(fi os.FileInfo) (atime, mtime int64) {
	t := fi.ModTime().Unix()
	return t, t
}
