// Package copyproto implements the line-oriented, client-push rcp-style
// file copy sub-protocol described in spec.md §4.4 and §6: byte-compatible
// with the classical BSD rcp receiver. Grounded on the teacher's sendFiles
// (ssh.go) and, for the exact per-file sequencing and response-code
// handling, on original_source/src/pdsh/dsh.c's _rcp_sendfile/_rcp_response.
package copyproto

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Response codes sent by the remote receiver before each metadata line.
const (
	respOK       = 0x00
	respNonFatal = 0x01
	respFatal    = 0x02
)

// FatalError is returned when the remote peer reports a fatal condition
// (response code 0x02, or any unrecognized first byte -- spec.md §4.4: "any
// other first byte begins an error message that runs to LF and is treated
// as fatal"). The caller (the copy worker) must stop processing the
// current file's remaining steps and the whole transfer, marking the
// worker FAILED.
type FatalError struct {
	Message string
}

func (e *FatalError) Error() string { return "remote: " + e.Message }

// Driver speaks the protocol over a single duplex stream: Write sends
// metadata/data to the remote peer, Read consumes its response bytes. This
// matches one ssh.Session's combined stdin/stdout acting as the rcp
// connection's single fd in the reference implementation.
type Driver struct {
	w   io.Writer
	r   *bufio.Reader
	buf [32 * 1024]byte
}

func NewDriver(w io.Writer, r io.Reader) *Driver {
	return &Driver{w: w, r: bufio.NewReader(r)}
}

// AwaitGreeting consumes the single response byte the remote peer sends
// before the first metadata line (spec.md §4.4: "The remote peer sends a
// single response byte before the first metadata line; the driver consumes
// that before doing anything else.").
func (d *Driver) AwaitGreeting() error {
	return d.readResponse()
}

// FileInfo describes one local file or directory to push, already resolved
// by internal/fileexpand.
type FileInfo struct {
	Path     string
	Basename string
	IsDir    bool
	Mode     os.FileMode
	Size     int64
	Atime    int64
	Mtime    int64
}

// SendFile runs the per-file sequence from spec.md §4.4 for one file or
// directory entry: optional T-line, the D/C metadata line, and -- for
// regular files only -- the data stream followed by a NUL terminator.
// Preserve gates whether the T-line is sent at all.
// SendFile returns a *FatalError if the remote peer ever reports one --
// the caller must stop processing this file and the whole worker fails.
// A non-fatal (0x01) response is logged by the caller and does not stop
// the rest of this file's sequence (spec.md §4.4: "fatal error aborts this
// file", implying a non-fatal one does not); if more than one step reports
// a non-fatal response the last one is what's returned, since nothing
// later in the sequence can make an earlier warning stale.
func (d *Driver) SendFile(info FileInfo, preserve bool) error {
	var pending error

	if preserve {
		tline := fmt.Sprintf("T%d 0 %d 0\n", info.Atime, info.Mtime)
		if err := d.sendLine(tline); err != nil {
			return err
		}
		if err := d.readResponse(); err != nil {
			if isFatal(err) {
				return err
			}
			pending = err
		}
	}

	var metaLine string
	if info.IsDir {
		metaLine = fmt.Sprintf("D%04o 0 %s\n", info.Mode.Perm()&0o7777, info.Basename)
	} else {
		metaLine = fmt.Sprintf("C%04o %d %s\n", info.Mode.Perm()&0o7777, info.Size, info.Basename)
	}
	if err := d.sendLine(metaLine); err != nil {
		return err
	}
	if err := d.readResponse(); err != nil {
		if isFatal(err) {
			return err
		}
		pending = err
	}

	if info.IsDir {
		return pending
	}

	if err := d.sendFileData(info.Path, info.Size); err != nil {
		return err
	}
	if err := d.write([]byte{0}); err != nil {
		return err
	}
	if err := d.readResponse(); err != nil {
		if isFatal(err) {
			return err
		}
		pending = err
	}
	return pending
}

func isFatal(err error) bool {
	_, ok := err.(*FatalError)
	return ok
}

func (d *Driver) sendFileData(path string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	written, err := io.CopyBuffer(writerFunc(d.write), f, d.buf[:])
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if written != size {
		return fmt.Errorf("%s: short read, sent %d of %d bytes", path, written, size)
	}
	return nil
}

type writerFunc func([]byte) error

func (f writerFunc) Write(p []byte) (int, error) {
	if err := f(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (d *Driver) sendLine(line string) error {
	return d.write([]byte(line))
}

// write retries on short writes with the unwritten suffix (spec.md §4.4:
// "Write loops must tolerate short writes by retrying with the unwritten
// suffix"). A zero-length successful write is treated as a closed/broken
// pipe rather than a hard assertion failure (spec.md §9, Open Question (c),
// decided): Go's io.Writer contract makes a persistent 0,nil return a
// violation by the underlying writer, which we surface as an error instead
// of panicking.
func (d *Driver) write(buf []byte) error {
	for len(buf) > 0 {
		n, err := d.w.Write(buf)
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
		if n == 0 {
			return io.ErrClosedPipe
		}
		buf = buf[n:]
	}
	return nil
}

// readResponse reads one response byte and, for non-OK codes, the error
// message that follows up to LF (spec.md §4.4). A non-fatal response
// (0x01) returns a plain error the caller logs and continues past; a fatal
// response (0x02) or any unrecognized first byte returns *FatalError.
func (d *Driver) readResponse() error {
	b, err := d.r.ReadByte()
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch b {
	case respOK:
		return nil
	case respNonFatal:
		msg, err := d.readErrorMessage()
		if err != nil {
			return err
		}
		return fmt.Errorf("remote: %s", msg)
	case respFatal:
		msg, err := d.readErrorMessage()
		if err != nil {
			return err
		}
		return &FatalError{Message: msg}
	default:
		// Unrecognized first byte begins an error message that runs to LF
		// and is treated as fatal.
		rest, err := d.readErrorMessage()
		if err != nil {
			return err
		}
		return &FatalError{Message: string(b) + rest}
	}
}

func (d *Driver) readErrorMessage() (string, error) {
	line, err := d.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read error message: %w", err)
	}
	return string(bytes.TrimSuffix([]byte(line), []byte("\n"))), nil
}

// Basename mirrors the reference implementation's xbasename, trimming a
// trailing slash before taking the final path component so a directory
// argument passed with a trailing slash still yields the directory's own
// name rather than an empty string.
func Basename(path string) string {
	return filepath.Base(filepath.Clean(path))
}
