package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mnikhil-git/mnikhil-pdsh/internal/copyproto"
	"github.com/mnikhil-git/mnikhil-pdsh/internal/transport"
)

// runCopyWorker drives one copy-mode worker: it opens an rcp-compatible
// remote receiver and pushes every pre-expanded local path in turn (spec.md
// §4.3, §4.4). The file list was already walked and access-checked by
// fileexpand.Expand in Dispatcher.Prepare, so a failure here is limited to
// transport errors and the remote receiver's own protocol responses.
func (d *Dispatcher) runCopyWorker(ctx context.Context, w *Worker, opts *Options) {
	rcpCmd := buildRcpCommand(opts.Copy)

	w.markConnecting()

	session, err := d.Transport.Open(ctx, transport.OpenRequest{
		Host:       w.Host,
		Addr:       w.Addr,
		LocalUser:  w.LocalUser,
		RemoteUser: w.RemoteUser,
		Command:    rcpCmd,
		NodeID:     w.NodeID,
		Port:       opts.Port,
	})
	if err != nil {
		d.Sink.Diagnostic(w.Host, "connect: %s", err)
		w.markFailed(err)
		return
	}
	w.setSession(session)
	w.markStreaming()

	driver := copyproto.NewDriver(session.Stdin(), session.Stdout())

	if err := driver.AwaitGreeting(); err != nil {
		d.Sink.Diagnostic(w.Host, "%s", err)
		session.Close()
		w.markFailed(err)
		return
	}

	var failErr error
	for _, path := range w.Copy.InputFiles {
		info, err := copyFileInfo(path)
		if err != nil {
			failErr = err
			break
		}
		if err := driver.SendFile(info, w.Copy.Preserve); err != nil {
			var fatal *copyproto.FatalError
			if errors.As(err, &fatal) {
				failErr = err
				break
			}
			// Non-fatal peer response: log and move on to the next file
			// (spec.md §7: "non-fatal → log line, continue with next file").
			d.Sink.Diagnostic(w.Host, "%s", err)
		}
	}

	session.Close()

	switch {
	case ctx.Err() != nil:
		d.Sink.Diagnostic(w.Host, "command timeout")
		w.markFailed(ctx.Err())
	case failErr != nil:
		d.Sink.Diagnostic(w.Host, "%s", failErr)
		w.markFailed(failErr)
	default:
		w.markDone()
	}
}

// buildRcpCommand mirrors the classical rcp invocation a pdsh-family tool
// shells out to on the remote end: "rcp [-r] [-p] [-d] -t <target>"
// (spec.md §4.3/§4.4/§6). "-d" forces the receiver to treat the target as a
// directory, sent whenever the pre-expanded file list (CopySpec.InputFiles,
// set by fileexpand.Expand in Dispatcher.Prepare) has more than one entry
// -- matching original_source/src/pdsh/dsh.c's _rcp_thread, which computes
// this from list_length(a->pcp_infiles), the shared already-expanded list,
// not the count of arguments the operator originally typed.
func buildRcpCommand(copy CopySpec) string {
	cmd := "rcp"
	if copy.Recursive {
		cmd += " -r"
	}
	if copy.Preserve {
		cmd += " -p"
	}
	if len(copy.InputFiles) > 1 {
		cmd += " -d"
	}
	return fmt.Sprintf("%s -t %s", cmd, copy.RemoteTarget)
}

func copyFileInfo(path string) (copyproto.FileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return copyproto.FileInfo{}, fmt.Errorf("stat %s: %w", path, err)
	}
	atime, mtime := copyproto.FileTimes(fi)
	return copyproto.FileInfo{
		Path:     path,
		Basename: copyproto.Basename(path),
		IsDir:    fi.IsDir(),
		Mode:     fi.Mode(),
		Size:     fi.Size(),
		Atime:    atime,
		Mtime:    mtime,
	}, nil
}
