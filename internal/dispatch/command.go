package dispatch

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/mnikhil-git/mnikhil-pdsh/internal/ioout"
	"github.com/mnikhil-git/mnikhil-pdsh/internal/transport"
)

// runCommandWorker drives one command-mode worker through its full
// CONNECTING -> STREAMING -> {DONE, FAILED} lifecycle (spec.md §4.2). There
// is no POSIX signal-blocking step to translate here: ctx cancellation
// (watchdog deadline, gang abort, operator double-interrupt) is the single
// mechanism that unblocks whatever this goroutine happens to be doing,
// everywhere the reference implementation relied on SIGALRM.
func (d *Dispatcher) runCommandWorker(ctx context.Context, w *Worker, opts *Options) {
	cmd := opts.Command.Command
	if opts.DSHPath != "" {
		cmd = CommandWithPathPrefix(opts.DSHPath, cmd)
	}
	if opts.GetStat {
		cmd = CommandWithStatusSentinel(cmd)
	}

	w.markConnecting()

	session, err := d.Transport.Open(ctx, transport.OpenRequest{
		Host:       w.Host,
		Addr:       w.Addr,
		LocalUser:  w.LocalUser,
		RemoteUser: w.RemoteUser,
		Command:    cmd,
		NodeID:     w.NodeID,
		WantStderr: opts.Command.SeparateStderr,
		Port:       opts.Port,
	})
	if err != nil {
		d.Sink.Diagnostic(w.Host, "connect: %s", err)
		w.markFailed(err)
		return
	}
	w.setSession(session)
	w.markStreaming()

	type lineMsg struct {
		stream ioout.Stream
		line   string
		err    error
	}
	ch := make(chan lineMsg)
	var readers sync.WaitGroup

	readStream := func(r io.Reader, stream ioout.Stream) {
		defer readers.Done()
		if r == nil {
			return
		}
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadString('\n')
			if line != "" {
				ch <- lineMsg{stream: stream, line: line}
			}
			if err != nil {
				if err != io.EOF {
					ch <- lineMsg{stream: stream, err: err}
				}
				return
			}
		}
	}

	readers.Add(1)
	go readStream(session.Stdout(), ioout.Stdout)
	if opts.Command.SeparateStderr {
		readers.Add(1)
		go readStream(session.Stderr(), ioout.Stderr)
	}
	go func() {
		readers.Wait()
		close(ch)
	}()

	type waitResult struct {
		rc  int
		err error
	}
	waitCh := make(chan waitResult, 1)
	go func() {
		rc, err := session.Wait()
		waitCh <- waitResult{rc: rc, err: err}
	}()

	for msg := range ch {
		if msg.err != nil {
			d.Sink.Diagnostic(w.Host, "%s", msg.err)
			continue
		}
		line := msg.line
		if msg.stream == ioout.Stdout {
			if truncated, rc, ok := ExtractRC(line); ok {
				w.setRemoteRC(rc)
				line = truncated
			}
		}
		d.Sink.Line(w.Host, msg.stream, line)
	}

	res := <-waitCh
	session.Close()

	switch {
	case ctx.Err() != nil:
		d.Sink.Diagnostic(w.Host, "command timeout")
		w.markFailed(ctx.Err())
	case res.err != nil:
		d.Sink.Diagnostic(w.Host, "%s", res.err)
		w.markFailed(res.err)
	default:
		w.markDone()
	}
}
