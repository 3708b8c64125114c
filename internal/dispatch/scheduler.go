package dispatch

import (
	"context"
	"fmt"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/mnikhil-git/mnikhil-pdsh/internal/fileexpand"
	"github.com/mnikhil-git/mnikhil-pdsh/internal/ioout"
	"github.com/mnikhil-git/mnikhil-pdsh/internal/signalmediator"
	"github.com/mnikhil-git/mnikhil-pdsh/internal/transport"
	"github.com/mnikhil-git/mnikhil-pdsh/internal/watchdog"
)

// Options carries everything one dispatch run needs that isn't already
// per-host (that lives on the Worker records built by Prepare).
type Options struct {
	Hosts          []string
	Fanout         int
	TransportKind  transport.Kind
	LocalUser      string
	RemoteUser     string
	Port           int
	Mode           Mode
	Command        CommandSpec
	Copy           CopySpec
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	GetStat        bool
	DSHPath        string
	Batch          bool
}

// Dispatcher owns the shared, run-independent collaborators: the resolved
// transport, the host resolver, and the output sink. One Dispatcher can
// drive many sequential runs (e.g. a long-lived daemon mode), though
// cmd/prdsh only ever builds one per invocation.
type Dispatcher struct {
	Transport transport.Transport
	Resolver  *transport.Resolver
	Sink      *ioout.Sink
}

// Prepare resolves every host, builds the worker table, and -- in copy mode
// -- pre-expands the input file list before any worker is launched (spec.md
// §4.1 steps 1-4, §4.8). Any failure here aborts the whole run before a
// single connection is attempted.
func (d *Dispatcher) Prepare(ctx context.Context, opts *Options) (*Table, error) {
	if opts.Mode == ModeCopy {
		expanded, err := fileexpand.Expand(opts.Copy.InputFiles)
		if err != nil {
			return nil, fmt.Errorf("expand input files: %w", err)
		}
		opts.Copy.InputFiles = expanded
	}

	workers := make([]*Worker, len(opts.Hosts))
	for i, host := range opts.Hosts {
		addr, err := d.Resolver.Resolve(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", host, err)
		}

		w := NewWorker(i, host, opts.TransportKind)
		w.Addr = addr
		w.LocalUser = opts.LocalUser
		w.RemoteUser = opts.RemoteUser
		w.Mode = opts.Mode
		w.Command = opts.Command
		w.Copy = opts.Copy
		workers[i] = w
	}
	return NewTable(workers), nil
}

// Statuses builds the snapshot the signal mediator enumerates on the first
// interrupt (spec.md §4.7).
func Statuses(table *Table, opts *Options) func() []signalmediator.WorkerStatus {
	return func() []signalmediator.WorkerStatus {
		out := make([]signalmediator.WorkerStatus, 0, table.Len())
		now := time.Now()
		for _, w := range table.Workers {
			phase := w.Phase()
			s := signalmediator.WorkerStatus{Host: w.Host, PhaseName: phase.String()}
			var deadline time.Duration
			switch phase {
			case PhaseConnecting:
				deadline = opts.ConnectTimeout
			case PhaseStreaming:
				deadline = opts.CommandTimeout
			}
			if deadline > 0 {
				remaining := deadline - now.Sub(w.since())
				if remaining < 0 {
					remaining = 0
				}
				s.HasDeadline = true
				s.RemainingSecs = int64(remaining / time.Second)
			}
			out = append(out, s)
		}
		return out
	}
}

// ForwardAll builds the second-interrupt broadcast the signal mediator
// calls: every worker still streaming gets the signal forwarded to its
// remote peer (spec.md §4.7).
func ForwardAll(table *Table) func(signum int) {
	return func(signum int) {
		for _, w := range table.Workers {
			if w.Phase() == PhaseStreaming {
				w.Signal(signum)
			}
		}
	}
}

// workerWatchdogTarget adapts a Worker to watchdog.Target without giving the
// watchdog package a dependency on dispatch.
type workerWatchdogTarget struct {
	w      *Worker
	cancel context.CancelFunc
}

func (t *workerWatchdogTarget) WatchdogState() (watchdog.Phase, time.Time) {
	switch t.w.Phase() {
	case PhaseConnecting:
		return watchdog.PhaseConnecting, t.w.since()
	case PhaseStreaming:
		return watchdog.PhaseStreaming, t.w.since()
	default:
		return watchdog.PhaseOther, time.Time{}
	}
}

func (t *workerWatchdogTarget) Cancel() { t.cancel() }

// Run launches the watchdog and every worker goroutine, bounded to
// opts.Fanout concurrent connections via a weighted semaphore (spec.md §4.1
// step 6-9, §5). cancel is the CancelFunc paired with ctx; a worker running
// over the gang-launch interconnect transport that ends FAILED calls it to
// abort the whole run, and the signal mediator's second-interrupt handler
// calls it too. Every worker is guaranteed to end in Done or Failed before
// Run returns (invariant 5): workers that never get to run because ctx was
// canceled mid-admission are marked Failed explicitly rather than left New.
func (d *Dispatcher) Run(ctx context.Context, cancel context.CancelFunc, table *Table, opts *Options) (int, error) {
	targets := make([]watchdog.Target, table.Len())
	workerCtxs := make([]context.Context, table.Len())
	for i, w := range table.Workers {
		wctx, wcancel := context.WithCancel(ctx)
		workerCtxs[i] = wctx
		targets[i] = &workerWatchdogTarget{w: w, cancel: wcancel}
	}

	wd := watchdog.New(opts.ConnectTimeout, opts.CommandTimeout, func() []watchdog.Target { return targets })
	wdCtx, wdCancel := context.WithCancel(ctx)
	defer wdCancel()
	go wd.Run(wdCtx)

	sem := semaphore.NewWeighted(int64(maxInt(opts.Fanout, 1)))

	var wg sync.WaitGroup
	launched := 0
	for i, w := range table.Workers {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		launched = i + 1

		wg.Add(1)
		go func(i int, w *Worker) {
			defer wg.Done()
			defer sem.Release(1)
			d.runWorker(workerCtxs[i], cancel, table, w, opts)
		}(i, w)
	}

	for i := launched; i < table.Len(); i++ {
		table.Workers[i].markFailed(ctx.Err())
	}

	wg.Wait()
	return computeStatus(table), nil
}

func (d *Dispatcher) runWorker(ctx context.Context, cancel context.CancelFunc, table *Table, w *Worker, opts *Options) {
	switch w.Mode {
	case ModeCopy:
		d.runCopyWorker(ctx, w, opts)
	default:
		d.runCommandWorker(ctx, w, opts)
	}

	// A failed worker on the gang-launch interconnect transport takes the
	// whole run down with it: the fabric's sessions aren't independent the
	// way ssh connections are (spec.md §9, interconnect transport note).
	// Per spec.md §4.2 step 7 and §6 ("TERM is broadcast on gang-transport
	// failure"), that means an actual termination signal reaches every
	// other still-streaming peer, not just a local context cancellation --
	// the same broadcast the signal mediator's second interrupt uses.
	if w.TransportKind == transport.Interconnect && w.Phase() == PhaseFailed {
		ForwardAll(table)(int(syscall.SIGTERM))
		cancel()
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
