package dispatch

import (
	"sync"
	"time"

	"github.com/mnikhil-git/mnikhil-pdsh/internal/transport"
)

// Mode distinguishes a command worker from a copy worker (spec.md §3,
// "mode-specific" fields).
type Mode int

const (
	ModeCommand Mode = iota
	ModeCopy
)

// CommandSpec carries the command-mode mode-specific fields.
type CommandSpec struct {
	Command        string
	Labels         bool
	SeparateStderr bool
}

// CopySpec carries the copy-mode mode-specific fields. InputFiles starts as
// the caller's original top-level paths and is replaced in-place by
// Dispatcher.Prepare with the pre-expanded list (spec.md §4.8) -- it is the
// length of that expanded list, not the original argument count, that
// decides whether "-d" is sent (spec.md §4.3; original_source/src/pdsh/
// dsh.c's _rcp_thread computes it from list_length(a->pcp_infiles), the
// shared already-expanded list).
type CopySpec struct {
	InputFiles   []string
	RemoteTarget string
	Preserve     bool
	Recursive    bool
}

// Worker is one per-host record, created at dispatch and retained until
// final status aggregation (spec.md §3). Timestamps and RemoteRC are
// guarded by a mutex rather than left to atomic word tricks: they are
// read far less often than Phase (only by the watchdog's per-tick scan,
// the signal mediator's enumeration, and the final aggregator) so the
// small extra cost of a mutex buys straightforward correctness.
type Worker struct {
	Host          string
	Addr          string
	LocalUser     string
	RemoteUser    string
	TransportKind transport.Kind
	NodeID        int
	Mode          Mode
	Command       CommandSpec
	Copy          CopySpec

	phase atomicPhase

	mu         sync.Mutex
	startTime  time.Time
	connectTime time.Time
	finishTime time.Time
	remoteRC   int
	lastErr    error

	session transport.Session
}

func NewWorker(nodeID int, host string, kind transport.Kind) *Worker {
	w := &Worker{Host: host, NodeID: nodeID, TransportKind: kind}
	w.phase.Store(PhaseNew)
	return w
}

func (w *Worker) Phase() Phase { return w.phase.Load() }

func (w *Worker) setPhase(p Phase) { w.phase.Store(p) }

func (w *Worker) markConnecting() {
	w.mu.Lock()
	w.startTime = time.Now()
	w.mu.Unlock()
	w.setPhase(PhaseConnecting)
}

func (w *Worker) markStreaming() {
	w.mu.Lock()
	w.connectTime = time.Now()
	w.mu.Unlock()
	w.setPhase(PhaseStreaming)
}

func (w *Worker) markDone() {
	w.mu.Lock()
	w.finishTime = time.Now()
	w.mu.Unlock()
	w.setPhase(PhaseDone)
}

func (w *Worker) markFailed(err error) {
	w.mu.Lock()
	w.finishTime = time.Now()
	w.lastErr = err
	w.mu.Unlock()
	w.setPhase(PhaseFailed)
}

func (w *Worker) setRemoteRC(rc int) {
	w.mu.Lock()
	w.remoteRC = rc
	w.mu.Unlock()
}

func (w *Worker) setSession(s transport.Session) {
	w.mu.Lock()
	w.session = s
	w.mu.Unlock()
}

// Signal forwards an operator signal to this worker's remote peer, used by
// the signal mediator's second-interrupt broadcast. A worker with no live
// session (not yet connected, or already finished) silently no-ops.
func (w *Worker) Signal(signum int) error {
	w.mu.Lock()
	s := w.session
	w.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Signal(signum)
}

// since returns the wall-clock instant relevant to the worker's current
// phase, for watchdog deadline accounting: start of connect while
// Connecting, start of streaming while Streaming.
func (w *Worker) since() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.phase.Load() {
	case PhaseConnecting:
		return w.startTime
	case PhaseStreaming:
		return w.connectTime
	default:
		return time.Time{}
	}
}

// Snapshot returns a consistent copy of the timestamps, last error, and
// remote return code for reporting (final status aggregation and the
// debug-stats dump; watchdog deadlines and the signal mediator's
// enumeration use since instead).
type Snapshot struct {
	Phase       Phase
	StartTime   time.Time
	ConnectTime time.Time
	FinishTime  time.Time
	RemoteRC    int
	Err         error
}

func (w *Worker) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		Phase:       w.phase.Load(),
		StartTime:   w.startTime,
		ConnectTime: w.connectTime,
		FinishTime:  w.finishTime,
		RemoteRC:    w.remoteRC,
		Err:         w.lastErr,
	}
}

// Table is the fixed host-indexed collection of workers for one dispatch
// run. The reference implementation NULL-terminates a global array so a
// signal handler that cannot allocate can still traverse it; Go's signal
// handling is channel-based rather than executing inside a restricted
// async-signal context (spec.md §9's alternative: "the handler posts to a
// self-pipe/event and a dedicated thread performs the enumeration"), so a
// plain slice is sufficient and simpler.
type Table struct {
	Workers []*Worker
}

func NewTable(workers []*Worker) *Table {
	return &Table{Workers: workers}
}

func (t *Table) Len() int { return len(t.Workers) }

// ActiveCount returns the number of workers currently in Connecting or
// Streaming, the quantity the fan-out ceiling invariant bounds.
func (t *Table) ActiveCount() int {
	n := 0
	for _, w := range t.Workers {
		switch w.Phase() {
		case PhaseConnecting, PhaseStreaming:
			n++
		}
	}
	return n
}
