// Package signalmediator serializes the operator's interrupt into the
// "enumerate-once, abort-on-second" protocol from spec.md §4.7: the first
// SIGINT within a window lists every worker's phase and remaining
// deadline; a second SIGINT within that window forwards the signal to
// every STREAMING worker's remote peer and aborts. Batch mode collapses
// this to "any interrupt aborts immediately" (reference implementation's
// _int_handler_justdie, used for -b).
package signalmediator

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// IntrWindow is the reference implementation's INTR_TIME: the window within
// which a second interrupt aborts rather than re-enumerating.
const IntrWindow = 1 * time.Second

// WorkerStatus is a reporting snapshot for one worker, used only to render
// the enumeration printed on the first interrupt.
type WorkerStatus struct {
	Host          string
	PhaseName     string
	RemainingSecs int64 // valid only when Connecting or Streaming with a nonzero timeout
	HasDeadline   bool
}

// Mediator owns the double-interrupt state machine. It is driven by
// whatever delivers process signals (cmd/prdsh wires os/signal.Notify into
// Handle); this package has no signal-handling code of its own so it stays
// trivially testable.
type Mediator struct {
	Batch      bool
	Out        io.Writer
	Statuses   func() []WorkerStatus
	ForwardAll func(signum int)
	Abort      func()

	mu       sync.Mutex
	lastIntr time.Time
}

func New(batch bool, out io.Writer, statuses func() []WorkerStatus, forwardAll func(signum int), abort func()) *Mediator {
	return &Mediator{Batch: batch, Out: out, Statuses: statuses, ForwardAll: forwardAll, Abort: abort}
}

// Handle processes one received interrupt (SIGINT), signum is forwarded
// verbatim to remote peers on abort.
func (m *Mediator) Handle(signum int) {
	if m.Batch {
		m.ForwardAll(signum)
		m.Abort()
		return
	}

	m.mu.Lock()
	now := time.Now()
	first := now.Sub(m.lastIntr) > IntrWindow
	m.lastIntr = now
	m.mu.Unlock()

	if first {
		fmt.Fprintf(m.Out, "interrupt (one more within %d sec to abort)\n", int(IntrWindow/time.Second))
		m.enumerate()
		return
	}

	m.ForwardAll(signum)
	m.Abort()
}

func (m *Mediator) enumerate() {
	for _, s := range m.Statuses() {
		if s.HasDeadline {
			fmt.Fprintf(m.Out, "%s: %s (timeout in %d secs)\n", s.Host, s.PhaseName, s.RemainingSecs)
		} else {
			fmt.Fprintf(m.Out, "%s: %s\n", s.Host, s.PhaseName)
		}
	}
}
