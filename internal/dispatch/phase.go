// Package dispatch implements the concurrent dispatch engine: the fan-out
// scheduler, the per-host worker state machine (command and copy modes),
// and aggregate status computation. This is the core described by
// SPEC_FULL.md §4.1-§4.3.
package dispatch

import "sync/atomic"

// Phase is the coarse state of a worker as observed by the watchdog, the
// signal mediator, and the final aggregator. It only ever advances, with a
// single back-edge from Connecting or Streaming to Failed (spec.md §3,
// invariant 1).
type Phase int32

const (
	PhaseNew Phase = iota
	PhaseConnecting
	PhaseStreaming
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "new"
	case PhaseConnecting:
		return "connecting"
	case PhaseStreaming:
		return "streaming"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// atomicPhase is a single-writer/multi-reader phase field. Readers (the
// watchdog, the signal mediator) only ever use the value for reporting and
// timeout decisions, so a plain atomic load/store -- rather than a mutex --
// suffices, matching spec.md §5's assumption that integer word writes are
// atomic.
type atomicPhase struct {
	v atomic.Int32
}

func (p *atomicPhase) Load() Phase      { return Phase(p.v.Load()) }
func (p *atomicPhase) Store(phase Phase) { p.v.Store(int32(phase)) }
