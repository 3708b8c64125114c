package dispatch

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mnikhil-git/mnikhil-pdsh/internal/ioout"
	"github.com/mnikhil-git/mnikhil-pdsh/internal/transport"
)

// fakeTransport never dials a real network; it tracks peak concurrent Open
// calls so tests can assert the fan-out ceiling invariant (spec.md §8,
// scenario: "no more than F workers are ever concurrently admitted").
type fakeTransport struct {
	mu      sync.Mutex
	current int
	peak    int
	delay   time.Duration
	rc      int
	failAll bool
}

func (f *fakeTransport) Init(ctx context.Context) error { return nil }

func (f *fakeTransport) Open(ctx context.Context, req transport.OpenRequest) (transport.Session, error) {
	if f.failAll {
		return nil, errTestFailure
	}
	f.mu.Lock()
	f.current++
	if f.current > f.peak {
		f.peak = f.current
	}
	f.mu.Unlock()

	time.Sleep(f.delay)

	f.mu.Lock()
	f.current--
	f.mu.Unlock()

	return &fakeSession{stdout: strings.NewReader("hello\n" + RCMagic + itoa(f.rc) + "\n")}, nil
}

var errTestFailure = &testError{"fake connect failure"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

type fakeSession struct {
	stdout io.Reader
}

func (s *fakeSession) Stdin() io.WriteCloser { return nopWriteCloser{} }
func (s *fakeSession) Stdout() io.Reader     { return s.stdout }
func (s *fakeSession) Stderr() io.Reader     { return nil }
func (s *fakeSession) Wait() (int, error)    { return 0, nil }
func (s *fakeSession) Close() error          { return nil }
func (s *fakeSession) Signal(signum int) error { return nil }

type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }

func newTestDispatcher(tr transport.Transport) *Dispatcher {
	return &Dispatcher{
		Transport: tr,
		Resolver:  transport.NewResolver(""),
		Sink:      ioout.New(io.Discard, io.Discard, true, false),
	}
}

func TestRun_FanoutCeilingNeverExceeded(t *testing.T) {
	ft := &fakeTransport{delay: 5 * time.Millisecond}
	d := newTestDispatcher(ft)

	hosts := make([]string, 10)
	for i := range hosts {
		hosts[i] = "127.0.0." + itoa(i+1)
	}

	opts := &Options{
		Hosts:  hosts,
		Fanout: 3,
		Mode:   ModeCommand,
		Command: CommandSpec{
			Command: "echo hello",
			Labels:  true,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	table, err := d.Prepare(ctx, opts)
	require.NoError(t, err)

	_, err = d.Run(ctx, cancel, table, opts)
	require.NoError(t, err)

	require.LessOrEqual(t, ft.peak, 3)

	for _, w := range table.Workers {
		require.Equal(t, PhaseDone, w.Phase())
	}
}

func TestRun_EveryWorkerReachesTerminalPhase(t *testing.T) {
	ft := &fakeTransport{}
	d := newTestDispatcher(ft)

	opts := &Options{
		Hosts:   []string{"127.0.0.1", "127.0.0.2"},
		Fanout:  1,
		Mode:    ModeCommand,
		Command: CommandSpec{Command: "echo hi"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	table, err := d.Prepare(ctx, opts)
	require.NoError(t, err)

	_, err = d.Run(ctx, cancel, table, opts)
	require.NoError(t, err)

	for _, w := range table.Workers {
		phase := w.Phase()
		require.True(t, phase == PhaseDone || phase == PhaseFailed)
	}
}

func TestRun_ConnectFailureMarksFailed(t *testing.T) {
	ft := &fakeTransport{failAll: true}
	d := newTestDispatcher(ft)

	opts := &Options{
		Hosts:   []string{"127.0.0.1"},
		Fanout:  1,
		Mode:    ModeCommand,
		Command: CommandSpec{Command: "echo hi"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	table, err := d.Prepare(ctx, opts)
	require.NoError(t, err)

	status, err := d.Run(ctx, cancel, table, opts)
	require.NoError(t, err)
	require.Equal(t, ExitFailed, status)
	require.Equal(t, PhaseFailed, table.Workers[0].Phase())
}

// gangFakeTransport models the interconnect transport's gang-launch
// coupling for TestRun_GangAbortForwardsTerminationSignal: node 0 fails its
// connect (after a short delay, so node 1 has time to reach Streaming
// first); node 1's session blocks reading stdout until its context is
// canceled, recording whether Signal was ever called on it.
type gangFakeTransport struct {
	mu       sync.Mutex
	signaled map[int]bool
}

func (g *gangFakeTransport) Init(ctx context.Context) error { return nil }

func (g *gangFakeTransport) wasSignaled(nodeID int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.signaled[nodeID]
}

func (g *gangFakeTransport) Open(ctx context.Context, req transport.OpenRequest) (transport.Session, error) {
	if req.NodeID == 0 {
		time.Sleep(20 * time.Millisecond)
		return nil, errTestFailure
	}

	pr, pw := io.Pipe()
	go func() {
		<-ctx.Done()
		pw.Close()
	}()

	return &gangFakeSession{
		stdout: pr,
		onSignal: func(signum int) {
			g.mu.Lock()
			if g.signaled == nil {
				g.signaled = make(map[int]bool)
			}
			g.signaled[req.NodeID] = true
			g.mu.Unlock()
		},
	}, nil
}

type gangFakeSession struct {
	stdout   io.Reader
	onSignal func(signum int)
}

func (s *gangFakeSession) Stdin() io.WriteCloser { return nopWriteCloser{} }
func (s *gangFakeSession) Stdout() io.Reader     { return s.stdout }
func (s *gangFakeSession) Stderr() io.Reader     { return nil }
func (s *gangFakeSession) Wait() (int, error)    { return 0, nil }
func (s *gangFakeSession) Close() error          { return nil }
func (s *gangFakeSession) Signal(signum int) error {
	s.onSignal(signum)
	return nil
}

func TestRun_GangAbortForwardsTerminationSignal(t *testing.T) {
	gt := &gangFakeTransport{}
	d := newTestDispatcher(gt)

	opts := &Options{
		Hosts:         []string{"127.0.0.1", "127.0.0.2"},
		Fanout:        2,
		TransportKind: transport.Interconnect,
		Mode:          ModeCommand,
		Command:       CommandSpec{Command: "echo hi"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	table, err := d.Prepare(ctx, opts)
	require.NoError(t, err)

	_, err = d.Run(ctx, cancel, table, opts)
	require.NoError(t, err)

	require.Equal(t, PhaseFailed, table.Workers[0].Phase())
	require.Equal(t, PhaseFailed, table.Workers[1].Phase())
	require.True(t, gt.wasSignaled(1), "gang abort must forward a termination signal to the still-streaming peer")
}

func TestComputeStatus_AggregatesMaxRemoteRC(t *testing.T) {
	w1 := NewWorker(0, "a", transport.SSH)
	w1.markConnecting()
	w1.markStreaming()
	w1.setRemoteRC(0)
	w1.markDone()

	w2 := NewWorker(1, "b", transport.SSH)
	w2.markConnecting()
	w2.markStreaming()
	w2.setRemoteRC(5)
	w2.markDone()

	table := NewTable([]*Worker{w1, w2})
	require.Equal(t, 5, computeStatus(table))
}

func TestComputeStatus_AnyFailureWinsWhenNoNonzeroRC(t *testing.T) {
	w1 := NewWorker(0, "a", transport.SSH)
	w1.markConnecting()
	w1.markStreaming()
	w1.markDone()

	w2 := NewWorker(1, "b", transport.SSH)
	w2.markConnecting()
	w2.markFailed(errTestFailure)

	table := NewTable([]*Worker{w1, w2})
	require.Equal(t, ExitFailed, computeStatus(table))
}

func TestComputeStatus_FailureWinsEvenOverNonzeroRemoteRC(t *testing.T) {
	w1 := NewWorker(0, "a", transport.SSH)
	w1.markConnecting()
	w1.markStreaming()
	w1.setRemoteRC(7)
	w1.markDone()

	w2 := NewWorker(1, "b", transport.SSH)
	w2.markConnecting()
	w2.markFailed(errTestFailure)

	table := NewTable([]*Worker{w1, w2})
	require.Equal(t, ExitFailed, computeStatus(table))
}
