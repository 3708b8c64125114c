package watchdog

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	phase     Phase
	since     time.Time
	canceled  int32
}

func (t *fakeTarget) WatchdogState() (Phase, time.Time) { return t.phase, t.since }
func (t *fakeTarget) Cancel()                           { atomic.StoreInt32(&t.canceled, 1) }
func (t *fakeTarget) wasCanceled() bool                 { return atomic.LoadInt32(&t.canceled) == 1 }

func TestWatchdog_CancelsOnConnectTimeout(t *testing.T) {
	target := &fakeTarget{phase: PhaseConnecting, since: time.Now().Add(-time.Hour)}

	wd := New(10*time.Millisecond, time.Hour, func() []Target { return []Target{target} })
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	wd.Run(ctx)

	require.True(t, target.wasCanceled())
}

func TestWatchdog_DoesNotCancelBeforeDeadline(t *testing.T) {
	target := &fakeTarget{phase: PhaseStreaming, since: time.Now()}

	wd := New(time.Hour, time.Hour, func() []Target { return []Target{target} })
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	wd.Run(ctx)

	require.False(t, target.wasCanceled())
}

func TestWatchdog_IgnoresOtherPhase(t *testing.T) {
	target := &fakeTarget{phase: PhaseOther, since: time.Now().Add(-time.Hour)}

	wd := New(time.Millisecond, time.Millisecond, func() []Target { return []Target{target} })
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	wd.Run(ctx)

	require.False(t, target.wasCanceled())
}
