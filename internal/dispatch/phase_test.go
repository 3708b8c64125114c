package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicPhase_LoadStore(t *testing.T) {
	var p atomicPhase
	require.Equal(t, PhaseNew, p.Load())

	p.Store(PhaseConnecting)
	require.Equal(t, PhaseConnecting, p.Load())

	p.Store(PhaseFailed)
	require.Equal(t, PhaseFailed, p.Load())
}

func TestPhase_String(t *testing.T) {
	require.Equal(t, "new", PhaseNew.String())
	require.Equal(t, "connecting", PhaseConnecting.String())
	require.Equal(t, "streaming", PhaseStreaming.String())
	require.Equal(t, "done", PhaseDone.String())
	require.Equal(t, "failed", PhaseFailed.String())
}
