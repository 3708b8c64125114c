package ioout

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSink_LabelsPrefixHost(t *testing.T) {
	var out bytes.Buffer
	sink := New(&out, &out, true, false)

	sink.Line("host-a", Stdout, "hello\n")

	require.Equal(t, "host-a: hello\n", out.String())
}

func TestSink_NoLabelsOmitsHostPrefix(t *testing.T) {
	var out bytes.Buffer
	sink := New(&out, &out, false, false)

	sink.Line("host-a", Stdout, "hello\n")

	require.Equal(t, "hello\n", out.String())
}

func TestSink_StderrGoesToErrWriter(t *testing.T) {
	var out, errOut bytes.Buffer
	sink := New(&out, &errOut, true, false)

	sink.Line("host-a", Stderr, "oops\n")

	require.Empty(t, out.String())
	require.Equal(t, "host-a: oops\n", errOut.String())
}

func TestSink_ConcurrentLinesDoNotInterleave(t *testing.T) {
	var out bytes.Buffer
	sink := New(&out, &out, false, false)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Line("host", Stdout, "a full line of text\n")
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 50)
	for _, l := range lines {
		require.Equal(t, "a full line of text", l)
	}
}
