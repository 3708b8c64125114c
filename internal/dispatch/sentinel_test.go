package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractRC_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		cmd  string
		rc   int
	}{
		{"zero", "echo hi", 0},
		{"nonzero", "exit 7", 7},
		{"large", "exit 250", 250},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			emitted := RCMagic + itoa(c.rc) + "\n"
			_, rc, ok := ExtractRC(emitted)
			require.True(t, ok)
			require.Equal(t, c.rc, rc)
		})
	}
}

func TestExtractRC_NoMagic(t *testing.T) {
	line, rc, ok := ExtractRC("plain output\n")
	require.False(t, ok)
	require.Equal(t, 0, rc)
	require.Equal(t, "plain output\n", line)
}

func TestExtractRC_MidLineMagicKeepsTrailingNewline(t *testing.T) {
	line, rc, ok := ExtractRC("done" + RCMagic + "3\n")
	require.True(t, ok)
	require.Equal(t, 3, rc)
	require.Equal(t, "done\n", line)
}

func TestExtractRC_MagicAtColumnZero(t *testing.T) {
	line, rc, ok := ExtractRC(RCMagic + "1\n")
	require.True(t, ok)
	require.Equal(t, 1, rc)
	require.Equal(t, "", line)
}

func TestCommandWithStatusSentinel(t *testing.T) {
	got := CommandWithStatusSentinel("echo hi")
	require.Equal(t, "echo hi; echo "+RCMagic+"$?", got)
}

func TestCommandWithPathPrefix(t *testing.T) {
	require.Equal(t, "uptime", CommandWithPathPrefix("", "uptime"))
	require.Equal(t, "PATH=/x:$PATH; uptime", CommandWithPathPrefix("PATH=/x:$PATH", "uptime"))
}

func TestAtoiPrefix(t *testing.T) {
	require.Equal(t, 42, atoiPrefix("42"))
	require.Equal(t, 42, atoiPrefix("42garbage"))
	require.Equal(t, -5, atoiPrefix("-5"))
	require.Equal(t, 0, atoiPrefix("notanumber"))
	require.Equal(t, 0, atoiPrefix(""))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
