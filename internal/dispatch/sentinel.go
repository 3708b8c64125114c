package dispatch

import (
	"strings"
)

// RCMagic is the distinguished substring that precedes the decimal remote
// exit code embedded in a command worker's trailing stdout, exactly as
// the reference implementation's RC_MAGIC (dsh.c's _extract_rc). A command
// suffixed with this sentinel's emitter (see CommandWithStatusSentinel)
// lets the worker recover the remote command's exit status without a
// second round trip.
const RCMagic = "RC=;;"

// ExtractRC finds RCMagic in line, returning the truncated line (magic and
// trailing digits removed, trailing newline preserved unless the magic
// began at column 0) and the parsed integer, or line unchanged and ok=false
// if no magic is present. Follows dsh.c's _extract_rc except for its
// digit-parsing offset (see DESIGN.md): the digits parsed start right after
// the magic. If the magic doesn't start the line and the line ended in
// '\n', the newline is kept by truncating at the magic and appending '\n'.
func ExtractRC(line string) (truncated string, rc int, ok bool) {
	idx := strings.Index(line, RCMagic)
	if idx < 0 {
		return line, 0, false
	}

	hadNewline := strings.HasSuffix(line, "\n")
	rest := line[idx+len(RCMagic):]
	rest = strings.TrimSuffix(rest, "\n")

	n := atoiPrefix(rest)

	if hadNewline && idx != 0 {
		return line[:idx] + "\n", n, true
	}
	return line[:idx], n, true
}

// CommandWithStatusSentinel appends a shell fragment that emits RCMagic
// followed by the command's exit status, mirroring dsh.c's behavior of
// appending opt->getstat (normally "; echo <magic>$?") to the user's
// command when -S is requested.
func CommandWithStatusSentinel(cmd string) string {
	return cmd + "; echo " + RCMagic + "$?"
}

// CommandWithPathPrefix prepends a shell statement that sets up PATH (or
// any other environment) before the user's command runs, mirroring dsh.c's
// DSHPATH option.
func CommandWithPathPrefix(prefix, cmd string) string {
	if prefix == "" {
		return cmd
	}
	return prefix + "; " + cmd
}

// atoiPrefix parses the leading run of (optionally signed) decimal digits
// in s, mirroring C's atoi: it stops at the first non-digit rather than
// requiring the whole string to be numeric, and returns 0 if there is no
// leading digit run at all.
func atoiPrefix(s string) int {
	i := 0
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	start := i
	n := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		n = n*10 + int(s[i]-'0')
		i++
	}
	if i == start {
		return 0
	}
	if neg {
		return -n
	}
	return n
}
