package transport

import (
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

func readPasswordFromFD(fd int) (string, error) {
	b, err := term.ReadPassword(fd)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// IsTerminal reports whether fd refers to an interactive terminal, used by
// cmd/prdsh to decide whether to prompt for an ssh password. Grounded on
// go-isatty rather than x/term's own IsTerminal so the decision matches
// cmd/prdsh's color auto-detection, which calls go-isatty directly.
func IsTerminal(fd int) bool {
	return isatty.IsTerminal(uintptr(fd))
}
