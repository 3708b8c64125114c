package fileexpand

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpand_SingleFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))

	out, err := Expand([]string{f})
	require.NoError(t, err)
	require.Equal(t, []string{f}, out)
}

func TestExpand_DirectoryRecurses(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	f1 := filepath.Join(dir, "top.txt")
	f2 := filepath.Join(sub, "nested.txt")
	require.NoError(t, os.WriteFile(f1, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(f2, []byte("y"), 0o644))

	out, err := Expand([]string{dir})
	require.NoError(t, err)

	require.Contains(t, out, dir)
	require.Contains(t, out, f1)
	require.Contains(t, out, sub)
	require.Contains(t, out, f2)
}

func TestExpand_MissingPathAborts(t *testing.T) {
	_, err := Expand([]string{"/nonexistent/path/prdsh-test"})
	require.Error(t, err)
}

func TestExpand_Idempotent(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))

	out1, err := Expand([]string{dir})
	require.NoError(t, err)
	out2, err := Expand([]string{dir})
	require.NoError(t, err)
	require.Equal(t, out1, out2)
}

// TestExpand_IdempotentOnOwnOutput is the spec.md §8 property itself:
// "expanding an already-expanded list yields the same list". Unlike
// TestExpand_Idempotent above (which only re-runs Expand on the original
// input), this feeds Expand's own output back into Expand -- the case
// where a subdirectory already walked during the first pass would
// otherwise be re-expanded as if it were a fresh top-level argument.
func TestExpand_IdempotentOnOwnOutput(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	f1 := filepath.Join(dir, "top.txt")
	f2 := filepath.Join(sub, "nested.txt")
	require.NoError(t, os.WriteFile(f1, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(f2, []byte("y"), 0o644))

	once, err := Expand([]string{dir})
	require.NoError(t, err)

	twice, err := Expand(once)
	require.NoError(t, err)

	require.Equal(t, once, twice)
}
