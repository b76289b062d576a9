package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Workspace is a temporary project directory. Paths are always absolute
// so tests never need to chdir.
type Workspace struct {
	Dir string
	t   *testing.T
}

// NewWorkspace creates an empty workspace under t.TempDir().
func NewWorkspace(t *testing.T) *Workspace {
	t.Helper()
	return &Workspace{Dir: t.TempDir(), t: t}
}

// Path joins elems onto the workspace directory.
func (w *Workspace) Path(elems ...string) string {
	return filepath.Join(append([]string{w.Dir}, elems...)...)
}

// WriteFile writes content to a workspace-relative path, creating parents.
func (w *Workspace) WriteFile(rel, content string) string {
	w.t.Helper()

	path := w.Path(rel)
	require.NoError(w.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(w.t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// ReadFile returns the content of a workspace-relative path.
func (w *Workspace) ReadFile(rel string) string {
	w.t.Helper()

	data, err := os.ReadFile(w.Path(rel))
	require.NoError(w.t, err)
	return string(data)
}

// Mkdir creates a workspace-relative directory.
func (w *Workspace) Mkdir(rel string) string {
	w.t.Helper()

	path := w.Path(rel)
	require.NoError(w.t, os.MkdirAll(path, 0o755))
	return path
}

// Exists reports whether a workspace-relative path exists.
func (w *Workspace) Exists(rel string) bool {
	_, err := os.Stat(w.Path(rel))
	return err == nil
}
