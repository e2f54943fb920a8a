// Package workspace manages the host directory that is bind-mounted into
// every sandbox container. It expands ~, creates the directory tree and
// guards against paths escaping the workspace root.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace is the host-side root shared with sandbox containers.
type Workspace struct {
	path string
}

// New creates a workspace for the given path, expanding a leading ~.
func New(path string) *Workspace {
	return &Workspace{path: expandHome(path)}
}

// Path returns the expanded workspace path.
func (w *Workspace) Path() string {
	return w.path
}

// EnsureDir creates the workspace directory if it does not exist.
func (w *Workspace) EnsureDir() error {
	if w.path == "" {
		return fmt.Errorf("workspace path is empty")
	}

	info, err := os.Stat(w.path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("workspace path exists but is not a directory: %s", w.path)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to access workspace path %s: %w", w.path, err)
	}

	if err := os.MkdirAll(w.path, 0o755); err != nil {
		return fmt.Errorf("failed to create workspace directory %s: %w", w.path, err)
	}
	return nil
}

// Resolve joins a relative path with the workspace root, rejecting paths
// that would escape it.
func (w *Workspace) Resolve(relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("path is empty")
	}
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("absolute paths are not allowed: %s", relPath)
	}

	joined := filepath.Join(w.path, filepath.Clean(relPath))

	rel, err := filepath.Rel(w.path, joined)
	if err != nil {
		return "", fmt.Errorf("failed to check path relationship: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path attempts to escape workspace: %s", relPath)
	}

	return joined, nil
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' && (len(path) == 1 || path[1] == '/') {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if len(path) == 1 {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
