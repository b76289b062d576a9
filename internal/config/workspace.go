package config

import (
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// WorkspaceID derives the opaque identity of the project rooted at dir.
// The same directory always yields the same identity; it namespaces
// credentials so two projects with a "staging" field never collide.
func WorkspaceID(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace path: %w", err)
	}
	sum := blake3.Sum256([]byte(filepath.Clean(abs)))
	return hex.EncodeToString(sum[:16]), nil
}
