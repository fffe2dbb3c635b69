package fs

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetAbs returns an absolute form of path on the host filesystem.
func GetAbs(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("fs: abs %q: %w", path, err)
	}
	return abs, nil
}

// Exists reports whether path exists on the host filesystem.
// A missing path is not an error.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("fs: stat %q: %w", path, err)
	}
}

// Parent returns the parent directory of a slash separated path and whether
// one exists. The root ("/" or ".") has no parent.
func Parent(path string) (string, bool) {
	clean := filepath.ToSlash(filepath.Clean(path))
	if clean == "/" || clean == "." || clean == "" {
		return "", false
	}
	dir := filepath.ToSlash(filepath.Dir(clean))
	if dir == clean {
		return "", false
	}
	return dir, true
}
