// Package fs defines the filesystem abstraction every repository operation
// runs through. Implementations live in subpackages (see fs/billy).
package fs

import (
	"os"
	"path/filepath"
)

// Filesystem is the minimal read/write surface the facade needs from a
// backing store. Paths are slash separated and interpreted relative to the
// implementation's root.
type Filesystem interface {
	Create(name string) (File, error)
	Open(name string) (File, error)
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	Stat(name string) (os.FileInfo, error)
	Exists(path string) (bool, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
	RemoveAll(path string) error
	ReadDir(dirname string) ([]os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	Walk(root string, walkFn filepath.WalkFunc) error
	TempDir(dir, prefix string) (string, error)
}
