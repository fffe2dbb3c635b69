// Package billy implements fs.Filesystem on go-billy, the filesystem layer
// go-git stores repositories and worktrees on. The facade unwraps an FS
// back to its billy.Filesystem with Raw before handing it to go-git.
package billy

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	parentfs "github.com/codex-libs/repofacade/fs"
)

// FS is an fs.Filesystem over a billy.Filesystem.
type FS struct {
	fs   billy.Filesystem
	host bool
}

var _ parentfs.Filesystem = (*FS)(nil)

// NewFS wraps fsys.
func NewFS(fsys billy.Filesystem) *FS {
	return &FS{fs: fsys}
}

// NewInMemoryFS returns an empty in-memory filesystem. Repositories
// created on it never touch the disk.
func NewInMemoryFS() *FS {
	return NewFS(memfs.New())
}

// NewOSFS returns an OS filesystem rooted at root. Paths are relative to
// root.
func NewOSFS(root string) *FS {
	return NewFS(osfs.New(root))
}

// Raw returns the wrapped billy filesystem.
//
//nolint:ireturn // go-git consumes the billy interface.
func (b *FS) Raw() billy.Filesystem {
	return b.fs
}

// Host reports whether paths are absolute host paths (see NewBaseOSFS).
func (b *FS) Host() bool {
	return b.host
}

// Root returns the root of the wrapped filesystem.
func (b *FS) Root() string {
	return b.fs.Root()
}

// Chroot returns the filesystem rooted at p. The result is never a host
// filesystem: its paths are relative to p.
func (b *FS) Chroot(p string) (*FS, error) {
	sub, err := b.fs.Chroot(p)
	if err != nil {
		return nil, pathError("chroot", p, err)
	}
	return NewFS(sub), nil
}

// pathError reports err as an *os.PathError so os.IsNotExist and
// errors.Is(err, os.ErrNotExist) hold for wrapped billy errors.
func pathError(op, name string, err error) error {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return &os.PathError{Op: "billy " + op, Path: pe.Path, Err: pe.Err}
	}
	return &os.PathError{Op: "billy " + op, Path: name, Err: err}
}

func (b *FS) wrap(op, name string, f billy.File, err error) (parentfs.File, error) {
	if err != nil {
		return nil, pathError(op, name, err)
	}
	return &file{File: f, fs: b.fs}, nil
}

//nolint:ireturn // fs.Filesystem returns the File interface.
func (b *FS) Create(name string) (parentfs.File, error) {
	f, err := b.fs.Create(name)
	return b.wrap("create", name, f, err)
}

//nolint:ireturn // fs.Filesystem returns the File interface.
func (b *FS) Open(name string) (parentfs.File, error) {
	f, err := b.fs.Open(name)
	return b.wrap("open", name, f, err)
}

//nolint:ireturn // fs.Filesystem returns the File interface.
func (b *FS) OpenFile(name string, flag int, perm os.FileMode) (parentfs.File, error) {
	f, err := b.fs.OpenFile(name, flag, perm)
	return b.wrap("openfile", name, f, err)
}

func (b *FS) ReadFile(name string) ([]byte, error) {
	data, err := util.ReadFile(b.fs, name)
	if err != nil {
		return nil, pathError("readfile", name, err)
	}
	return data, nil
}

// WriteFile creates or truncates name.
func (b *FS) WriteFile(name string, data []byte, perm os.FileMode) error {
	if err := util.WriteFile(b.fs, name, data, perm); err != nil {
		return pathError("writefile", name, err)
	}
	return nil
}

func (b *FS) Stat(name string) (os.FileInfo, error) {
	info, err := b.fs.Stat(name)
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	return info, nil
}

// Exists reports whether name exists. A missing path is not an error.
func (b *FS) Exists(name string) (bool, error) {
	_, err := b.fs.Stat(name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, pathError("stat", name, err)
	}
}

func (b *FS) Rename(oldpath, newpath string) error {
	if err := b.fs.Rename(oldpath, newpath); err != nil {
		return &os.LinkError{Op: "billy rename", Old: oldpath, New: newpath, Err: err}
	}
	return nil
}

func (b *FS) Remove(name string) error {
	if err := b.fs.Remove(name); err != nil {
		return pathError("remove", name, err)
	}
	return nil
}

// RemoveAll removes name and everything below it. A missing path is a
// no-op.
func (b *FS) RemoveAll(name string) error {
	if err := util.RemoveAll(b.fs, name); err != nil {
		return pathError("removeall", name, err)
	}
	return nil
}

func (b *FS) ReadDir(name string) ([]os.FileInfo, error) {
	entries, err := b.fs.ReadDir(name)
	if err != nil {
		return nil, pathError("readdir", name, err)
	}
	return entries, nil
}

func (b *FS) MkdirAll(name string, perm os.FileMode) error {
	if err := b.fs.MkdirAll(name, perm); err != nil {
		return pathError("mkdirall", name, err)
	}
	return nil
}

// Walk visits root and everything below it in lexical order.
func (b *FS) Walk(root string, fn filepath.WalkFunc) error {
	return util.Walk(b.fs, root, fn)
}

// TempDir creates a new directory under dir whose name starts with prefix.
func (b *FS) TempDir(dir, prefix string) (string, error) {
	name, err := util.TempDir(b.fs, dir, prefix)
	if err != nil {
		return "", pathError("tempdir", dir, err)
	}
	return name, nil
}
