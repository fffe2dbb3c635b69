package billy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	parentfs "github.com/codex-libs/repofacade/fs"
	"github.com/codex-libs/repofacade/fs/fstest"
)

func TestInMemoryFS_Suite(t *testing.T) {
	fstest.TestSuite(t, func() parentfs.Filesystem { return NewInMemoryFS() }, "/suite")
}

func TestOSFS_Suite(t *testing.T) {
	root := t.TempDir()
	fstest.TestSuite(t, func() parentfs.Filesystem { return NewOSFS(root) }, root)
}

func TestBaseOSFS_Suite(t *testing.T) {
	fstest.TestSuite(t, func() parentfs.Filesystem { return NewBaseOSFS() }, t.TempDir())
}

func TestFS_Chroot(t *testing.T) {
	mem := NewInMemoryFS()
	if err := mem.WriteFile("/repo/README", []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	sub, err := mem.Chroot("/repo")
	if err != nil {
		t.Fatalf("Chroot failed: %v", err)
	}
	b, err := sub.ReadFile("README")
	if err != nil {
		t.Fatalf("ReadFile in chroot failed: %v", err)
	}
	if string(b) != "x" {
		t.Errorf("ReadFile = %q, want %q", string(b), "x")
	}
}

func TestBaseOSFS_ChrootUsesHostPaths(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "f"), []byte("host"), 0o644); err != nil {
		t.Fatalf("os.WriteFile failed: %v", err)
	}
	sub, err := NewBaseOSFS().Chroot(root)
	if err != nil {
		t.Fatalf("Chroot failed: %v", err)
	}
	b, err := sub.ReadFile("f")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(b) != "host" {
		t.Errorf("ReadFile = %q, want %q", string(b), "host")
	}
}

func TestFS_Host(t *testing.T) {
	if !NewBaseOSFS().Host() {
		t.Errorf("NewBaseOSFS().Host() = false, want true")
	}
	if NewInMemoryFS().Host() || NewOSFS(t.TempDir()).Host() {
		t.Errorf("Host() = true for a rooted filesystem, want false")
	}
}

func TestFS_ErrorsKeepNotExist(t *testing.T) {
	mem := NewInMemoryFS()

	_, err := mem.Open("/missing.txt")
	if !os.IsNotExist(err) {
		t.Errorf("Open missing: os.IsNotExist(%v) = false, want true", err)
	}
	var pe *os.PathError
	if !errors.As(err, &pe) || pe.Op != "billy open" {
		t.Errorf("Open missing: got %#v, want *os.PathError with op %q", err, "billy open")
	}

	if err := mem.Rename("/missing.txt", "/other.txt"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Rename missing: got %v, want os.ErrNotExist", err)
	}
}

func TestFile_Stat(t *testing.T) {
	mem := NewInMemoryFS()
	if err := mem.WriteFile("/dir/f.txt", []byte("12345"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	f, err := mem.Open("/dir/f.txt")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 5 {
		t.Errorf("Size() = %d, want 5", info.Size())
	}
}
