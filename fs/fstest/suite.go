// Package fstest provides a conformance test suite for fs.Filesystem
// implementations. Repository storage and worktrees sit on these
// operations, so every provider runs the same checks:
//
//	func TestMyProvider(t *testing.T) {
//	    root := t.TempDir()
//	    fstest.TestSuite(t, func() fs.Filesystem { return myprovider.New(root) }, root)
//	}
package fstest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/codex-libs/repofacade/fs"
)

// TestSuite runs all conformance tests. newFS must return a filesystem on
// which root is a writable directory; each test gets its own instance
// and its own subdirectory of root.
func TestSuite(t *testing.T, newFS func() fs.Filesystem, root string) {
	TestSuiteWithSkip(t, newFS, root, nil)
}

// TestSuiteWithSkip runs the suite, skipping the named tests ("Walk",
// "TempDir", ...) for providers with documented differences.
func TestSuiteWithSkip(t *testing.T, newFS func() fs.Filesystem, root string, skipTests []string) {
	tests := []struct {
		name string
		fn   func(t *testing.T, f fs.Filesystem, dir string)
	}{
		{"MkdirAllStat", testMkdirAllStat},
		{"CreateWriteReadRemove", testCreateWriteReadRemove},
		{"OpenAndOpenFile", testOpenAndOpenFile},
		{"ReadDir", testReadDir},
		{"TempDirAndWalk", testTempDirAndWalk},
		{"RenameRemoveAll", testRenameRemoveAll},
		{"MissingPaths", testMissingPaths},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, skip := range skipTests {
				if skip == tt.name {
					t.Skip("Skipped by provider configuration")
				}
			}
			f := newFS()
			dir := filepath.Join(root, tt.name)
			if err := f.MkdirAll(dir, 0o755); err != nil {
				t.Fatalf("MkdirAll(%q): got error %v, want nil", dir, err)
			}
			tt.fn(t, f, dir)
		})
	}
}

func testMkdirAllStat(t *testing.T, f fs.Filesystem, root string) {
	if err := f.MkdirAll(filepath.Join(root, "a/b/c"), 0o755); err != nil {
		t.Fatalf("MkdirAll: got error %v, want nil", err)
	}
	info, err := f.Stat(filepath.Join(root, "a/b"))
	if err != nil {
		t.Fatalf("Stat: got error %v, want nil", err)
	}
	if !info.IsDir() {
		t.Errorf("Stat(%q): got file, want directory", info.Name())
	}
	if err := f.MkdirAll(filepath.Join(root, "a/b/c"), 0o755); err != nil {
		t.Errorf("MkdirAll on existing directory: got error %v, want nil", err)
	}
}

func testCreateWriteReadRemove(t *testing.T, f fs.Filesystem, root string) {
	p := filepath.Join(root, "file.txt")
	data := []byte("test data for Create")

	file, err := f.Create(p)
	if err != nil {
		t.Fatalf("Create(%q): got error %v, want nil", p, err)
	}
	n, err := file.Write(data)
	if err != nil || n != len(data) {
		_ = file.Close()
		t.Fatalf("Write(): wrote %d bytes, err %v; want %d, nil", n, err, len(data))
	}
	if err := file.Close(); err != nil {
		t.Fatalf("Close(): got error %v, want nil", err)
	}

	got, err := f.ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile(%q): got error %v, want nil", p, err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("ReadFile(%q): got %q, want %q", p, got, data)
	}

	if err := f.WriteFile(p, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile(%q): got error %v, want nil", p, err)
	}
	if got, _ := f.ReadFile(p); string(got) != "hello" {
		t.Errorf("WriteFile truncation: got %q, want %q", got, "hello")
	}

	if err := f.Remove(p); err != nil {
		t.Fatalf("Remove(%q): got error %v, want nil", p, err)
	}
	if ok, _ := f.Exists(p); ok {
		t.Errorf("Exists(%q) after Remove: got true, want false", p)
	}
}

func testOpenAndOpenFile(t *testing.T, f fs.Filesystem, root string) {
	p := filepath.Join(root, "open.txt")
	if err := f.WriteFile(p, []byte("abc"), 0o644); err != nil {
		t.Fatalf("WriteFile: got error %v, want nil", err)
	}

	file, err := f.Open(p)
	if err != nil {
		t.Fatalf("Open(%q): got error %v, want nil", p, err)
	}
	buf := make([]byte, 1)
	if _, err := file.ReadAt(buf, 1); err != nil || buf[0] != 'b' {
		t.Errorf("ReadAt(1): got %q, %v; want %q, nil", buf, err, "b")
	}
	_ = file.Close()

	file, err = f.OpenFile(p, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("OpenFile(O_APPEND): got error %v, want nil", err)
	}
	_, _ = file.Write([]byte("d"))
	_ = file.Close()

	if got, _ := f.ReadFile(p); string(got) != "abcd" {
		t.Errorf("after append: got %q, want %q", got, "abcd")
	}
}

func testReadDir(t *testing.T, f fs.Filesystem, root string) {
	for _, name := range []string{"b.txt", "a.txt"} {
		if err := f.WriteFile(filepath.Join(root, name), []byte(name), 0o644); err != nil {
			t.Fatalf("WriteFile: got error %v, want nil", err)
		}
	}
	if err := f.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("MkdirAll: got error %v, want nil", err)
	}

	entries, err := f.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir(%q): got error %v, want nil", root, err)
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = e.IsDir()
	}
	if len(names) != 3 || names["a.txt"] || names["b.txt"] || !names["sub"] {
		t.Errorf("ReadDir(%q): got %v, want a.txt, b.txt and directory sub", root, names)
	}
}

func testTempDirAndWalk(t *testing.T, f fs.Filesystem, root string) {
	td, err := f.TempDir(root, "pref-")
	if err != nil {
		t.Fatalf("TempDir: got error %v, want nil", err)
	}
	if td == "" {
		t.Fatalf("TempDir: got empty path")
	}

	if err := f.MkdirAll(filepath.Join(td, "x/y"), 0o755); err != nil {
		t.Fatalf("MkdirAll: got error %v, want nil", err)
	}
	if err := f.WriteFile(filepath.Join(td, "x/y/z.txt"), []byte("z"), 0o644); err != nil {
		t.Fatalf("WriteFile: got error %v, want nil", err)
	}

	var files int
	err = f.Walk(td, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: got error %v, want nil", err)
	}
	if files != 1 {
		t.Errorf("Walk: saw %d files, want 1", files)
	}
}

func testRenameRemoveAll(t *testing.T, f fs.Filesystem, root string) {
	dir := filepath.Join(root, "mv")
	if err := f.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("MkdirAll: got error %v, want nil", err)
	}
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "sub", "b.txt")
	if err := f.WriteFile(src, []byte("a"), 0o644); err != nil {
		t.Fatalf("WriteFile: got error %v, want nil", err)
	}
	if err := f.Rename(src, dst); err != nil {
		t.Fatalf("Rename: got error %v, want nil", err)
	}
	if ok, _ := f.Exists(src); ok {
		t.Errorf("Exists(%q) after Rename: got true, want false", src)
	}
	if ok, _ := f.Exists(dst); !ok {
		t.Errorf("Exists(%q) after Rename: got false, want true", dst)
	}
	if err := f.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll: got error %v, want nil", err)
	}
	if ok, _ := f.Exists(dir); ok {
		t.Errorf("Exists(%q) after RemoveAll: got true, want false", dir)
	}
	if err := f.RemoveAll(dir); err != nil {
		t.Errorf("RemoveAll on missing path: got error %v, want nil", err)
	}
}

func testMissingPaths(t *testing.T, f fs.Filesystem, root string) {
	p := filepath.Join(root, "nope.txt")
	if ok, err := f.Exists(p); ok || err != nil {
		t.Errorf("Exists(%q): got %v, %v; want false, nil", p, ok, err)
	}
	if _, err := f.Stat(p); !os.IsNotExist(err) {
		t.Errorf("Stat(%q): got error %v, want not-exist", p, err)
	}
	if _, err := f.ReadFile(p); err == nil {
		t.Errorf("ReadFile(%q): got nil error, want failure", p)
	}
}
