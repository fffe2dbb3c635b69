package fsbridge

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// GitDirName is the metadata directory of a non-bare repository.
const GitDirName = ".git"

// ErrNoRepository is returned by Detect when root holds neither a .git
// entry nor a bare layout.
var ErrNoRepository = errors.New("no repository layout found")

// Layout is the pair of filesystems go-git needs for one repository.
type Layout struct {
	// Storage holds objects, refs and config.
	Storage billy.Filesystem

	// Worktree is nil for bare repositories.
	Worktree billy.Filesystem
}

// Bare reports whether the layout has no worktree.
func (l *Layout) Bare() bool {
	return l.Worktree == nil
}

// NewLayout returns the layout for a new repository rooted at root.
// Non-bare repositories keep their storage under ".git".
func NewLayout(root billy.Filesystem, bare bool) (*Layout, error) {
	if bare {
		return &Layout{Storage: root}, nil
	}
	dot, err := root.Chroot(GitDirName)
	if err != nil {
		return nil, fmt.Errorf("failed to chroot to %s: %w", GitDirName, err)
	}
	return &Layout{Storage: dot, Worktree: root}, nil
}

// Detect inspects root for an existing repository. A ".git" directory,
// a ".git" file holding a "gitdir:" pointer, and a bare layout (HEAD,
// objects and refs at the top level) are recognised, in that order.
// host says root lives on the OS filesystem, where gitdir pointers may be
// absolute or leave root.
func Detect(root billy.Filesystem, host bool) (*Layout, error) {
	fi, err := root.Stat(GitDirName)
	switch {
	case err == nil && fi.IsDir():
		return NewLayout(root, false)
	case err == nil:
		dot, err := resolveGitDirFile(root, host)
		if err != nil {
			return nil, err
		}
		return &Layout{Storage: dot, Worktree: root}, nil
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to stat %s: %w", GitDirName, err)
	}

	if IsBareLayout(root) {
		return NewLayout(root, true)
	}
	return nil, ErrNoRepository
}

// IsBareLayout reports whether root looks like a bare repository.
func IsBareLayout(root billy.Filesystem) bool {
	head, err := root.Stat("HEAD")
	if err != nil || head.IsDir() {
		return false
	}
	for _, dir := range []string{"objects", "refs"} {
		fi, err := root.Stat(dir)
		if err != nil || !fi.IsDir() {
			return false
		}
	}
	return true
}

// HasRepository reports whether Detect would succeed on root.
func HasRepository(root billy.Filesystem, host bool) bool {
	_, err := Detect(root, host)
	return err == nil
}

func resolveGitDirFile(root billy.Filesystem, host bool) (billy.Filesystem, error) {
	data, err := util.ReadFile(root, GitDirName)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s file: %w", GitDirName, err)
	}

	line := string(bytes.TrimSpace(data))
	target, ok := strings.CutPrefix(line, "gitdir:")
	if !ok {
		return nil, fmt.Errorf("%s file has no gitdir pointer", GitDirName)
	}
	target = strings.TrimSpace(target)

	if host {
		if !filepath.IsAbs(target) {
			target = filepath.Join(root.Root(), target)
		}
		return osfs.New(target), nil
	}

	dot, err := root.Chroot(target)
	if err != nil {
		return nil, fmt.Errorf("failed to follow gitdir %q: %w", target, err)
	}
	return dot, nil
}
