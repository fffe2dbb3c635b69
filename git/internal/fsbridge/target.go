package fsbridge

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// ErrDestinationNotEmpty is returned by NewCloneTarget when the
// destination already has entries or is not a directory.
var ErrDestinationNotEmpty = errors.New("destination is not an empty directory")

// CloneTarget is the destination of a clone. Only a missing or empty
// directory is accepted, so everything below it after a failed attempt
// belongs to that attempt.
type CloneTarget struct {
	fs      billy.Filesystem
	path    string
	created bool
}

// NewCloneTarget checks p on fsys before a clone writes to it. The root
// of fsys always counts as an existing directory.
func NewCloneTarget(fsys billy.Filesystem, p string) (*CloneTarget, error) {
	if p != "." && p != "/" {
		fi, err := fsys.Stat(p)
		switch {
		case errors.Is(err, os.ErrNotExist):
			return &CloneTarget{fs: fsys, path: p, created: true}, nil
		case err != nil:
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		case !fi.IsDir():
			return nil, fmt.Errorf("%s: %w", p, ErrDestinationNotEmpty)
		}
	}

	entries, err := fsys.ReadDir(p)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	if len(entries) > 0 {
		return nil, fmt.Errorf("%s: %w", p, ErrDestinationNotEmpty)
	}
	return &CloneTarget{fs: fsys, path: p}, nil
}

// Created reports whether the destination did not exist before the clone.
func (t *CloneTarget) Created() bool {
	return t.created
}

// Reset undoes a failed attempt. A directory the clone created is removed
// entirely; a directory that existed is emptied again.
func (t *CloneTarget) Reset() error {
	if t.created {
		return util.RemoveAll(t.fs, t.path)
	}

	entries, err := t.fs.ReadDir(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := util.RemoveAll(t.fs, t.fs.Join(t.path, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
