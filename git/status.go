package git

import (
	"context"
	"errors"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// StatusCode is the state of a file in the index or the worktree.
type StatusCode = git.StatusCode

// Status codes, re-exported from go-git.
const (
	Unmodified         = git.Unmodified
	Untracked          = git.Untracked
	Modified           = git.Modified
	Added              = git.Added
	Deleted            = git.Deleted
	Renamed            = git.Renamed
	Copied             = git.Copied
	UpdatedButUnmerged = git.UpdatedButUnmerged
)

// FileStatus is one changed path.
type FileStatus struct {
	Path     string
	Staging  StatusCode
	Worktree StatusCode
}

// Status is the working-directory state of a repository.
type Status struct {
	// Branch is the current branch short name; empty when Detached.
	Branch   string
	Detached bool

	// Head is the HEAD commit hash; empty in a repository without commits.
	Head string

	// Files lists changed paths sorted by path.
	Files []FileStatus
}

// Clean reports whether nothing is staged, modified or untracked.
func (s *Status) Clean() bool {
	return len(s.Files) == 0
}

// HasStaged reports whether the index differs from HEAD.
func (s *Status) HasStaged() bool {
	for _, f := range s.Files {
		if f.Staging != Unmodified && f.Staging != Untracked {
			return true
		}
	}
	return false
}

// HasWorktree reports whether the worktree differs from the index,
// untracked files included.
func (s *Status) HasWorktree() bool {
	for _, f := range s.Files {
		if f.Worktree != Unmodified {
			return true
		}
	}
	return false
}

// Status reports the current branch and the changed files.
func (r *Repo) Status(ctx context.Context) (*Status, error) {
	st, err := r.status(ctx)
	return st, Translate("status", r.path, err)
}

func (r *Repo) status(ctx context.Context) (*Status, error) {
	if err := r.requireWorktree(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := &Status{}
	if err := r.fillHead(st); err != nil {
		return nil, err
	}

	ws, err := r.worktree.Status()
	if err != nil {
		return nil, WrapError(err, "failed to get worktree status")
	}
	for p, fs := range ws {
		if fs.Staging == Unmodified && fs.Worktree == Unmodified {
			continue
		}
		st.Files = append(st.Files, FileStatus{Path: p, Staging: fs.Staging, Worktree: fs.Worktree})
	}
	sort.Slice(st.Files, func(i, j int) bool { return st.Files[i].Path < st.Files[j].Path })
	return st, nil
}

// fillHead reads HEAD without resolving it, so an unborn branch still
// reports its name.
func (r *Repo) fillHead(st *Status) error {
	head, err := r.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return WrapError(err, "failed to read HEAD")
	}

	if head.Type() == plumbing.SymbolicReference {
		st.Branch = head.Target().Short()
		ref, err := r.repo.Reference(head.Target(), true)
		switch {
		case errors.Is(err, plumbing.ErrReferenceNotFound):
		case err != nil:
			return WrapError(err, "failed to resolve HEAD")
		default:
			st.Head = ref.Hash().String()
		}
		return nil
	}

	st.Detached = true
	st.Head = head.Hash().String()
	return nil
}

// currentBranch returns the branch HEAD points to.
func (r *Repo) currentBranch() (string, error) {
	var st Status
	if err := r.fillHead(&st); err != nil {
		return "", err
	}
	if st.Detached {
		return "", ErrDetachedHead
	}
	return st.Branch, nil
}
