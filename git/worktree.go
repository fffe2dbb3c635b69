package git

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/rs/zerolog"
)

// Add stages files in the worktree for the next commit.
// It supports glob patterns and handles missing files appropriately.
// Files that don't exist are silently ignored (matching git add behavior).
func (r *Repo) Add(ctx context.Context, paths ...string) error {
	return Translate("add", r.path, r.add(ctx, paths))
}

func (r *Repo) add(ctx context.Context, paths []string) error {
	if err := r.requireWorktree(); err != nil {
		return err
	}

	toAdd, err := r.expandPaths(paths, true)
	if err != nil {
		return err
	}

	for _, p := range toAdd {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == "." {
			if err := r.worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
				return WrapError(err, "failed to add all changes")
			}
			continue
		}
		if _, err := r.worktree.Add(p); err != nil {
			return WrapErrorf(err, "failed to add path %q", p)
		}
	}

	zerolog.Ctx(ctx).Trace().Strs("paths", toAdd).Msg("staged")
	return nil
}

// Remove removes files from the index and worktree. Untracked paths are
// ignored.
func (r *Repo) Remove(ctx context.Context, paths ...string) error {
	return Translate("remove", r.path, r.remove(ctx, paths))
}

func (r *Repo) remove(ctx context.Context, paths []string) error {
	if err := r.requireWorktree(); err != nil {
		return err
	}

	toRemove, err := r.expandPaths(paths, false)
	if err != nil {
		return err
	}

	for _, p := range toRemove {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.worktree.Remove(p); err != nil {
			msg := err.Error()
			if !strings.Contains(msg, "entry not found") && !strings.Contains(msg, "does not exist") {
				return WrapErrorf(err, "failed to remove path %q", p)
			}
		}
	}
	return nil
}

// expandPaths resolves glob patterns against the worktree. Empty entries
// are dropped; with mustExist, plain paths missing from the worktree are
// dropped too.
func (r *Repo) expandPaths(paths []string, mustExist bool) ([]string, error) {
	var out []string
	for _, p := range paths {
		if p == "" {
			continue
		}

		if strings.ContainsAny(p, "*?[") {
			matches, err := util.Glob(r.root, p)
			if err != nil {
				return nil, WrapErrorf(errors.Join(ErrInvalidRef, err), "invalid glob pattern %q", p)
			}
			out = append(out, matches...)
			continue
		}

		if mustExist && p != "." {
			if _, err := r.root.Stat(p); err != nil {
				continue
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// Commit records the staged changes and returns the new commit hash.
// When.IsZero signatures are stamped with the current time.
func (r *Repo) Commit(ctx context.Context, msg string, who Signature, opts CommitOpts) (string, error) {
	hash, err := r.commit(ctx, msg, who, opts)
	return hash, Translate("commit", r.path, err)
}

func (r *Repo) commit(ctx context.Context, msg string, who Signature, opts CommitOpts) (string, error) {
	if err := r.requireWorktree(); err != nil {
		return "", err
	}
	if strings.TrimSpace(msg) == "" {
		return "", WrapError(ErrInvalidRef, "commit message cannot be empty")
	}
	if who.Name == "" || who.Email == "" {
		return "", WrapError(ErrInvalidRef, "committer name and email are required")
	}

	status, err := r.worktree.Status()
	if err != nil {
		return "", WrapError(err, "failed to get worktree status")
	}
	if !opts.AllowEmpty && !opts.Amend && !hasCommittable(status, opts.All) {
		return "", WrapError(ErrEmptyCommit, "no changes staged for commit")
	}

	if who.When.IsZero() {
		who.When = time.Now()
	}
	sig := &object.Signature{Name: who.Name, Email: who.Email, When: who.When}

	hash, err := r.worktree.Commit(msg, &git.CommitOptions{
		All:               opts.All,
		Amend:             opts.Amend,
		AllowEmptyCommits: opts.AllowEmpty,
		Author:            sig,
		Committer:         sig,
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return "", ErrEmptyCommit
		}
		return "", WrapError(err, "failed to create commit")
	}

	zerolog.Ctx(ctx).Debug().Str("path", r.path).Str("commit", hash.String()).Msg("committed")
	return hash.String(), nil
}

func hasCommittable(status git.Status, all bool) bool {
	for _, fs := range status {
		if fs.Staging != git.Untracked && fs.Staging != git.Unmodified {
			return true
		}
		if all && (fs.Worktree == git.Modified || fs.Worktree == git.Deleted) {
			return true
		}
	}
	return false
}
