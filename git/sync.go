package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/rs/zerolog"
)

// FetchOpts configures Fetch.
type FetchOpts struct {
	// Remote defaults to Options.RemoteName.
	Remote string

	// Branch limits the fetch to one branch. Empty fetches the remote's
	// configured refspecs.
	Branch string

	// Prune removes remote-tracking refs that no longer exist remotely.
	Prune bool

	// Depth overrides Options.ShallowDepth when > 0.
	Depth int
}

// FetchResult reports what a fetch changed.
type FetchResult struct {
	// Updated is false when the remote had nothing new.
	Updated bool
}

// PushOpts configures Push.
type PushOpts struct {
	// Remote defaults to Options.RemoteName.
	Remote string

	// Branch defaults to the current branch.
	Branch string

	// Force allows non-fast-forward updates.
	Force bool
}

// Fetch downloads objects and refs from a remote. Nothing new to fetch is
// reported through FetchResult, not as an error.
func (r *Repo) Fetch(ctx context.Context, opts FetchOpts) (*FetchResult, error) {
	res, err := r.fetch(ctx, opts)
	return res, Translate("fetch", r.remoteTarget(opts.Remote), err)
}

func (r *Repo) fetch(ctx context.Context, opts FetchOpts) (*FetchResult, error) {
	remote := r.remoteName(opts.Remote)
	url, err := r.remoteURL(remote)
	if err != nil {
		return nil, err
	}

	depth := opts.Depth
	if depth == 0 {
		depth = r.options.ShallowDepth
	}
	fetchOpts := &git.FetchOptions{
		RemoteName: remote,
		Prune:      opts.Prune,
		Depth:      depth,
		Progress:   r.options.progress(ctx, "fetch"),
	}
	if opts.Branch != "" {
		fetchOpts.RefSpecs = []config.RefSpec{config.RefSpec(
			fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", opts.Branch, remote, opts.Branch))}
	}

	err = r.withCredentials(ctx, url, func(method transport.AuthMethod) error {
		fetchOpts.Auth = method
		return r.repo.FetchContext(ctx, fetchOpts)
	})
	switch {
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		zerolog.Ctx(ctx).Debug().Str("remote", remote).Msg("fetch: already up to date")
		return &FetchResult{Updated: false}, nil
	case err != nil:
		return nil, WrapErrorf(err, "failed to fetch from %s", remote)
	}

	zerolog.Ctx(ctx).Debug().Str("remote", remote).Msg("fetched")
	return &FetchResult{Updated: true}, nil
}

// Pull fetches branch from remote and fast-forwards the current branch to
// it. A diverged branch is InvalidState; three-way merges are not
// performed. Empty branch means the current branch.
func (r *Repo) Pull(ctx context.Context, remote, branch string) error {
	return Translate("pull", r.remoteTarget(remote), r.pull(ctx, remote, branch))
}

func (r *Repo) pull(ctx context.Context, remote, branch string) error {
	if err := r.requireWorktree(); err != nil {
		return err
	}

	remote = r.remoteName(remote)
	url, err := r.remoteURL(remote)
	if err != nil {
		return err
	}
	if branch == "" {
		if branch, err = r.currentBranch(); err != nil {
			return err
		}
	}

	pullOpts := &git.PullOptions{
		RemoteName:    remote,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Depth:         r.options.ShallowDepth,
		Progress:      r.options.progress(ctx, "pull"),
	}
	err = r.withCredentials(ctx, url, func(method transport.AuthMethod) error {
		pullOpts.Auth = method
		return r.worktree.PullContext(ctx, pullOpts)
	})
	switch {
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return nil
	case isNonFastForward(err):
		return WrapErrorf(ErrNotFastForward, "%s/%s has diverged", remote, branch)
	case err != nil:
		return WrapErrorf(err, "failed to pull %s/%s", remote, branch)
	}

	zerolog.Ctx(ctx).Debug().Str("remote", remote).Str("branch", branch).Msg("pulled")
	return nil
}

// Merge fast-forwards the current branch to rev. rev already contained in
// HEAD is a no-op; a diverged history is InvalidState.
func (r *Repo) Merge(ctx context.Context, rev string) error {
	return Translate("merge", rev, r.merge(ctx, rev))
}

func (r *Repo) merge(ctx context.Context, rev string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return WrapErrorf(errors.Join(ErrResolveFailed, err), "failed to resolve %q", rev)
	}
	branch, err := r.currentBranch()
	if err != nil {
		return err
	}
	branchRef := plumbing.NewBranchReferenceName(branch)

	head, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return r.fastForward(branchRef, *target)
	}
	if err != nil {
		return WrapError(err, "failed to read HEAD")
	}
	if head.Hash() == *target {
		return nil
	}

	headCommit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return WrapError(err, "failed to read HEAD commit")
	}
	targetCommit, err := r.repo.CommitObject(*target)
	if err != nil {
		return WrapErrorf(err, "failed to read commit %s", target)
	}

	if contained, err := targetCommit.IsAncestor(headCommit); err != nil {
		return WrapError(err, "failed to compare histories")
	} else if contained {
		return nil
	}
	ff, err := headCommit.IsAncestor(targetCommit)
	if err != nil {
		return WrapError(err, "failed to compare histories")
	}
	if !ff {
		return WrapErrorf(ErrNotFastForward, "%s has diverged from %s", branch, rev)
	}

	zerolog.Ctx(ctx).Debug().Str("branch", branch).Str("to", target.String()).Msg("fast-forward")
	return r.fastForward(branchRef, *target)
}

func (r *Repo) fastForward(branch plumbing.ReferenceName, to plumbing.Hash) error {
	if r.worktree == nil {
		return r.repo.Storer.SetReference(plumbing.NewHashReference(branch, to))
	}
	if err := r.worktree.Reset(&git.ResetOptions{Commit: to, Mode: git.MergeReset}); err != nil {
		return WrapError(err, "failed to update worktree")
	}
	return nil
}

// Push updates a remote branch from the local branch of the same name
// using refspec [+]refs/heads/<b>:refs/heads/<b>. A remote already up to
// date is success; a non-fast-forward without Force is InvalidState.
func (r *Repo) Push(ctx context.Context, opts PushOpts) error {
	return Translate("push", r.remoteTarget(opts.Remote), r.push(ctx, opts))
}

func (r *Repo) push(ctx context.Context, opts PushOpts) error {
	remote := r.remoteName(opts.Remote)
	url, err := r.remoteURL(remote)
	if err != nil {
		return err
	}

	branch := opts.Branch
	if branch == "" {
		if branch, err = r.currentBranch(); err != nil {
			return err
		}
	}
	if _, err := r.repo.Reference(plumbing.NewBranchReferenceName(branch), false); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return WrapErrorf(ErrBranchMissing, "nothing to push for %s", branch)
		}
		return WrapErrorf(err, "failed to read branch %s", branch)
	}

	spec := fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch)
	if opts.Force {
		spec = "+" + spec
	}
	pushOpts := &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{config.RefSpec(spec)},
		Force:      opts.Force,
		Progress:   r.options.progress(ctx, "push"),
	}

	err = r.withCredentials(ctx, url, func(method transport.AuthMethod) error {
		pushOpts.Auth = method
		return r.repo.PushContext(ctx, pushOpts)
	})
	switch {
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return nil
	case isNonFastForward(err):
		return WrapErrorf(ErrNotFastForward, "push of %s rejected", branch)
	case err != nil:
		return WrapErrorf(err, "failed to push %s to %s", branch, remote)
	}

	zerolog.Ctx(ctx).Debug().Str("remote", remote).Str("refspec", spec).Msg("pushed")
	return nil
}

// isNonFastForward matches go-git's non-fast-forward failures, some of
// which are plain formatted errors.
func isNonFastForward(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, git.ErrNonFastForwardUpdate) ||
		errors.Is(err, git.ErrForceNeeded) ||
		errors.Is(err, git.ErrFastForwardMergeNotPossible) ||
		strings.Contains(err.Error(), "non-fast-forward")
}

// withCredentials runs op through the configured broker.
func (r *Repo) withCredentials(ctx context.Context, url string, op func(transport.AuthMethod) error) error {
	return r.options.broker().Do(ctx, url, op)
}

func (r *Repo) remoteName(name string) string {
	if name == "" {
		return r.options.RemoteName
	}
	return name
}

func (r *Repo) remoteTarget(name string) string {
	return r.path + ":" + r.remoteName(name)
}
