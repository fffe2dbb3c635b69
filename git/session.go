package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/rs/zerolog"

	"github.com/codex-libs/repofacade/config"
	ferrors "github.com/codex-libs/repofacade/errors"
)

// Session owns a Repo for one configured repository and remembers the
// work that has not been committed or pushed yet. A Session is not safe
// for concurrent use.
type Session struct {
	repo *Repo
	cfg  *config.RepoConfig

	needsCommit bool
	needsPush   bool
	added       []string
}

// OpenSession opens the working copy at cfg.FullPath().
func OpenSession(ctx context.Context, cfg *config.RepoConfig, opts *Options) (*Session, error) {
	o := sessionOptions(cfg, opts)
	repo, err := Open(ctx, cfg.FullPath(), &o)
	if err != nil {
		return nil, err
	}
	return &Session{repo: repo, cfg: cfg}, nil
}

// CloneSession clones cfg.RemoteURL into cfg.FullPath().
func CloneSession(ctx context.Context, cfg *config.RepoConfig, opts *Options) (*Session, error) {
	o := sessionOptions(cfg, opts)
	repo, err := Clone(ctx, cfg.RemoteURL, cfg.FullPath(), &o)
	if err != nil {
		return nil, err
	}
	return &Session{repo: repo, cfg: cfg}, nil
}

// EnsureSession opens the working copy when it exists and clones it
// otherwise.
func EnsureSession(ctx context.Context, cfg *config.RepoConfig, opts *Options) (*Session, error) {
	if cfg.HasRepository() {
		return OpenSession(ctx, cfg, opts)
	}
	zerolog.Ctx(ctx).Info().Str("url", cfg.RemoteURL).Str("path", cfg.FullPath()).Msg("no working copy, cloning")
	return CloneSession(ctx, cfg, opts)
}

// sessionOptions fills Options from the repository config. An explicit
// Broker or Auth in opts wins over the config's credential sources.
func sessionOptions(cfg *config.RepoConfig, opts *Options) Options {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Broker == nil && o.Auth == nil {
		o.Broker = BrokerFromConfig(cfg, nil)
	}
	if o.RemoteName == "" {
		o.RemoteName = cfg.Remote
	}
	if o.InitialBranch == "" {
		o.InitialBranch = cfg.Branch
	}
	o.Verbose = o.Verbose || cfg.Verbose
	return o
}

// Repo returns the underlying repository handle.
func (s *Session) Repo() *Repo { return s.repo }

// Config returns the repository configuration.
func (s *Session) Config() *config.RepoConfig { return s.cfg }

// NeedsCommit reports whether paths were added since the last commit.
func (s *Session) NeedsCommit() bool { return s.needsCommit }

// NeedsPush reports whether commits were made since the last push.
func (s *Session) NeedsPush() bool { return s.needsPush }

// Added returns the paths recorded by Add since the last commit.
func (s *Session) Added() []string {
	return append([]string(nil), s.added...)
}

// Add records path as changed. It is staged, together with the AutoAdd
// patterns, on the next Commit.
func (s *Session) Add(path string) {
	s.added = append(s.added, path)
	s.needsCommit = true
}

// Commit stages the recorded paths and the AutoAdd patterns and commits
// them as "commit changes <paths>". Without pending work it does
// nothing; staging that turns out empty clears the pending state.
func (s *Session) Commit(ctx context.Context) error {
	if !s.needsCommit {
		return nil
	}

	patterns := append(append([]string(nil), s.added...), s.cfg.AutoAdd...)
	if err := s.repo.Add(ctx, patterns...); err != nil {
		return err
	}

	name, email := s.cfg.Signature()
	_, err := s.repo.Commit(ctx, commitMessage(s.added), Signature{Name: name, Email: email}, CommitOpts{})
	switch {
	case errors.Is(err, ErrEmptyCommit):
		zerolog.Ctx(ctx).Debug().Strs("paths", s.added).Msg("nothing to commit")
	case err != nil:
		return err
	default:
		s.needsPush = true
	}

	s.needsCommit = false
	s.added = nil
	return nil
}

func commitMessage(paths []string) string {
	if len(paths) == 0 {
		return "commit changes"
	}
	return "commit changes " + strings.Join(paths, ", ")
}

// Push pushes the configured branch when commits are pending, or always
// when force is set.
func (s *Session) Push(ctx context.Context, force bool) error {
	if !s.needsPush && !force {
		return nil
	}
	err := s.repo.Push(ctx, PushOpts{Remote: s.cfg.Remote, Branch: s.cfg.Branch, Force: force})
	if err != nil {
		return err
	}
	s.needsPush = false
	return nil
}

// CommitAndPush commits pending paths and pushes the result.
func (s *Session) CommitAndPush(ctx context.Context) error {
	if err := s.Commit(ctx); err != nil {
		return err
	}
	return s.Push(ctx, false)
}

// Sync fetches the configured branch and fast-forwards the local branch
// to it. A remote without that branch yet leaves the local branch alone.
func (s *Session) Sync(ctx context.Context) error {
	remote, branch := s.cfg.Remote, s.cfg.Branch
	if _, err := s.repo.Fetch(ctx, FetchOpts{Remote: remote, Branch: branch}); err != nil {
		if !isMissingRemoteBranch(err) {
			return err
		}
		zerolog.Ctx(ctx).Debug().Str("remote", remote).Str("branch", branch).Msg("remote branch missing, nothing to merge")
		return nil
	}

	tracking := plumbing.NewRemoteReferenceName(remote, branch)
	if _, err := s.repo.repo.Reference(tracking, true); errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil
	}
	return s.repo.Merge(ctx, tracking.String())
}

func isMissingRemoteBranch(err error) bool {
	return errors.Is(err, transport.ErrEmptyRemoteRepository) ||
		(errors.Is(err, ferrors.ErrNotFound) && strings.Contains(err.Error(), "couldn't find remote ref"))
}

// Close commits and pushes pending work.
func (s *Session) Close(ctx context.Context) error {
	if !s.needsCommit && !s.needsPush {
		return nil
	}
	if err := s.CommitAndPush(ctx); err != nil {
		return fmt.Errorf("close session %s: %w", s.repo.Path(), err)
	}
	return nil
}

func (s *Session) String() string {
	commit, push := "does not need commit", "does not need push"
	if s.needsCommit {
		commit = "needs commit"
	}
	if s.needsPush {
		push = "needs push"
	}
	return commit + ", " + push
}
