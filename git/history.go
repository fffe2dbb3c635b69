package git

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/leodido/go-conventionalcommits"
	"github.com/leodido/go-conventionalcommits/parser"
	"github.com/pmezard/go-difflib/difflib"
)

// LogFilter configures which commits to include in log operations.
type LogFilter struct {
	// Since limits the log to commits after the specified time.
	Since *time.Time

	// Until limits the log to commits before the specified time.
	Until *time.Time

	// Author keeps commits whose author or committer name or email
	// contains this substring.
	Author string

	// Path keeps commits touching a file whose path contains one of
	// these substrings.
	Path []string

	// MaxCount limits the number of commits returned. 0 means no limit.
	MaxCount int
}

// FileChange is one file touched by a commit.
type FileChange struct {
	Path      string
	Additions int
	Deletions int
}

// ConventionalHeader is the parsed header of a Conventional Commits
// message.
type ConventionalHeader struct {
	Type        string
	Scope       string
	Description string
	Breaking    bool
}

// CommitInfo describes one commit.
type CommitInfo struct {
	Hash      string
	Author    Signature
	Committer Signature
	Message   string
	Parents   []string

	// Files is filled by Head and Inspect; Log leaves it empty.
	Files []FileChange

	// Conventional is nil when the message does not follow the
	// Conventional Commits format.
	Conventional *ConventionalHeader
}

// Summary returns the first line of the message.
func (c *CommitInfo) Summary() string {
	line, _, _ := strings.Cut(c.Message, "\n")
	return strings.TrimSpace(line)
}

// Head returns the commit HEAD points to. An empty repository has no
// HEAD commit and yields NotFound.
func (r *Repo) Head(ctx context.Context) (*CommitInfo, error) {
	info, err := r.inspect(ctx, plumbing.Revision(plumbing.HEAD))
	return info, Translate("head", r.path, err)
}

// Inspect resolves rev (hash, branch, tag, HEAD~2, ...) and describes the
// commit with its changed files.
func (r *Repo) Inspect(ctx context.Context, rev string) (*CommitInfo, error) {
	if rev == "" {
		return nil, Translate("inspect", r.path, WrapError(ErrInvalidRef, "revision cannot be empty"))
	}
	info, err := r.inspect(ctx, plumbing.Revision(rev))
	return info, Translate("inspect", rev, err)
}

func (r *Repo) inspect(ctx context.Context, rev plumbing.Revision) (*CommitInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash, err := r.repo.ResolveRevision(rev)
	if err != nil {
		return nil, WrapErrorf(errors.Join(ErrResolveFailed, err), "failed to resolve %q", rev)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, WrapErrorf(err, "failed to read commit %s", hash)
	}

	info := commitInfo(commit)
	stats, err := commit.StatsContext(ctx)
	if err != nil {
		return nil, WrapErrorf(err, "failed to compute stats for %s", hash)
	}
	for _, s := range stats {
		info.Files = append(info.Files, FileChange{Path: s.Name, Additions: s.Addition, Deletions: s.Deletion})
	}
	return info, nil
}

func commitInfo(c *object.Commit) *CommitInfo {
	info := &CommitInfo{
		Hash:         c.Hash.String(),
		Author:       Signature{Name: c.Author.Name, Email: c.Author.Email, When: c.Author.When},
		Committer:    Signature{Name: c.Committer.Name, Email: c.Committer.Email, When: c.Committer.When},
		Message:      c.Message,
		Conventional: parseConventional(c.Message),
	}
	for _, p := range c.ParentHashes {
		info.Parents = append(info.Parents, p.String())
	}
	return info
}

// parseConventional parses the whole message first so a BREAKING CHANGE
// footer is seen, then falls back to the header line alone.
func parseConventional(msg string) *ConventionalHeader {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return nil
	}

	machine := parser.NewMachine(parser.WithTypes(conventionalcommits.TypesConventional))
	res, err := machine.Parse([]byte(msg))
	if err != nil {
		header, _, _ := strings.Cut(msg, "\n")
		if res, err = machine.Parse([]byte(header)); err != nil {
			return nil
		}
	}

	cc, ok := res.(*conventionalcommits.ConventionalCommit)
	if !ok || !cc.Ok() {
		return nil
	}
	h := &ConventionalHeader{
		Type:        cc.Type,
		Description: cc.Description,
		Breaking:    cc.IsBreakingChange(),
	}
	if cc.Scope != nil {
		h.Scope = *cc.Scope
	}
	return h
}

// Log lists commits reachable from HEAD, newest first. An empty
// repository has an empty log.
func (r *Repo) Log(ctx context.Context, f LogFilter) ([]CommitInfo, error) {
	out, err := r.log(ctx, f)
	return out, Translate("log", r.path, err)
}

func (r *Repo) log(ctx context.Context, f LogFilter) ([]CommitInfo, error) {
	if _, err := r.repo.Head(); errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []CommitInfo{}, nil
	}

	opts := &git.LogOptions{
		Order: git.LogOrderCommitterTime,
		Since: f.Since,
		Until: f.Until,
	}
	if len(f.Path) > 0 {
		opts.PathFilter = func(p string) bool {
			for _, want := range f.Path {
				if strings.Contains(p, want) {
					return true
				}
			}
			return false
		}
	}

	iter, err := r.repo.Log(opts)
	if err != nil {
		return nil, WrapError(err, "failed to create commit iterator")
	}
	defer iter.Close()

	out := []CommitInfo{}
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.Author != "" && !matchesAuthor(c, f.Author) {
			return nil
		}
		out = append(out, *commitInfo(c))
		if f.MaxCount > 0 && len(out) >= f.MaxCount {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, WrapError(err, "failed to iterate commits")
	}
	return out, nil
}

func matchesAuthor(c *object.Commit, s string) bool {
	return strings.Contains(c.Author.Name, s) || strings.Contains(c.Author.Email, s) ||
		strings.Contains(c.Committer.Name, s) || strings.Contains(c.Committer.Email, s)
}

// Tags lists tag names: semantic versions in ascending version order
// first, then the rest alphabetically.
func (r *Repo) Tags(ctx context.Context) ([]string, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return nil, Translate("tags", r.path, WrapError(err, "failed to list tags"))
	}

	type versioned struct {
		name string
		v    *semver.Version
	}
	var (
		versions []versioned
		others   []string
	)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := ref.Name().Short()
		if v, err := semver.NewVersion(name); err == nil {
			versions = append(versions, versioned{name: name, v: v})
		} else {
			others = append(others, name)
		}
		return nil
	})
	if err != nil {
		return nil, Translate("tags", r.path, WrapError(err, "failed to iterate tags"))
	}

	sort.SliceStable(versions, func(i, j int) bool {
		if versions[i].v.Equal(versions[j].v) {
			return versions[i].name < versions[j].name
		}
		return versions[i].v.LessThan(versions[j].v)
	})
	sort.Strings(others)

	out := make([]string, 0, len(versions)+len(others))
	for _, v := range versions {
		out = append(out, v.name)
	}
	return append(out, others...), nil
}

// WorktreeDiff returns a unified diff of the working copy of path against
// its HEAD version. A file unchanged since HEAD yields "". A path absent
// from both is NotFound.
func (r *Repo) WorktreeDiff(ctx context.Context, path string) (string, error) {
	out, err := r.worktreeDiff(ctx, path)
	return out, Translate("diff", path, err)
}

func (r *Repo) worktreeDiff(ctx context.Context, path string) (string, error) {
	if err := r.requireWorktree(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	before, inHead, err := r.headContents(path)
	if err != nil {
		return "", err
	}
	after, inWorktree, err := r.worktreeContents(path)
	if err != nil {
		return "", err
	}
	if !inHead && !inWorktree {
		return "", WrapErrorf(ErrResolveFailed, "%s is neither tracked nor present", path)
	}

	from, to := "a/"+path, "b/"+path
	if !inHead {
		from = "/dev/null"
	}
	if !inWorktree {
		to = "/dev/null"
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: from,
		ToFile:   to,
		Context:  3,
	})
}

func (r *Repo) headContents(path string) (string, bool, error) {
	ref, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, WrapError(err, "failed to read HEAD")
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return "", false, WrapError(err, "failed to read HEAD commit")
	}
	file, err := commit.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, WrapErrorf(err, "failed to read %s at HEAD", path)
	}
	contents, err := file.Contents()
	if err != nil {
		return "", false, WrapErrorf(err, "failed to read %s at HEAD", path)
	}
	return contents, true, nil
}

func (r *Repo) worktreeContents(path string) (string, bool, error) {
	f, err := r.root.Open(path)
	if err != nil {
		return "", false, nil
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return "", false, WrapErrorf(err, "failed to read %s", path)
	}
	return string(b), true, nil
}
