package git

import (
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"time"

	gobilly "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/rs/zerolog"

	"github.com/codex-libs/repofacade/fs"
	fsb "github.com/codex-libs/repofacade/fs/billy"
	"github.com/codex-libs/repofacade/git/internal/auth"
	"github.com/codex-libs/repofacade/git/internal/fsbridge"
	"github.com/codex-libs/repofacade/internal/logging"
)

const (
	// DefaultStorerCacheSize is the object cache size in MiB.
	DefaultStorerCacheSize = fsbridge.DefaultCacheMiB

	// DefaultRemoteName is the default remote name used for operations.
	DefaultRemoteName = "origin"

	// DefaultBranch is the initial branch of repositories created by Init.
	DefaultBranch = "main"
)

// Options configures repository discovery/creation and performance.
type Options struct {
	// FS is the filesystem repositories live on. Defaults to the host
	// filesystem (fs/billy.NewBaseOSFS), where paths are OS paths.
	FS fs.Filesystem

	// Bare creates bare repositories in Init and Clone. Open and Discover
	// detect the layout instead.
	Bare bool

	// StorerCacheSize sets the LRU object cache in MiB.
	// Defaults to DefaultStorerCacheSize.
	StorerCacheSize int

	// Auth resolves a single AuthMethod per URL. It is tried as the only
	// credential source when Broker is nil.
	Auth AuthProvider

	// Broker walks several credential sources. It takes precedence over
	// Auth.
	Broker *Broker

	// Progress receives transport progress. When nil and Verbose is set,
	// progress lines are logged at debug.
	Progress io.Writer
	Verbose  bool

	// ShallowDepth sets the depth for shallow clone/fetch operations.
	// If > 0, operations will be shallow with the specified depth.
	ShallowDepth int

	// RemoteName is used when an operation names no remote.
	RemoteName string

	// InitialBranch is the branch HEAD points to after Init.
	InitialBranch string

	// Logger is attached to contexts that carry none.
	Logger *zerolog.Logger
}

// Validate checks that the Options are properly configured.
func (o *Options) Validate() error {
	if o.StorerCacheSize < 0 {
		return WrapError(ErrInvalidRef, "StorerCacheSize cannot be negative")
	}
	if o.ShallowDepth < 0 {
		return WrapError(ErrInvalidRef, "ShallowDepth cannot be negative")
	}
	return nil
}

func (o *Options) applyDefaults() {
	if o.FS == nil {
		o.FS = fsb.NewBaseOSFS()
	}
	if o.StorerCacheSize == 0 {
		o.StorerCacheSize = DefaultStorerCacheSize
	}
	if o.RemoteName == "" {
		o.RemoteName = DefaultRemoteName
	}
	if o.InitialBranch == "" {
		o.InitialBranch = DefaultBranch
	}
}

// prepare copies opts, fills defaults and validates. nil means defaults.
func prepare(opts *Options) (Options, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	if err := o.Validate(); err != nil {
		return o, err
	}
	o.applyDefaults()
	return o, nil
}

func (o *Options) context(ctx context.Context) context.Context {
	if o.Logger != nil && zerolog.Ctx(ctx).GetLevel() == zerolog.Disabled {
		return logging.WithLogger(ctx, *o.Logger)
	}
	return ctx
}

func (o *Options) broker() *Broker {
	switch {
	case o.Broker != nil:
		return o.Broker
	case o.Auth != nil:
		return auth.NewBroker(auth.FromProvider("auth-provider", o.Auth))
	default:
		return auth.NewBroker()
	}
}

func (o *Options) progress(ctx context.Context, op string) io.Writer {
	if o.Progress != nil {
		return o.Progress
	}
	if o.Verbose {
		return logging.NewProgressWriter(ctx, op)
	}
	return nil
}

// location is a repository path resolved against the options filesystem.
type location struct {
	path string
	root gobilly.Filesystem
	host bool

	// fs is the options filesystem path is resolved on.
	fs gobilly.Filesystem
}

func locate(o *Options, p string) (*location, error) {
	raw, err := fsbridge.ToBillyFilesystem(o.FS)
	if err != nil {
		return nil, WrapError(ErrInvalidRef, err.Error())
	}

	host := fsbridge.IsHost(o.FS)
	switch {
	case host:
		p, err = fs.GetAbs(p)
		if err != nil {
			return nil, err
		}
	case p == "":
		p = "."
	default:
		p = path.Clean(p)
	}

	root, err := raw.Chroot(p)
	if err != nil {
		return nil, WrapErrorf(err, "failed to chroot to %q", p)
	}
	return &location{path: p, root: root, host: host, fs: raw}, nil
}

// exists reports whether a host path exists. Virtual filesystems leave
// the check to layout detection.
func (l *location) exists() bool {
	if !l.host {
		return true
	}
	ok, err := fs.Exists(l.path)
	return err == nil && ok
}

// Init creates a new repository at path.
func Init(ctx context.Context, p string, opts *Options) (*Repo, error) {
	r, err := initRepo(ctx, p, opts)
	return r, Translate("init", p, err)
}

func initRepo(ctx context.Context, p string, opts *Options) (*Repo, error) {
	o, err := prepare(opts)
	if err != nil {
		return nil, WrapError(err, "invalid options")
	}
	ctx = o.context(ctx)

	loc, err := locate(&o, p)
	if err != nil {
		return nil, err
	}
	if fsbridge.HasRepository(loc.root, loc.host) {
		return nil, WrapErrorf(ErrRepositoryExists, "%s", loc.path)
	}

	layout, err := fsbridge.NewLayout(loc.root, o.Bare)
	if err != nil {
		return nil, err
	}

	repo, err := git.InitWithOptions(
		fsbridge.NewStorage(layout.Storage, o.StorerCacheSize),
		layout.Worktree,
		git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(o.InitialBranch)},
	)
	if err != nil {
		return nil, WrapError(err, "failed to initialize repository")
	}

	zerolog.Ctx(ctx).Debug().Str("path", loc.path).Bool("bare", o.Bare).Msg("repository initialized")
	return newRepo(repo, loc, layout, o)
}

// Open opens the repository at path. The layout (worktree with .git,
// .git file, or bare) is detected. A missing path or one without a
// repository is NotFound.
func Open(ctx context.Context, p string, opts *Options) (*Repo, error) {
	r, err := openRepo(ctx, p, opts)
	return r, Translate("open", p, err)
}

func openRepo(ctx context.Context, p string, opts *Options) (*Repo, error) {
	o, err := prepare(opts)
	if err != nil {
		return nil, WrapError(err, "invalid options")
	}
	ctx = o.context(ctx)

	loc, err := locate(&o, p)
	if err != nil {
		return nil, err
	}
	if !loc.exists() {
		return nil, WrapErrorf(ErrNotARepository, "%s does not exist", loc.path)
	}

	layout, err := fsbridge.Detect(loc.root, loc.host)
	if errors.Is(err, fsbridge.ErrNoRepository) {
		return nil, WrapErrorf(ErrNotARepository, "%s", loc.path)
	}
	if err != nil {
		return nil, err
	}

	repo, err := git.Open(fsbridge.NewStorage(layout.Storage, o.StorerCacheSize), layout.Worktree)
	if err != nil {
		return nil, WrapError(err, "failed to open repository")
	}

	zerolog.Ctx(ctx).Debug().Str("path", loc.path).Bool("bare", layout.Bare()).Msg("repository opened")
	return newRepo(repo, loc, layout, o)
}

// Discover walks from start up to the filesystem root and opens the first
// repository found.
func Discover(ctx context.Context, start string, opts *Options) (*Repo, error) {
	r, err := discover(ctx, start, opts)
	return r, Translate("discover", start, err)
}

func discover(ctx context.Context, start string, opts *Options) (*Repo, error) {
	o, err := prepare(opts)
	if err != nil {
		return nil, WrapError(err, "invalid options")
	}
	ctx = o.context(ctx)

	loc, err := locate(&o, start)
	if err != nil {
		return nil, err
	}
	raw, err := fsbridge.ToBillyFilesystem(o.FS)
	if err != nil {
		return nil, err
	}

	dir := loc.path
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		root, err := raw.Chroot(dir)
		if err == nil && fsbridge.HasRepository(root, loc.host) {
			zerolog.Ctx(ctx).Trace().Str("start", loc.path).Str("found", dir).Msg("repository discovered")
			return openRepo(ctx, dir, &o)
		}

		parent, ok := fs.Parent(dir)
		if !ok {
			break
		}
		dir = parent
	}
	return nil, WrapErrorf(ErrNotARepository, "no repository at or above %s", loc.path)
}

// Clone clones remoteURL into dest, which must be missing or an empty
// directory. Credentials come from the broker: each rejected credential
// discards what the attempt wrote and the clone is retried with the next
// one. A destination the clone created is removed if every attempt fails.
func Clone(ctx context.Context, remoteURL, dest string, opts *Options) (*Repo, error) {
	r, err := cloneRepo(ctx, remoteURL, dest, opts)
	return r, Translate("clone", remoteURL, err)
}

func cloneRepo(ctx context.Context, remoteURL, dest string, opts *Options) (*Repo, error) {
	if remoteURL == "" {
		return nil, WrapError(ErrInvalidRef, "remote URL cannot be empty")
	}

	o, err := prepare(opts)
	if err != nil {
		return nil, WrapError(err, "invalid options")
	}
	ctx = o.context(ctx)
	log := zerolog.Ctx(ctx)

	loc, err := locate(&o, dest)
	if err != nil {
		return nil, err
	}
	if fsbridge.HasRepository(loc.root, loc.host) {
		return nil, WrapErrorf(ErrRepositoryExists, "%s", loc.path)
	}
	target, err := fsbridge.NewCloneTarget(loc.fs, loc.path)
	if err != nil {
		return nil, err
	}

	layout, err := fsbridge.NewLayout(loc.root, o.Bare)
	if err != nil {
		return nil, err
	}

	var repo *git.Repository
	err = o.broker().Do(ctx, remoteURL, func(method transport.AuthMethod) error {
		cloned, cloneErr := git.CloneContext(ctx,
			fsbridge.NewStorage(layout.Storage, o.StorerCacheSize),
			layout.Worktree,
			&git.CloneOptions{
				URL:          remoteURL,
				Auth:         method,
				RemoteName:   o.RemoteName,
				Depth:        o.ShallowDepth,
				SingleBranch: o.ShallowDepth > 0,
				Progress:     o.progress(ctx, "clone"),
			},
		)
		if cloneErr != nil {
			if rmErr := target.Reset(); rmErr != nil {
				log.Warn().Err(rmErr).Str("path", loc.path).Msg("failed to remove partial clone")
			}
			return cloneErr
		}
		repo = cloned
		return nil
	})
	if err != nil {
		return nil, WrapError(err, "failed to clone repository")
	}

	log.Debug().Str("path", loc.path).Bool("bare", o.Bare).Msg("repository cloned")
	return newRepo(repo, loc, layout, o)
}

func newRepo(repo *git.Repository, loc *location, layout *fsbridge.Layout, o Options) (*Repo, error) {
	r := &Repo{
		repo:    repo,
		fs:      o.FS,
		root:    loc.root,
		path:    loc.path,
		options: o,
	}
	if !layout.Bare() {
		wt, err := repo.Worktree()
		if err != nil {
			return nil, WrapError(err, "failed to get worktree")
		}
		r.worktree = wt
	}
	return r, nil
}

// AuthProvider resolves authentication methods for git operations.
type AuthProvider interface {
	// Method returns the appropriate transport.AuthMethod for the given remote URL.
	// Returns nil if no authentication is needed/available for this URL.
	Method(remoteURL string) (transport.AuthMethod, error)
}

// Signature represents an author/committer signature for commits and tags.
type Signature struct {
	Name  string
	Email string

	// When defaults to the current time.
	When time.Time
}

// CommitOpts configures commit creation behavior.
type CommitOpts struct {
	// AllowEmpty allows creating commits with no changes.
	AllowEmpty bool

	// All stages modified and deleted tracked files before committing.
	All bool

	// Amend replaces the tip of the current branch.
	Amend bool
}

// Remote describes a configured remote.
type Remote struct {
	Name string
	URLs []string
}

// Repo is an open repository. It must not be used by concurrent mutating
// operations; the facade takes no locks.
type Repo struct {
	repo     *git.Repository
	worktree *git.Worktree
	fs       fs.Filesystem
	root     gobilly.Filesystem
	path     string
	options  Options
}

// Path returns the repository path: the worktree root, or the storage
// directory of a bare repository.
func (r *Repo) Path() string {
	return r.path
}

// IsBare reports whether the repository has no worktree.
func (r *Repo) IsBare() bool {
	return r.worktree == nil
}

// Remotes lists the configured remotes sorted by name.
func (r *Repo) Remotes(ctx context.Context) ([]Remote, error) {
	remotes, err := r.repo.Remotes()
	if err != nil {
		return nil, Translate("remotes", r.path, WrapError(err, "failed to list remotes"))
	}

	out := make([]Remote, 0, len(remotes))
	for _, rem := range remotes {
		cfg := rem.Config()
		out = append(out, Remote{Name: cfg.Name, URLs: append([]string(nil), cfg.URLs...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// remoteURL returns the first URL of the named remote.
func (r *Repo) remoteURL(name string) (string, error) {
	rem, err := r.repo.Remote(name)
	if err != nil {
		return "", WrapErrorf(err, "remote %q", name)
	}
	urls := rem.Config().URLs
	if len(urls) == 0 {
		return "", WrapErrorf(ErrInvalidRef, "remote %q has no URL", name)
	}
	return urls[0], nil
}

func (r *Repo) requireWorktree() error {
	if r.worktree == nil {
		return ErrBareRepository
	}
	return nil
}
