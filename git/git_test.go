package git

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/codex-libs/repofacade/errors"
	fsb "github.com/codex-libs/repofacade/fs/billy"
)

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "zero value", opts: Options{}},
		{name: "explicit values", opts: Options{StorerCacheSize: 32, ShallowDepth: 1}},
		{name: "negative cache", opts: Options{StorerCacheSize: -1}, wantErr: true},
		{name: "negative depth", opts: Options{ShallowDepth: -3}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRef)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPrepare_Defaults(t *testing.T) {
	o, err := prepare(nil)
	require.NoError(t, err)
	assert.NotNil(t, o.FS)
	assert.Equal(t, DefaultStorerCacheSize, o.StorerCacheSize)
	assert.Equal(t, DefaultRemoteName, o.RemoteName)
	assert.Equal(t, DefaultBranch, o.InitialBranch)

	_, err = Init(context.Background(), t.TempDir(), &Options{ShallowDepth: -1})
	require.Error(t, err)
	assert.Equal(t, ferrors.KindInvalidState, ferrors.KindOf(err))
}

func TestInit(t *testing.T) {
	ctx := context.Background()

	t.Run("in-memory worktree", func(t *testing.T) {
		repo := newMemRepo(t)
		assert.False(t, repo.IsBare())
		assert.Equal(t, "/work", repo.Path())

		st, err := repo.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, DefaultBranch, st.Branch)
		assert.Empty(t, st.Head)
	})

	t.Run("in-memory bare", func(t *testing.T) {
		memFS := fsb.NewInMemoryFS()
		repo, err := Init(ctx, "/srv/repo.git", &Options{FS: memFS, Bare: true})
		require.NoError(t, err)
		assert.True(t, repo.IsBare())

		ok, err := memFS.Exists("/srv/repo.git/HEAD")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("existing repository", func(t *testing.T) {
		dir := t.TempDir()
		_, err := Init(ctx, dir, nil)
		require.NoError(t, err)

		_, err = Init(ctx, dir, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ferrors.ErrInvalidState)
		assert.ErrorIs(t, err, ErrRepositoryExists)
	})

	t.Run("custom initial branch", func(t *testing.T) {
		repo, err := Init(ctx, t.TempDir(), &Options{InitialBranch: "trunk"})
		require.NoError(t, err)
		st, err := repo.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, "trunk", st.Branch)
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("valid repository", func(t *testing.T) {
		dir := t.TempDir()
		created, err := Init(ctx, dir, nil)
		require.NoError(t, err)
		commitFile(t, created, "a.txt", "a\n", "initial")

		repo, err := Open(ctx, dir, nil)
		require.NoError(t, err)
		require.NotNil(t, repo)
		assert.Equal(t, dir, repo.Path())

		head, err := repo.Head(ctx)
		require.NoError(t, err)
		assert.Equal(t, "initial", head.Summary())
	})

	t.Run("bare repository", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "r.git")
		_, err := Init(ctx, dir, &Options{Bare: true})
		require.NoError(t, err)

		repo, err := Open(ctx, dir, nil)
		require.NoError(t, err)
		assert.True(t, repo.IsBare())

		_, err = repo.Status(ctx)
		assert.ErrorIs(t, err, ferrors.ErrInvalidState)
	})

	t.Run("non-existent path", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "not-a-repo")
		repo, err := Open(ctx, missing, nil)
		assert.Nil(t, repo)
		require.Error(t, err)
		assert.Equal(t, ferrors.KindNotFound, ferrors.KindOf(err))

		var opErr *ferrors.OperationError
		require.ErrorAs(t, err, &opErr)
		assert.Equal(t, "open", opErr.Op)
		assert.Equal(t, missing, opErr.Target)
	})

	t.Run("tmp path without repository", func(t *testing.T) {
		if _, err := os.Stat("/tmp/not-a-repo/.git"); err == nil {
			t.Skip("/tmp/not-a-repo holds a repository on this machine")
		}
		_, err := Open(ctx, "/tmp/not-a-repo", nil)
		assert.ErrorIs(t, err, ferrors.ErrNotFound)
	})

	t.Run("directory without repository", func(t *testing.T) {
		_, err := Open(ctx, t.TempDir(), nil)
		assert.ErrorIs(t, err, ferrors.ErrNotFound)
	})

	t.Run("in-memory path without repository", func(t *testing.T) {
		memFS := fsb.NewInMemoryFS()
		require.NoError(t, memFS.MkdirAll("/empty", 0o755))
		_, err := Open(ctx, "/empty", &Options{FS: memFS})
		assert.ErrorIs(t, err, ferrors.ErrNotFound)
	})
}

func TestDiscover(t *testing.T) {
	ctx := context.Background()

	t.Run("walks up from a subdirectory", func(t *testing.T) {
		dir := t.TempDir()
		_, err := Init(ctx, dir, nil)
		require.NoError(t, err)
		sub := filepath.Join(dir, "a", "b")
		require.NoError(t, os.MkdirAll(sub, 0o755))

		repo, err := Discover(ctx, sub, nil)
		require.NoError(t, err)
		assert.Equal(t, dir, repo.Path())
	})

	t.Run("finds a bare repository", func(t *testing.T) {
		memFS := fsb.NewInMemoryFS()
		_, err := Init(ctx, "/srv/r.git", &Options{FS: memFS, Bare: true})
		require.NoError(t, err)

		repo, err := Discover(ctx, "/srv/r.git/refs/heads", &Options{FS: memFS})
		require.NoError(t, err)
		assert.True(t, repo.IsBare())
		assert.Equal(t, "/srv/r.git", repo.Path())
	})

	t.Run("nothing found", func(t *testing.T) {
		memFS := fsb.NewInMemoryFS()
		require.NoError(t, memFS.MkdirAll("/x/y", 0o755))
		_, err := Discover(ctx, "/x/y", &Options{FS: memFS})
		assert.ErrorIs(t, err, ferrors.ErrNotFound)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Discover(cctx, t.TempDir(), nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// countingSource offers a fixed basic-auth credential and counts requests.
type countingSource struct {
	name  string
	asked atomic.Int32
}

func (s *countingSource) Name() string { return s.name }

//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (s *countingSource) Credential(_ context.Context, _ CredentialRequest) (transport.AuthMethod, error) {
	s.asked.Add(1)
	return &githttp.BasicAuth{Username: s.name, Password: "wrong"}, nil
}

func unauthorizedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("WWW-Authenticate", `Basic realm="git"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClone_AuthFailed(t *testing.T) {
	ctx := context.Background()
	srv := unauthorizedServer(t)
	url := srv.URL + "/org/repo.git"

	t.Run("every source is tried", func(t *testing.T) {
		sources := []*countingSource{{name: "first"}, {name: "second"}, {name: "third"}}
		broker := NewBroker(sources[0], sources[1], sources[2])
		dest := filepath.Join(t.TempDir(), "dest")

		repo, err := Clone(ctx, url, dest, &Options{Broker: broker})
		assert.Nil(t, repo)
		require.Error(t, err)
		assert.Equal(t, ferrors.KindAuthFailed, ferrors.KindOf(err))
		assert.ErrorIs(t, err, ErrAuthFailed)

		var exhausted *ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, []string{"first", "second", "third"}, exhausted.Tried)
		for _, s := range sources {
			assert.Equal(t, int32(1), s.asked.Load(), s.name)
		}

		_, statErr := os.Stat(dest)
		assert.True(t, os.IsNotExist(statErr), "destination created by the clone should be removed")
	})

	t.Run("existing empty destination is kept", func(t *testing.T) {
		for _, bare := range []bool{false, true} {
			dest := t.TempDir()
			_, err := Clone(ctx, url, dest, &Options{Bare: bare, Broker: NewBroker(&countingSource{name: "one"})})
			require.ErrorIs(t, err, ferrors.ErrAuthFailed)

			entries, err := os.ReadDir(dest)
			require.NoError(t, err)
			assert.Empty(t, entries, "bare=%v", bare)
		}
	})

	t.Run("no credentials", func(t *testing.T) {
		_, err := Clone(ctx, url, filepath.Join(t.TempDir(), "dest"), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ferrors.ErrAuthFailed)
		assert.ErrorIs(t, err, ErrAuthRequired)
	})
}

func TestClone_InvalidState(t *testing.T) {
	ctx := context.Background()

	t.Run("empty url", func(t *testing.T) {
		_, err := Clone(ctx, "", t.TempDir(), nil)
		assert.ErrorIs(t, err, ferrors.ErrInvalidState)
	})

	t.Run("destination holds a repository", func(t *testing.T) {
		dir := t.TempDir()
		_, err := Init(ctx, dir, nil)
		require.NoError(t, err)

		_, err = Clone(ctx, "https://example.com/repo.git", dir, nil)
		assert.ErrorIs(t, err, ferrors.ErrInvalidState)
		assert.ErrorIs(t, err, ErrRepositoryExists)
	})

	t.Run("destination holds other files", func(t *testing.T) {
		url := unauthorizedServer(t).URL + "/org/repo.git"
		tests := []struct {
			name  string
			bare  bool
			files map[string]string
		}{
			{
				name:  "bare",
				bare:  true,
				files: map[string]string{"config": "mine\n", "info/notes.txt": "keep\n"},
			},
			{
				name:  "worktree",
				files: map[string]string{"README.md": "hello\n"},
			},
			{
				name:  "unreadable git file",
				files: map[string]string{".git": "not a pointer\n"},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				dir := t.TempDir()
				for name, content := range tt.files {
					require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
					require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
				}
				src := &countingSource{name: "one"}

				_, err := Clone(ctx, url, dir, &Options{Bare: tt.bare, Broker: NewBroker(src)})
				assert.ErrorIs(t, err, ferrors.ErrInvalidState)
				assert.ErrorIs(t, err, ErrDestinationNotEmpty)
				assert.Zero(t, src.asked.Load())

				for name, content := range tt.files {
					got, err := os.ReadFile(filepath.Join(dir, name))
					require.NoError(t, err, name)
					assert.Equal(t, content, string(got), name)
				}
			})
		}
	})

	t.Run("destination is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "dest")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

		_, err := Clone(ctx, "https://example.com/repo.git", file, nil)
		assert.ErrorIs(t, err, ferrors.ErrInvalidState)
		assert.ErrorIs(t, err, ErrDestinationNotEmpty)
	})
}

func TestClone_Local(t *testing.T) {
	ctx := context.Background()
	remote := newRemote(t)

	tests := []struct {
		name  string
		opts  *Options
		check func(t *testing.T, repo *Repo)
	}{
		{
			name: "worktree",
			check: func(t *testing.T, repo *Repo) {
				head, err := repo.Head(ctx)
				require.NoError(t, err)
				assert.Equal(t, "chore: initial commit", head.Summary())
				_, err = os.Stat(filepath.Join(repo.Path(), "README.md"))
				assert.NoError(t, err)
			},
		},
		{
			name: "bare",
			opts: &Options{Bare: true},
			check: func(t *testing.T, repo *Repo) {
				assert.True(t, repo.IsBare())
				_, err := os.Stat(filepath.Join(repo.Path(), "HEAD"))
				assert.NoError(t, err)
			},
		},
		{
			name: "custom remote name",
			opts: &Options{RemoteName: "upstream"},
			check: func(t *testing.T, repo *Repo) {
				remotes, err := repo.Remotes(ctx)
				require.NoError(t, err)
				require.Len(t, remotes, 1)
				assert.Equal(t, "upstream", remotes[0].Name)
				assert.Equal(t, []string{remote}, remotes[0].URLs)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, err := Clone(ctx, remote, filepath.Join(t.TempDir(), "clone"), tt.opts)
			require.NoError(t, err)
			tt.check(t, repo)
		})
	}
}

func TestRemotes_Sorted(t *testing.T) {
	repo := newMemRepo(t)
	addRemote(t, repo, "upstream", "https://example.com/up.git")
	addRemote(t, repo, "origin", "https://example.com/origin.git")

	remotes, err := repo.Remotes(context.Background())
	require.NoError(t, err)
	require.Len(t, remotes, 2)
	assert.Equal(t, "origin", remotes[0].Name)
	assert.Equal(t, "upstream", remotes[1].Name)
}
