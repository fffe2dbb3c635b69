package git

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"

	fsb "github.com/codex-libs/repofacade/fs/billy"
)

var testSig = Signature{
	Name:  "Test User",
	Email: "test@example.com",
	When:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
}

// newMemRepo initializes a non-bare repository at /work on an in-memory
// filesystem.
func newMemRepo(t *testing.T) *Repo {
	t.Helper()
	repo, err := Init(context.Background(), "/work", &Options{FS: fsb.NewInMemoryFS()})
	require.NoError(t, err)
	return repo
}

func writeFile(t *testing.T, repo *Repo, name, content string) {
	t.Helper()
	require.NoError(t, util.WriteFile(repo.root, name, []byte(content), 0o644))
}

// commitFile writes, stages and commits one file and returns the hash.
func commitFile(t *testing.T, repo *Repo, name, content, msg string) string {
	t.Helper()
	ctx := context.Background()
	writeFile(t, repo, name, content)
	require.NoError(t, repo.Add(ctx, name))
	hash, err := repo.Commit(ctx, msg, testSig, CommitOpts{})
	require.NoError(t, err)
	return hash
}

// requireLocalTransport skips tests that need go-git's file transport,
// which runs git-upload-pack and git-receive-pack.
func requireLocalTransport(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"git-upload-pack", "git-receive-pack"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not in PATH", bin)
		}
	}
}

// newRemote creates a bare repository on disk holding one commit on main
// and returns its path.
func newRemote(t *testing.T) string {
	t.Helper()
	requireLocalTransport(t)
	ctx := context.Background()
	dir := t.TempDir()

	remotePath := filepath.Join(dir, "remote.git")
	_, err := Init(ctx, remotePath, &Options{Bare: true})
	require.NoError(t, err)

	seed, err := Init(ctx, filepath.Join(dir, "seed"), nil)
	require.NoError(t, err)
	commitFile(t, seed, "README.md", "# seed\n", "chore: initial commit")
	addRemote(t, seed, DefaultRemoteName, remotePath)
	require.NoError(t, seed.Push(ctx, PushOpts{}))

	return remotePath
}

func addRemote(t *testing.T, repo *Repo, name, url string) {
	t.Helper()
	_, err := repo.repo.CreateRemote(&config.RemoteConfig{Name: name, URLs: []string{url}})
	require.NoError(t, err)
}

func checkoutHash(hash string) *git.CheckoutOptions {
	return &git.CheckoutOptions{Hash: plumbing.NewHash(hash)}
}
