package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"syscall"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/codex-libs/repofacade/errors"
	"github.com/codex-libs/repofacade/git/internal/auth"
	"github.com/codex-libs/repofacade/git/internal/fsbridge"
)

func translationTable() []struct {
	name string
	err  error
	want ferrors.Kind
} {
	return []struct {
		name string
		err  error
		want ferrors.Kind
	}{
		{"auth required", transport.ErrAuthenticationRequired, ferrors.KindAuthFailed},
		{"authorization failed", transport.ErrAuthorizationFailed, ferrors.KindAuthFailed},
		{"ssh handshake", errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none publickey]"), ferrors.KindAuthFailed},
		{"broker exhausted", &auth.ExhaustedError{URL: "h/p", Tried: []string{"a"}, Last: transport.ErrAuthenticationRequired}, ferrors.KindAuthFailed},
		{"anonymous rejected", &auth.ExhaustedError{URL: "h/p", Tried: []string{auth.Anonymous}, Last: transport.ErrAuthenticationRequired}, ferrors.KindAuthFailed},

		{"repository not exists", git.ErrRepositoryNotExists, ferrors.KindNotFound},
		{"remote repository not found", transport.ErrRepositoryNotFound, ferrors.KindNotFound},
		{"remote not found", git.ErrRemoteNotFound, ferrors.KindNotFound},
		{"branch not found", git.ErrBranchNotFound, ferrors.KindNotFound},
		{"reference not found", plumbing.ErrReferenceNotFound, ferrors.KindNotFound},
		{"object not found", plumbing.ErrObjectNotFound, ferrors.KindNotFound},
		{"os not exist", &os.PathError{Op: "stat", Path: "/x", Err: syscall.ENOENT}, ferrors.KindNotFound},
		{"no layout", fsbridge.ErrNoRepository, ferrors.KindNotFound},
		{"not a repository", WrapErrorf(ErrNotARepository, "%s", "/tmp/x"), ferrors.KindNotFound},
		{"branch missing", WrapErrorf(ErrBranchMissing, "%s", "dev"), ferrors.KindNotFound},
		{"missing remote ref", errors.New("couldn't find remote ref refs/heads/dev"), ferrors.KindNotFound},

		{"already exists", git.ErrRepositoryAlreadyExists, ferrors.KindInvalidState},
		{"non fast forward", git.ErrNonFastForwardUpdate, ferrors.KindInvalidState},
		{"force needed", git.ErrForceNeeded, ferrors.KindInvalidState},
		{"worktree not clean", git.ErrWorktreeNotClean, ferrors.KindInvalidState},
		{"empty remote", transport.ErrEmptyRemoteRepository, ferrors.KindInvalidState},
		{"empty commit", ErrEmptyCommit, ferrors.KindInvalidState},
		{"bare", ErrBareRepository, ferrors.KindInvalidState},
		{"detached", ErrDetachedHead, ferrors.KindInvalidState},
		{"destination not empty", WrapErrorf(ErrDestinationNotEmpty, "%s", "/tmp/x"), ferrors.KindInvalidState},

		{"connection refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, ferrors.KindNetworkFailure},
		{"url error", &url.Error{Op: "Get", URL: "https://x", Err: io.EOF}, ferrors.KindNetworkFailure},
		{"unexpected eof", fmt.Errorf("read pack: %w", io.ErrUnexpectedEOF), ferrors.KindNetworkFailure},
		{"no such host", errors.New("dial tcp: lookup nowhere.invalid: no such host"), ferrors.KindNetworkFailure},
		{"deadline", context.DeadlineExceeded, ferrors.KindNetworkFailure},

		{"cancelled", context.Canceled, ferrors.KindUnderlying},
		{"unknown", errors.New("zlib: invalid header"), ferrors.KindUnderlying},
	}
}

func TestTranslate_Table(t *testing.T) {
	for _, tt := range translationTable() {
		t.Run(tt.name, func(t *testing.T) {
			err := Translate("op", "target", tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.want, ferrors.KindOf(err))
			assert.ErrorIs(t, err, tt.err, "original error stays reachable")
		})
	}
}

func TestTranslate_Deterministic(t *testing.T) {
	for _, tt := range translationTable() {
		first := ferrors.KindOf(Translate("op", "t", tt.err))
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, ferrors.KindOf(Translate("op", "t", tt.err)), tt.name)
		}
	}
}

func TestTranslate_Passthrough(t *testing.T) {
	assert.NoError(t, Translate("op", "t", nil))

	translated := Translate("clone", "u", transport.ErrAuthenticationRequired)
	again := Translate("open", "other", fmt.Errorf("outer: %w", translated))

	var opErr *ferrors.OperationError
	require.ErrorAs(t, again, &opErr)
	assert.Equal(t, "clone", opErr.Op)
	assert.Equal(t, ferrors.KindAuthFailed, opErr.Kind)
}

func TestTranslate_Diagnostic(t *testing.T) {
	err := Translate("fetch", "/repo:origin", errors.New("zlib: invalid header"))

	var opErr *ferrors.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, ferrors.KindUnderlying, opErr.Diagnostic.Kind)
	assert.Equal(t, "fetch", opErr.Diagnostic.Op)
	assert.Equal(t, "/repo:origin", opErr.Diagnostic.Target)
	assert.Contains(t, opErr.Diagnostic.Cause, "zlib: invalid header")
}
