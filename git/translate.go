package git

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	ferrors "github.com/codex-libs/repofacade/errors"
	"github.com/codex-libs/repofacade/git/internal/auth"
	"github.com/codex-libs/repofacade/git/internal/fsbridge"
)

// translationRule maps one family of engine errors to a kind. Rules are
// checked in order; the first match wins.
type translationRule struct {
	name  string
	kind  ferrors.Kind
	match func(error) bool
}

func isAny(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	}
}

func containsAny(fragments ...string) func(error) bool {
	return func(err error) bool {
		msg := strings.ToLower(err.Error())
		for _, f := range fragments {
			if strings.Contains(msg, f) {
				return true
			}
		}
		return false
	}
}

// translationRules is ordered from most to least specific. Authentication
// comes first because transport errors often also look like network or
// not-found failures.
var translationRules = []translationRule{
	{
		name: "auth",
		kind: ferrors.KindAuthFailed,
		match: func(err error) bool {
			return errors.Is(err, auth.ErrAuthFailed) || auth.IsAuthError(err)
		},
	},
	{
		name: "deadline",
		kind: ferrors.KindNetworkFailure,
		match: isAny(context.DeadlineExceeded, os.ErrDeadlineExceeded),
	},
	{
		name: "cancelled",
		kind: ferrors.KindUnderlying,
		match: isAny(context.Canceled),
	},
	{
		name: "not-found",
		kind: ferrors.KindNotFound,
		match: isAny(
			ErrNotARepository,
			ErrResolveFailed,
			ErrBranchMissing,
			fsbridge.ErrNoRepository,
			git.ErrRepositoryNotExists,
			git.ErrRemoteNotFound,
			git.ErrBranchNotFound,
			git.ErrTagNotFound,
			transport.ErrRepositoryNotFound,
			plumbing.ErrReferenceNotFound,
			plumbing.ErrObjectNotFound,
			os.ErrNotExist,
		),
	},
	{
		name: "invalid-state",
		kind: ferrors.KindInvalidState,
		match: isAny(
			ErrRepositoryExists,
			ErrDestinationNotEmpty,
			ErrBareRepository,
			ErrDetachedHead,
			ErrNotFastForward,
			ErrEmptyCommit,
			ErrInvalidRef,
			git.ErrRepositoryAlreadyExists,
			git.ErrRemoteExists,
			git.ErrIsBareRepository,
			git.ErrNonFastForwardUpdate,
			git.ErrForceNeeded,
			git.ErrWorktreeNotClean,
			git.ErrUnstagedChanges,
			git.ErrEmptyCommit,
			git.ErrFastForwardMergeNotPossible,
			transport.ErrEmptyRemoteRepository,
			transport.ErrInvalidAuthMethod,
		),
	},
	{
		name: "network",
		kind: ferrors.KindNetworkFailure,
		match: func(err error) bool {
			var netErr net.Error
			var urlErr *url.Error
			var opErr *net.OpError
			switch {
			case errors.As(err, &opErr), errors.As(err, &netErr), errors.As(err, &urlErr):
				return true
			case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
				errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH),
				errors.Is(err, io.ErrUnexpectedEOF):
				return true
			}
			return containsAny("connection refused", "no such host", "i/o timeout",
				"connection reset", "unexpected client error", "unexpected requesting",
				"tls handshake", "network is unreachable")(err)
		},
	},
	{
		name:  "missing-path",
		kind:  ferrors.KindNotFound,
		match: containsAny("repository not found", "couldn't find remote ref", "file does not exist", "no such file or directory"),
	},
}

// Translate turns an engine error raised by op on target into an
// *errors.OperationError. nil stays nil and errors that were already
// translated pass through untouched. Unknown errors become
// KindUnderlying with the original text as the diagnostic cause.
func Translate(op, target string, err error) error {
	if err == nil {
		return nil
	}
	var already *ferrors.OperationError
	if errors.As(err, &already) {
		return err
	}
	return ferrors.New(classify(err), op, target, err)
}

func classify(err error) ferrors.Kind {
	for _, rule := range translationRules {
		if rule.match(err) {
			return rule.kind
		}
	}
	return ferrors.KindUnderlying
}
