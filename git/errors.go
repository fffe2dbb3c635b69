package git

import (
	"errors"
	"fmt"

	"github.com/codex-libs/repofacade/git/internal/auth"
	"github.com/codex-libs/repofacade/git/internal/fsbridge"
)

// Sentinel errors used inside the facade. Public operations translate them
// into *errors.OperationError, so callers match on the kind sentinels of
// the errors package; these stay reachable through errors.Is for detail.

// ErrAuthRequired is wrapped alongside ErrAuthFailed when the remote
// demanded credentials and no source had any to offer.
var ErrAuthRequired = auth.ErrAuthRequired

// ErrAuthFailed is wrapped when every credential source was rejected.
var ErrAuthFailed = auth.ErrAuthFailed

// ErrNotARepository is returned when a path holds no repository.
var ErrNotARepository = errors.New("not a git repository")

// ErrRepositoryExists is returned when Init or Clone target a path that
// already holds a repository.
var ErrRepositoryExists = errors.New("repository already exists")

// ErrDestinationNotEmpty is returned when Clone targets a file or a
// directory that already has entries.
var ErrDestinationNotEmpty = fsbridge.ErrDestinationNotEmpty

// ErrBareRepository is returned by worktree operations on a bare
// repository.
var ErrBareRepository = errors.New("operation requires a worktree")

// ErrDetachedHead is returned when an operation needs a current branch.
var ErrDetachedHead = errors.New("HEAD is detached")

// ErrBranchMissing is returned when Push names a local branch that does
// not exist.
var ErrBranchMissing = errors.New("branch does not exist")

// ErrNotFastForward is returned when a push or pull cannot be performed as
// a fast-forward.
var ErrNotFastForward = errors.New("not a fast-forward")

// ErrEmptyCommit is returned when a commit would record no changes.
var ErrEmptyCommit = errors.New("nothing to commit")

// ErrInvalidRef is returned for malformed arguments: empty names, empty
// URLs, bad revisions.
var ErrInvalidRef = errors.New("invalid reference")

// ErrResolveFailed is returned when a revision, remote or path cannot be
// resolved.
var ErrResolveFailed = errors.New("cannot resolve revision")

// WrapError wraps an error with additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapErrorf wraps an error with formatted additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
