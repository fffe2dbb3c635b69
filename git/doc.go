// Package git is a small facade over go-git for opening, cloning and
// synchronising repositories.
//
// # Opening repositories
//
// Init, Open, Discover and Clone return a *Repo. Paths are resolved on
// Options.FS, which defaults to the host filesystem:
//
//	ctx := context.Background()
//	repo, err := git.Open(ctx, "/srv/checkout", nil)
//	if errors.Is(err, ferrors.ErrNotFound) {
//		// no repository there
//	}
//
// Discover walks up from a directory until it finds a worktree (.git) or a
// bare repository layout.
//
// # Credentials
//
// Remote operations ask a Broker for credentials. The broker tries its
// sources in order and moves to the next one whenever the remote rejects
// a credential:
//
//	broker := git.NewBroker(
//		git.SSHAgentSource(),
//		git.SSHKeySource(os.ExpandEnv("$HOME/.ssh/id_ed25519"), nil, ""),
//		git.CredentialHelperSource(nil),
//	)
//	repo, err := git.Clone(ctx, "git@github.com:org/repo.git", "/srv/repo",
//		&git.Options{Broker: broker})
//
// When every source has been rejected the operation fails with
// AUTH_FAILED and the error lists the sources tried. BrokerFromConfig
// builds the same chain from a config.RepoConfig.
//
// # Errors
//
// Every exported operation returns either nil or an
// *errors.OperationError whose Kind is one of NOT_FOUND, AUTH_FAILED,
// NETWORK_FAILURE, INVALID_STATE or UNDERLYING. Translate performs the
// mapping and is deterministic: the same engine error always yields the
// same kind. The facade sentinels (ErrNotFastForward, ErrEmptyCommit, ...)
// remain reachable through errors.Is for finer checks.
//
// # Sessions
//
// A Session ties a Repo to a config.RepoConfig and tracks pending work:
//
//	s, err := git.EnsureSession(ctx, cfg, nil)
//	s.Add("notes/today.md")
//	defer s.Close(ctx) // commits and pushes whatever is pending
//
// A Repo or Session must not be shared between goroutines performing
// mutating operations; the facade takes no locks. Blocking operations
// honour context cancellation.
package git
