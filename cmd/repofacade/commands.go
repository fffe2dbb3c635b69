package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	ferrors "github.com/codex-libs/repofacade/errors"
	"github.com/codex-libs/repofacade/git"
	"github.com/codex-libs/repofacade/secrets"
)

const shortHashLen = 7

func (a *application) cloneCommand() *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "clone [url] [dest]",
		Short: "Clone the configured remote, or url, into the working copy path",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) > 0 {
				a.cfg.RemoteURL = args[0]
			}
			dest := a.repoDir()
			if len(args) > 1 {
				dest = args[1]
			}

			opts, err := a.options(ctx)
			if err != nil {
				return err
			}
			opts.ShallowDepth = depth

			repo, err := git.Clone(ctx, a.cfg.RemoteURL, dest, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cloned %s into %s\n", a.cfg.RemoteURL, repo.Path())
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 0, "Create a shallow clone with this many commits.")
	return cmd
}

func (a *application) openCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "open [path]",
		Short: "Open a repository and print a summary of it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := a.repoDir()
			if len(args) > 0 {
				p = args[0]
			}

			opts, err := a.options(ctx)
			if err != nil {
				return err
			}
			repo, err := git.Open(ctx, p, opts)
			if err != nil {
				return err
			}
			return printSummary(cmd, repo)
		},
	}
}

func printSummary(cmd *cobra.Command, repo *git.Repo) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "path:    %s\n", repo.Path())
	fmt.Fprintf(out, "bare:    %t\n", repo.IsBare())

	head, err := repo.Head(ctx)
	switch {
	case ferrors.Is(err, ferrors.ErrNotFound):
		fmt.Fprintln(out, "head:    (no commits)")
	case err != nil:
		return err
	default:
		fmt.Fprintf(out, "head:    %s %s\n", shortHash(head.Hash), head.Summary())
	}

	remotes, err := repo.Remotes(ctx)
	if err != nil {
		return err
	}
	for _, r := range remotes {
		fmt.Fprintf(out, "remote:  %s %s\n", r.Name, strings.Join(r.URLs, " "))
	}
	return nil
}

func (a *application) discoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "discover [start]",
		Short: "Find the repository containing start (default: the working directory)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			start := "."
			if len(args) > 0 {
				start = args[0]
			}

			opts, err := a.options(ctx)
			if err != nil {
				return err
			}
			repo, err := git.Discover(ctx, start, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), repo.Path())
			return nil
		},
	}
}

func (a *application) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the branch and the changed files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			repo, err := a.openRepo(ctx)
			if err != nil {
				return err
			}
			st, err := repo.Status(ctx)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func printStatus(out io.Writer, st *git.Status) {
	if st.Detached {
		fmt.Fprintf(out, "HEAD detached at %s\n", shortHash(st.Head))
	} else {
		fmt.Fprintf(out, "On branch %s\n", st.Branch)
	}
	if st.Clean() {
		fmt.Fprintln(out, "nothing to commit, working tree clean")
		return
	}
	for _, f := range st.Files {
		fmt.Fprintf(out, "%c%c %s\n", statusChar(f.Staging), statusChar(f.Worktree), f.Path)
	}
}

func statusChar(c git.StatusCode) byte {
	if c == git.Unmodified {
		return ' '
	}
	return byte(c)
}

func (a *application) logCommand() *cobra.Command {
	var (
		since, until string
		filter       git.LogFilter
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "List commits reachable from HEAD, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var err error
			if filter.Since, err = parseTime(since); err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
			if filter.Until, err = parseTime(until); err != nil {
				return fmt.Errorf("invalid --until: %w", err)
			}

			repo, err := a.openRepo(ctx)
			if err != nil {
				return err
			}
			commits, err := repo.Log(ctx, filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range commits {
				fmt.Fprintf(out, "%s %s %s %s\n",
					shortHash(c.Hash), c.Author.When.Format("2006-01-02"), c.Author.Name, c.Summary())
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&since, "since", "", "Only commits after this date (YYYY-MM-DD or RFC 3339).")
	flags.StringVar(&until, "until", "", "Only commits before this date (YYYY-MM-DD or RFC 3339).")
	flags.StringVar(&filter.Author, "author", "", "Only commits whose author or committer matches.")
	flags.StringSliceVar(&filter.Path, "path", nil, "Only commits touching a path containing this text.")
	flags.IntVarP(&filter.MaxCount, "max-count", "n", 0, "Limit the number of commits.")
	return cmd
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("cannot parse %q as a date", s)
}

func (a *application) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <rev>",
		Short: "Show one commit with its changed files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := a.openRepo(ctx)
			if err != nil {
				return err
			}
			c, err := repo.Inspect(ctx, args[0])
			if err != nil {
				return err
			}
			printCommit(cmd.OutOrStdout(), c)
			return nil
		},
	}
}

func printCommit(out io.Writer, c *git.CommitInfo) {
	fmt.Fprintf(out, "commit %s\n", c.Hash)
	if len(c.Parents) > 1 {
		short := make([]string, len(c.Parents))
		for i, p := range c.Parents {
			short[i] = shortHash(p)
		}
		fmt.Fprintf(out, "Merge: %s\n", strings.Join(short, " "))
	}
	fmt.Fprintf(out, "Author: %s <%s>\n", c.Author.Name, c.Author.Email)
	fmt.Fprintf(out, "Date:   %s\n", c.Author.When.Format(time.RFC1123Z))
	if cc := c.Conventional; cc != nil {
		fmt.Fprintf(out, "Type:   %s", cc.Type)
		if cc.Scope != "" {
			fmt.Fprintf(out, " (%s)", cc.Scope)
		}
		if cc.Breaking {
			fmt.Fprint(out, " BREAKING")
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out)
	for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
		fmt.Fprintf(out, "    %s\n", line)
	}
	if len(c.Files) > 0 {
		fmt.Fprintln(out)
	}
	for _, f := range c.Files {
		fmt.Fprintf(out, " %s | +%d -%d\n", f.Path, f.Additions, f.Deletions)
	}
}

func (a *application) tagsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List tags, semantic versions first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			repo, err := a.openRepo(ctx)
			if err != nil {
				return err
			}
			tags, err := repo.Tags(ctx)
			if err != nil {
				return err
			}
			for _, t := range tags {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}

func (a *application) diffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <path>",
		Short: "Show a unified diff of path between HEAD and the working tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := a.openRepo(ctx)
			if err != nil {
				return err
			}
			diff, err := repo.WorktreeDiff(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), diff)
			return nil
		},
	}
}

func (a *application) fetchCommand() *cobra.Command {
	var opts git.FetchOpts
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download objects and refs from a remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			repo, err := a.openRepo(ctx)
			if err != nil {
				return err
			}
			res, err := repo.Fetch(ctx, opts)
			if err != nil {
				return err
			}
			if res.Updated {
				fmt.Fprintln(cmd.OutOrStdout(), "fetched new objects")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "already up to date")
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.Remote, "remote", "", "Remote to fetch from. Defaults to the configured remote.")
	flags.StringVar(&opts.Branch, "branch", "", "Fetch only this branch.")
	flags.BoolVar(&opts.Prune, "prune", false, "Remove remote-tracking refs deleted on the remote.")
	flags.IntVar(&opts.Depth, "depth", 0, "Limit the fetch to this many commits.")
	return cmd
}

func (a *application) pullCommand() *cobra.Command {
	var remote, branch string
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Fetch and fast-forward the current branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			repo, err := a.openRepo(ctx)
			if err != nil {
				return err
			}
			if err := repo.Pull(ctx, remote, branch); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "pulled")
			return nil
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "", "Remote to pull from. Defaults to the configured remote.")
	cmd.Flags().StringVar(&branch, "branch", "", "Remote branch to pull. Defaults to the current branch.")
	return cmd
}

func (a *application) pushCommand() *cobra.Command {
	var opts git.PushOpts
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push a branch to a remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			repo, err := a.openRepo(ctx)
			if err != nil {
				return err
			}
			if err := repo.Push(ctx, opts); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "pushed")
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.Remote, "remote", "", "Remote to push to. Defaults to the configured remote.")
	flags.StringVar(&opts.Branch, "branch", "", "Branch to push. Defaults to the current branch.")
	flags.BoolVarP(&opts.Force, "force", "f", false, "Allow non-fast-forward updates.")
	return cmd
}

func (a *application) commitCommand() *cobra.Command {
	var (
		message string
		opts    git.CommitOpts
	)
	cmd := &cobra.Command{
		Use:   "commit -m <message> [paths...]",
		Short: "Stage paths and record a commit as the configured user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := a.openRepo(ctx)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				if err := repo.Add(ctx, args...); err != nil {
					return err
				}
			}

			name, email := a.cfg.Signature()
			hash, err := repo.Commit(ctx, message, git.Signature{Name: name, Email: email}, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", shortHash(hash), firstLine(message))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&message, "message", "m", "", "Commit message.")
	flags.BoolVarP(&opts.All, "all", "a", false, "Stage modified and deleted tracked files first.")
	flags.BoolVar(&opts.Amend, "amend", false, "Replace the tip of the current branch.")
	flags.BoolVar(&opts.AllowEmpty, "allow-empty", false, "Record a commit even without changes.")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func (a *application) syncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [paths...]",
		Short: "Commit and push pending paths, then fast-forward from the remote",
		Long: "sync opens the configured working copy, cloning it when missing. Given paths are " +
			"committed together with the auto_add patterns and pushed; the configured branch is " +
			"then fetched and fast-forwarded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := a.options(ctx)
			if err != nil {
				return err
			}
			s, err := git.EnsureSession(ctx, &a.cfg, opts)
			if err != nil {
				return err
			}
			for _, p := range args {
				s.Add(p)
			}
			if err := s.CommitAndPush(ctx); err != nil {
				return err
			}
			if err := s.Sync(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synchronized %s\n", s.Repo().Path())
			return nil
		},
	}
}

func (a *application) credentialsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage credentials kept in the configured secret provider",
	}
	cmd.AddCommand(a.credentialsStoreCommand())
	return cmd
}

func (a *application) credentialsStoreCommand() *cobra.Command {
	var (
		username, password, path string
		passwordStdin            bool
	)
	cmd := &cobra.Command{
		Use:   "store <host>",
		Short: "Store an HTTPS username and password or token for host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.secretStore(ctx)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("no secret provider configured: set credentials.secret_provider")
			}

			if passwordStdin {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(string(raw), "\r\n")
			}
			if password == "" {
				return fmt.Errorf("a password or token is required")
			}

			value, err := secrets.EncodeCredential(secrets.Credential{Username: username, Password: password})
			if err != nil {
				return err
			}
			ref := secrets.CredentialRef(args[0])
			if path != "" {
				ref = secrets.SecretRef{Path: path}
			}
			if err := store.Store(ctx, ref, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored credential %s in %s\n", ref.Path, strings.Join(store.Providers(), ","))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&username, "username", "u", "", "Username sent with the password.")
	flags.StringVarP(&password, "password", "p", "", "Password or token.")
	flags.BoolVar(&passwordStdin, "password-stdin", false, "Read the password or token from stdin.")
	flags.StringVar(&path, "path", "", "Secret path. Defaults to git/<host>.")
	return cmd
}

func shortHash(h string) string {
	if len(h) > shortHashLen {
		return h[:shortHashLen]
	}
	return h
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
