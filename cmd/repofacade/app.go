package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/codex-libs/repofacade/config"
	ferrors "github.com/codex-libs/repofacade/errors"
	"github.com/codex-libs/repofacade/git"
	"github.com/codex-libs/repofacade/internal/logging"
	"github.com/codex-libs/repofacade/secrets"
	awsprovider "github.com/codex-libs/repofacade/secrets/providers/aws"
	"github.com/codex-libs/repofacade/secrets/providers/memory"
)

const (
	applicationName         = "repofacade"
	configFlag              = "config"
	logLevelFlag            = "log-level"
	logFormatFlag           = "log-format"
	diagnosticFormatFlag    = "diagnostic-format"
	repoFlag                = "repo"
	defaultDiagnosticFormat = "text"
)

var diagnosticFormats = map[string]bool{"text": true, "json": true, "yaml": true, "yml": true}

// application wires the cobra command tree to the loaded configuration,
// the logger and the secret store.
type application struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer

	configFile       string
	logLevel         string
	logFormat        string
	diagnosticFormat string
	repoPath         string

	cfg      config.RepoConfig
	fileUsed string
	logger   zerolog.Logger
	secrets  *secrets.Manager
}

func newApplication(stdout, stderr io.Writer) *application {
	a := &application{
		stdout: stdout,
		stderr: stderr,
		logger: zerolog.Nop(),
	}

	root := &cobra.Command{
		Use:           applicationName,
		Short:         "Operate on a configured git working copy",
		Long:          "repofacade clones, inspects, commits and synchronizes git repositories through a single error taxonomy.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initialize(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, configFlag, "", "Path to a configuration file (YAML).")
	flags.StringVar(&a.logLevel, logLevelFlag, "", "Override the configured log level.")
	flags.StringVar(&a.logFormat, logFormatFlag, "", "Override the configured log format (console or json).")
	flags.StringVar(&a.diagnosticFormat, diagnosticFormatFlag, defaultDiagnosticFormat, "Error report format: text, json or yaml.")
	flags.StringVar(&a.repoPath, repoFlag, "", "Working copy to operate on. Defaults to the configured path.")

	root.AddCommand(
		a.cloneCommand(),
		a.openCommand(),
		a.discoverCommand(),
		a.statusCommand(),
		a.logCommand(),
		a.showCommand(),
		a.tagsCommand(),
		a.diffCommand(),
		a.fetchCommand(),
		a.pullCommand(),
		a.pushCommand(),
		a.commitCommand(),
		a.syncCommand(),
		a.credentialsCommand(),
	)

	a.root = root
	return a
}

// Run executes the command line and returns the process exit status.
func (a *application) Run(ctx context.Context, args []string) int {
	a.root.SetArgs(args)
	err := a.root.ExecuteContext(ctx)
	if a.secrets != nil {
		if cerr := a.secrets.Close(); cerr != nil {
			a.logger.Warn().Err(cerr).Msg("failed to close secret providers")
		}
	}
	if err == nil {
		return 0
	}
	return a.report(err)
}

// report prints err and maps it to an exit status. Facade failures are
// rendered as their diagnostic record.
func (a *application) report(err error) int {
	var opErr *ferrors.OperationError
	if !ferrors.As(err, &opErr) {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return 1
	}

	out, ferr := opErr.Diagnostic.Format(a.diagnosticFormat)
	if ferr != nil {
		out = []byte(opErr.Diagnostic.String())
	}
	fmt.Fprintln(a.stderr, strings.TrimRight(string(out), "\n"))
	return opErr.Kind.ExitCode()
}

func (a *application) initialize(cmd *cobra.Command) error {
	if !diagnosticFormats[strings.ToLower(a.diagnosticFormat)] {
		return fmt.Errorf("invalid --%s %q: want text, json or yaml", diagnosticFormatFlag, a.diagnosticFormat)
	}

	loaded, err := config.Load(config.LoadOptions{File: a.configFile, SkipValidation: true})
	if err != nil {
		return fmt.Errorf("unable to load configuration: %w", err)
	}
	a.cfg = loaded.Config
	a.fileUsed = loaded.FileUsed

	flags := cmd.Flags()
	overrideString(flags, logLevelFlag, &a.cfg.LogLevel)
	overrideString(flags, logFormatFlag, &a.cfg.LogFormat)
	if a.cfg.Path == "" {
		a.cfg.Path = "."
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(a.stderr, a.cfg.LogLevel, a.cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("unable to create logger: %w", err)
	}
	a.logger = logger
	a.logger.Debug().
		Str("config_file", a.fileUsed).
		Str("path", a.cfg.FullPath()).
		Str("command", cmd.Name()).
		Msg("configuration loaded")

	cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
	return nil
}

func overrideString(flags *pflag.FlagSet, name string, dst *string) {
	if !flags.Changed(name) {
		return
	}
	if v, err := flags.GetString(name); err == nil {
		*dst = v
	}
}

// repoDir is the working copy commands operate on.
func (a *application) repoDir() string {
	if a.repoPath != "" {
		return a.repoPath
	}
	return a.cfg.FullPath()
}

// secretStore returns the configured secret manager, building it on first
// use. It is nil when no provider is configured.
func (a *application) secretStore(ctx context.Context) (*secrets.Manager, error) {
	if a.secrets != nil || a.cfg.Credentials.SecretProvider == "" {
		return a.secrets, nil
	}

	var provider secrets.Provider
	switch name := a.cfg.Credentials.SecretProvider; name {
	case "memory":
		provider = memory.New()
	case "aws":
		p, err := awsprovider.New(ctx,
			awsprovider.WithRegion(a.cfg.Credentials.AWSRegion),
			awsprovider.WithEndpoint(a.cfg.Credentials.AWSEndpoint),
		)
		if err != nil {
			return nil, fmt.Errorf("unable to create aws secret provider: %w", err)
		}
		provider = p
	default:
		return nil, fmt.Errorf("unknown secret provider %q", name)
	}

	m := secrets.NewManager(&secrets.Config{DefaultProvider: provider.Name()})
	if err := m.RegisterProvider(provider.Name(), provider); err != nil {
		return nil, err
	}
	a.secrets = m
	return m, nil
}

// options builds facade options whose credential broker follows the
// configuration, including the secret store when one is configured.
func (a *application) options(ctx context.Context) (*git.Options, error) {
	store, err := a.secretStore(ctx)
	if err != nil {
		return nil, err
	}

	var resolver secrets.Resolver
	if store != nil {
		resolver = store
	}
	return &git.Options{
		Broker:        git.BrokerFromConfig(&a.cfg, resolver),
		RemoteName:    a.cfg.Remote,
		InitialBranch: a.cfg.Branch,
		Verbose:       a.cfg.Verbose,
	}, nil
}

// openRepo finds the working copy containing repoDir.
func (a *application) openRepo(ctx context.Context) (*git.Repo, error) {
	opts, err := a.options(ctx)
	if err != nil {
		return nil, err
	}
	return git.Discover(ctx, a.repoDir(), opts)
}
