// Package executor runs external programs with captured output, optional
// stdin, extra environment and retry. The facade uses it to speak the git
// credential-helper protocol without linking against git itself.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Result holds the captured output of one command run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// Runner runs a program's subcommand. Implementations must be safe to call
// sequentially from a single goroutine; nothing more is required.
type Runner interface {
	Run(ctx context.Context, input string, args ...string) (*Result, error)
}

// Options configures a single run.
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
	// RetryOn decides whether a failed attempt is retried. Nil retries
	// every failure until MaxRetries is reached.
	RetryOn func(*Result, error) bool

	WorkingDir string
	// Env entries are appended to the current process environment.
	Env map[string]string

	StdoutWriter io.Writer
	StderrWriter io.Writer
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns options with no retry and an empty environment.
func DefaultOptions() Options {
	return Options{
		RetryDelay: time.Second,
		Env:        map[string]string{},
	}
}

// Program runs subcommands of one executable, e.g. "git".
type Program struct {
	name    string
	options Options
}

var _ Runner = (*Program)(nil)

// NewProgram returns a Runner bound to the named executable. Options given
// here apply to every run.
func NewProgram(name string, opts ...Option) *Program {
	p := &Program{name: name, options: DefaultOptions()}
	for _, opt := range opts {
		opt(&p.options)
	}
	return p
}

// Name returns the executable name.
func (p *Program) Name() string {
	return p.name
}

// Run executes the program with args, feeding input on stdin when it is
// non-empty. A non-zero exit is reported both in Result.ExitCode and as an
// error.
func (p *Program) Run(ctx context.Context, input string, args ...string) (*Result, error) {
	return p.RunWith(ctx, input, args, nil)
}

// RunWith is Run with per-call options layered over the program's own.
func (p *Program) RunWith(ctx context.Context, input string, args []string, opts []Option) (*Result, error) {
	options := p.merge(opts)
	log := zerolog.Ctx(ctx).With().Str("program", p.name).Strs("args", args).Logger()

	attempts := options.MaxRetries + 1
	var (
		res *Result
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err = p.once(ctx, input, args, options)
		if err == nil {
			log.Trace().Int("attempt", attempt).Msg("command succeeded")
			return res, nil
		}
		log.Debug().Err(err).Int("attempt", attempt).Int("exit_code", res.ExitCode).Msg("command failed")

		if attempt == attempts {
			break
		}
		if options.RetryOn != nil && !options.RetryOn(res, err) {
			break
		}
		select {
		case <-ctx.Done():
			return res, fmt.Errorf("%s: cancelled during retry: %w", p.name, ctx.Err())
		case <-time.After(options.RetryDelay):
		}
	}
	return res, err
}

func (p *Program) once(ctx context.Context, input string, args []string, options Options) (*Result, error) {
	cmd := exec.CommandContext(ctx, p.name, args...)
	if options.WorkingDir != "" {
		cmd.Dir = options.WorkingDir
	}
	if len(options.Env) > 0 {
		cmd.Env = append(os.Environ(), envList(options.Env)...)
	}
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = tee(&stdout, options.StdoutWriter)
	cmd.Stderr = tee(&stderr, options.StderrWriter)

	runErr := cmd.Run()
	res := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
		Err:    runErr,
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		return res, nil
	case errors.As(runErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
	}
	msg := strings.TrimSpace(res.Stderr)
	if msg == "" {
		return res, fmt.Errorf("%s %s: %w", p.name, firstArg(args), runErr)
	}
	return res, fmt.Errorf("%s %s: %w: %s", p.name, firstArg(args), runErr, msg)
}

func (p *Program) merge(opts []Option) Options {
	merged := p.options
	merged.Env = make(map[string]string, len(p.options.Env))
	for k, v := range p.options.Env {
		merged.Env[k] = v
	}
	for _, opt := range opts {
		opt(&merged)
	}
	return merged
}

func tee(buf *bytes.Buffer, extra io.Writer) io.Writer {
	if extra == nil {
		return buf
	}
	return io.MultiWriter(buf, extra)
}

// envList renders env sorted by key so runs are reproducible.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(o *Options) {
		o.MaxRetries = maxRetries
		o.RetryDelay = delay
	}
}

// WithRetryCondition sets a custom retry condition.
func WithRetryCondition(fn func(*Result, error) bool) Option {
	return func(o *Options) {
		o.RetryOn = fn
	}
}

// WithWorkingDir sets the working directory.
func WithWorkingDir(dir string) Option {
	return func(o *Options) {
		o.WorkingDir = dir
	}
}

// WithEnv adds environment variables.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string, len(env))
		}
		for k, v := range env {
			o.Env[k] = v
		}
	}
}

// WithEnvVar adds a single environment variable.
func WithEnvVar(key, value string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		o.Env[key] = value
	}
}

// WithStdoutWriter mirrors stdout to w in addition to capturing it.
func WithStdoutWriter(w io.Writer) Option {
	return func(o *Options) {
		o.StdoutWriter = w
	}
}

// WithStderrWriter mirrors stderr to w in addition to capturing it.
func WithStderrWriter(w io.Writer) Option {
	return func(o *Options) {
		o.StderrWriter = w
	}
}
