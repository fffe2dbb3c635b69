package auth

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/codex-libs/repofacade/executor"
)

// HelperSource asks the user's configured git credential helper through
// `git credential fill`, and reports the outcome with approve/reject.
// Prompts are disabled; a helper that would need a terminal declines.
type HelperSource struct {
	runner executor.Runner
}

// NewHelperSource returns a source talking to runner, which must run the
// git executable. A nil runner uses "git" from PATH.
func NewHelperSource(runner executor.Runner) *HelperSource {
	if runner == nil {
		runner = executor.NewProgram("git",
			executor.WithEnvVar("GIT_TERMINAL_PROMPT", "0"),
			executor.WithEnvVar("GCM_INTERACTIVE", "never"),
		)
	}
	return &HelperSource{runner: runner}
}

// Name returns "credential-helper".
func (s *HelperSource) Name() string { return "credential-helper" }

// Credential runs `git credential fill`. A helper returning no password,
// or failing, declines.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (s *HelperSource) Credential(ctx context.Context, req CredentialRequest) (transport.AuthMethod, error) {
	if !req.Allowed.Has(UserPass) {
		return nil, nil
	}

	res, err := s.runner.Run(ctx, helperInput(req, "", ""), "credential", "fill")
	if err != nil {
		return nil, fmt.Errorf("git credential fill: %w", err)
	}

	fields := parseHelperOutput(res.Stdout)
	if fields["password"] == "" {
		return nil, nil
	}
	return &http.BasicAuth{Username: fields["username"], Password: fields["password"]}, nil
}

// Approve stores an accepted credential back into the helper.
func (s *HelperSource) Approve(ctx context.Context, req CredentialRequest, method transport.AuthMethod) error {
	return s.report(ctx, "approve", req, method)
}

// Reject tells the helper to forget a refused credential.
func (s *HelperSource) Reject(ctx context.Context, req CredentialRequest, method transport.AuthMethod) error {
	return s.report(ctx, "reject", req, method)
}

func (s *HelperSource) report(ctx context.Context, action string, req CredentialRequest, method transport.AuthMethod) error {
	basic, ok := method.(*http.BasicAuth)
	if !ok {
		return nil
	}
	if _, err := s.runner.Run(ctx, helperInput(req, basic.Username, basic.Password), "credential", action); err != nil {
		return fmt.Errorf("git credential %s: %w", action, err)
	}
	return nil
}

// helperInput renders the key=value block the credential protocol reads,
// terminated by a blank line.
func helperInput(req CredentialRequest, username, password string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "protocol=%s\n", req.Protocol)
	fmt.Fprintf(&b, "host=%s\n", req.HostPort())
	if req.Path != "" {
		fmt.Fprintf(&b, "path=%s\n", req.Path)
	}
	if username == "" {
		username = req.Username
	}
	if username != "" {
		fmt.Fprintf(&b, "username=%s\n", username)
	}
	if password != "" {
		fmt.Fprintf(&b, "password=%s\n", password)
	}
	b.WriteString("\n")
	return b.String()
}

func parseHelperOutput(out string) map[string]string {
	fields := map[string]string{}
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		k, v, ok := strings.Cut(sc.Text(), "=")
		if ok {
			fields[k] = v
		}
	}
	return fields
}
