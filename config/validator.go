package config

import (
	"errors"
	"fmt"
	"strings"

	gossh "golang.org/x/crypto/ssh"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var (
	validProviders  = map[string]bool{"": true, "memory": true, "aws": true}
	validLogFormats = map[string]bool{"": true, "console": true, "json": true}
)

// Validate reports every problem with c at once.
func (c *RepoConfig) Validate() error {
	var problems []string

	if c.Path == "" {
		problems = append(problems, "path is required")
	}
	if c.RemoteURL != "" && c.RepoName() == "" {
		problems = append(problems, fmt.Sprintf("remote_url %q has no repository name", c.RemoteURL))
	}
	if c.Branch == "" {
		problems = append(problems, "branch cannot be empty")
	}
	if c.Remote == "" {
		problems = append(problems, "remote cannot be empty")
	}
	if c.SSH.PrivateKey != "" && c.SSH.PrivateKeyPath != "" {
		problems = append(problems, "ssh.private_key and ssh.private_key_path are mutually exclusive")
	}
	if c.SSH.PublicKey != "" {
		if c.SSH.PrivateKey == "" && c.SSH.PrivateKeyPath == "" {
			problems = append(problems, "ssh.public_key needs ssh.private_key or ssh.private_key_path")
		}
		if _, _, _, _, err := gossh.ParseAuthorizedKey([]byte(c.SSH.PublicKey)); err != nil {
			problems = append(problems, fmt.Sprintf("ssh.public_key: %v", err))
		}
	}
	for _, h := range append(append([]string{}, c.SSH.AllowedHosts...), c.Credentials.AllowedHosts...) {
		if strings.TrimSpace(h) == "" {
			problems = append(problems, "allowed_hosts entries cannot be empty")
			break
		}
	}
	if !validProviders[c.Credentials.SecretProvider] {
		problems = append(problems, fmt.Sprintf("credentials.secret_provider %q is not one of memory, aws", c.Credentials.SecretProvider))
	}
	if !validLogFormats[strings.ToLower(c.LogFormat)] {
		problems = append(problems, fmt.Sprintf("log_format %q is not one of console, json", c.LogFormat))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
