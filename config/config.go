// Package config describes a managed repository: where it lives, which
// remote it tracks, who commits to it and which credentials reach it.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Defaults applied by Load and by Defaults.
const (
	DefaultBranch = "main"
	DefaultRemote = "origin"
)

// User is the commit identity.
type User struct {
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
}

// SSH configures the agent and key-pair credential sources.
type SSH struct {
	// PublicKey is checked against the private key when set, in
	// authorized_keys form.
	PublicKey      string `mapstructure:"public_key"`
	PrivateKey     string `mapstructure:"private_key"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
	Passphrase     string `mapstructure:"passphrase"`
	KnownHosts     string `mapstructure:"known_hosts"`
	UseAgent       bool   `mapstructure:"use_agent"`

	// Username replaces the user named in SSH remote URLs.
	Username string `mapstructure:"username"`

	// AllowedHosts limits the SSH sources to matching hosts
	// ("github.com", "*.example.com"). Empty allows every host.
	AllowedHosts []string `mapstructure:"allowed_hosts"`
}

// Credentials configures the helper, stored-secret and token sources.
type Credentials struct {
	Helper         bool   `mapstructure:"helper"`
	Token          string `mapstructure:"token"`
	SecretProvider string `mapstructure:"secret_provider"`
	SecretPath     string `mapstructure:"secret_path"`
	AWSRegion      string `mapstructure:"aws_region"`
	AWSEndpoint    string `mapstructure:"aws_endpoint"`

	// AllowedHosts limits the helper, stored-secret and token sources to
	// matching remotes. Entries are hosts or "scheme://host" patterns.
	AllowedHosts []string `mapstructure:"allowed_hosts"`
}

// RepoConfig is one managed repository.
type RepoConfig struct {
	User        User        `mapstructure:"user"`
	RemoteURL   string      `mapstructure:"remote_url"`
	Path        string      `mapstructure:"path"`
	Branch      string      `mapstructure:"branch"`
	Remote      string      `mapstructure:"remote"`
	AutoAdd     []string    `mapstructure:"auto_add"`
	SSH         SSH         `mapstructure:"ssh"`
	Credentials Credentials `mapstructure:"credentials"`
	Verbose     bool        `mapstructure:"verbose"`
	LogLevel    string      `mapstructure:"log_level"`
	LogFormat   string      `mapstructure:"log_format"`
}

// Defaults returns a config with every default filled in.
func Defaults() RepoConfig {
	return RepoConfig{
		Branch:    DefaultBranch,
		Remote:    DefaultRemote,
		AutoAdd:   []string{"."},
		SSH:       SSH{UseAgent: true},
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// RepoName is the last path segment of the remote URL with any ".git"
// suffix trimmed. scp-style URLs (git@host:org/repo.git) are handled.
func (c *RepoConfig) RepoName() string {
	raw := strings.TrimRight(c.RemoteURL, "/")
	if raw == "" {
		return ""
	}

	p := raw
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Path != "" {
		p = u.Path
	} else if i := strings.LastIndex(raw, ":"); i >= 0 && !strings.Contains(raw, "://") {
		p = raw[i+1:]
	}
	return strings.TrimSuffix(path.Base(p), ".git")
}

// FullPath is Path joined with RepoName: the directory the working copy
// occupies.
func (c *RepoConfig) FullPath() string {
	return filepath.Join(c.Path, c.RepoName())
}

// HasRepository reports whether FullPath already holds a working copy.
func (c *RepoConfig) HasRepository() bool {
	info, err := os.Stat(filepath.Join(c.FullPath(), ".git"))
	return err == nil && info.IsDir()
}

// DeleteRepository removes the working copy at FullPath. A missing
// directory is not an error.
func (c *RepoConfig) DeleteRepository() error {
	full := c.FullPath()
	if c.RepoName() == "" || full == "" || full == "/" || full == "." {
		return fmt.Errorf("refusing to delete %q", full)
	}
	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("delete repository %q: %w", full, err)
	}
	return nil
}

// Signature returns the configured commit identity.
func (c *RepoConfig) Signature() (name, email string) {
	return c.User.Name, c.User.Email
}
