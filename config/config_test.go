package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepoConfig_RepoName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://github.com/org/codex.git", "codex"},
		{"https://github.com/org/codex", "codex"},
		{"https://github.com/org/codex/", "codex"},
		{"git@github.com:org/codex.git", "codex"},
		{"ssh://git@example.com:2222/org/codex.git", "codex"},
		{"file:///srv/git/codex.git", "codex"},
		{"/srv/git/codex", "codex"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			c := RepoConfig{RemoteURL: tt.url}
			assert.Equal(t, tt.want, c.RepoName())
		})
	}
}

func TestRepoConfig_FullPathAndRepository(t *testing.T) {
	root := t.TempDir()
	c := RepoConfig{Path: root, RemoteURL: "https://example.com/org/notes.git"}

	assert.Equal(t, filepath.Join(root, "notes"), c.FullPath())
	assert.False(t, c.HasRepository())

	require.NoError(t, os.MkdirAll(filepath.Join(c.FullPath(), ".git"), 0o755))
	assert.True(t, c.HasRepository())

	require.NoError(t, c.DeleteRepository())
	assert.False(t, c.HasRepository())
	_, err := os.Stat(c.FullPath())
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, c.DeleteRepository(), "deleting twice is fine")
}

func TestRepoConfig_DeleteRepositoryRefusesWithoutName(t *testing.T) {
	c := RepoConfig{Path: t.TempDir()}
	assert.Error(t, c.DeleteRepository())
}

func TestRepoConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *RepoConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*RepoConfig) {}},
		{name: "missing path", mutate: func(c *RepoConfig) { c.Path = "" }, wantErr: "path is required"},
		{name: "empty branch", mutate: func(c *RepoConfig) { c.Branch = "" }, wantErr: "branch cannot be empty"},
		{
			name: "both private keys",
			mutate: func(c *RepoConfig) {
				c.SSH.PrivateKey = "pem"
				c.SSH.PrivateKeyPath = "/k"
			},
			wantErr: "mutually exclusive",
		},
		{
			name: "public key without private key",
			mutate: func(c *RepoConfig) {
				c.SSH.PublicKey = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIGb6yrA0ljkAoCDLg0yKBz4S8eAQGwOxk2uQz9F7pkaL bot"
			},
			wantErr: "ssh.public_key needs",
		},
		{
			name: "unparsable public key",
			mutate: func(c *RepoConfig) {
				c.SSH.PrivateKeyPath = "/k"
				c.SSH.PublicKey = "not a key"
			},
			wantErr: "ssh.public_key:",
		},
		{
			name:    "blank allowed host",
			mutate:  func(c *RepoConfig) { c.Credentials.AllowedHosts = []string{"github.com", " "} },
			wantErr: "allowed_hosts",
		},
		{
			name:   "allowed hosts",
			mutate: func(c *RepoConfig) { c.SSH.AllowedHosts = []string{"*.example.com"} },
		},
		{
			name:    "unknown provider",
			mutate:  func(c *RepoConfig) { c.Credentials.SecretProvider = "vault" },
			wantErr: "secret_provider",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *RepoConfig) { c.LogFormat = "xml" },
			wantErr: "log_format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Defaults()
			c.Path = "/srv/repos"
			c.RemoteURL = "https://example.com/org/repo.git"
			tt.mutate(&c)

			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
