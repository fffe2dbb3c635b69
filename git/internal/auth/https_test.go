package auth

import (
	"context"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSAuthProvider_NewProviders(t *testing.T) {
	t.Run("NewHTTPSAuthProvider", func(t *testing.T) {
		provider := NewHTTPSAuthProvider("user", "pass")
		assert.Equal(t, "user", provider.auth.Username)
		assert.Equal(t, "pass", provider.auth.Password)
	})

	t.Run("password only becomes username", func(t *testing.T) {
		provider := NewHTTPSAuthProvider("", "ghp_abc")
		assert.Equal(t, "ghp_abc", provider.auth.Username)
		assert.Empty(t, provider.auth.Password)
	})

	t.Run("NewHTTPSTokenProvider", func(t *testing.T) {
		provider := NewHTTPSTokenProvider("token123")
		assert.Equal(t, "token", provider.auth.Username)
		assert.Equal(t, "token123", provider.auth.Password)
	})
}

func TestHTTPSAuthProvider_Method(t *testing.T) {
	tests := []struct {
		name      string
		provider  *HTTPSAuthProvider
		remoteURL string
		wantAuth  bool
		wantError bool
	}{
		{
			name:      "HTTPS URL returns auth",
			provider:  NewHTTPSAuthProvider("user", "pass"),
			remoteURL: "https://github.com/user/repo.git",
			wantAuth:  true,
		},
		{
			name:      "SSH URL returns error",
			provider:  NewHTTPSAuthProvider("user", "pass"),
			remoteURL: "ssh://git@github.com/user/repo.git",
			wantError: true,
		},
		{
			name:      "plain HTTP refused by default",
			provider:  NewHTTPSAuthProvider("user", "pass"),
			remoteURL: "http://git.internal/repo.git",
			wantError: true,
		},
		{
			name:      "allowed host matches",
			provider:  NewHTTPSAuthProvider("user", "pass").WithAllowedHosts("github.com"),
			remoteURL: "https://github.com/user/repo.git",
			wantAuth:  true,
		},
		{
			name:      "host not allowed returns nil",
			provider:  NewHTTPSAuthProvider("user", "pass").WithAllowedHosts("gitlab.com"),
			remoteURL: "https://github.com/user/repo.git",
		},
		{
			name:      "local path is not HTTPS",
			provider:  NewHTTPSAuthProvider("user", "pass"),
			remoteURL: "/srv/git/repo.git",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := tt.provider.Method(tt.remoteURL)

			if tt.wantError {
				require.Error(t, err)
				assert.Nil(t, auth)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAuth, auth != nil)
		})
	}
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		pattern  string
		expected bool
	}{
		{name: "exact match", host: "github.com", pattern: "github.com", expected: true},
		{name: "wildcard prefix match", host: "myorg.github.com", pattern: "*.github.com", expected: true},
		{name: "wildcard prefix matches apex", host: "github.com", pattern: "*.github.com", expected: true},
		{name: "wildcard suffix match", host: "gitlab.example.com", pattern: "gitlab.*", expected: true},
		{name: "port ignored", host: "git.local:8443", pattern: "git.local", expected: true},
		{name: "port honored when in pattern", host: "git.local:8443", pattern: "git.local:22", expected: false},
		{name: "no match", host: "github.com", pattern: "gitlab.com", expected: false},
		{name: "double wildcard rejected", host: "a.b.c", pattern: "*.b.*", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, matchesPattern(tt.host, tt.pattern))
		})
	}
}

func TestTokenSource(t *testing.T) {
	ctx := context.Background()

	t.Run("offers token to HTTPS", func(t *testing.T) {
		req, err := NewRequest("https://github.com/org/repo.git")
		require.NoError(t, err)

		method, err := NewTokenSource("", "s3cret").Credential(ctx, req)
		require.NoError(t, err)
		basic, ok := method.(*http.BasicAuth)
		require.True(t, ok)
		assert.Equal(t, "token", basic.Username)
		assert.Equal(t, "s3cret", basic.Password)
	})

	t.Run("explicit username", func(t *testing.T) {
		req, err := NewRequest("http://git.internal/org/repo.git")
		require.NoError(t, err)

		method, err := NewTokenSource("ci-bot", "s3cret").Credential(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "ci-bot", method.(*http.BasicAuth).Username)
	})

	t.Run("declines SSH", func(t *testing.T) {
		req, err := NewRequest("git@github.com:org/repo.git")
		require.NoError(t, err)

		method, err := NewTokenSource("", "s3cret").Credential(ctx, req)
		require.NoError(t, err)
		assert.Nil(t, method)
	})
}
