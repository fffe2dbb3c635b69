package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// HTTPSAuthProvider serves a fixed username/password over HTTPS.
type HTTPSAuthProvider struct {
	auth *http.BasicAuth

	// AllowedHosts restricts the provider to matching hosts.
	AllowedHosts []string

	// AllowHTTP also serves plain http:// remotes. Off by default so a
	// token is never sent in clear text by accident.
	AllowHTTP bool
}

// NewHTTPSAuthProvider creates a provider for a username and password.
// A password without a username is sent as the username, which is what
// most hosting services expect for bare tokens.
func NewHTTPSAuthProvider(username, password string) *HTTPSAuthProvider {
	if username == "" && password != "" {
		username = password
		password = ""
	}
	return &HTTPSAuthProvider{auth: &http.BasicAuth{Username: username, Password: password}}
}

// NewHTTPSTokenProvider creates a provider sending token as the password
// with the placeholder user "token".
func NewHTTPSTokenProvider(token string) *HTTPSAuthProvider {
	return &HTTPSAuthProvider{auth: &http.BasicAuth{Username: "token", Password: token}}
}

// WithAllowedHosts restricts the provider to matching hosts.
func (p *HTTPSAuthProvider) WithAllowedHosts(hosts ...string) *HTTPSAuthProvider {
	p.AllowedHosts = hosts
	return p
}

// Method returns the basic auth for HTTPS remotes. Hosts outside
// AllowedHosts yield nil.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (p *HTTPSAuthProvider) Method(remoteURL string) (transport.AuthMethod, error) {
	req, err := NewRequest(remoteURL)
	if err != nil {
		return nil, err
	}
	if req.Protocol != "https" && !(p.AllowHTTP && req.Protocol == "http") {
		return nil, fmt.Errorf("HTTPS auth provider only supports https:// URLs, got %s", req.Protocol)
	}
	if len(p.AllowedHosts) > 0 && !hostAllowed(req.Host, p.AllowedHosts) {
		return nil, nil
	}
	return p.auth, nil
}

// matchesPattern checks host against a pattern with one leading "*." or
// trailing ".*" wildcard.
func matchesPattern(host, pattern string) bool {
	if i := strings.LastIndex(host, ":"); i != -1 && !strings.Contains(pattern, ":") {
		host = host[:i]
	}
	if host == pattern {
		return true
	}
	if strings.Count(pattern, "*") != 1 {
		return false
	}
	if strings.HasPrefix(pattern, "*.") {
		suffix := strings.TrimPrefix(pattern, "*.")
		return strings.HasSuffix(host, "."+suffix) || host == suffix
	}
	if strings.HasSuffix(pattern, ".*") {
		return strings.HasPrefix(host, strings.TrimSuffix(pattern, ".*")+".")
	}
	return false
}

// TokenSource offers a static token from configuration to HTTP(S) remotes.
type TokenSource struct {
	provider *HTTPSAuthProvider
}

// NewTokenSource returns a source for token. An empty username sends the
// placeholder "token".
func NewTokenSource(username, token string) *TokenSource {
	p := NewHTTPSTokenProvider(token)
	if username != "" {
		p = NewHTTPSAuthProvider(username, token)
	}
	p.AllowHTTP = true
	return &TokenSource{provider: p}
}

// Name returns "token".
func (s *TokenSource) Name() string { return "token" }

// Credential declines non-HTTP remotes.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (s *TokenSource) Credential(_ context.Context, req CredentialRequest) (transport.AuthMethod, error) {
	if !req.Allowed.Has(UserPass) {
		return nil, nil
	}
	return s.provider.Method(req.URL)
}
