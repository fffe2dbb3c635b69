package auth

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// CredentialType is a bitmask of the credential kinds a remote accepts.
type CredentialType uint8

const (
	// SSHAgent is an identity held by a running ssh-agent.
	SSHAgent CredentialType = 1 << iota
	// SSHKey is an explicit private key.
	SSHKey
	// UserPass is a username and password or token over HTTP(S).
	UserPass
)

// Has reports whether every bit of o is set in t.
func (t CredentialType) Has(o CredentialType) bool {
	return o != 0 && t&o == o
}

func (t CredentialType) String() string {
	if t == 0 {
		return "none"
	}
	var parts []string
	if t.Has(SSHAgent) {
		parts = append(parts, "ssh-agent")
	}
	if t.Has(SSHKey) {
		parts = append(parts, "ssh-key")
	}
	if t.Has(UserPass) {
		parts = append(parts, "userpass")
	}
	return strings.Join(parts, "|")
}

// CredentialRequest describes what a remote operation needs. One is built
// per operation and handed to every source in turn.
type CredentialRequest struct {
	URL      string
	Protocol string
	Host     string
	Port     int
	Path     string
	Username string
	Allowed  CredentialType
}

// NewRequest parses remoteURL. scp-style addresses (git@host:org/repo.git)
// are treated as ssh.
func NewRequest(remoteURL string) (CredentialRequest, error) {
	ep, err := transport.NewEndpoint(remoteURL)
	if err != nil {
		return CredentialRequest{}, fmt.Errorf("invalid remote URL %q: %w", remoteURL, err)
	}

	req := CredentialRequest{
		URL:      remoteURL,
		Protocol: ep.Protocol,
		Host:     ep.Host,
		Port:     ep.Port,
		Path:     strings.TrimPrefix(ep.Path, "/"),
		Username: ep.User,
	}
	switch ep.Protocol {
	case "ssh", "git+ssh", "ssh+git":
		req.Allowed = SSHAgent | SSHKey
		if req.Username == "" {
			req.Username = "git"
		}
	case "http", "https":
		req.Allowed = UserPass
	}
	return req, nil
}

// HostPort returns host, or host:port when a non-default port is set.
func (r CredentialRequest) HostPort() string {
	if r.Port == 0 || (r.Protocol == "https" && r.Port == 443) ||
		(r.Protocol == "http" && r.Port == 80) || (r.Protocol == "ssh" && r.Port == 22) {
		return r.Host
	}
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
