package auth

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHAuthProvider builds go-git SSH auth methods from an agent, a key file
// or in-memory key bytes.
type SSHAuthProvider struct {
	PrivateKeyPath string
	PrivateKey     []byte
	Passphrase     string

	// Username overrides the user named in the URL ("git" when neither
	// is set).
	Username string

	// PublicKey, when set, must be the authorized_keys form of the
	// private key's public half.
	PublicKey string

	UseSSHAgent bool

	// HostKeyCallback verifies server keys. When nil and KnownHosts is
	// empty, go-git's default (~/.ssh/known_hosts) applies.
	HostKeyCallback gossh.HostKeyCallback

	// KnownHosts lists known_hosts files used to build HostKeyCallback.
	KnownHosts []string

	// AllowedHosts restricts the provider to matching hosts ("*.github.com").
	AllowedHosts []string
}

// NewSSHKeyProvider creates an SSH provider using a private key file.
func NewSSHKeyProvider(keyPath, passphrase string) *SSHAuthProvider {
	return &SSHAuthProvider{PrivateKeyPath: keyPath, Passphrase: passphrase}
}

// NewSSHKeyBytesProvider creates an SSH provider using PEM key bytes.
func NewSSHKeyBytesProvider(keyBytes []byte, passphrase string) *SSHAuthProvider {
	return &SSHAuthProvider{PrivateKey: keyBytes, Passphrase: passphrase}
}

// NewSSHAgentProvider creates an SSH provider backed by ssh-agent.
func NewSSHAgentProvider() *SSHAuthProvider {
	return &SSHAuthProvider{UseSSHAgent: true}
}

// WithUsername sets the SSH username.
func (p *SSHAuthProvider) WithUsername(username string) *SSHAuthProvider {
	p.Username = username
	return p
}

// WithPublicKey checks the private key against an authorized_keys line.
func (p *SSHAuthProvider) WithPublicKey(authorizedKey string) *SSHAuthProvider {
	p.PublicKey = authorizedKey
	return p
}

// WithHostKeyCallback sets the host key verification callback.
func (p *SSHAuthProvider) WithHostKeyCallback(callback gossh.HostKeyCallback) *SSHAuthProvider {
	p.HostKeyCallback = callback
	return p
}

// WithKnownHosts verifies host keys against the given known_hosts files.
func (p *SSHAuthProvider) WithKnownHosts(files ...string) *SSHAuthProvider {
	p.KnownHosts = files
	return p
}

// WithAllowedHosts restricts the provider to matching hosts.
func (p *SSHAuthProvider) WithAllowedHosts(hosts ...string) *SSHAuthProvider {
	p.AllowedHosts = hosts
	return p
}

// Method returns an SSH auth method for remoteURL. Non-SSH URLs are an
// error; hosts outside AllowedHosts yield nil.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (p *SSHAuthProvider) Method(remoteURL string) (transport.AuthMethod, error) {
	req, err := NewRequest(remoteURL)
	if err != nil {
		return nil, err
	}
	if !req.Allowed.Has(SSHKey) {
		return nil, fmt.Errorf("SSH auth provider only supports SSH URLs, got %s", req.Protocol)
	}
	if len(p.AllowedHosts) > 0 && !hostAllowed(req.Host, p.AllowedHosts) {
		return nil, nil
	}

	user := p.Username
	if user == "" {
		user = req.Username
	}

	var (
		auth ssh.AuthMethod
		cb   gossh.HostKeyCallback
	)
	switch {
	case p.UseSSHAgent:
		a, err := ssh.NewSSHAgentAuth(user)
		if err != nil {
			return nil, fmt.Errorf("failed to create SSH agent auth: %w", err)
		}
		auth = a
	case p.PrivateKeyPath != "":
		if _, err := os.Stat(p.PrivateKeyPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("SSH private key file does not exist: %s", p.PrivateKeyPath)
		}
		k, err := ssh.NewPublicKeysFromFile(user, p.PrivateKeyPath, p.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key from file: %w", err)
		}
		if err := p.checkPublicKey(k.Signer.PublicKey()); err != nil {
			return nil, err
		}
		auth = k
	case len(p.PrivateKey) > 0:
		k, err := ssh.NewPublicKeys(user, p.PrivateKey, p.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key from bytes: %w", err)
		}
		if err := p.checkPublicKey(k.Signer.PublicKey()); err != nil {
			return nil, err
		}
		auth = k
	default:
		return nil, fmt.Errorf("no SSH credentials configured")
	}

	cb, err = p.hostKeyCallback()
	if err != nil {
		return nil, err
	}
	if cb != nil {
		setHostKeyCallback(auth, cb)
	}
	return auth, nil
}

func (p *SSHAuthProvider) checkPublicKey(actual gossh.PublicKey) error {
	if strings.TrimSpace(p.PublicKey) == "" {
		return nil
	}
	want, _, _, _, err := gossh.ParseAuthorizedKey([]byte(p.PublicKey))
	if err != nil {
		return fmt.Errorf("failed to parse SSH public key: %w", err)
	}
	if !bytes.Equal(want.Marshal(), actual.Marshal()) {
		return fmt.Errorf("SSH public key %s does not match the private key (%s)",
			gossh.FingerprintSHA256(want), gossh.FingerprintSHA256(actual))
	}
	return nil
}

func (p *SSHAuthProvider) hostKeyCallback() (gossh.HostKeyCallback, error) {
	if p.HostKeyCallback != nil {
		return p.HostKeyCallback, nil
	}
	if len(p.KnownHosts) == 0 {
		return nil, nil
	}
	cb, err := knownhosts.New(p.KnownHosts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts %s: %w", strings.Join(p.KnownHosts, ","), err)
	}
	return cb, nil
}

func setHostKeyCallback(auth ssh.AuthMethod, cb gossh.HostKeyCallback) {
	switch a := auth.(type) {
	case *ssh.PublicKeysCallback:
		a.HostKeyCallback = cb
	case *ssh.PublicKeys:
		a.HostKeyCallback = cb
	}
}

func hostAllowed(host string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchesPattern(host, pattern) {
			return true
		}
	}
	return false
}

// AgentSource offers the identities of a running ssh-agent.
type AgentSource struct {
	provider *SSHAuthProvider
}

// NewAgentSource returns the ssh-agent source. knownHosts may be empty.
func NewAgentSource(knownHosts ...string) *AgentSource {
	return &AgentSource{provider: NewSSHAgentProvider().WithKnownHosts(knownHosts...)}
}

// WithUsername overrides the user named in the URL.
func (s *AgentSource) WithUsername(username string) *AgentSource {
	s.provider.WithUsername(username)
	return s
}

// WithAllowedHosts restricts the source to matching hosts.
func (s *AgentSource) WithAllowedHosts(hosts ...string) *AgentSource {
	s.provider.WithAllowedHosts(hosts...)
	return s
}

// Name returns "ssh-agent".
func (s *AgentSource) Name() string { return "ssh-agent" }

// Credential declines non-SSH remotes and hosts without a running agent.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (s *AgentSource) Credential(_ context.Context, req CredentialRequest) (transport.AuthMethod, error) {
	if !req.Allowed.Has(SSHAgent) || os.Getenv("SSH_AUTH_SOCK") == "" {
		return nil, nil
	}
	return s.provider.Method(req.URL)
}

// KeyPairSource offers an explicit private key from configuration.
type KeyPairSource struct {
	provider *SSHAuthProvider
}

// NewKeyPairSource builds a key-pair source from a key file path or PEM
// bytes. The path wins when both are set.
func NewKeyPairSource(keyPath string, keyPEM []byte, passphrase string, knownHosts ...string) *KeyPairSource {
	p := NewSSHKeyBytesProvider(keyPEM, passphrase)
	if keyPath != "" {
		p = NewSSHKeyProvider(keyPath, passphrase)
	}
	return &KeyPairSource{provider: p.WithKnownHosts(knownHosts...)}
}

// WithUsername overrides the user named in the URL.
func (s *KeyPairSource) WithUsername(username string) *KeyPairSource {
	s.provider.WithUsername(username)
	return s
}

// WithPublicKey makes the source fail when the private key does not
// belong to authorizedKey.
func (s *KeyPairSource) WithPublicKey(authorizedKey string) *KeyPairSource {
	s.provider.WithPublicKey(authorizedKey)
	return s
}

// WithAllowedHosts restricts the source to matching hosts.
func (s *KeyPairSource) WithAllowedHosts(hosts ...string) *KeyPairSource {
	s.provider.WithAllowedHosts(hosts...)
	return s
}

// Name returns "ssh-key".
func (s *KeyPairSource) Name() string { return "ssh-key" }

// Credential declines non-SSH remotes.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (s *KeyPairSource) Credential(_ context.Context, req CredentialRequest) (transport.AuthMethod, error) {
	if !req.Allowed.Has(SSHKey) {
		return nil, nil
	}
	return s.provider.Method(req.URL)
}
