package git

import (
	"github.com/codex-libs/repofacade/config"
	"github.com/codex-libs/repofacade/executor"
	"github.com/codex-libs/repofacade/git/internal/auth"
	"github.com/codex-libs/repofacade/secrets"
)

// Credential broker types. The broker lives in an internal package; these
// aliases are the public surface.
type (
	Broker            = auth.Broker
	CredentialSource  = auth.Source
	CredentialRequest = auth.CredentialRequest
	CredentialType    = auth.CredentialType
	ExhaustedError    = auth.ExhaustedError
)

// Credential types a remote may accept.
const (
	CredentialSSHAgent = auth.SSHAgent
	CredentialSSHKey   = auth.SSHKey
	CredentialUserPass = auth.UserPass
)

// DefaultMaxAuthAttempts bounds the credentials tried per operation.
const DefaultMaxAuthAttempts = auth.DefaultMaxAttempts

// NewBroker returns a broker trying sources in the given order.
func NewBroker(sources ...CredentialSource) *Broker {
	return auth.NewBroker(sources...)
}

// NewCredentialRequest describes the credentials remoteURL accepts.
func NewCredentialRequest(remoteURL string) (CredentialRequest, error) {
	return auth.NewRequest(remoteURL)
}

// SSHAgentSource offers the identities of a running ssh-agent.
func SSHAgentSource(knownHosts ...string) CredentialSource {
	return auth.NewAgentSource(knownHosts...)
}

// SSHKeySource offers an explicit private key, from a file or PEM bytes.
func SSHKeySource(keyPath string, keyPEM []byte, passphrase string, knownHosts ...string) CredentialSource {
	return auth.NewKeyPairSource(keyPath, keyPEM, passphrase, knownHosts...)
}

// CredentialHelperSource asks the user's git credential helper. A nil
// runner runs the git binary from PATH.
func CredentialHelperSource(runner executor.Runner) CredentialSource {
	return auth.NewHelperSource(runner)
}

// StoredCredentialSource reads credentials from a secrets store. An empty
// path looks up git/<host>.
func StoredCredentialSource(resolver secrets.Resolver, path string) CredentialSource {
	return auth.NewStoredSource(resolver, path)
}

// TokenCredentialSource offers a static HTTPS token.
func TokenCredentialSource(username, token string) CredentialSource {
	return auth.NewTokenSource(username, token)
}

// ProviderSource adapts a single-shot AuthProvider into a broker source.
func ProviderSource(name string, p AuthProvider) CredentialSource {
	return auth.FromProvider(name, p)
}

// RestrictSource limits src to remotes matching one of urlPatterns:
// hosts ("github.com", "*.example.com") or "scheme://host" patterns.
func RestrictSource(src CredentialSource, urlPatterns ...string) CredentialSource {
	return auth.Restrict(src, urlPatterns...)
}

// Single-shot providers for Options.Auth. A composite picks the first
// provider whose URL patterns match; unlike the Broker it never retries.
type (
	CompositeAuthProvider = auth.CompositeAuthProvider
	SSHAuthProvider       = auth.SSHAuthProvider
	HTTPSAuthProvider     = auth.HTTPSAuthProvider
)

// NewCompositeAuthProvider returns an empty composite provider.
func NewCompositeAuthProvider() *CompositeAuthProvider {
	return auth.NewCompositeAuthProvider()
}

// SSHKeyFileProvider loads a private key file for SSH remotes.
func SSHKeyFileProvider(keyPath, passphrase string) *SSHAuthProvider {
	return auth.NewSSHKeyProvider(keyPath, passphrase)
}

// SSHKeyProvider uses PEM key bytes for SSH remotes.
func SSHKeyProvider(keyPEM []byte, passphrase string) *SSHAuthProvider {
	return auth.NewSSHKeyBytesProvider(keyPEM, passphrase)
}

// SSHAgentProvider uses the running ssh-agent for SSH remotes.
func SSHAgentProvider() *SSHAuthProvider {
	return auth.NewSSHAgentProvider()
}

// HTTPSProvider sends a username and password to HTTPS remotes.
func HTTPSProvider(username, password string) *HTTPSAuthProvider {
	return auth.NewHTTPSAuthProvider(username, password)
}

// HTTPSTokenProvider sends token as the password to HTTPS remotes.
func HTTPSTokenProvider(token string) *HTTPSAuthProvider {
	return auth.NewHTTPSTokenProvider(token)
}

// BrokerFromConfig assembles the credential sources a repository config
// enables, in probing order: ssh-agent, key pair, credential helper,
// stored secret, token. ssh.allowed_hosts limits the first two and
// credentials.allowed_hosts the rest. resolver may be nil when no secret
// store is configured.
func BrokerFromConfig(cfg *config.RepoConfig, resolver secrets.Resolver) *Broker {
	var (
		sources    []CredentialSource
		knownHosts []string
	)
	if cfg.SSH.KnownHosts != "" {
		knownHosts = []string{cfg.SSH.KnownHosts}
	}

	if cfg.SSH.UseAgent {
		sources = append(sources, auth.NewAgentSource(knownHosts...).
			WithUsername(cfg.SSH.Username).
			WithAllowedHosts(cfg.SSH.AllowedHosts...))
	}
	if cfg.SSH.PrivateKeyPath != "" || cfg.SSH.PrivateKey != "" {
		sources = append(sources, auth.NewKeyPairSource(
			cfg.SSH.PrivateKeyPath, []byte(cfg.SSH.PrivateKey), cfg.SSH.Passphrase, knownHosts...).
			WithUsername(cfg.SSH.Username).
			WithPublicKey(cfg.SSH.PublicKey).
			WithAllowedHosts(cfg.SSH.AllowedHosts...))
	}

	allowed := cfg.Credentials.AllowedHosts
	if cfg.Credentials.Helper {
		sources = append(sources, auth.Restrict(auth.NewHelperSource(nil), allowed...))
	}
	if resolver != nil {
		sources = append(sources, auth.Restrict(auth.NewStoredSource(resolver, cfg.Credentials.SecretPath), allowed...))
	}
	if cfg.Credentials.Token != "" {
		sources = append(sources, auth.Restrict(auth.NewTokenSource("", cfg.Credentials.Token), allowed...))
	}
	return auth.NewBroker(sources...)
}
