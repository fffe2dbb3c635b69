package auth

import (
	"context"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Source produces one credential for a request. It returns nil, nil when
// it has nothing to offer (wrong protocol, no stored secret); an error
// means the source itself is broken and is skipped.
type Source interface {
	Name() string
	Credential(ctx context.Context, req CredentialRequest) (transport.AuthMethod, error)
}

// Feedback is implemented by sources that want to learn whether the
// credential they produced was accepted, such as the git credential helper.
type Feedback interface {
	Approve(ctx context.Context, req CredentialRequest, method transport.AuthMethod) error
	Reject(ctx context.Context, req CredentialRequest, method transport.AuthMethod) error
}

type providerSource struct {
	name     string
	provider Provider
}

// FromProvider adapts a single-shot Provider into a Source.
func FromProvider(name string, p Provider) Source {
	return &providerSource{name: name, provider: p}
}

func (s *providerSource) Name() string { return s.name }

//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (s *providerSource) Credential(_ context.Context, req CredentialRequest) (transport.AuthMethod, error) {
	return s.provider.Method(req.URL)
}
