package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/codex-libs/repofacade/secrets"
)

// StoredSource reads a credential kept in a secrets provider under
// "git/<host>" (or a fixed path).
type StoredSource struct {
	resolver    secrets.Resolver
	path        string
	defaultUser string
}

// NewStoredSource returns a source resolving through resolver. A non-empty
// path pins the secret; otherwise it is derived from the remote host.
func NewStoredSource(resolver secrets.Resolver, path string) *StoredSource {
	return &StoredSource{resolver: resolver, path: path, defaultUser: "token"}
}

// Name returns "stored-secret".
func (s *StoredSource) Name() string { return "stored-secret" }

// Credential declines non-HTTP remotes and hosts without a stored secret.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (s *StoredSource) Credential(ctx context.Context, req CredentialRequest) (transport.AuthMethod, error) {
	if !req.Allowed.Has(UserPass) {
		return nil, nil
	}

	ref := secrets.CredentialRef(req.HostPort())
	if s.path != "" {
		ref = secrets.SecretRef{Path: s.path}
	}

	secret, err := s.resolver.Resolve(ctx, ref)
	if errors.Is(err, secrets.ErrSecretNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve stored credential: %w", err)
	}

	defaultUser := s.defaultUser
	if req.Username != "" {
		defaultUser = req.Username
	}
	cred, err := secrets.ParseCredential(secret.Bytes(), defaultUser)
	secret.Clear()
	if err != nil {
		return nil, err
	}
	return &http.BasicAuth{Username: cred.Username, Password: cred.Password}, nil
}
