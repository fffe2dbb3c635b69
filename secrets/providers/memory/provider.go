// Package memory is an in-process secret provider. It backs tests and the
// command line's --secret-provider=memory mode.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codex-libs/repofacade/secrets"
)

const latestVersion = "latest"

// Provider keeps secrets in a map keyed by path and version. Storing a
// specific version also updates "latest".
type Provider struct {
	store map[string]map[string]*secrets.Secret
	mu    sync.RWMutex
}

var _ secrets.WriteableProvider = (*Provider)(nil)

// New creates an empty provider.
func New() *Provider {
	return &Provider{
		store: make(map[string]map[string]*secrets.Secret),
	}
}

// Name returns "memory".
func (p *Provider) Name() string {
	return "memory"
}

// Close zeroes and drops every stored secret.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for path, versions := range p.store {
		for _, s := range versions {
			s.Clear()
		}
		delete(p.store, path)
	}
	return nil
}

func (p *Provider) lookup(ref secrets.SecretRef) (*secrets.Secret, error) {
	versions, ok := p.store[ref.Path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", secrets.ErrSecretNotFound, ref.Path)
	}
	version := ref.Version
	if version == "" {
		version = latestVersion
	}
	s, ok := versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", secrets.ErrSecretNotFound, ref.Path, version)
	}
	return s, nil
}

// Resolve returns a copy of the stored secret.
func (p *Provider) Resolve(ctx context.Context, ref secrets.SecretRef) (*secrets.Secret, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolve cancelled: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	s, err := p.lookup(ref)
	if err != nil {
		return nil, err
	}
	return s.Copy(), nil
}

// Exists reports whether ref is stored.
func (p *Provider) Exists(ctx context.Context, ref secrets.SecretRef) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("exists cancelled: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	_, err := p.lookup(ref)
	return err == nil, nil
}

// Store saves a copy of value under ref.
func (p *Provider) Store(ctx context.Context, ref secrets.SecretRef, value []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("store cancelled: %w", err)
	}
	if err := secrets.ValidateRef(ref); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.store[ref.Path] == nil {
		p.store[ref.Path] = make(map[string]*secrets.Secret)
	}
	version := ref.Version
	if version == "" {
		version = latestVersion
	}
	s := &secrets.Secret{
		Value:     append([]byte(nil), value...),
		Version:   version,
		CreatedAt: time.Now(),
	}
	p.store[ref.Path][version] = s
	if version != latestVersion {
		p.store[ref.Path][latestVersion] = s.Copy()
	}
	return nil
}

// Delete removes one version of ref, or every version when ref.Version is
// empty.
func (p *Provider) Delete(ctx context.Context, ref secrets.SecretRef) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete cancelled: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	versions, ok := p.store[ref.Path]
	if !ok {
		return fmt.Errorf("%w: %s", secrets.ErrSecretNotFound, ref.Path)
	}
	if ref.Version == "" {
		for _, s := range versions {
			s.Clear()
		}
		delete(p.store, ref.Path)
		return nil
	}

	s, ok := versions[ref.Version]
	if !ok {
		return fmt.Errorf("%w: %s@%s", secrets.ErrSecretNotFound, ref.Path, ref.Version)
	}
	s.Clear()
	delete(versions, ref.Version)
	if len(versions) == 0 {
		delete(p.store, ref.Path)
	}
	return nil
}
