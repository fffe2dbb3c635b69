package secrets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Config holds the configuration for the Manager.
type Config struct {
	// DefaultProvider names the provider used by Resolve, Exists and Store.
	DefaultProvider string

	// AutoClear is applied to every resolved secret.
	AutoClear bool
}

// Manager routes secret operations to registered providers. It satisfies
// Resolver so it can be handed straight to the stored-credential source.
type Manager struct {
	providers       map[string]Provider
	defaultProvider string
	autoClear       bool
	mu              sync.RWMutex
}

var _ Resolver = (*Manager)(nil)

// NewManager creates a Manager. A nil config is treated as empty.
func NewManager(config *Config) *Manager {
	if config == nil {
		config = &Config{}
	}
	return &Manager{
		providers:       make(map[string]Provider),
		defaultProvider: config.DefaultProvider,
		autoClear:       config.AutoClear,
	}
}

// RegisterProvider adds provider under name. Names are unique.
func (m *Manager) RegisterProvider(name string, provider Provider) error {
	if name == "" {
		return errors.New("provider name cannot be empty")
	}
	if provider == nil {
		return errors.New("provider cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.providers[name]; exists {
		return fmt.Errorf("provider with name %q already registered", name)
	}
	m.providers[name] = provider
	if m.defaultProvider == "" {
		m.defaultProvider = name
	}
	return nil
}

// Providers returns the registered provider names, sorted.
func (m *Manager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) provider(name string) (Provider, error) {
	if name == "" {
		name = m.defaultProvider
	}
	if name == "" {
		return nil, errors.New("no default provider configured")
	}

	m.mu.RLock()
	p, ok := m.providers[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider %q not found", name)
	}
	return p, nil
}

// Resolve resolves ref through the default provider.
func (m *Manager) Resolve(ctx context.Context, ref SecretRef) (*Secret, error) {
	return m.ResolveFrom(ctx, "", ref)
}

// ResolveFrom resolves ref through the named provider.
func (m *Manager) ResolveFrom(ctx context.Context, providerName string, ref SecretRef) (*Secret, error) {
	if err := ValidateRef(ref); err != nil {
		return nil, err
	}
	p, err := m.provider(providerName)
	if err != nil {
		return nil, err
	}

	secret, err := p.Resolve(ctx, ref)
	zerolog.Ctx(ctx).Debug().
		Str("provider", p.Name()).
		Str("path", ref.Path).
		Bool("found", err == nil).
		Msg("secret resolve")
	if err != nil {
		return nil, WrapProviderError(p.Name(), ref, err, "failed to resolve secret")
	}

	secret.AutoClear = m.autoClear
	return secret, nil
}

// Exists checks ref through the default provider.
func (m *Manager) Exists(ctx context.Context, ref SecretRef) (bool, error) {
	if err := ValidateRef(ref); err != nil {
		return false, err
	}
	p, err := m.provider("")
	if err != nil {
		return false, err
	}

	ok, err := p.Exists(ctx, ref)
	if err != nil {
		return false, WrapProviderError(p.Name(), ref, err, "failed to check existence")
	}
	return ok, nil
}

// Store writes value through the default provider, which must be writeable.
func (m *Manager) Store(ctx context.Context, ref SecretRef, value []byte) error {
	if err := ValidateRef(ref); err != nil {
		return err
	}
	p, err := m.provider("")
	if err != nil {
		return err
	}
	w, ok := p.(WriteableProvider)
	if !ok {
		return WrapProviderError(p.Name(), ref, ErrReadOnly, "failed to store secret")
	}

	zerolog.Ctx(ctx).Debug().Str("provider", p.Name()).Str("path", ref.Path).Msg("secret store")
	return WrapProviderError(p.Name(), ref, w.Store(ctx, ref, value), "failed to store secret")
}

// Close closes every provider and empties the registry.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, p := range m.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close provider %q: %w", name, err))
		}
	}
	m.providers = make(map[string]Provider)
	return errors.Join(errs...)
}
