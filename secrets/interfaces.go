package secrets

import "context"

// Resolver fetches secrets by reference.
type Resolver interface {
	// Resolve returns the secret or an error wrapping ErrSecretNotFound.
	Resolve(ctx context.Context, ref SecretRef) (*Secret, error)

	// Exists reports whether the secret exists without reading its value.
	Exists(ctx context.Context, ref SecretRef) (bool, error)
}

// Provider is a named Resolver backed by a concrete store.
type Provider interface {
	Resolver

	// Name returns the provider's identifier ("memory", "aws").
	Name() string

	// Close releases resources held by the provider.
	Close() error
}

// WriteableProvider is a Provider that can also store and delete secrets.
type WriteableProvider interface {
	Provider

	Store(ctx context.Context, ref SecretRef, value []byte) error
	Delete(ctx context.Context, ref SecretRef) error
}
