package secrets

import (
	"errors"
	"fmt"
)

var (
	// ErrSecretNotFound indicates the secret does not exist in the provider.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrProviderError indicates a provider-side failure such as a network error.
	ErrProviderError = errors.New("provider error")

	// ErrInvalidRef indicates a malformed SecretRef (empty path).
	ErrInvalidRef = errors.New("invalid secret reference")

	// ErrAccessDenied indicates the provider refused the request.
	ErrAccessDenied = errors.New("access denied")

	// ErrReadOnly indicates a write against a provider that cannot store.
	ErrReadOnly = errors.New("provider is read-only")
)

// ProviderError attaches the provider name and reference to an error.
type ProviderError struct {
	Provider string
	Ref      SecretRef
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %q error for secret %q: %v", e.Provider, e.Ref.Path, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapProviderError wraps err in a ProviderError prefixed by msg.
// It returns nil for a nil err.
func WrapProviderError(provider string, ref SecretRef, err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, &ProviderError{Provider: provider, Ref: ref, Err: err})
}

// ValidateRef rejects references the providers cannot address.
func ValidateRef(ref SecretRef) error {
	if ref.Path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidRef)
	}
	return nil
}
