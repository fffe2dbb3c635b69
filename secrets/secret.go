// Package secrets stores and resolves credential material for remote
// repository access. Providers (in-memory, AWS Secrets Manager) sit behind
// a small Resolver interface; the stored-credential source of the
// credential broker reads through it.
package secrets

import (
	"time"
)

// Secret is a resolved secret value. Value must never be logged.
type Secret struct {
	Value     []byte
	Version   string
	CreatedAt time.Time
	// AutoClear zeroes Value after the first String or Bytes call.
	AutoClear bool
}

// SecretRef points at a secret without holding its value.
type SecretRef struct {
	// Path identifies the secret, e.g. "git/github.com".
	Path string
	// Version selects a specific version; empty means latest.
	Version string
}

// String returns the value as a string, clearing it when AutoClear is set.
func (s *Secret) String() string {
	if s.Value == nil {
		return ""
	}
	value := string(s.Value)
	if s.AutoClear {
		s.Clear()
	}
	return value
}

// Bytes returns a copy of the value, clearing it when AutoClear is set.
func (s *Secret) Bytes() []byte {
	if s.Value == nil {
		return nil
	}
	value := make([]byte, len(s.Value))
	copy(value, s.Value)
	if s.AutoClear {
		s.Clear()
	}
	return value
}

// Clear zeroes the value in place and drops the reference.
func (s *Secret) Clear() {
	for i := range s.Value {
		s.Value[i] = 0
	}
	s.Value = nil
}

// Copy returns a detached copy of s.
func (s *Secret) Copy() *Secret {
	return &Secret{
		Value:     append([]byte(nil), s.Value...),
		Version:   s.Version,
		CreatedAt: s.CreatedAt,
		AutoClear: s.AutoClear,
	}
}
