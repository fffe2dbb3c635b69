package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// ProviderConfig binds a provider to the URL patterns it serves.
type ProviderConfig struct {
	Provider Provider

	// URLPatterns restrict the provider, e.g. "https://*.github.com" or
	// "ssh://gitlab.*". Empty means every URL.
	URLPatterns []string
}

// CompositeAuthProvider answers Method(url) from the first provider that
// has something for the URL. Unlike the Broker it never contacts the
// remote, so it cannot tell a rejected credential from a good one.
type CompositeAuthProvider struct {
	Providers []ProviderConfig

	// ContinueOnError keeps going after a provider error instead of
	// returning it.
	ContinueOnError bool
}

// NewCompositeAuthProvider creates an empty composite that continues on
// provider errors.
func NewCompositeAuthProvider() *CompositeAuthProvider {
	return &CompositeAuthProvider{ContinueOnError: true}
}

// AddProvider appends a provider, optionally restricted to urlPatterns.
func (c *CompositeAuthProvider) AddProvider(provider Provider, urlPatterns ...string) *CompositeAuthProvider {
	c.Providers = append(c.Providers, ProviderConfig{Provider: provider, URLPatterns: urlPatterns})
	return c
}

// SetContinueOnError configures error handling strategy.
func (c *CompositeAuthProvider) SetContinueOnError(continueOnError bool) *CompositeAuthProvider {
	c.ContinueOnError = continueOnError
	return c
}

// Method returns the first non-nil method. When nothing matched and a
// provider failed, the last failure is returned.
//
//nolint:ireturn // transport.AuthMethod is an interface required by go-git
func (c *CompositeAuthProvider) Method(remoteURL string) (transport.AuthMethod, error) {
	if len(c.Providers) == 0 {
		return nil, fmt.Errorf("no authentication providers configured")
	}

	req, err := NewRequest(remoteURL)
	if err != nil {
		return nil, err
	}

	var lastError error
	for i, pc := range c.Providers {
		if !shouldTryProvider(req, pc.URLPatterns) {
			continue
		}

		method, err := pc.Provider.Method(remoteURL)
		if err != nil {
			lastError = fmt.Errorf("provider %d failed: %w", i, err)
			if !c.ContinueOnError {
				return nil, lastError
			}
			continue
		}
		if method != nil {
			return method, nil
		}
	}

	if lastError != nil {
		return nil, lastError
	}
	return nil, nil
}

type restrictedSource struct {
	Source
	patterns []string
}

// Restrict limits src to remotes matching one of urlPatterns, using the
// same "scheme://host" patterns as AddProvider. No patterns leaves src
// unrestricted. A src implementing Feedback still does after wrapping.
func Restrict(src Source, urlPatterns ...string) Source {
	if len(urlPatterns) == 0 {
		return src
	}
	r := &restrictedSource{Source: src, patterns: urlPatterns}
	if fb, ok := src.(Feedback); ok {
		return &restrictedFeedbackSource{restrictedSource: r, fb: fb}
	}
	return r
}

//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (r *restrictedSource) Credential(ctx context.Context, req CredentialRequest) (transport.AuthMethod, error) {
	if !shouldTryProvider(req, r.patterns) {
		return nil, nil
	}
	return r.Source.Credential(ctx, req)
}

type restrictedFeedbackSource struct {
	*restrictedSource
	fb Feedback
}

func (r *restrictedFeedbackSource) Approve(ctx context.Context, req CredentialRequest, method transport.AuthMethod) error {
	return r.fb.Approve(ctx, req, method)
}

func (r *restrictedFeedbackSource) Reject(ctx context.Context, req CredentialRequest, method transport.AuthMethod) error {
	return r.fb.Reject(ctx, req, method)
}

func shouldTryProvider(req CredentialRequest, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if matchesURLPattern(req, pattern) {
			return true
		}
	}
	return false
}

// matchesURLPattern matches "scheme://host" patterns; a pattern without a
// scheme matches the host alone.
func matchesURLPattern(req CredentialRequest, pattern string) bool {
	scheme, host, ok := strings.Cut(pattern, "://")
	if !ok {
		host = scheme
		scheme = ""
	}
	host, _, _ = strings.Cut(host, "/")

	if scheme != "" && scheme != req.Protocol {
		return false
	}
	if host != "" && !matchesPattern(req.HostPort(), host) {
		return false
	}
	return true
}
