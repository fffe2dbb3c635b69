// Package auth resolves credentials for remote operations. Providers answer
// a single Method(url) question; the Broker walks an ordered list of
// Sources and retries an operation with each one until the remote accepts
// it or every source has been tried.
package auth

import (
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Provider returns an AuthMethod for a remote URL.
type Provider interface {
	// Method returns nil, nil when the provider has nothing for this URL.
	Method(remoteURL string) (transport.AuthMethod, error)
}
