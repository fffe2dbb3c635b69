package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/rs/zerolog"
)

// DefaultMaxAttempts bounds how many credentials one operation may try.
const DefaultMaxAttempts = 5

// ErrAuthFailed is wrapped by every error returned once the broker has
// run out of credentials.
var ErrAuthFailed = errors.New("authentication failed")

// ErrAuthRequired is also wrapped when no source offered a credential and
// the remote rejected the anonymous attempt.
var ErrAuthRequired = errors.New("no credentials available")

// Anonymous names the attempt made without credentials.
const Anonymous = "anonymous"

// ExhaustedError reports the sources tried before giving up.
type ExhaustedError struct {
	URL   string
	Tried []string
	Last  error
}

func (e *ExhaustedError) Error() string {
	msg := fmt.Sprintf("%s for %s after trying [%s]", ErrAuthFailed, e.URL, strings.Join(e.Tried, ", "))
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *ExhaustedError) Unwrap() []error {
	errs := []error{ErrAuthFailed}
	if len(e.Tried) == 1 && e.Tried[0] == Anonymous {
		errs = append(errs, ErrAuthRequired)
	}
	if e.Last != nil {
		errs = append(errs, e.Last)
	}
	return errs
}

// IsAuthError reports whether err is a rejection the next credential might
// fix.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, transport.ErrAuthenticationRequired) || errors.Is(err, transport.ErrAuthorizationFailed) {
		return true
	}
	return strings.Contains(err.Error(), "unable to authenticate")
}

// Broker runs a remote operation once per available credential until one
// is accepted. The zero value has no sources and only tries anonymously.
type Broker struct {
	sources     []Source
	maxAttempts int
}

// NewBroker returns a broker probing sources in the given order.
func NewBroker(sources ...Source) *Broker {
	return &Broker{sources: sources, maxAttempts: DefaultMaxAttempts}
}

// WithMaxAttempts caps the number of credentials tried; n <= 0 restores
// the default.
func (b *Broker) WithMaxAttempts(n int) *Broker {
	if n <= 0 {
		n = DefaultMaxAttempts
	}
	b.maxAttempts = n
	return b
}

// Sources returns the configured source names in probe order.
func (b *Broker) Sources() []string {
	names := make([]string, 0, len(b.sources))
	for _, s := range b.sources {
		names = append(names, s.Name())
	}
	return names
}

// Do calls op with each offered credential in turn. A nil AuthMethod is
// passed only when no source offered anything. Errors other than
// authentication rejections are returned immediately.
func (b *Broker) Do(ctx context.Context, remoteURL string, op func(transport.AuthMethod) error) error {
	req, err := NewRequest(remoteURL)
	if err != nil {
		return err
	}

	log := zerolog.Ctx(ctx).With().
		Str("host", req.HostPort()).
		Str("protocol", req.Protocol).
		Logger()

	limit := b.maxAttempts
	if limit <= 0 {
		limit = DefaultMaxAttempts
	}

	var (
		tried []string
		last  error
	)
	for _, src := range b.sources {
		if len(tried) >= limit {
			log.Debug().Int("max_attempts", limit).Msg("credential attempts exhausted")
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		method, err := src.Credential(ctx, req)
		if err != nil {
			log.Warn().Err(err).Str("source", src.Name()).Msg("credential source failed")
			continue
		}
		if method == nil {
			log.Trace().Str("source", src.Name()).Msg("credential source declined")
			continue
		}

		tried = append(tried, src.Name())
		log.Debug().Str("source", src.Name()).Int("attempt", len(tried)).Msg("trying credential")

		err = op(method)
		if err == nil {
			b.feedback(ctx, log, src, req, method, true)
			return nil
		}
		if !IsAuthError(err) {
			return err
		}
		log.Debug().Err(err).Str("source", src.Name()).Msg("credential rejected")
		b.feedback(ctx, log, src, req, method, false)
		last = err
	}

	if len(tried) == 0 {
		log.Debug().Msg("no credential offered, trying anonymously")
		err := op(nil)
		if err == nil || !IsAuthError(err) {
			return err
		}
		tried = append(tried, Anonymous)
		last = err
	}

	return &ExhaustedError{URL: req.HostPort() + "/" + req.Path, Tried: tried, Last: last}
}

func (b *Broker) feedback(
	ctx context.Context,
	log zerolog.Logger,
	src Source,
	req CredentialRequest,
	method transport.AuthMethod,
	accepted bool,
) {
	fb, ok := src.(Feedback)
	if !ok {
		return
	}
	var err error
	if accepted {
		err = fb.Approve(ctx, req, method)
	} else {
		err = fb.Reject(ctx, req, method)
	}
	if err != nil {
		log.Warn().Err(err).Str("source", src.Name()).Msg("credential feedback failed")
	}
}
