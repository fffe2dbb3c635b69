// Package errors defines the closed taxonomy every facade operation reports
// failures in. Each failure carries exactly one Kind, the operation that
// produced it, and a Diagnostic record that renders as text, JSON or YAML.
package errors

// Kind classifies an operation failure. Kinds are string based so they
// serialize naturally and read well in logs.
type Kind string

const (
	// KindNotFound indicates the repository, revision or remote does not exist.
	KindNotFound Kind = "NOT_FOUND"

	// KindAuthFailed indicates every credential source was tried and rejected.
	KindAuthFailed Kind = "AUTH_FAILED"

	// KindNetworkFailure indicates the remote could not be reached or the
	// transfer broke off.
	KindNetworkFailure Kind = "NETWORK_FAILURE"

	// KindInvalidState indicates the repository is not in a state that
	// permits the operation (dirty tree, diverged branch, existing clone).
	KindInvalidState Kind = "INVALID_STATE"

	// KindUnderlying carries any engine failure without a closer mapping.
	KindUnderlying Kind = "UNDERLYING"
)

// Kinds lists every Kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindNotFound, KindAuthFailed, KindNetworkFailure, KindInvalidState, KindUnderlying}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindNotFound, KindAuthFailed, KindNetworkFailure, KindInvalidState, KindUnderlying:
		return true
	default:
		return false
	}
}

// ExitCode maps a kind to a process exit status for command line use.
func (k Kind) ExitCode() int {
	switch k {
	case KindNotFound:
		return 2
	case KindAuthFailed:
		return 3
	case KindNetworkFailure:
		return 4
	case KindInvalidState:
		return 5
	default:
		return 1
	}
}

func (k Kind) String() string {
	return string(k)
}
