package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind sentinels. They match any *OperationError of the same kind through
// errors.Is, so callers never need a type switch.
var (
	ErrNotFound       = &kindSentinel{kind: KindNotFound}
	ErrAuthFailed     = &kindSentinel{kind: KindAuthFailed}
	ErrNetworkFailure = &kindSentinel{kind: KindNetworkFailure}
	ErrInvalidState   = &kindSentinel{kind: KindInvalidState}
	ErrUnderlying     = &kindSentinel{kind: KindUnderlying}
)

type kindSentinel struct {
	kind Kind
}

func (s *kindSentinel) Error() string {
	return strings.ToLower(strings.ReplaceAll(string(s.kind), "_", " "))
}

// OperationError is the single error type returned from public facade
// operations. It is immutable once built.
type OperationError struct {
	Kind       Kind
	Op         string
	Target     string
	Diagnostic Diagnostic
	Err        error
}

// New builds an OperationError and its diagnostic record.
func New(kind Kind, op, target string, err error) *OperationError {
	if !kind.Valid() {
		kind = KindUnderlying
	}
	return &OperationError{
		Kind:       kind,
		Op:         op,
		Target:     target,
		Diagnostic: NewDiagnostic(kind, op, target, err),
		Err:        err,
	}
}

// Newf builds an OperationError from a formatted cause.
func Newf(kind Kind, op, target, format string, args ...any) *OperationError {
	return New(kind, op, target, fmt.Errorf(format, args...))
}

func (e *OperationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Target != "" {
		b.WriteString(" ")
		b.WriteString(e.Target)
	}
	b.WriteString(": ")
	b.WriteString(strings.ToLower(strings.ReplaceAll(string(e.Kind), "_", " ")))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels and other OperationErrors of the same kind.
func (e *OperationError) Is(target error) bool {
	switch t := target.(type) {
	case *kindSentinel:
		return t.kind == e.Kind
	case *OperationError:
		return t.Kind == e.Kind && t.Op == e.Op
	default:
		return false
	}
}

// KindOf returns the kind of the first OperationError in err's chain.
// Errors that never went through the translator report KindUnderlying;
// nil reports the empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var oe *OperationError
	if stderrors.As(err, &oe) {
		return oe.Kind
	}
	return KindUnderlying
}

// As is re-exported so callers importing this package under the name
// "errors" keep the standard helpers at hand.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Is is re-exported from the standard library.
func Is(err, target error) bool { return stderrors.Is(err, target) }
