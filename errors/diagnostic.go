package errors

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"
)

// Diagnostic is the human and machine readable record attached to every
// OperationError.
type Diagnostic struct {
	ID      string    `json:"id" yaml:"id"`
	Kind    Kind      `json:"kind" yaml:"kind"`
	Op      string    `json:"op" yaml:"op"`
	Target  string    `json:"target,omitempty" yaml:"target,omitempty"`
	Message string    `json:"message" yaml:"message"`
	Cause   string    `json:"cause,omitempty" yaml:"cause,omitempty"`
	Time    time.Time `json:"time" yaml:"time"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return idFrom(t, entropy)
}

// idFrom builds a ULID for t from r. When r fails, as monotonic entropy
// does on overflow, the ID carries the timestamp alone.
func idFrom(t time.Time, r io.Reader) string {
	id, err := ulid.New(ulid.Timestamp(t), r)
	if err == nil {
		return id.String()
	}
	var ts ulid.ULID
	if err := ts.SetTime(ulid.Timestamp(t)); err != nil {
		return ulid.ULID{}.String()
	}
	return ts.String()
}

// NewDiagnostic builds a record for the given failure.
func NewDiagnostic(kind Kind, op, target string, cause error) Diagnostic {
	now := time.Now().UTC()
	d := Diagnostic{
		ID:      newID(now),
		Kind:    kind,
		Op:      op,
		Target:  target,
		Message: kindMessage(kind),
		Time:    now,
	}
	if cause != nil {
		d.Cause = cause.Error()
	}
	return d
}

func kindMessage(kind Kind) string {
	switch kind {
	case KindNotFound:
		return "repository or object not found"
	case KindAuthFailed:
		return "authentication failed with every credential source"
	case KindNetworkFailure:
		return "remote could not be reached"
	case KindInvalidState:
		return "repository state does not permit the operation"
	default:
		return "underlying engine error"
	}
}

// String renders a single line suited to a terminal.
func (d Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", d.Kind, d.Op)
	if d.Target != "" {
		fmt.Fprintf(&b, " %s", d.Target)
	}
	fmt.Fprintf(&b, ": %s", d.Message)
	if d.Cause != "" {
		fmt.Fprintf(&b, " (%s)", d.Cause)
	}
	fmt.Fprintf(&b, " id=%s", d.ID)
	return b.String()
}

// MarshalJSON renders the record with an RFC 3339 timestamp.
func (d Diagnostic) MarshalJSON() ([]byte, error) {
	type alias Diagnostic
	out, err := json.Marshal(struct {
		alias
		Time string `json:"time"`
	}{alias: alias(d), Time: d.Time.Format(time.RFC3339Nano)})
	if err != nil {
		return nil, fmt.Errorf("marshal diagnostic %s: %w", d.ID, err)
	}
	return out, nil
}

// YAML renders the record as a YAML document.
func (d Diagnostic) YAML() ([]byte, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal diagnostic %s: %w", d.ID, err)
	}
	return out, nil
}

// Format renders d in one of "text", "json" or "yaml". Unknown formats
// fall back to text.
func (d Diagnostic) Format(format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		return d.MarshalJSON()
	case "yaml", "yml":
		return d.YAML()
	default:
		return []byte(d.String()), nil
	}
}
