package secrets

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// CredentialPathPrefix prefixes every stored git credential path.
const CredentialPathPrefix = "git/"

// Credential is a username/password (or token) pair for an HTTPS remote.
type Credential struct {
	Username string
	Password string
}

// CredentialRef returns the reference under which the credential for host
// is stored. Hosts are lower-cased and any port is kept.
func CredentialRef(host string) SecretRef {
	return SecretRef{Path: CredentialPathPrefix + strings.ToLower(host)}
}

// ParseCredential decodes a stored credential. Two layouts are accepted:
// a JSON object {"username": ..., "password": ...} (the key "token" is an
// alias for "password") or a bare token, which gets defaultUser.
func ParseCredential(value []byte, defaultUser string) (Credential, error) {
	raw := strings.TrimSpace(string(value))
	if raw == "" {
		return Credential{}, fmt.Errorf("%w: empty credential", ErrInvalidRef)
	}

	if !gjson.Valid(raw) || !gjson.Parse(raw).IsObject() {
		return Credential{Username: defaultUser, Password: raw}, nil
	}

	res := gjson.GetMany(raw, "username", "password", "token")
	c := Credential{Username: res[0].String(), Password: res[1].String()}
	if c.Password == "" {
		c.Password = res[2].String()
	}
	if c.Username == "" {
		c.Username = defaultUser
	}
	if c.Password == "" {
		return Credential{}, fmt.Errorf("%w: credential has no password or token", ErrInvalidRef)
	}
	return c, nil
}

// EncodeCredential renders c in the JSON layout ParseCredential reads.
func EncodeCredential(c Credential) ([]byte, error) {
	out, err := sjson.SetBytes([]byte(`{}`), "username", c.Username)
	if err != nil {
		return nil, fmt.Errorf("encode credential username: %w", err)
	}
	out, err = sjson.SetBytes(out, "password", c.Password)
	if err != nil {
		return nil, fmt.Errorf("encode credential password: %w", err)
	}
	return out, nil
}
