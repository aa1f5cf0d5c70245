// Package auth authenticates callers of a node's HTTP surface and
// authorizes them by role.
//
// Failures are raised as AuthNError (the caller is not who it claims),
// AuthZError (the caller may not do this) or DecryptError (a sealed token
// could not be opened under the node's key).
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"io"
	"strings"

	"github.com/benk79tb/keripy/kering"
	"golang.org/x/crypto/nacl/secretbox"
)

// Authenticator resolves a bearer token to the role its holder acts as.
type Authenticator interface {
	Authenticate(token string) (kering.Role, error)
}

// StaticToken authenticates one shared operator token as Role.
type StaticToken struct {
	Token string
	Role  kering.Role
}

func (s StaticToken) Authenticate(token string) (kering.Role, error) {
	if s.Token == "" {
		return "", kering.New(kering.ErrAuthN, "no token configured")
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return "", kering.New(kering.ErrAuthN, "token mismatch")
	}
	return s.Role, nil
}

// Chain tries each authenticator in order. A token one of them recognizes
// but rejects (DecryptError, AuthZError) ends the search; otherwise the
// first AuthNError is returned.
type Chain []Authenticator

func (c Chain) Authenticate(token string) (kering.Role, error) {
	var first error
	for _, a := range c {
		role, err := a.Authenticate(token)
		if err == nil {
			return role, nil
		}
		if !kering.IsKind(err, kering.ErrAuthN) {
			return "", err
		}
		if first == nil {
			first = err
		}
	}
	if first == nil {
		first = kering.New(kering.ErrAuthN, "no authenticator configured")
	}
	return "", first
}

// Bearer extracts the token from an Authorization header value.
func Bearer(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", kering.New(kering.ErrAuthN, "missing bearer token")
	}
	return strings.TrimSpace(token), nil
}

// Actions gated by RoleAuthorizer.
const (
	ActionSubmit         = "messages.submit"
	ActionReadEscrows    = "escrows.read"
	ActionProcessEscrows = "escrows.process"
)

// RoleAuthorizer grants each role a set of actions. "*" grants everything.
type RoleAuthorizer map[kering.Role][]string

// DefaultGrants is the stock policy of a node.
func DefaultGrants() RoleAuthorizer {
	return RoleAuthorizer{
		kering.RoleController: {"*"},
		kering.RoleWitness:    {ActionSubmit, ActionReadEscrows, ActionProcessEscrows},
		kering.RoleWatcher:    {ActionSubmit, ActionReadEscrows},
		kering.RoleRegistrar:  {ActionSubmit},
		kering.RoleJudge:      {ActionReadEscrows},
		kering.RoleJuror:      {ActionReadEscrows},
	}
}

// Authorize fails with AuthZError unless role is granted action.
func (a RoleAuthorizer) Authorize(role kering.Role, action string) error {
	if !kering.IsRole(string(role)) {
		return kering.Newf(kering.ErrAuthZ, "unknown role %q", role)
	}
	for _, granted := range a[role] {
		if granted == action || granted == "*" {
			return nil
		}
	}
	return kering.Newf(kering.ErrAuthZ, "role %s may not %s", role, action)
}

const (
	KeySize   = 32
	nonceSize = 24
)

// Sealer issues and opens role-bearing tokens sealed with a node key.
type Sealer struct {
	key [KeySize]byte
}

// NewSealer derives a sealer from a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, kering.Newf(kering.ErrConfiguration, "sealer key must be %d bytes, got %d", KeySize, len(key))
	}
	s := &Sealer{}
	copy(s.key[:], key)
	return s, nil
}

// Seal returns a URL-safe token carrying role.
func (s *Sealer) Seal(role kering.Role) (string, error) {
	return s.sealWith(rand.Reader, role)
}

func (s *Sealer) sealWith(entropy io.Reader, role kering.Role) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(entropy, nonce[:]); err != nil {
		return "", kering.Wrap(kering.ErrKeri, err, "read nonce")
	}
	box := secretbox.Seal(nonce[:], []byte(role), &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(box), nil
}

// Open recovers the role from token. A token that is not well formed is an
// AuthNError; one that does not open under this key is a DecryptError.
func (s *Sealer) Open(token string) (kering.Role, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", kering.Wrap(kering.ErrAuthN, err, "malformed sealed token")
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", kering.New(kering.ErrAuthN, "sealed token too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", kering.New(kering.ErrDecrypt, "sealed token does not open under node key")
	}
	role := kering.Role(plain)
	if !kering.IsRole(string(role)) {
		return "", kering.Newf(kering.ErrAuthZ, "sealed token carries unknown role %q", role)
	}
	return role, nil
}

// Authenticate makes a Sealer usable in a Chain.
func (s *Sealer) Authenticate(token string) (kering.Role, error) {
	return s.Open(token)
}
