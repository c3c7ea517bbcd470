// Package identity resolves API credentials to billing principals.
//
// The billing service does not own accounts. Callers authenticate with
// platform-issued service tokens; the verifier maps a token to the
// principal it was minted for. Production deployments configure tokens
// through the environment, tests construct a StaticVerifier directly.
package identity

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/strandhq/billing/internal/domain"
)

// ErrInvalidToken is returned when a token does not match any configured
// credential.
var ErrInvalidToken = errors.New("identity: invalid token")

// Verifier resolves a bearer token to the principal it represents.
type Verifier interface {
	Verify(ctx context.Context, token string) (*domain.Principal, error)
}

// Credential pairs a token with the principal it authenticates.
type Credential struct {
	Token     string
	Principal domain.Principal
}

// StaticVerifier verifies tokens against a fixed credential set.
// Lookup uses constant-time comparison so timing does not leak which
// prefix of a token matched.
type StaticVerifier struct {
	credentials []Credential
}

// NewStaticVerifier creates a verifier over the given credentials.
func NewStaticVerifier(credentials []Credential) *StaticVerifier {
	return &StaticVerifier{credentials: credentials}
}

// Verify implements Verifier.
func (v *StaticVerifier) Verify(ctx context.Context, token string) (*domain.Principal, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	for i := range v.credentials {
		cred := &v.credentials[i]
		if subtle.ConstantTimeCompare([]byte(cred.Token), []byte(token)) == 1 {
			principal := cred.Principal
			return &principal, nil
		}
	}

	return nil, ErrInvalidToken
}
