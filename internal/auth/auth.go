// Package auth parses bearer identities and enforces the operator-role
// allow-list used by the credential gate and privileged endpoints.
package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/parishops/livestream-service/internal/errs"
)

// Identity is the authenticated caller extracted from a bearer token.
type Identity struct {
	UserID      string
	DisplayName string
	Roles       []string
}

// HasAnyRole reports whether the identity holds at least one of the given
// roles (case-insensitive).
func (id *Identity) HasAnyRole(roles []string) bool {
	if id == nil {
		return false
	}
	for _, have := range id.Roles {
		for _, want := range roles {
			if strings.EqualFold(have, want) {
				return true
			}
		}
	}
	return false
}

type claims struct {
	DisplayName string   `json:"name"`
	Roles       []string `json:"roles"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a token verifier for the shared HS256 secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Parse validates a raw token and returns the caller identity.
// Returns errs.ErrUnauthorized for anything not a valid, signed token.
func (v *Verifier) Parse(raw string) (*Identity, error) {
	var c claims
	tok, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errs.ErrUnauthorized
		}
		return v.secret, nil
	})
	if err != nil || !tok.Valid || c.Subject == "" {
		return nil, errs.ErrUnauthorized
	}
	return &Identity{
		UserID:      c.Subject,
		DisplayName: c.DisplayName,
		Roles:       c.Roles,
	}, nil
}

// RequireOperator checks identity against the operator allow-list.
// ErrUnauthorized without an identity, ErrForbidden without an allowed role.
func RequireOperator(id *Identity, operatorRoles []string) error {
	if id == nil {
		return errs.ErrUnauthorized
	}
	if !id.HasAnyRole(operatorRoles) {
		return errs.ErrForbidden
	}
	return nil
}
