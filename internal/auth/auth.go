// Package auth resolves inbound bearer credentials to an identity. The
// verification mechanism is swappable: HS256 JWTs in production, a
// permissive token format for local development.
package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crewmate-app/crewmate/internal/apperr"
)

// Identity is the authenticated caller.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Verifier turns a bearer credential into an identity or rejects it.
type Verifier interface {
	Verify(token string) (*Identity, error)
}

// JWTVerifier validates HS256-signed tokens carrying sub/email/name
// claims.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a JWT verifier with the given signing secret.
func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: empty JWT secret")
	}
	return &JWTVerifier{secret: []byte(secret)}, nil
}

type claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (v *JWTVerifier) Verify(token string) (*Identity, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrAuthFailure, err)
	}
	if !parsed.Valid || c.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", apperr.ErrAuthFailure)
	}
	return &Identity{UID: c.Subject, Email: c.Email, Name: c.Name}, nil
}

// Sign issues a token for the identity. Used by tests and the dev
// login flow.
func (v *JWTVerifier) Sign(id Identity) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email:            id.Email,
		Name:             id.Name,
		RegisteredClaims: jwt.RegisteredClaims{Subject: id.UID},
	})
	return t.SignedString(v.secret)
}

// DevVerifier accepts tokens of the form "dev:<uid>[:<email>[:<name>]]"
// without any cryptographic check. Never use outside local development.
type DevVerifier struct{}

func (DevVerifier) Verify(token string) (*Identity, error) {
	parts := strings.SplitN(token, ":", 4)
	if len(parts) < 2 || parts[0] != "dev" || parts[1] == "" {
		return nil, fmt.Errorf("%w: not a dev token", apperr.ErrAuthFailure)
	}
	id := &Identity{UID: parts[1]}
	if len(parts) > 2 {
		id.Email = parts[2]
	}
	if len(parts) > 3 {
		id.Name = parts[3]
	}
	if id.Name == "" {
		id.Name = id.UID
	}
	return id, nil
}
