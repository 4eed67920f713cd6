// Package jwt inspects chat credentials on the client side. The signature is
// never verified here; the backend does that during the handshake. Tokens
// that are not JWTs are treated as opaque and pass through untouched.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNotJWT       = errors.New("credential is not a JWT")
	ErrExpiredToken = errors.New("token has expired")
)

// CredentialClaims represents the claims the chat backend puts in its tokens
type CredentialClaims struct {
	UserID any    `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the user id claim, falling back to the subject
func (c *CredentialClaims) Identity() string {
	if c.UserID != nil {
		return fmt.Sprint(c.UserID)
	}
	return c.Subject
}

// Inspect decodes the claims of a JWT credential without verifying it
func Inspect(token string) (*CredentialClaims, error) {
	claims := &CredentialClaims{}
	parser := jwt.NewParser(jwt.WithJSONNumber())
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}
	return claims, nil
}

// CheckExpiry fails with ErrExpiredToken when the credential is a JWT whose
// exp claim is in the past. Opaque credentials always pass.
func CheckExpiry(token string, now time.Time) error {
	claims, err := Inspect(token)
	if err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return ErrExpiredToken
	}
	return nil
}
