package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrOpaqueCredential indicates a credential that is not a JWT.
var ErrOpaqueCredential = errors.New("credential is not a jwt")

// CredentialClaims are the registered claims readable from a bearer token.
// The client never holds the signing key, so they are informational only.
type CredentialClaims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ParseCredential reads the claims of a JWT credential without verifying it.
func ParseCredential(credential string) (CredentialClaims, error) {
	if strings.Count(credential, ".") != 2 {
		return CredentialClaims{}, ErrOpaqueCredential
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, claims); err != nil {
		return CredentialClaims{}, fmt.Errorf("parse credential: %w", err)
	}

	var out CredentialClaims
	if sub, ok := claims["sub"]; ok && sub != nil {
		out.Subject = fmt.Sprint(sub)
	}
	if exp, err := claims.GetExpirationTime(); err != nil {
		return CredentialClaims{}, fmt.Errorf("parse credential exp: %w", err)
	} else if exp != nil {
		out.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	return out, nil
}

// Expired reports whether the claims carry an expiry at or before now.
func (c CredentialClaims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}
