package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestParseCredential(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	token := signedToken(t, jwt.MapClaims{
		"sub": 7,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})

	claims, err := ParseCredential(token)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)
	assert.Equal(t, now.Unix(), claims.IssuedAt.Unix())
	assert.False(t, claims.Expired(now))
	assert.True(t, claims.Expired(now.Add(time.Hour)))
}

func TestParseCredentialWithoutExpiry(t *testing.T) {
	claims, err := ParseCredential(signedToken(t, jwt.MapClaims{"sub": "teacher@school.test"}))
	require.NoError(t, err)
	assert.Equal(t, "teacher@school.test", claims.Subject)
	assert.False(t, claims.Expired(time.Now()))
}

func TestParseCredentialOpaque(t *testing.T) {
	_, err := ParseCredential("opaque-token")
	assert.ErrorIs(t, err, ErrOpaqueCredential)

	_, err = ParseCredential("a.b.c")
	assert.Error(t, err)
}
