package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestInspect_ReadsNumericUserID(t *testing.T) {
	token := sign(t, jwt.MapClaims{"user_id": 3, "email": "ky@example.com"})

	claims, err := Inspect(token)
	require.NoError(t, err)
	assert.Equal(t, "3", claims.Identity())
	assert.Equal(t, "ky@example.com", claims.Email)
}

func TestInspect_FallsBackToSubject(t *testing.T) {
	token := sign(t, jwt.RegisteredClaims{Subject: "user-42"})

	claims, err := Inspect(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Identity())
}

func TestInspect_OpaqueToken(t *testing.T) {
	_, err := Inspect("not-a-jwt")
	assert.ErrorIs(t, err, ErrNotJWT)
}

func TestCheckExpiry(t *testing.T) {
	now := time.Now()
	expired := sign(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))})
	valid := sign(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))})

	assert.ErrorIs(t, CheckExpiry(expired, now), ErrExpiredToken)
	assert.NoError(t, CheckExpiry(valid, now))
	assert.NoError(t, CheckExpiry("opaque-session-token", now))
}
