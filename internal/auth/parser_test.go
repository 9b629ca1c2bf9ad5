package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestParseAddressClaim(t *testing.T) {
	parser := NewParser("secret")
	token := signToken(t, "secret", jwt.MapClaims{
		"address": "xion1alice",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	claims, err := parser.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "xion1alice", claims.Address)
}

func TestParseFallsBackToSubject(t *testing.T) {
	parser := NewParser("secret")
	token := signToken(t, "secret", jwt.RegisteredClaims{
		Subject:   "xion1bob",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	claims, err := parser.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "xion1bob", claims.Address)
}

func TestParseRejectsBadTokens(t *testing.T) {
	parser := NewParser("secret")

	_, err := parser.Parse("not-a-token")
	assert.Error(t, err)

	wrongKey := signToken(t, "other-secret", jwt.MapClaims{"address": "xion1alice"})
	_, err = parser.Parse(wrongKey)
	assert.Error(t, err)

	expired := signToken(t, "secret", jwt.MapClaims{
		"address": "xion1alice",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	_, err = parser.Parse(expired)
	assert.Error(t, err)

	noAddress := signToken(t, "secret", jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	_, err = parser.Parse(noAddress)
	assert.Error(t, err)
}
