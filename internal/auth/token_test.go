package auth

import (
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}

func TestExtractTokenFromRequest(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "/api/tokens", nil)

	_, err := ExtractTokenFromRequest(req)
	assert.Error(t, err, "missing header")

	req.Header.Set("Authorization", "Basic abc123")
	_, err = ExtractTokenFromRequest(req)
	assert.Error(t, err, "wrong scheme")

	req.Header.Set("Authorization", "Bearer")
	_, err = ExtractTokenFromRequest(req)
	assert.Error(t, err, "no token after scheme")

	req.Header.Set("Authorization", "Bearer my-token")
	token, err := ExtractTokenFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "my-token", token)

	// Scheme comparison is case-insensitive.
	req.Header.Set("Authorization", "bearer my-token")
	token, err = ExtractTokenFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "my-token", token)
}

func TestExtractIdentityFromJWT(t *testing.T) {
	signed := signTestToken(t, jwt.MapClaims{
		"sub":                "user-123",
		"preferred_username": "jdoe",
		"role":               "operator",
	})

	identity, err := ExtractIdentityFromJWT(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-123", identity.Sub)
	assert.Equal(t, "jdoe", identity.Username)
	assert.Equal(t, "operator", identity.Role)
}

func TestExtractIdentityFromJWTOptionalClaims(t *testing.T) {
	signed := signTestToken(t, jwt.MapClaims{"sub": "user-123"})

	identity, err := ExtractIdentityFromJWT(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-123", identity.Sub)
	assert.Empty(t, identity.Username)
	assert.Empty(t, identity.Role)
}

func TestExtractIdentityFromJWTRejectsBadInput(t *testing.T) {
	_, err := ExtractIdentityFromJWT("")
	assert.Error(t, err)

	_, err = ExtractIdentityFromJWT("not.a.jwt")
	assert.Error(t, err)

	// A token without a subject is unusable.
	signed := signTestToken(t, jwt.MapClaims{"preferred_username": "jdoe"})
	_, err = ExtractIdentityFromJWT(signed)
	assert.Error(t, err)
}
