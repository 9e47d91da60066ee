package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	token, expiresAt, err := svc.GenerateAccessToken("u-1", "buyer@example.com", []string{"buyer"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, time.Minute)

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.UserID)
	assert.Equal(t, "buyer@example.com", user.Email)
	assert.Equal(t, []string{"buyer"}, user.Roles)
}

func TestJWTService_RejectsForeignSecret(t *testing.T) {
	token, _, err := NewJWTService(DefaultJWTConfig("other")).GenerateAccessToken("u-1", "", nil)
	require.NoError(t, err)

	_, err = NewJWTService(DefaultJWTConfig("secret")).ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_RejectsExpired(t *testing.T) {
	cfg := DefaultJWTConfig("secret")
	cfg.AccessTokenTTL = -time.Minute
	svc := NewJWTService(cfg)

	token, _, err := svc.GenerateAccessToken("u-1", "", nil)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_FallsBackToSubject(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "purchasing",
		Subject:   "gateway-user",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	user, err := NewJWTService(DefaultJWTConfig("secret")).ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "gateway-user", user.UserID)
}
