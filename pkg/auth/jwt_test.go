package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	cfg := JWTConfig{SecretKey: "test-secret", Issuer: "askingwho", Audience: []string{"askingwho-api"}}
	gen, err := NewJWTGenerator(cfg)
	require.NoError(t, err)
	val, err := NewJWTValidator(cfg)
	require.NoError(t, err)

	token, err := gen.GenerateToken("user-1", "alice")
	require.NoError(t, err)

	t.Run("Should accept bearer prefix", func(t *testing.T) {
		claims, err := val.ValidateToken("Bearer " + token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.Subject)
		assert.Equal(t, "alice", claims.Username)
	})

	t.Run("Should reject other secrets", func(t *testing.T) {
		other, err := NewJWTValidator(JWTConfig{SecretKey: "different"})
		require.NoError(t, err)
		_, err = other.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("Should reject wrong audience", func(t *testing.T) {
		other, err := NewJWTValidator(JWTConfig{SecretKey: "test-secret", Audience: []string{"elsewhere"}})
		require.NoError(t, err)
		_, err = other.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})

	t.Run("Should reject empty token", func(t *testing.T) {
		_, err := val.ValidateToken("Bearer ")
		assert.ErrorIs(t, err, ErrMissingToken)
	})
}

func TestExpiredToken(t *testing.T) {
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	require.NoError(t, err)

	val, err := NewJWTValidator(JWTConfig{SecretKey: "s"})
	require.NoError(t, err)
	_, err = val.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestUserContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetUserID(ctx))

	ctx = SetUserInContext(ctx, &UserContext{UserID: "u1", Username: "bob"})
	user, ok := GetUserFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "bob", user.Username)
	assert.Equal(t, "u1", GetUserID(ctx))
}
