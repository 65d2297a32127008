package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTAuthenticator(t *testing.T) {
	a := NewJWTAuthenticator("s3cret", "authenticated", "nightmap")
	user := uuid.New()

	t.Run("round trip", func(t *testing.T) {
		raw, err := a.GenerateToken(user, time.Hour)
		require.NoError(t, err)

		tok, err := a.ValidateAccessToken(raw)
		require.NoError(t, err)
		got, err := UserID(tok)
		require.NoError(t, err)
		assert.Equal(t, user, got)
	})

	t.Run("expired", func(t *testing.T) {
		raw, err := a.GenerateToken(user, -time.Minute)
		require.NoError(t, err)
		_, err = a.ValidateAccessToken(raw)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		raw, err := NewJWTAuthenticator("other", "authenticated", "nightmap").GenerateToken(user, time.Hour)
		require.NoError(t, err)
		_, err = a.ValidateAccessToken(raw)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("wrong audience", func(t *testing.T) {
		raw, err := NewJWTAuthenticator("s3cret", "someone-else", "nightmap").GenerateToken(user, time.Hour)
		require.NoError(t, err)
		_, err = a.ValidateAccessToken(raw)
		assert.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)
	})

	t.Run("subject must be a uuid", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "42"})
		_, err := UserID(tok)
		assert.ErrorIs(t, err, ErrInvalidSubject)
	})
}
