package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Authenticator verifies the HS256 access tokens issued by the identity
// provider. GenerateToken exists for tooling and tests; the API never logs
// users in itself.
type Authenticator interface {
	GenerateToken(userID uuid.UUID, ttl time.Duration) (string, error)
	ValidateAccessToken(token string) (*jwt.Token, error)
}
