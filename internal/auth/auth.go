package auth

import (
	"errors"

	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Authenticator interface {
	GenerateToken(userID uuid.UUID, email string) (string, error)
	ValidateToken(token string) (*Claims, error)
}
