package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/activity-hub/backend/internal/models"
)

// UserStore is the user persistence the auth package relies on.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByAPIToken(ctx context.Context, token string) (*models.User, error)
	Create(ctx context.Context, email, passwordHash, fullName string, role models.Role) (*models.User, error)
	SetAPIToken(ctx context.Context, id uuid.UUID, token string) error
	SetRole(ctx context.Context, id uuid.UUID, role models.Role) error
}

// Authenticator maps a bearer token to a user. A token is first tried as a JWT
// and then as a static API token.
type Authenticator struct {
	jwt   *JWTService
	users UserStore
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(jwt *JWTService, users UserStore) *Authenticator {
	return &Authenticator{jwt: jwt, users: users}
}

// Authenticate returns the token's user or ErrInvalidToken.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	var (
		u   *models.User
		err error
	)
	if claims, jwtErr := a.jwt.Validate(token); jwtErr == nil {
		u, err = a.users.GetByID(ctx, claims.UserID)
	} else {
		u, err = a.users.GetByAPIToken(ctx, token)
	}
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// generateAPIToken returns a URL-safe random token of 43 characters.
func generateAPIToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
