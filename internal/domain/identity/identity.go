package identity

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired          = errors.New("identity: id is required")
	ErrEmailRequired       = errors.New("identity: email is required")
	ErrPasswordHashMissing = errors.New("identity: password hash is required")
	ErrEmailAlreadyUsed    = errors.New("identity: email already used")
	ErrNotFound            = errors.New("identity: not found")
)

// Identity is the authentication record. The visible user data lives in
// the profile owned by this identity.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type Repository interface {
	ByID(ctx context.Context, id string) (*Identity, error)
	ByEmail(ctx context.Context, email string) (*Identity, error)
	Save(ctx context.Context, ident *Identity) error
}

type CreateParams struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

func New(params CreateParams) (*Identity, error) {
	id := strings.TrimSpace(params.ID)
	if id == "" {
		return nil, ErrIDRequired
	}
	email := NormalizeEmail(params.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if strings.TrimSpace(params.PasswordHash) == "" {
		return nil, ErrPasswordHashMissing
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	return &Identity{
		ID:           id,
		Email:        email,
		PasswordHash: params.PasswordHash,
		CreatedAt:    now.UTC(),
	}, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
