package memory

import (
	"context"
	"strings"
	"sync"

	"bchat/internal/domain/identity"
)

// IdentityRepository stores authentication identities in memory. Not
// suitable for production.
type IdentityRepository struct {
	mu      sync.RWMutex
	byID    map[string]*identity.Identity
	byEmail map[string]string
}

func NewIdentityRepository() *IdentityRepository {
	return &IdentityRepository{
		byID:    make(map[string]*identity.Identity),
		byEmail: make(map[string]string),
	}
}

func (r *IdentityRepository) ByID(ctx context.Context, id string) (*identity.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ident, ok := r.byID[id]; ok {
		clone := *ident
		return &clone, nil
	}
	return nil, identity.ErrNotFound
}

func (r *IdentityRepository) ByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[identity.NormalizeEmail(email)]
	if !ok {
		return nil, identity.ErrNotFound
	}
	if ident, ok := r.byID[id]; ok {
		clone := *ident
		return &clone, nil
	}
	return nil, identity.ErrNotFound
}

func (r *IdentityRepository) Save(ctx context.Context, ident *identity.Identity) error {
	if ident == nil || strings.TrimSpace(ident.ID) == "" {
		return identity.ErrIDRequired
	}
	emailKey := identity.NormalizeEmail(ident.Email)
	if emailKey == "" {
		return identity.ErrEmailRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byEmail[emailKey]; ok && existing != ident.ID {
		return identity.ErrEmailAlreadyUsed
	}
	clone := *ident
	r.byEmail[emailKey] = ident.ID
	r.byID[ident.ID] = &clone
	return nil
}
