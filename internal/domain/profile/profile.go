package profile

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired   = errors.New("profile: id is required")
	ErrNameRequired = errors.New("profile: display name is required")
	ErrNotFound     = errors.New("profile: not found")
)

// Profile is the application-level user record, distinct from the
// authentication identity that owns it.
type Profile struct {
	ID          string
	DisplayName string
	AvatarURL   string
	Online      bool
	LastSeen    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Repository interface {
	ByID(ctx context.Context, id string) (*Profile, error)
	Save(ctx context.Context, p *Profile) error
	// SetPresence flips the online flag and stamps last_seen.
	SetPresence(ctx context.Context, id string, online bool, at time.Time) error
	// Online returns profiles with presence true, ordered by display name.
	Online(ctx context.Context) ([]Profile, error)
}

type CreateParams struct {
	ID          string
	DisplayName string
	AvatarURL   string
	CreatedAt   time.Time
}

func New(params CreateParams) (*Profile, error) {
	id := strings.TrimSpace(params.ID)
	if id == "" {
		return nil, ErrIDRequired
	}
	name := strings.TrimSpace(params.DisplayName)
	if name == "" {
		return nil, ErrNameRequired
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Profile{
		ID:          id,
		DisplayName: name,
		AvatarURL:   strings.TrimSpace(params.AvatarURL),
		LastSeen:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (p *Profile) Rename(name string, now time.Time) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrNameRequired
	}
	p.DisplayName = trimmed
	p.touch(now)
	return nil
}

func (p *Profile) SetAvatar(url string, now time.Time) {
	p.AvatarURL = strings.TrimSpace(url)
	p.touch(now)
}

// MarkPresence records the online flag together with the moment the
// owner was last seen.
func (p *Profile) MarkPresence(online bool, at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()
	p.Online = online
	p.LastSeen = at
	p.touch(at)
}

// StaleSince reports whether an online profile has not been seen since
// the cutoff. Offline profiles are never stale.
func (p *Profile) StaleSince(cutoff time.Time) bool {
	if !p.Online {
		return false
	}
	return p.LastSeen.Before(cutoff)
}

func (p *Profile) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	p.UpdatedAt = now.UTC()
}
