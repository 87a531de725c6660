package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"bchat/internal/domain/profile"
)

// ProfileRepository stores profiles in memory.
type ProfileRepository struct {
	mu   sync.RWMutex
	byID map[string]*profile.Profile
}

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{byID: make(map[string]*profile.Profile)}
}

func (r *ProfileRepository) ByID(ctx context.Context, id string) (*profile.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.byID[id]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, profile.ErrNotFound
}

func (r *ProfileRepository) Save(ctx context.Context, p *profile.Profile) error {
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return profile.ErrIDRequired
	}
	clone := *p
	r.mu.Lock()
	r.byID[p.ID] = &clone
	r.mu.Unlock()
	return nil
}

func (r *ProfileRepository) SetPresence(ctx context.Context, id string, online bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return profile.ErrNotFound
	}
	p.MarkPresence(online, at)
	return nil
}

func (r *ProfileRepository) Online(ctx context.Context) ([]profile.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]profile.Profile, 0)
	for _, p := range r.byID {
		if p.Online {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName == out[j].DisplayName {
			return out[i].ID < out[j].ID
		}
		return out[i].DisplayName < out[j].DisplayName
	})
	return out, nil
}
