package directory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domainprofile "bchat/internal/domain/profile"
	"bchat/internal/infra/feed"
)

// Service answers profile queries and owns presence writes.
type Service struct {
	Profiles domainprofile.Repository
	Feed     feed.Publisher
	Logger   *slog.Logger
}

func (s *Service) ProfileByID(ctx context.Context, id string) (*domainprofile.Profile, error) {
	if s.Profiles == nil {
		return nil, errors.New("directory: profile repository required")
	}
	return s.Profiles.ByID(ctx, id)
}

// OnlineProfiles returns profiles with presence true, ordered by display name.
func (s *Service) OnlineProfiles(ctx context.Context) ([]domainprofile.Profile, error) {
	if s.Profiles == nil {
		return nil, errors.New("directory: profile repository required")
	}
	return s.Profiles.Online(ctx)
}

// SetPresence updates the online flag and last_seen, then announces the
// profile change on the feed.
func (s *Service) SetPresence(ctx context.Context, id string, online bool) error {
	if s.Profiles == nil {
		return errors.New("directory: profile repository required")
	}
	now := time.Now()
	if err := s.Profiles.SetPresence(ctx, id, online, now); err != nil {
		return err
	}
	if s.Feed != nil {
		if prof, err := s.Profiles.ByID(ctx, id); err == nil {
			s.Feed.Publish(feed.Event{Table: feed.TableProfiles, Type: feed.Update, Row: prof})
		}
	}
	if s.Logger != nil {
		s.Logger.Debug("presence updated", "user_id", id, "online", online)
	}
	return nil
}

// Rename changes the display name owned by the identity.
func (s *Service) Rename(ctx context.Context, id, name string) (*domainprofile.Profile, error) {
	if s.Profiles == nil {
		return nil, errors.New("directory: profile repository required")
	}
	prof, err := s.Profiles.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := prof.Rename(name, time.Now()); err != nil {
		return nil, err
	}
	if err := s.Profiles.Save(ctx, prof); err != nil {
		return nil, err
	}
	if s.Feed != nil {
		s.Feed.Publish(feed.Event{Table: feed.TableProfiles, Type: feed.Update, Row: prof})
	}
	return prof, nil
}

// SetAvatar stores a new avatar reference for the identity.
func (s *Service) SetAvatar(ctx context.Context, id, url string) (*domainprofile.Profile, error) {
	if s.Profiles == nil {
		return nil, errors.New("directory: profile repository required")
	}
	prof, err := s.Profiles.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prof.SetAvatar(url, time.Now())
	if err := s.Profiles.Save(ctx, prof); err != nil {
		return nil, err
	}
	if s.Feed != nil {
		s.Feed.Publish(feed.Event{Table: feed.TableProfiles, Type: feed.Update, Row: prof})
	}
	return prof, nil
}
