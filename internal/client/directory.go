package client

import (
	"context"
	"sync"

	"bchat/internal/domain/profile"
	"bchat/internal/infra/feed"
)

// ProfileDirectory keeps a live list of online profiles. Any profile
// change on the feed triggers a full refetch, the directory never
// patches rows locally.
type ProfileDirectory struct {
	platform Platform

	mu       sync.Mutex
	profiles []profile.Profile
	sub      feed.Subscription
	updates  chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	opened   bool
}

func NewProfileDirectory(platform Platform) *ProfileDirectory {
	return &ProfileDirectory{platform: platform}
}

// Open loads the current online set and starts following the feed.
func (d *ProfileDirectory) Open(ctx context.Context) error {
	d.mu.Lock()
	if d.opened {
		d.mu.Unlock()
		return nil
	}
	d.opened = true
	d.updates = make(chan struct{}, 1)
	d.done = make(chan struct{})
	d.sub = d.platform.Feed.Subscribe(feed.TableProfiles, nil, feed.Filter{})
	d.mu.Unlock()

	if err := d.refetch(ctx); err != nil {
		d.Close()
		return err
	}

	d.wg.Add(1)
	go d.follow(ctx)
	return nil
}

// Snapshot returns the last fetched online profiles.
func (d *ProfileDirectory) Snapshot() []profile.Profile {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]profile.Profile, len(d.profiles))
	copy(out, d.profiles)
	return out
}

// Updates signals after each successful refetch. The channel is
// coalesced, a slow reader sees at least one pending signal.
func (d *ProfileDirectory) Updates() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updates
}

// Close stops the follower. No notifications arrive after it returns.
func (d *ProfileDirectory) Close() {
	d.mu.Lock()
	if !d.opened {
		d.mu.Unlock()
		return
	}
	d.opened = false
	sub := d.sub
	done := d.done
	d.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	close(done)
	d.wg.Wait()
}

func (d *ProfileDirectory) follow(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case _, ok := <-d.sub.Events():
			if !ok {
				return
			}
			if err := d.refetch(ctx); err != nil {
				continue
			}
			d.notify()
		}
	}
}

func (d *ProfileDirectory) refetch(ctx context.Context) error {
	profiles, err := d.platform.Tables.OnlineProfiles(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.profiles = profiles
	d.mu.Unlock()
	return nil
}

func (d *ProfileDirectory) notify() {
	d.mu.Lock()
	updates := d.updates
	d.mu.Unlock()
	select {
	case updates <- struct{}{}:
	default:
	}
}
