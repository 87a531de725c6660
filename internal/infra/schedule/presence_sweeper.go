package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	directorysvc "bchat/internal/app/services/directory"
)

// PresenceSweeper periodically marks profiles offline once their last
// heartbeat is older than the TTL. Browser tabs cannot be trusted to
// announce their own exit, the sweeper is what keeps the online list
// honest after a crash or dropped connection.
type PresenceSweeper struct {
	Directory *directorysvc.Service
	// TTL is how long a heartbeat keeps a profile online.
	TTL time.Duration
	// Interval is how often the sweep runs.
	Interval time.Duration
	Logger   *slog.Logger

	scheduler gocron.Scheduler
}

func (p *PresenceSweeper) Start(ctx context.Context) error {
	if p.Directory == nil {
		return errors.New("schedule: directory service required")
	}
	if p.TTL <= 0 || p.Interval <= 0 {
		return errors.New("schedule: ttl and interval must be positive")
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("schedule: create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(p.Interval),
		gocron.NewTask(func() { p.SweepOnce(ctx) }),
		gocron.WithName("presence-sweep"),
	)
	if err != nil {
		return fmt.Errorf("schedule: register sweep job: %w", err)
	}
	s.Start()
	p.scheduler = s
	if p.Logger != nil {
		p.Logger.Info("presence sweeper started", "ttl", p.TTL, "interval", p.Interval)
	}
	return nil
}

func (p *PresenceSweeper) Stop() error {
	if p.scheduler == nil {
		return nil
	}
	return p.scheduler.Shutdown()
}

// SweepOnce runs a single sweep pass.
func (p *PresenceSweeper) SweepOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-p.TTL)
	profiles, err := p.Directory.OnlineProfiles(ctx)
	if err != nil {
		if p.Logger != nil {
			p.Logger.Warn("presence sweep failed", "error", err)
		}
		return
	}
	for i := range profiles {
		if !profiles[i].StaleSince(cutoff) {
			continue
		}
		if err := p.Directory.SetPresence(ctx, profiles[i].ID, false); err != nil {
			if p.Logger != nil {
				p.Logger.Warn("presence sweep update failed", "profile_id", profiles[i].ID, "error", err)
			}
			continue
		}
		if p.Logger != nil {
			p.Logger.Debug("profile marked offline", "profile_id", profiles[i].ID)
		}
	}
}
