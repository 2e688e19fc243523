package scheduler

import (
	"context"
	"time"

	"github.com/makestack-ai/makestack/internal/clock"
	"github.com/makestack-ai/makestack/internal/config"
	"github.com/makestack-ai/makestack/internal/uptime"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Cfg     config.Config
	Clock   clock.Clock
	Tracker *uptime.Tracker
}

// Scheduler runs periodic maintenance. Today that is one job: purging
// closed downtime events past the retention window. The credit ledger is
// append-only and is never purged.
type Scheduler struct {
	log           *zap.Logger
	clock         clock.Clock
	tracker       *uptime.Tracker
	retentionDays int
	interval      time.Duration
}

func New(p Params) *Scheduler {
	interval := time.Duration(p.Cfg.SchedulerInterval) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	retention := p.Cfg.RetentionDays
	if retention <= 0 {
		retention = 90
	}
	return &Scheduler{
		log:           p.Log.Named("scheduler"),
		clock:         p.Clock,
		tracker:       p.Tracker,
		retentionDays: retention,
		interval:      interval,
	}
}

// RunOnce executes one maintenance pass.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	cutoff := s.clock.Now().AddDate(0, 0, -s.retentionDays)

	purged, err := s.tracker.PurgeClosedBefore(ctx, cutoff)
	if err != nil {
		s.log.Error("downtime retention purge failed", zap.Error(err))
		return err
	}
	if purged > 0 {
		s.log.Info("purged closed downtime events",
			zap.Int64("count", purged),
			zap.Time("cutoff", cutoff),
		)
	}
	return nil
}

// Run loops RunOnce on the configured interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.log.Warn("maintenance pass failed", zap.Error(err))
			}
		}
	}
}
