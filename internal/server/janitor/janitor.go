// Package janitor periodically purges expired sessions and password reset
// requests that expired unused.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/logging"
	"github.com/dmitrijs2005/cryptodesk/internal/server/metrics"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cryptodesk/internal/timex"
	"github.com/robfig/cron/v3"
)

type Janitor struct {
	repomanager repomanager.RepositoryManager
	schedule    string
	retention   time.Duration
	metrics     *metrics.Metrics
	now         timex.Clock
	log         logging.Logger
}

// New returns a janitor that runs on schedule (cron syntax or a descriptor
// such as "@every 5m"). Unused reset requests are kept for retention after
// they expire so admins can still see them. Consumed requests are never
// purged.
func New(m repomanager.RepositoryManager, schedule string, retention time.Duration, mt *metrics.Metrics, log logging.Logger) *Janitor {
	return &Janitor{
		repomanager: m,
		schedule:    schedule,
		retention:   retention,
		metrics:     mt,
		now:         timex.Now,
		log:         log.With("module", "janitor"),
	}
}

// Sweep deletes expired sessions and unused reset requests that expired
// before the retention window.
func (j *Janitor) Sweep(ctx context.Context) (sessions, resets int64, err error) {
	now := j.now()
	repos := j.repomanager.Repositories()

	sessions, err = repos.Sessions().DeleteExpired(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("purge sessions: %w", err)
	}
	resets, err = repos.Resets().DeleteExpiredUnused(ctx, now.Add(-j.retention))
	if err != nil {
		return sessions, 0, fmt.Errorf("purge resets: %w", err)
	}

	if j.metrics != nil {
		j.metrics.Swept("sessions", sessions)
		j.metrics.Swept("resets", resets)
	}
	return sessions, resets, nil
}

// Run sweeps on the schedule until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(j.schedule, func() {
		sessions, resets, err := j.Sweep(ctx)
		if err != nil {
			j.log.Error(ctx, "sweep failed", "error", err)
			return
		}
		if sessions > 0 || resets > 0 {
			j.log.Info(ctx, "sweep finished", "sessions", sessions, "resets", resets)
		}
	})
	if err != nil {
		return fmt.Errorf("janitor schedule %q: %w", j.schedule, err)
	}

	j.log.Info(ctx, "Starting janitor", "schedule", j.schedule)
	c.Start()

	<-ctx.Done()
	j.log.Info(ctx, "Stopping janitor...")
	<-c.Stop().Done()
	return nil
}
