// Package scheduler runs the maintenance jobs on cron schedules.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"credit-ledger/internal/config"
)

// Jobs is the set of jobs the scheduler can run.
type Jobs interface {
	Reconcile()
	ExpirePromotions()
	Reencrypt()
}

// Scheduler manages cron job scheduling.
type Scheduler struct {
	cron *cron.Cron
	jobs Jobs
}

// New creates a scheduler and registers every job with a non-empty spec.
// Specs use six fields (seconds first) and run in UTC.
func New(jobs Jobs, cfg config.SchedulerConfig) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{cron: c, jobs: jobs}

	registrations := []struct {
		name string
		spec string
		fn   func()
	}{
		{"reconcile", cfg.Reconcile, jobs.Reconcile},
		{"expire_promotions", cfg.ExpirePromotions, jobs.ExpirePromotions},
		{"reencrypt", cfg.Reencrypt, jobs.Reencrypt},
	}

	for _, r := range registrations {
		if r.spec == "" {
			log.Debug().Str("job", r.name).Msg("Job has no schedule, skipping")
			continue
		}
		if _, err := c.AddFunc(r.spec, r.fn); err != nil {
			return nil, fmt.Errorf("failed to register %s job: %w", r.name, err)
		}
		log.Info().Str("job", r.name).Str("spec", r.spec).Msg("Job registered")
	}

	return s, nil
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Scheduler stopped")
}

// Len returns how many jobs are registered.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}
