package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dexlens/poolscout/internal/logger"
)

// Job is a unit of scheduled background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs background jobs on cron schedules. Standard 5-field specs
// and the @-descriptors are accepted.
type Scheduler struct {
	cron    *cron.Cron
	log     zerolog.Logger
	baseCtx context.Context
}

// New creates a scheduler. ctx is the lifetime handed to every job run.
func New(ctx context.Context) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		log:     logger.GetForComponent("scheduler"),
		baseCtx: ctx,
	}
}

// Register adds a job on the given cron schedule. Runs are wrapped with
// panic recovery and duration logging; one bad run never kills the
// scheduler.
func (s *Scheduler) Register(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.runJob(job)
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")
	return nil
}

// Start begins dispatching schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop halts dispatch and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run(s.baseCtx)
}

func (s *Scheduler) runJob(job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Interface("panic", r).
				Str("job", job.Name()).
				Msg("Job panicked")
		}
	}()

	startTime := time.Now()
	s.log.Info().Str("job", job.Name()).Msg("Running job")

	if err := job.Run(s.baseCtx); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("elapsed", time.Since(startTime)).
			Msg("Job failed")
		return
	}

	s.log.Info().
		Str("job", job.Name()).
		Dur("elapsed", time.Since(startTime)).
		Msg("Job completed")
}
