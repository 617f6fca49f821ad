// Package scheduler runs the daily backup unattended. A cron entry ticks
// every minute and the job fires when the wall clock reaches the configured
// hour and minute, at most once per calendar day.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/rowjay/docbackup/internal/util"
)

const everyMinute = "* * * * *"

// Job is the unit of work run on each trigger.
type Job func(ctx context.Context) error

type Scheduler struct {
	cron    *cron.Cron
	target  util.DailyTime
	loc     *time.Location
	job     Job
	timeout time.Duration
	log     zerolog.Logger
	now     func() time.Time

	mu        sync.Mutex
	ctx       context.Context
	lastFired string
}

// New parses a daily "M H * * *" expression. A zero timeout means no limit.
func New(expr string, loc *time.Location, job Job, timeout time.Duration, log zerolog.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("scheduler job is nil")
	}
	target, err := util.ParseDailySchedule(expr)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	log = log.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
			cron.WithLogger(cl),
		),
		target:  target,
		loc:     loc,
		job:     job,
		timeout: timeout,
		log:     log,
		now:     time.Now,
		ctx:     context.Background(),
	}, nil
}

// Start begins ticking. Jobs run with contexts derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	if _, err := s.cron.AddFunc(everyMinute, s.tick); err != nil {
		return fmt.Errorf("register tick: %w", err)
	}
	s.cron.Start()
	s.log.Info().Str("at", s.target.String()).Str("timezone", s.loc.String()).Msg("scheduler started")
	return nil
}

// Stop halts the ticker and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out waiting for running job")
		return ctx.Err()
	}
}

func (s *Scheduler) tick() {
	s.runIfDue(s.now())
}

// runIfDue fires the job when now matches the target minute and the job has
// not fired yet on that day. It reports whether the job ran.
func (s *Scheduler) runIfDue(now time.Time) bool {
	local := now.In(s.loc)
	if !s.target.Matches(local, s.loc) {
		return false
	}
	day := local.Format("2006-01-02")

	s.mu.Lock()
	if s.lastFired == day {
		s.mu.Unlock()
		return false
	}
	s.lastFired = day
	parent := s.ctx
	s.mu.Unlock()

	s.run(parent, day)
	return true
}

// run never lets a failing or panicking job escape.
func (s *Scheduler) run(parent context.Context, day string) {
	logger := s.log.With().Str("day", day).Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("scheduled backup panicked")
		}
	}()

	ctx := parent
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.timeout)
		defer cancel()
	}

	started := time.Now()
	logger.Info().Msg("scheduled backup starting")
	if err := s.job(ctx); err != nil {
		logger.Error().Err(err).Dur("duration", time.Since(started)).Msg("scheduled backup failed")
		return
	}
	logger.Info().Dur("duration", time.Since(started)).Msg("scheduled backup finished")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
