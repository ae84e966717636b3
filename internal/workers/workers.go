package workers

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"tokenaudit/internal/engine/monitor"
)

// Runner performs one audit.
type Runner interface {
	Run(ctx context.Context) (*monitor.Result, error)
}

// Scheduler runs the audit once a day and keeps the last result for the
// worker API.
type Scheduler struct {
	runner    Runner
	runAtHour int
	now       func() time.Time

	mu     sync.RWMutex
	latest *monitor.Result
}

func NewScheduler(runner Runner, runAtHour int) *Scheduler {
	return &Scheduler{runner: runner, runAtHour: runAtHour, now: time.Now}
}

// NextRun returns the first instant strictly after now at hour:00 in now's
// location.
func NextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, hour, 0, 0, 0, now.Location())
	}
	return next
}

// Start blocks until ctx is cancelled, running the audit at the configured
// hour every day.
func (s *Scheduler) Start(ctx context.Context) {
	for {
		now := s.now()
		wait := NextRun(now, s.runAtHour).Sub(now)
		if wait < 0 {
			wait = time.Minute
		}

		log.Info().Dur("sleep", wait).Msg("token audit worker sleeping")
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("token audit worker stopped")
			return
		case <-timer.C:
		}

		s.RunOnce(ctx)
	}
}

// RunOnce runs a single audit and stores its result.
func (s *Scheduler) RunOnce(ctx context.Context) *monitor.Result {
	log.Info().Msg("running scheduled token audit")
	res, err := s.runner.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduled token audit aborted")
	}
	if res != nil {
		s.mu.Lock()
		s.latest = res
		s.mu.Unlock()
	}
	return res
}

// Latest returns the most recent result, or nil before the first run.
func (s *Scheduler) Latest() *monitor.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}
