// Package scheduler runs the periodic upkeep of in-memory view state.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper drops state idle for longer than maxIdle and reports how much.
type Sweeper interface {
	Sweep(maxIdle time.Duration) int
}

// Scheduler wraps robfig/cron and evicts idle view sessions.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	maxIdle time.Duration
	spec    string
	logger  zerolog.Logger
}

// New sweeps every half idle period, and at least once a minute.
func New(sweeper Sweeper, maxIdle time.Duration, logger zerolog.Logger) *Scheduler {
	every := maxIdle / 2
	if every < time.Minute {
		every = time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cron.PrintfLogger(&logger))),
		sweeper: sweeper,
		maxIdle: maxIdle,
		spec:    fmt.Sprintf("@every %s", every),
		logger:  logger,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runSweep); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	s.logger.Info().Str("spec", s.spec).Msg("view session janitor started")
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("view session janitor stopped")
}

func (s *Scheduler) runSweep() {
	if n := s.sweeper.Sweep(s.maxIdle); n > 0 {
		s.logger.Info().Int("evicted", n).Msg("idle view sessions evicted")
	}
}
