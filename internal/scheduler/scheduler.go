// Package scheduler runs the polling loop. It is a small state machine:
// it waits a fixed interval, checks the persisted schedule, and when the
// scheduled time has passed, runs one publishing cycle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trend_reposter/internal/clock"
	"trend_reposter/internal/domain"
	"trend_reposter/internal/service"
)

type State int

const (
	StateWaiting State = iota
	StateChecking
	StatePublishing
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateChecking:
		return "checking"
	case StatePublishing:
		return "publishing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Publisher runs one publishing cycle.
type Publisher interface {
	PublishNext(ctx context.Context) (*domain.CycleStats, error)
}

// ScheduleStore is the part of the schedule store the loop reads.
type ScheduleStore interface {
	Init(now time.Time, delay time.Duration) (bool, error)
	Read() (domain.ScheduleState, error)
}

// AssetDir makes sure the asset directory exists.
type AssetDir interface {
	EnsureDir() error
}

type Config struct {
	PollInterval time.Duration
	InitialDelay time.Duration
	CycleTimeout time.Duration
}

type Scheduler struct {
	publisher Publisher
	schedule  ScheduleStore
	assets    AssetDir
	clock     clock.Clock
	config    Config
	logger    *slog.Logger

	state State
}

func NewScheduler(publisher Publisher, schedule ScheduleStore, assets AssetDir, clk clock.Clock, cfg Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		publisher: publisher,
		schedule:  schedule,
		assets:    assets,
		clock:     clk,
		config:    cfg,
		logger:    logger,
		state:     StateChecking,
	}
}

// Bootstrap creates the schedule file and the asset directory when missing.
func (s *Scheduler) Bootstrap() error {
	created, err := s.schedule.Init(s.clock.Now(), s.config.InitialDelay)
	if err != nil {
		return fmt.Errorf("init schedule: %w", err)
	}
	if created {
		s.logger.Info("created schedule", "initial_delay", s.config.InitialDelay)
	}

	if err := s.assets.EnsureDir(); err != nil {
		return fmt.Errorf("ensure asset directory: %w", err)
	}
	return nil
}

// Start bootstraps and then runs until ctx is cancelled or a cycle fails.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Bootstrap(); err != nil {
		return err
	}

	s.logger.Info("scheduler started", "interval", s.config.PollInterval)

	for {
		if err := s.Step(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				s.logger.Info("scheduler stopped")
			}
			return err
		}
	}
}

// State returns the state the next Step will run.
func (s *Scheduler) State() State {
	return s.state
}

// Step runs the current state and moves to the next one.
func (s *Scheduler) Step(ctx context.Context) error {
	switch s.state {
	case StateWaiting:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(s.config.PollInterval):
		}
		s.state = StateChecking

	case StateChecking:
		sched, err := s.schedule.Read()
		if err != nil {
			return fmt.Errorf("read schedule: %w", err)
		}
		if sched.Due(s.clock.Now()) {
			s.state = StatePublishing
			return nil
		}
		s.logger.Info("sleeping", "next_post_at", sched.NextPostTime.Format(time.DateTime))
		s.state = StateWaiting

	case StatePublishing:
		if err := s.runCycle(ctx); err != nil {
			return err
		}
		s.state = StateWaiting
	}

	return nil
}

func (s *Scheduler) runCycle(ctx context.Context) error {
	cycleCtx := ctx
	if s.config.CycleTimeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, s.config.CycleTimeout)
		defer cancel()
	}

	_, err := s.publisher.PublishNext(cycleCtx)
	if errors.Is(err, service.ErrNoFreshCandidates) {
		s.logger.Warn("nothing published this cycle")
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("publish cycle: %w", err)
	}
	return nil
}
