// Package sweeper abandons sessions that went idle. It runs the engine's
// expiry pass on a cron schedule.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/converso/converso/pkg/engine"
)

// DefaultIdleDuration is how long a session can sit without activity before
// the sweep abandons it.
const DefaultIdleDuration = 30 * time.Minute

// DefaultSchedule runs the sweep every five minutes.
const DefaultSchedule = "*/5 * * * *"

type Sweeper struct {
	engine       *engine.Engine
	schedule     string
	idleDuration time.Duration
	cron         *cron.Cron
	logger       *slog.Logger
}

func NewSweeper(logger *slog.Logger, eng *engine.Engine, schedule string, idleDuration time.Duration) (*Sweeper, error) {
	if eng == nil {
		return nil, errors.New("sweeper requires an engine")
	}

	if schedule == "" {
		schedule = DefaultSchedule
	}

	if idleDuration <= 0 {
		idleDuration = DefaultIdleDuration
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule: %w", err)
	}

	return &Sweeper{
		engine:       eng,
		schedule:     schedule,
		idleDuration: idleDuration,
		logger: logger.With(
			"module", "sweeper",
			"schedule", schedule,
			"idle_duration", idleDuration.String(),
		),
	}, nil
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("Starting idle session sweeper")

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(s.schedule, func() { s.Sweep(ctx) })
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	s.cron.Start()

	return nil
}

// Sweep runs one expiry pass immediately.
func (s *Sweeper) Sweep(ctx context.Context) {
	expired, err := s.engine.ExpireIdleSessions(ctx, s.idleDuration)
	if err != nil {
		s.logger.ErrorContext(ctx, "Idle session sweep failed", "error", err)

		return
	}

	if expired > 0 {
		s.logger.InfoContext(ctx, "Abandoned idle sessions", "count", expired)
	}
}

func (s *Sweeper) Stop(_ context.Context) error {
	s.logger.Info("Stopping idle session sweeper")

	if s.cron != nil {
		s.cron.Stop()
	}

	return nil
}
