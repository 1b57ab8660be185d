// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// jobTimeout bounds one cron-triggered run.
const jobTimeout = 2 * time.Minute

// Scheduler drives an Engine from two cron timers: the periodic tick and
// the weekly digest.
type Scheduler struct {
	engine *Engine
	tick   string
	digest string
	cron   *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSpec reports whether spec is a cron expression the scheduler accepts.
func ValidateSpec(spec string) error {
	if _, err := cronParser.Parse(spec); err != nil {
		return fmt.Errorf("parse cron %q: %w", spec, err)
	}
	return nil
}

// New creates a Scheduler. Either spec may be empty to disable that timer.
func New(engine *Engine, tickSpec, digestSpec string) *Scheduler {
	return &Scheduler{
		engine: engine,
		tick:   tickSpec,
		digest: digestSpec,
		cron:   cron.New(cron.WithParser(cronParser), cron.WithLocation(engine.Location())),
	}
}

// Start registers the timers and starts the cron ticker.
func (s *Scheduler) Start() error {
	if s.tick != "" {
		if _, err := s.cron.AddFunc(s.tick, s.runTick); err != nil {
			return fmt.Errorf("schedule tick %q: %w", s.tick, err)
		}
		slog.Info("scheduled tick", "schedule", s.tick)
	}
	if s.digest != "" {
		if _, err := s.cron.AddFunc(s.digest, s.runDigest); err != nil {
			return fmt.Errorf("schedule digest %q: %w", s.digest, err)
		}
		slog.Info("scheduled weekly digest", "schedule", s.digest)
	}
	s.cron.Start()
	return nil
}

// Stop stops the cron ticker and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runTick() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.engine.Tick(ctx, s.engine.Now()); err != nil {
		slog.Error("scheduler tick failed", "error", err)
	}
}

func (s *Scheduler) runDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	sent, err := s.engine.SendDigest(ctx, "", s.engine.Now())
	if err != nil {
		slog.Error("weekly digest failed", "error", err)
		return
	}
	slog.Info("weekly digest", "sent", sent)
}
