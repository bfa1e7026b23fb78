package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is the unit of work a Scheduler drives.
type Task func(context.Context) error

// SchedulerConfig configures periodic task execution.
type SchedulerConfig struct {
	Interval time.Duration
	Logger   *zap.Logger
}

// Scheduler runs a task on a fixed interval and on demand. Runs never
// overlap: a trigger arriving while a run is in flight is coalesced into
// the next run.
type Scheduler struct {
	name     string
	task     Task
	interval time.Duration
	logger   *zap.Logger

	trigger chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewScheduler builds a scheduler for the provided task.
func NewScheduler(name string, task Task, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Scheduler{
		name:     name,
		task:     task,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		trigger:  make(chan struct{}, 1),
	}
}

// Start begins the run loop. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop()
	s.started = true
	s.logger.Sugar().Infow("scheduler started", "scheduler", s.name, "interval", s.interval)
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("scheduler stopped", "scheduler", s.name)
}

// TriggerNow requests an immediate run without waiting for the interval.
func (s *Scheduler) TriggerNow() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	if !started {
		return fmt.Errorf("scheduler %s not started", s.name)
	}

	select {
	case s.trigger <- struct{}{}:
	default: // a run is already pending
	}
	return nil
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.run()
		case <-s.trigger:
			s.run()
		}
	}
}

func (s *Scheduler) run() {
	start := time.Now()
	if err := s.task(s.ctx); err != nil {
		s.logger.Sugar().Errorw("scheduled run failed", "scheduler", s.name, "error", err)
		return
	}
	s.logger.Sugar().Infow("scheduled run finished", "scheduler", s.name, "duration", time.Since(start))
}
