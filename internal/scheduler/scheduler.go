package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TickFunc is one unit of scheduled work.
type TickFunc func(ctx context.Context) error

// Scheduler fires a TickFunc at a fixed interval. Each firing runs in its own
// goroutine, so a slow tick never delays the next one.
type Scheduler struct {
	cron     *cron.Cron
	job      cron.Job
	ctx      context.Context
	interval time.Duration
	tick     TickFunc
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// New builds a Scheduler. ctx is passed to every tick.
func New(ctx context.Context, interval time.Duration, tick TickFunc, logger *zap.Logger) (*Scheduler, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("tick interval must be at least 1s: %s", interval)
	}
	if tick == nil {
		return nil, fmt.Errorf("tick func is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	chain := cron.NewChain(cron.Recover(cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))))
	s := &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		ctx:      ctx,
		interval: interval,
		tick:     tick,
		logger:   logger,
	}
	// Timer firings and the immediate first firing share one panic guard.
	s.job = chain.Then(cron.FuncJob(s.fire))
	return s, nil
}

// Start registers the tick, fires it once immediately and starts the timer.
func (s *Scheduler) Start() error {
	spec := "@every " + s.interval.String()
	if _, err := s.cron.AddJob(spec, s.job); err != nil {
		return fmt.Errorf("register tick: %w", err)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.job.Run()
	}()
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the timer and waits for in-flight ticks to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) fire() {
	if s.ctx.Err() != nil {
		return
	}
	if err := s.tick(s.ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			s.logger.Info("tick canceled")
			return
		}
		s.logger.Error("tick failed", zap.Error(err))
	}
}
