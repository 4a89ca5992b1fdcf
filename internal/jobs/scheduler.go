package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

const (
	offlineSweepInterval = time.Minute
	recalculateHour      = 0
	recalculateMinute    = 5
)

type Options struct {
	OfflineAfter  time.Duration
	ProbeInterval time.Duration
}

// Scheduler runs the periodic maintenance jobs inside the server process:
// the offline sweep every minute, the counter recount daily at 00:05 UTC and,
// when a probe service is set, the liveness probe.
type Scheduler struct {
	stats  ports.StatsService
	probe  ports.ProbeService
	clock  ports.Clock
	opts   Options
	logger *slog.Logger
}

func NewScheduler(stats ports.StatsService, probe ports.ProbeService, clock ports.Clock, opts Options, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		stats:  stats,
		probe:  probe,
		clock:  clock,
		opts:   opts,
		logger: logger,
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.every(ctx, offlineSweepInterval, s.MarkOffline)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.daily(ctx)
	}()

	if s.probe != nil && s.opts.ProbeInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.every(ctx, s.opts.ProbeInterval, s.Probe)
		}()
	}

	wg.Wait()
}

func (s *Scheduler) every(ctx context.Context, interval time.Duration, job func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job(ctx)
		}
	}
}

func (s *Scheduler) daily(ctx context.Context) {
	for {
		wait := NextDailyRun(s.clock.Now()).Sub(s.clock.Now())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.Recalculate(ctx)
		}
	}
}

func (s *Scheduler) MarkOffline(ctx context.Context) {
	count, err := s.stats.MarkOffline(ctx, s.opts.OfflineAfter)
	if err != nil {
		s.logger.Error("offline sweep failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("marked servers offline", "count", count)
	}
}

func (s *Scheduler) Recalculate(ctx context.Context) {
	if err := s.stats.RecalculateAll(ctx); err != nil {
		s.logger.Error("vote counter recount failed", "error", err)
	}
}

func (s *Scheduler) Probe(ctx context.Context) {
	online, err := s.probe.ProbeAll(ctx)
	if err != nil {
		s.logger.Error("server probe failed", "error", err)
		return
	}
	s.logger.Debug("probed servers", "online", online)
}

// NextDailyRun returns the next 00:05 UTC strictly after now.
func NextDailyRun(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), recalculateHour, recalculateMinute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
