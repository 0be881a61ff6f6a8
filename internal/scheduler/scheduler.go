// Package scheduler runs a job function on a fixed interval or once a day at
// a fixed UTC hour.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type Scheduler struct {
	name      string
	delay     func(now time.Time) time.Duration
	immediate bool
	tickFn    func(context.Context)

	running atomic.Bool
	nextRun atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a scheduler that ticks on Start and then every interval.
func New(name string, interval time.Duration, tickFn func(context.Context)) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if tickFn == nil {
		return nil, errors.New("tickFn must not be nil")
	}
	return &Scheduler{
		name:      name,
		delay:     func(time.Time) time.Duration { return interval },
		immediate: true,
		tickFn:    tickFn,
		done:      make(chan struct{}),
	}, nil
}

// NewDaily returns a scheduler that ticks once a day at hourUTC:00. It does
// not tick on Start.
func NewDaily(name string, hourUTC int, tickFn func(context.Context)) (*Scheduler, error) {
	if hourUTC < 0 || hourUTC > 23 {
		return nil, errors.New("hour must be in 0..23")
	}
	if tickFn == nil {
		return nil, errors.New("tickFn must not be nil")
	}
	return &Scheduler{
		name: name,
		delay: func(now time.Time) time.Duration {
			return NextDaily(now, hourUTC).Sub(now)
		},
		tickFn: tickFn,
		done:   make(chan struct{}),
	}, nil
}

// NextDaily returns the first instant strictly after now at hourUTC:00 UTC.
func NextDaily(now time.Time, hourUTC int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go s.loop(ctx)

	return true
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	slog.Info("scheduler started", "name", s.name, "immediate", s.immediate)

	if s.immediate {
		s.safeTick(ctx)
	}

	for {
		now := time.Now()
		wait := s.delay(now)
		s.nextRun.Store(now.Add(wait).UnixNano())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("scheduler stopping", "name", s.name)
			return
		case <-timer.C:
			s.safeTick(ctx)
		}
	}
}

func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)
	s.nextRun.Store(0)

	slog.Info("scheduler stopped", "name", s.name)
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) Name() string {
	return s.name
}

// NextRun is when the next tick is due, or the zero time when stopped.
func (s *Scheduler) NextRun() time.Time {
	n := s.nextRun.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler tick panic recovered", "name", s.name, "panic", r)
		}
	}()

	start := time.Now()
	s.tickFn(ctx)
	slog.Info("scheduler tick completed", "name", s.name, "duration_ms", time.Since(start).Milliseconds())
}
