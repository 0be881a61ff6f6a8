package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/LeventeLantos/reminder-sms/internal/retry"
)

type EventDispatcher interface {
	Dispatch(ctx context.Context, eventID uuid.UUID) error
}

// DispatchRunner runs dispatches under the retry policy with bounded
// concurrency. One event is one independent invocation.
type DispatchRunner struct {
	ctx        context.Context
	dispatcher EventDispatcher
	policy     retry.Policy
	group      errgroup.Group
}

func NewDispatchRunner(ctx context.Context, d EventDispatcher, policy retry.Policy, concurrency int) *DispatchRunner {
	r := &DispatchRunner{
		ctx:        ctx,
		dispatcher: d,
		policy:     policy,
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	r.group.SetLimit(concurrency)
	return r
}

// Run dispatches one event synchronously, retrying per the policy.
// Cancelling ctx stops pending retries; an attempt already talking to the
// gateway runs to completion so its outcome is recorded.
func (r *DispatchRunner) Run(ctx context.Context, eventID uuid.UUID) error {
	return retry.Do(ctx, r.policy, func(ctx context.Context, attempt int) error {
		slog.Debug("dispatch attempt", "event_id", eventID, "attempt", attempt)
		return r.dispatcher.Dispatch(context.WithoutCancel(ctx), eventID)
	})
}

// Submit schedules a dispatch in the background. It blocks while the
// concurrency limit is reached. Final failures are logged.
func (r *DispatchRunner) Submit(eventID uuid.UUID) {
	r.group.Go(func() error {
		if err := r.Run(r.ctx, eventID); err != nil {
			slog.Error("dispatch failed", "event_id", eventID, "err", err)
		}
		return nil
	})
}

// Wait blocks until every submitted dispatch has returned.
func (r *DispatchRunner) Wait() {
	_ = r.group.Wait()
}
