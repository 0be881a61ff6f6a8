package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/reminder-sms/internal/repo"
)

type Submitter interface {
	Submit(eventID uuid.UUID)
}

// DispatchPoller fans due outbox events out to the runner.
type DispatchPoller struct {
	outbox     repo.OutboxRepository
	runner     Submitter
	batchSize  int
	staleAfter time.Duration

	now func() time.Time
}

func NewDispatchPoller(outbox repo.OutboxRepository, runner Submitter, batchSize int, staleAfter time.Duration) *DispatchPoller {
	return &DispatchPoller{
		outbox:     outbox,
		runner:     runner,
		batchSize:  batchSize,
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Tick requeues stale claims, then claims due events and submits each one.
// It returns how many events were submitted.
func (p *DispatchPoller) Tick(ctx context.Context) (int, error) {
	now := p.now()

	if p.staleAfter > 0 {
		n, err := p.outbox.RequeueStaleEvents(ctx, now.Add(-p.staleAfter))
		if err != nil {
			return 0, fmt.Errorf("requeue stale events: %w", err)
		}
		if n > 0 {
			slog.Warn("requeued stale sms events", "count", n)
		}
	}

	events, err := p.outbox.ClaimDueEvents(ctx, now, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("claim due events: %w", err)
	}

	for _, e := range events {
		p.runner.Submit(e.ID)
	}
	if len(events) > 0 {
		slog.Info("sms events submitted", "count", len(events))
	}
	return len(events), nil
}
