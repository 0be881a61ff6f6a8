package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/reminder-sms/internal/cache"
	"github.com/LeventeLantos/reminder-sms/internal/client"
	"github.com/LeventeLantos/reminder-sms/internal/model"
	"github.com/LeventeLantos/reminder-sms/internal/repo"
)

// ErrGatewayFailure is returned when the gateway refused the message or could
// not be reached. The history row already carries the detail.
var ErrGatewayFailure = errors.New("sms gateway failure")

// DisabledNote is written to history when sending is switched off.
const DisabledNote = "SMS sending is disabled"

type Gateway interface {
	Send(ctx context.Context, to, text string) (client.Result, error)
}

// Dispatcher delivers one outbox event and retires it.
type Dispatcher struct {
	outbox  repo.OutboxRepository
	gateway Gateway
	sent    cache.SentCache

	now func() time.Time
}

func NewDispatcher(outbox repo.OutboxRepository, gateway Gateway) *Dispatcher {
	return &Dispatcher{
		outbox:  outbox,
		gateway: gateway,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithSentCache enables sent-marker deduplication by correlation id.
func (d *Dispatcher) WithSentCache(c cache.SentCache) *Dispatcher {
	d.sent = c
	return d
}

func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Dispatch sends the event's message, finalises its history row and deletes
// the event. The event is deleted whatever the outcome. A gateway failure is
// returned (wrapping ErrGatewayFailure) after that bookkeeping so the caller
// can retry.
func (d *Dispatcher) Dispatch(ctx context.Context, eventID uuid.UUID) error {
	event, err := d.outbox.GetEvent(ctx, eventID)
	if errors.Is(err, repo.ErrNotFound) {
		slog.Info("sms event not found, nothing to dispatch", "event_id", eventID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load sms event %s: %w", eventID, err)
	}

	p := event.Payload
	update, sendErr := d.send(ctx, p)

	histErr := d.outbox.UpdateHistory(ctx, p.CorrelationID, update)
	if errors.Is(histErr, repo.ErrNotFound) {
		slog.Warn("sms history missing for event", "event_id", eventID, "correlation_id", p.CorrelationID)
		histErr = nil
	}
	if histErr != nil {
		histErr = fmt.Errorf("update sms history %s: %w", p.CorrelationID, histErr)
	}

	delErr := d.outbox.DeleteEvent(ctx, eventID)
	if delErr != nil {
		delErr = fmt.Errorf("delete sms event %s: %w", eventID, delErr)
	}

	slog.Info("sms dispatched",
		"event_id", eventID,
		"correlation_id", p.CorrelationID,
		"practice_id", p.PracticeID,
		"status", string(update.Status),
		"err", sendErr,
	)

	return errors.Join(sendErr, histErr, delErr)
}

func (d *Dispatcher) send(ctx context.Context, p model.SMSPayload) (model.HistoryUpdate, error) {
	if d.sent != nil {
		sentAt, ok, err := d.sent.SentAt(ctx, p.CorrelationID)
		if err != nil {
			slog.Warn("sent marker lookup failed", "correlation_id", p.CorrelationID, "err", err)
		}
		if ok {
			slog.Info("sms already sent, skipping gateway", "correlation_id", p.CorrelationID)
			sentAt = sentAt.UTC()
			return model.HistoryUpdate{Status: model.HistorySent, SentAt: &sentAt, UpdatedAt: d.now()}, nil
		}
	}

	res, err := d.gateway.Send(ctx, p.To, p.Text)
	now := d.now()
	if err != nil {
		return model.HistoryUpdate{Status: model.HistoryError, ErrorMessage: err.Error(), UpdatedAt: now},
			fmt.Errorf("%w: %w", ErrGatewayFailure, err)
	}

	switch res.Status {
	case client.StatusSent:
		if d.sent != nil {
			if err := d.sent.StoreSent(ctx, p.CorrelationID, now); err != nil {
				slog.Warn("failed to store sent marker", "correlation_id", p.CorrelationID, "err", err)
			}
		}
		return model.HistoryUpdate{Status: model.HistorySent, SentAt: &now, UpdatedAt: now}, nil
	case client.StatusDisabled:
		return model.HistoryUpdate{Status: model.HistoryPending, ErrorMessage: DisabledNote, UpdatedAt: now}, nil
	default:
		detail := res.Detail
		if detail == "" {
			detail = "gateway rejected message"
		}
		return model.HistoryUpdate{Status: model.HistoryError, ErrorMessage: detail, UpdatedAt: now},
			fmt.Errorf("%w: %s", ErrGatewayFailure, detail)
	}
}
