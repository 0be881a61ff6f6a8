package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/reminder-sms/internal/calendar"
	"github.com/LeventeLantos/reminder-sms/internal/model"
	"github.com/LeventeLantos/reminder-sms/internal/repo"
)

// UpdateBatchSize bounds how many reminder rows one committed write touches.
const UpdateBatchSize = 200

// OutboxWriter persists SMS events with their history rows and flushes
// reminder status updates in bounded batches.
type OutboxWriter struct {
	outbox    repo.OutboxRepository
	reminders repo.ReminderRepository
	batchSize int

	now   func() time.Time
	newID func() uuid.UUID
}

func NewOutboxWriter(outbox repo.OutboxRepository, reminders repo.ReminderRepository) *OutboxWriter {
	return &OutboxWriter{
		outbox:    outbox,
		reminders: reminders,
		batchSize: UpdateBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.New,
	}
}

// FlushUpdates writes updates in chunks of at most the batch size. Chunks
// already written stay committed if a later one fails; cancellation is
// honoured between chunks.
func (w *OutboxWriter) FlushUpdates(ctx context.Context, updates []model.ReminderUpdate) error {
	for start := 0; start < len(updates); start += w.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+w.batchSize, len(updates))
		if err := w.reminders.UpdateReminders(ctx, updates[start:end]); err != nil {
			return fmt.Errorf("update reminders [%d:%d]: %w", start, end, err)
		}
		slog.Debug("reminder batch flushed", "from", start, "to", end)
	}
	return nil
}

// WriteBucket creates the event and history for one client bucket and marks
// its reminders EVENT_CREATED in the same transaction. It returns the event
// id and the updates it applied.
func (w *OutboxWriter) WriteBucket(ctx context.Context, practice model.Practice, b *Bucket, text string) (uuid.UUID, []model.ReminderUpdate, error) {
	now := w.now()
	correlationID := w.newID()

	var from string
	if practice.Settings != nil {
		from = practice.Settings.SenderPhone
	}

	payload := model.SMSPayload{
		From:          from,
		To:            b.Phone.AppNumber,
		PracticeID:    practice.ID,
		CorrelationID: correlationID,
		Text:          text,
	}

	event := model.SMSEvent{
		ID:        w.newID(),
		SendAt:    calendar.SendAt(now),
		Status:    model.EventPending,
		Payload:   payload,
		CreatedAt: now,
	}
	history := model.SMSHistory{
		ID:          correlationID,
		ClientID:    b.Client.ID,
		PracticeID:  practice.ID,
		Status:      model.HistoryPending,
		PhoneNumber: b.Phone.AppNumber,
		MessageText: text,
		Payload:     payload,
		CreatedAt:   now,
	}

	updates := make([]model.ReminderUpdate, 0, len(b.Reminders))
	for _, r := range b.Reminders {
		historyID := correlationID
		updates = append(updates, model.ReminderUpdate{
			ReminderID: r.ID,
			Status:     model.ReminderEventCreated,
			HistoryID:  &historyID,
		})
	}

	if err := w.outbox.CreateEvent(ctx, event, history, updates); err != nil {
		return uuid.Nil, nil, fmt.Errorf("create sms event for client %s: %w", b.Client.ID, err)
	}
	return event.ID, updates, nil
}
