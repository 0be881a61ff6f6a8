package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/reminder-sms/internal/model"
)

var ErrNotFound = errors.New("not found")

// PracticeRepository lists the practices the aggregation job runs for.
type PracticeRepository interface {
	// ListSMSPractices returns non-archived practices with SMS enabled,
	// settings attached.
	ListSMSPractices(ctx context.Context) ([]model.Practice, error)
}

// ReminderRepository covers every read the selector and eligibility resolver
// perform plus the bounded batch status write.
type ReminderRepository interface {
	// SelectPatients returns distinct contactable patients that have at least
	// one untouched reminder of practiceID due in [start, end], ordered by id.
	SelectPatients(ctx context.Context, practiceID string, start, end time.Time) ([]model.Patient, error)
	// OpenReminders returns untouched reminders of the patient at the
	// practice, most recent due date first.
	OpenReminders(ctx context.Context, patientID, practiceID string) ([]model.Reminder, error)
	// HasAppointmentSince reports a non-canceled appointment on or after since.
	HasAppointmentSince(ctx context.Context, patientID string, since time.Time) (bool, error)
	// ActiveClient returns the authoritative contactable client of the
	// patient on day, or ErrNotFound.
	ActiveClient(ctx context.Context, patientID string, day time.Time) (model.Client, error)
	// PreferredPhone returns the client's preferred phone with a usable app
	// number, or ErrNotFound.
	PreferredPhone(ctx context.Context, clientID string) (model.Phone, error)
	// UpdateReminders applies all updates in one committed write.
	UpdateReminders(ctx context.Context, updates []model.ReminderUpdate) error
}

// OutboxRepository owns SMS events and their history rows.
type OutboxRepository interface {
	// CreateEvent inserts the event, its history and the reminder updates
	// linking to that history in one transaction.
	CreateEvent(ctx context.Context, event model.SMSEvent, history model.SMSHistory, updates []model.ReminderUpdate) error
	GetEvent(ctx context.Context, id uuid.UUID) (model.SMSEvent, error)
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	// ClaimDueEvents moves up to limit PENDING events with send_at <= now to
	// IN_PROGRESS and returns them.
	ClaimDueEvents(ctx context.Context, now time.Time, limit int) ([]model.SMSEvent, error)
	// RequeueStaleEvents puts IN_PROGRESS events last touched before
	// staleBefore back to PENDING.
	RequeueStaleEvents(ctx context.Context, staleBefore time.Time) (int, error)
	UpdateHistory(ctx context.Context, id uuid.UUID, u model.HistoryUpdate) error
}

// HistoryReader backs the operational history listing.
type HistoryReader interface {
	ListHistory(ctx context.Context, limit, offset int) ([]model.SMSHistory, error)
}
