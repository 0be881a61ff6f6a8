package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LeventeLantos/reminder-sms/internal/model"
	"github.com/LeventeLantos/reminder-sms/internal/repo"
)

// AppointmentLookback is how far before the latest due date an existing
// appointment still counts as the reminder being handled.
const AppointmentLookback = 14 * 24 * time.Hour

// Eligible is a patient that will be texted through Client at Phone about
// Reminder.
type Eligible struct {
	Client      model.Client
	Phone       model.Phone
	PatientName string
	Reminder    model.Reminder
}

// Resolution is the outcome for one patient: either Eligible is set, or
// every reminder got a terminal status. Updates holds the status writes in
// both cases.
type Resolution struct {
	Eligible *Eligible
	Updates  []model.ReminderUpdate
}

type EligibilityResolver struct {
	reminders repo.ReminderRepository
}

func NewEligibilityResolver(reminders repo.ReminderRepository) *EligibilityResolver {
	return &EligibilityResolver{reminders: reminders}
}

func (r *EligibilityResolver) Resolve(ctx context.Context, patient model.Patient, practiceID string, today time.Time) (Resolution, error) {
	open, err := r.reminders.OpenReminders(ctx, patient.ID, practiceID)
	if err != nil {
		return Resolution{}, fmt.Errorf("load reminders of patient %s: %w", patient.ID, err)
	}
	if len(open) == 0 {
		return Resolution{}, nil
	}
	latest := open[0]

	hasAppt, err := r.reminders.HasAppointmentSince(ctx, patient.ID, latest.DateDue.Add(-AppointmentLookback))
	if err != nil {
		return Resolution{}, fmt.Errorf("check appointments of patient %s: %w", patient.ID, err)
	}
	if hasAppt {
		return Resolution{Updates: markAll(open, model.ReminderAppointmentExists)}, nil
	}

	client, err := r.reminders.ActiveClient(ctx, patient.ID, today)
	if errors.Is(err, repo.ErrNotFound) {
		return Resolution{Updates: markAll(open, model.ReminderNoActiveClient)}, nil
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve client of patient %s: %w", patient.ID, err)
	}

	phone, err := r.reminders.PreferredPhone(ctx, client.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return Resolution{Updates: markAll(open, model.ReminderNoPhone)}, nil
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve phone of client %s: %w", client.ID, err)
	}

	if model.ExcludedPhoneType(phone.Type) {
		return Resolution{Updates: markAll(open, model.ReminderExcludedPhoneType)}, nil
	}

	return Resolution{
		Eligible: &Eligible{
			Client:      client,
			Phone:       phone,
			PatientName: patient.Name,
			Reminder:    latest,
		},
		Updates: markAll(open[1:], model.ReminderChecked),
	}, nil
}

func markAll(reminders []model.Reminder, status model.ReminderStatus) []model.ReminderUpdate {
	out := make([]model.ReminderUpdate, 0, len(reminders))
	for _, r := range reminders {
		out = append(out, model.ReminderUpdate{ReminderID: r.ID, Status: status})
	}
	return out
}
