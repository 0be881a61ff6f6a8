package service

import (
	"context"
	"fmt"

	"github.com/LeventeLantos/reminder-sms/internal/calendar"
	"github.com/LeventeLantos/reminder-sms/internal/model"
	"github.com/LeventeLantos/reminder-sms/internal/repo"
)

// ReminderSelector finds the patients with untouched reminders due inside a
// practice's window.
type ReminderSelector struct {
	reminders repo.ReminderRepository
}

func NewReminderSelector(reminders repo.ReminderRepository) *ReminderSelector {
	return &ReminderSelector{reminders: reminders}
}

func (s *ReminderSelector) Select(ctx context.Context, practiceID string, w calendar.Window) ([]model.Patient, error) {
	patients, err := s.reminders.SelectPatients(ctx, practiceID, calendar.Date(w.Start), calendar.Date(w.End))
	if err != nil {
		return nil, fmt.Errorf("select patients for practice %s: %w", practiceID, err)
	}
	return patients, nil
}
