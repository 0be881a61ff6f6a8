package model

import (
	"time"

	"github.com/google/uuid"
)

// ReminderStatus tracks how the SMS pipeline handled a reminder. The zero
// value means the reminder has not been looked at yet.
type ReminderStatus string

const (
	ReminderUntouched         ReminderStatus = ""
	ReminderAppointmentExists ReminderStatus = "APPOINTMENT_EXISTS"
	ReminderNoActiveClient    ReminderStatus = "NO_ACTIVE_CLIENT"
	ReminderNoPhone           ReminderStatus = "NO_PHONE"
	ReminderExcludedPhoneType ReminderStatus = "EXCLUDED_PHONE_TYPE"
	ReminderChecked           ReminderStatus = "CHECKED"
	ReminderEventCreated      ReminderStatus = "EVENT_CREATED"
)

type Reminder struct {
	ID          string
	PatientID   string
	ClientID    string
	PracticeID  string
	DateDue     time.Time
	Description string
	Status      ReminderStatus
	HistoryID   *uuid.UUID
	RemovedAt   *time.Time
	UpdatedAt   time.Time
}

// ReminderUpdate is one pending status write produced by the aggregation job.
type ReminderUpdate struct {
	ReminderID string
	Status     ReminderStatus
	HistoryID  *uuid.UUID
}
