package model

import "time"

type Patient struct {
	ID                 string
	Name               string
	IsDeceased         bool
	PimsIsDeceased     bool
	PimsIsInactive     bool
	PimsIsDeleted      bool
	SuspendedReminders bool
	DeathDate          *time.Time
	EuthanasiaDate     *time.Time
	OutcomeID          string
	RemovedAt          *time.Time
}

type Client struct {
	ID                 string
	PracticeID         string
	IsInactive         bool
	IsDeleted          bool
	SuspendedReminders bool
	IsHomePractice     bool
	RemovedAt          *time.Time
}

// Contactable reports whether the client may receive reminder SMS at all.
func (c Client) Contactable() bool {
	return c.RemovedAt == nil &&
		!c.IsInactive &&
		!c.IsDeleted &&
		!c.SuspendedReminders &&
		c.IsHomePractice
}

type Phone struct {
	ID          string
	ClientID    string
	Number      string
	AppNumber   string
	Type        string
	IsPreferred bool
	RemovedAt   *time.Time
}

type ClientPatientRelationship struct {
	ID          string
	ClientID    string
	PatientID   string
	IsPreferred bool
	StartDate   *time.Time
	EndDate     *time.Time
	RemovedAt   *time.Time
}

// ValidOn reports whether the relationship is in force on the given day.
func (r ClientPatientRelationship) ValidOn(day time.Time) bool {
	if r.RemovedAt != nil {
		return false
	}
	if r.StartDate != nil && r.StartDate.After(day) {
		return false
	}
	if r.EndDate != nil && r.EndDate.Before(day) {
		return false
	}
	return true
}

type Appointment struct {
	ID         string
	PatientID  string
	Date       time.Time
	IsCanceled bool
	RemovedAt  *time.Time
}
