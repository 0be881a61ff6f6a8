package model

import "time"

type Practice struct {
	ID         string
	Name       string
	IsArchived bool
	Settings   *PracticeSettings
}

// PracticeSettings holds the SMS program configuration of one practice.
// LaunchStart/LaunchEnd form the optional explicit backfill window used on
// the launch day only.
type PracticeSettings struct {
	PracticeID    string
	SMSEnabled    bool
	SenderPhone   string
	DisplayName   string
	SchedulerName string
	BookingLink   string
	ContactPhone  string
	LaunchDate    *time.Time
	LaunchStart   *time.Time
	LaunchEnd     *time.Time
}
