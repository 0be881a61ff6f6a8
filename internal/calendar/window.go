package calendar

import (
	"fmt"
	"time"

	"github.com/LeventeLantos/reminder-sms/internal/model"
)

const (
	// MinExpiryWeeks is how long a reminder must be overdue before it is texted.
	MinExpiryWeeks = 7
	// MaxExpiryYears bounds the launch-day backfill when no window is configured.
	MaxExpiryYears = 3

	SendAtHour = 11
	SendAtZone = "America/New_York"
)

// Window is an inclusive range of reminder due dates.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) SingleDay() bool {
	return SameDay(w.Start, w.End)
}

func (w Window) Contains(day time.Time) bool {
	d := Date(day)
	return !d.Before(Date(w.Start)) && !d.After(Date(w.End))
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
}

// ComputeWindow returns the due-date window a practice is scanned for today.
// On the launch day the window is the configured backfill (or the default
// three years); every later run looks at exactly one day, seven weeks back.
func ComputeWindow(launch time.Time, settings model.PracticeSettings, today time.Time) Window {
	today = Date(today)
	cutoff := today.AddDate(0, 0, -7*MinExpiryWeeks)

	if !SameDay(launch, today) {
		return Window{Start: cutoff, End: cutoff}
	}

	switch {
	case settings.LaunchStart != nil && settings.LaunchEnd != nil:
		return Window{Start: Date(*settings.LaunchStart), End: Date(*settings.LaunchEnd)}
	case settings.LaunchStart != nil:
		return Window{Start: Date(*settings.LaunchStart), End: cutoff}
	default:
		return Window{Start: today.AddDate(-MaxExpiryYears, 0, 0), End: cutoff}
	}
}

// SendAt returns the UTC instant an event created at now should go out:
// 11:00 US-Eastern on the next workday after yesterday (Eastern date).
func SendAt(now time.Time) time.Time {
	loc, err := time.LoadLocation(SendAtZone)
	if err != nil {
		// tzdata is embedded, so this only happens with a corrupt build.
		panic(fmt.Sprintf("calendar: load %s: %v", SendAtZone, err))
	}

	local := now.In(loc)
	yesterday := time.Date(local.Year(), local.Month(), local.Day()-1, 0, 0, 0, 0, time.UTC)
	day := NextWorkday(yesterday)

	return time.Date(day.Year(), day.Month(), day.Day(), SendAtHour, 0, 0, 0, loc).UTC()
}
