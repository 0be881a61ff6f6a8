// Package calendar implements the US business-day calendar used to pick the
// reminder window and the outbound send time.
package calendar

import (
	"time"
	_ "time/tzdata"
)

// Date truncates t to midnight UTC of its calendar day in t's location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func IsWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsHoliday reports whether date falls on one of the ten fixed US holidays
// of its own year. Black Friday is intentionally not a holiday.
func IsHoliday(date time.Time) bool {
	for _, h := range Holidays(date.Year()) {
		if SameDay(h, date) {
			return true
		}
	}
	return false
}

func IsWorkday(date time.Time) bool {
	return !IsWeekend(date) && !IsHoliday(date)
}

// Holidays returns the observed holiday dates of year, in calendar order.
func Holidays(year int) []time.Time {
	return []time.Time{
		time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		nthWeekday(year, time.January, time.Monday, 3),  // Martin Luther King Jr. Day
		nthWeekday(year, time.February, time.Monday, 3), // Presidents' Day
		lastWeekday(year, time.May, time.Monday),        // Memorial Day
		time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC),
		nthWeekday(year, time.September, time.Monday, 1), // Labor Day
		nthWeekday(year, time.October, time.Monday, 2),   // Columbus Day
		time.Date(year, time.November, 11, 0, 0, 0, 0, time.UTC),
		nthWeekday(year, time.November, time.Thursday, 4), // Thanksgiving
		time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC),
	}
}

// NextWorkday returns the first workday strictly after date.
func NextWorkday(date time.Time) time.Time {
	next := Date(date).AddDate(0, 0, 1)
	for !IsWorkday(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// PreviousWorkday returns the last workday strictly before date.
func PreviousWorkday(date time.Time) time.Time {
	prev := Date(date).AddDate(0, 0, -1)
	for !IsWorkday(prev) {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+7*(n-1))
}

func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	back := (int(last.Weekday()) - int(wd) + 7) % 7
	return last.AddDate(0, 0, -back)
}
