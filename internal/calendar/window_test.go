package calendar

import (
	"testing"
	"time"

	"github.com/LeventeLantos/reminder-sms/internal/model"
)

func ptr(t time.Time) *time.Time { return &t }

func TestComputeWindow_LaunchDayDefaults(t *testing.T) {
	t.Parallel()

	today := day(2024, 5, 15)
	w := ComputeWindow(today, model.PracticeSettings{}, today)

	if !w.Start.Equal(day(2021, 5, 15)) {
		t.Fatalf("expected start 2021-05-15, got %s", w.Start.Format(time.DateOnly))
	}
	if !w.End.Equal(day(2024, 3, 27)) {
		t.Fatalf("expected end 2024-03-27, got %s", w.End.Format(time.DateOnly))
	}
	if w.SingleDay() {
		t.Fatalf("expected launch window to span more than one day")
	}
}

func TestComputeWindow_LaunchDayExplicitWindow(t *testing.T) {
	t.Parallel()

	today := day(2024, 5, 15)
	settings := model.PracticeSettings{
		LaunchStart: ptr(day(2023, 1, 1)),
		LaunchEnd:   ptr(day(2023, 6, 30)),
	}

	w := ComputeWindow(today, settings, today)
	if !w.Start.Equal(day(2023, 1, 1)) || !w.End.Equal(day(2023, 6, 30)) {
		t.Fatalf("expected configured window verbatim, got %s", w)
	}
}

func TestComputeWindow_LaunchDayOnlyStart(t *testing.T) {
	t.Parallel()

	today := day(2024, 5, 15)
	settings := model.PracticeSettings{LaunchStart: ptr(day(2023, 1, 1))}

	w := ComputeWindow(today, settings, today)
	if !w.Start.Equal(day(2023, 1, 1)) {
		t.Fatalf("expected configured start, got %s", w.Start.Format(time.DateOnly))
	}
	if !w.End.Equal(day(2024, 3, 27)) {
		t.Fatalf("expected end seven weeks back, got %s", w.End.Format(time.DateOnly))
	}
}

func TestComputeWindow_SteadyStateIsSingleDay(t *testing.T) {
	t.Parallel()

	launch := day(2024, 1, 10)
	settings := model.PracticeSettings{
		LaunchStart: ptr(day(2023, 1, 1)),
		LaunchEnd:   ptr(day(2023, 6, 30)),
	}

	for _, today := range []time.Time{day(2024, 5, 15), time.Date(2024, 5, 15, 8, 0, 0, 0, time.UTC)} {
		w := ComputeWindow(launch, settings, today)
		if !w.SingleDay() {
			t.Fatalf("expected single-day window, got %s", w)
		}
		if !w.Start.Equal(day(2024, 3, 27)) {
			t.Fatalf("expected 2024-03-27, got %s", w.Start.Format(time.DateOnly))
		}
	}
}

func TestWindow_Contains(t *testing.T) {
	t.Parallel()

	w := Window{Start: day(2024, 3, 1), End: day(2024, 3, 31)}
	if !w.Contains(time.Date(2024, 3, 31, 18, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected end day to be inclusive")
	}
	if w.Contains(day(2024, 4, 1)) || w.Contains(day(2024, 2, 29)) {
		t.Fatalf("expected days outside the window to be excluded")
	}
}

func TestSendAt(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "workday morning sends same day (EST)",
			now:  time.Date(2024, 11, 27, 8, 0, 0, 0, time.UTC),
			want: time.Date(2024, 11, 27, 16, 0, 0, 0, time.UTC),
		},
		{
			name: "holiday rolls to next workday",
			now:  time.Date(2024, 11, 28, 8, 0, 0, 0, time.UTC),
			want: time.Date(2024, 11, 29, 16, 0, 0, 0, time.UTC),
		},
		{
			name: "daylight saving time",
			now:  time.Date(2024, 7, 10, 8, 0, 0, 0, time.UTC),
			want: time.Date(2024, 7, 10, 15, 0, 0, 0, time.UTC),
		},
		{
			name: "saturday rolls to monday",
			now:  time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 11, 15, 0, 0, 0, time.UTC),
		},
		{
			name: "uses eastern date not utc date",
			now:  time.Date(2024, 3, 12, 2, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 11, 15, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := SendAt(tc.now); !got.Equal(tc.want) {
				t.Fatalf("SendAt(%s) = %s, want %s", tc.now, got, tc.want)
			}
		})
	}
}
