package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/reminder-sms/internal/calendar"
	"github.com/LeventeLantos/reminder-sms/internal/lock"
	"github.com/LeventeLantos/reminder-sms/internal/model"
	"github.com/LeventeLantos/reminder-sms/internal/repo"
)

const AggregationLockKey = "lock:job:sms-aggregation"

type AggregationSummary struct {
	Practices     int         `json:"practices"`
	Skipped       int         `json:"skipped"`
	Patients      int         `json:"patients"`
	StatusUpdates int         `json:"statusUpdates"`
	Events        []uuid.UUID `json:"events"`
	LockHeld      bool        `json:"lockHeld,omitempty"`
}

// AggregationJob is the daily pass that turns overdue reminders into SMS
// events, one per client.
type AggregationJob struct {
	practices repo.PracticeRepository
	selector  *ReminderSelector
	resolver  *EligibilityResolver
	writer    *OutboxWriter
	locker    lock.Locker

	now func() time.Time
}

func NewAggregationJob(
	practices repo.PracticeRepository,
	reminders repo.ReminderRepository,
	outbox repo.OutboxRepository,
	locker lock.Locker,
) *AggregationJob {
	if locker == nil {
		locker = lock.NopLocker{}
	}
	return &AggregationJob{
		practices: practices,
		selector:  NewReminderSelector(reminders),
		resolver:  NewEligibilityResolver(reminders),
		writer:    NewOutboxWriter(outbox, reminders),
		locker:    locker,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the job's notion of now.
func (j *AggregationJob) WithClock(now func() time.Time) *AggregationJob {
	j.now = now
	j.writer.now = now
	return j
}

// Run executes one aggregation pass. When another instance holds the job
// lock the run is skipped and the summary reports LockHeld.
func (j *AggregationJob) Run(ctx context.Context) (AggregationSummary, error) {
	var sum AggregationSummary

	err := j.locker.WithLock(ctx, AggregationLockKey, func(ctx context.Context) error {
		var err error
		sum, err = j.run(ctx)
		return err
	})
	if errors.Is(err, lock.ErrLocked) {
		slog.Info("sms aggregation already running elsewhere, skipping", "key", AggregationLockKey)
		return AggregationSummary{LockHeld: true}, nil
	}
	return sum, err
}

func (j *AggregationJob) run(ctx context.Context) (AggregationSummary, error) {
	start := time.Now()
	today := calendar.Date(j.now())

	var sum AggregationSummary

	practices, err := j.practices.ListSMSPractices(ctx)
	if err != nil {
		return sum, fmt.Errorf("list practices: %w", err)
	}
	slog.Info("sms aggregation started", "practices", len(practices), "today", today.Format(time.DateOnly))

	for _, p := range practices {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		if p.Settings == nil {
			slog.Warn("practice has no settings, skipping", "practice_id", p.ID)
			sum.Skipped++
			continue
		}
		if p.Settings.LaunchDate == nil {
			slog.Warn("practice has no launch date, skipping", "practice_id", p.ID)
			sum.Skipped++
			continue
		}

		ps, err := j.runPractice(ctx, p, today)
		sum.Practices++
		sum.Patients += ps.Patients
		sum.StatusUpdates += ps.StatusUpdates
		sum.Events = append(sum.Events, ps.Events...)
		if err != nil {
			return sum, fmt.Errorf("practice %s: %w", p.ID, err)
		}
	}

	slog.Info("sms aggregation completed",
		"practices", sum.Practices,
		"skipped", sum.Skipped,
		"patients", sum.Patients,
		"status_updates", sum.StatusUpdates,
		"events", len(sum.Events),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return sum, nil
}

func (j *AggregationJob) runPractice(ctx context.Context, p model.Practice, today time.Time) (AggregationSummary, error) {
	var sum AggregationSummary

	window := calendar.ComputeWindow(*p.Settings.LaunchDate, *p.Settings, today)

	patients, err := j.selector.Select(ctx, p.ID, window)
	if err != nil {
		return sum, err
	}
	sum.Patients = len(patients)

	agg := NewAggregator()
	var updates []model.ReminderUpdate
	for _, patient := range patients {
		res, err := j.resolver.Resolve(ctx, patient, p.ID, today)
		if err != nil {
			return sum, err
		}
		updates = append(updates, res.Updates...)
		if res.Eligible != nil {
			agg.Add(*res.Eligible)
		}
	}

	if err := j.writer.FlushUpdates(ctx, updates); err != nil {
		return sum, err
	}
	sum.StatusUpdates += len(updates)

	for _, b := range agg.Buckets() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		eventID, u, err := j.writer.WriteBucket(ctx, p, b, Compose(p.Settings, b))
		if err != nil {
			return sum, err
		}
		sum.Events = append(sum.Events, eventID)
		sum.StatusUpdates += len(u)
		slog.Debug("sms event created", "practice_id", p.ID, "client_id", b.Client.ID, "event_id", eventID, "patients", len(b.Names))
	}

	slog.Info("practice aggregated",
		"practice_id", p.ID,
		"window", window.String(),
		"patients", sum.Patients,
		"status_updates", sum.StatusUpdates,
		"events", len(sum.Events),
	)
	return sum, nil
}
