// Package repotest provides an in-memory implementation of the repository
// interfaces for tests.
package repotest

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/reminder-sms/internal/model"
	"github.com/LeventeLantos/reminder-sms/internal/repo"
)

// Store mirrors the Postgres query semantics over plain slices. Seed it by
// appending to the exported fields before use; read results back under the
// same fields once the code under test has returned.
type Store struct {
	mu sync.Mutex

	Practices     []model.Practice
	Patients      []model.Patient
	Clients       []model.Client
	Phones        []model.Phone
	Relationships []model.ClientPatientRelationship
	Appointments  []model.Appointment
	Reminders     []model.Reminder

	Events    map[uuid.UUID]model.SMSEvent
	Histories map[uuid.UUID]model.SMSHistory

	// UpdateBatches records the size of every UpdateReminders call.
	UpdateBatches []int

	// Fail* make the matching operation return the error when set.
	FailUpdateReminders error
	FailCreateEvent     error
	FailUpdateHistory   error
	FailDeleteEvent     error
}

var (
	_ repo.PracticeRepository = (*Store)(nil)
	_ repo.ReminderRepository = (*Store)(nil)
	_ repo.OutboxRepository   = (*Store)(nil)
	_ repo.HistoryReader      = (*Store)(nil)
)

func New() *Store {
	return &Store{
		Events:    map[uuid.UUID]model.SMSEvent{},
		Histories: map[uuid.UUID]model.SMSHistory{},
	}
}

func (s *Store) ListSMSPractices(ctx context.Context) ([]model.Practice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Practice
	for _, p := range s.Practices {
		if p.IsArchived || p.Settings == nil || !p.Settings.SMSEnabled {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func excludedOutcome(id string) bool {
	return id != "" && slices.Contains(model.OutcomesToFilterOut, id)
}

func patientContactable(p model.Patient) bool {
	return strings.TrimSpace(p.Name) != "" &&
		!p.PimsIsDeceased && !p.PimsIsInactive && !p.PimsIsDeleted &&
		!p.SuspendedReminders && !p.IsDeceased &&
		p.DeathDate == nil && p.EuthanasiaDate == nil && p.RemovedAt == nil &&
		!excludedOutcome(p.OutcomeID)
}

func openReminder(r model.Reminder) bool {
	return r.Status == model.ReminderUntouched && r.RemovedAt == nil
}

func (s *Store) SelectPatients(ctx context.Context, practiceID string, start, end time.Time) ([]model.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := map[string]bool{}
	for _, r := range s.Reminders {
		if r.PracticeID != practiceID || !openReminder(r) {
			continue
		}
		if r.DateDue.Before(start) || r.DateDue.After(end) {
			continue
		}
		due[r.PatientID] = true
	}

	var out []model.Patient
	for _, p := range s.Patients {
		if due[p.ID] && patientContactable(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) OpenReminders(ctx context.Context, patientID, practiceID string) ([]model.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Reminder
	for _, r := range s.Reminders {
		if r.PatientID == patientID && r.PracticeID == practiceID && openReminder(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DateDue.Equal(out[j].DateDue) {
			return out[i].DateDue.After(out[j].DateDue)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) HasAppointmentSince(ctx context.Context, patientID string, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.Appointments {
		if a.PatientID == patientID && !a.IsCanceled && a.RemovedAt == nil && !a.Date.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ActiveClient(ctx context.Context, patientID string, day time.Time) (model.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := map[string]model.Client{}
	for _, c := range s.Clients {
		clients[c.ID] = c
	}

	var rels []model.ClientPatientRelationship
	for _, r := range s.Relationships {
		if r.PatientID != patientID || !r.ValidOn(day) {
			continue
		}
		if c, ok := clients[r.ClientID]; ok && c.Contactable() {
			rels = append(rels, r)
		}
	}
	if len(rels) == 0 {
		return model.Client{}, repo.ErrNotFound
	}

	sort.SliceStable(rels, func(i, j int) bool {
		a, b := rels[i], rels[j]
		if a.IsPreferred != b.IsPreferred {
			return a.IsPreferred
		}
		switch {
		case a.StartDate != nil && b.StartDate == nil:
			return true
		case a.StartDate == nil && b.StartDate != nil:
			return false
		case a.StartDate != nil && !a.StartDate.Equal(*b.StartDate):
			return a.StartDate.After(*b.StartDate)
		}
		return a.ID < b.ID
	})
	return clients[rels[0].ClientID], nil
}

func (s *Store) PreferredPhone(ctx context.Context, clientID string) (model.Phone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found []model.Phone
	for _, p := range s.Phones {
		if p.ClientID == clientID && p.IsPreferred && p.AppNumber != "" && p.RemovedAt == nil {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return model.Phone{}, repo.ErrNotFound
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	return found[0], nil
}

func (s *Store) UpdateReminders(ctx context.Context, updates []model.ReminderUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailUpdateReminders != nil {
		return s.FailUpdateReminders
	}

	s.applyUpdates(updates)
	s.UpdateBatches = append(s.UpdateBatches, len(updates))
	return nil
}

func (s *Store) applyUpdates(updates []model.ReminderUpdate) {
	idx := map[string]int{}
	for i, r := range s.Reminders {
		idx[r.ID] = i
	}
	now := time.Now().UTC()
	for _, u := range updates {
		i, ok := idx[u.ReminderID]
		if !ok {
			continue
		}
		s.Reminders[i].Status = u.Status
		if u.HistoryID != nil {
			id := *u.HistoryID
			s.Reminders[i].HistoryID = &id
		}
		s.Reminders[i].UpdatedAt = now
	}
}

func (s *Store) CreateEvent(ctx context.Context, event model.SMSEvent, history model.SMSHistory, updates []model.ReminderUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreateEvent != nil {
		return s.FailCreateEvent
	}
	history.UpdatedAt = history.CreatedAt
	event.UpdatedAt = event.CreatedAt
	s.Histories[history.ID] = history
	s.Events[event.ID] = event
	s.applyUpdates(updates)
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (model.SMSEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.Events[id]
	if !ok {
		return model.SMSEvent{}, repo.ErrNotFound
	}
	return e, nil
}

func (s *Store) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailDeleteEvent != nil {
		return s.FailDeleteEvent
	}
	delete(s.Events, id)
	return nil
}

func (s *Store) ClaimDueEvents(ctx context.Context, now time.Time, limit int) ([]model.SMSEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []model.SMSEvent
	for _, e := range s.Events {
		if e.Status == model.EventPending && !e.SendAt.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].SendAt.Equal(due[j].SendAt) {
			return due[i].SendAt.Before(due[j].SendAt)
		}
		return due[i].ID.String() < due[j].ID.String()
	})
	if len(due) > limit {
		due = due[:limit]
	}

	updatedAt := time.Now().UTC()
	for i := range due {
		due[i].Status = model.EventInProgress
		due[i].UpdatedAt = updatedAt
		s.Events[due[i].ID] = due[i]
	}
	return due, nil
}

func (s *Store) RequeueStaleEvents(ctx context.Context, staleBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.Events {
		if e.Status == model.EventInProgress && e.UpdatedAt.Before(staleBefore) {
			e.Status = model.EventPending
			e.UpdatedAt = time.Now().UTC()
			s.Events[id] = e
			n++
		}
	}
	return n, nil
}

func (s *Store) UpdateHistory(ctx context.Context, id uuid.UUID, u model.HistoryUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailUpdateHistory != nil {
		return s.FailUpdateHistory
	}
	h, ok := s.Histories[id]
	if !ok {
		return repo.ErrNotFound
	}
	h.Status = u.Status
	if u.SentAt != nil {
		t := *u.SentAt
		h.SentAt = &t
	}
	if u.ErrorMessage != "" {
		h.ErrorMessage = u.ErrorMessage
	}
	h.UpdatedAt = u.UpdatedAt
	s.Histories[id] = h
	return nil
}

func (s *Store) ListHistory(ctx context.Context, limit, offset int) ([]model.SMSHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.SMSHistory, 0, len(s.Histories))
	for _, h := range s.Histories {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	if offset >= len(out) {
		return []model.SMSHistory{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Reminder returns a copy of the reminder with the given id.
func (s *Store) Reminder(id string) (model.Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.Reminders {
		if r.ID == id {
			return r, true
		}
	}
	return model.Reminder{}, false
}

// EventCount returns the number of events currently in the outbox.
func (s *Store) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Events)
}
