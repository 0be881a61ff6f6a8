package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LeventeLantos/reminder-sms/internal/model"
)

// Postgres implements every repository interface of the pipeline on one pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ PracticeRepository = (*Postgres)(nil)
	_ ReminderRepository = (*Postgres)(nil)
	_ OutboxRepository   = (*Postgres)(nil)
	_ HistoryReader      = (*Postgres)(nil)
)

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

func (r *Postgres) ListSMSPractices(ctx context.Context) ([]model.Practice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, COALESCE(p.name, ''), p.is_archived,
		       s.sms_enabled, COALESCE(s.sender_phone, ''), COALESCE(s.display_name, ''),
		       COALESCE(s.scheduler_name, ''), COALESCE(s.booking_link, ''), COALESCE(s.contact_phone, ''),
		       s.launch_date, s.launch_start, s.launch_end
		FROM practices p
		JOIN practice_settings s ON s.practice_id = p.id
		WHERE s.sms_enabled AND NOT p.is_archived AND p.removed_at IS NULL
		ORDER BY p.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Practice
	for rows.Next() {
		var p model.Practice
		s := &model.PracticeSettings{}
		if err := rows.Scan(
			&p.ID, &p.Name, &p.IsArchived,
			&s.SMSEnabled, &s.SenderPhone, &s.DisplayName,
			&s.SchedulerName, &s.BookingLink, &s.ContactPhone,
			&s.LaunchDate, &s.LaunchStart, &s.LaunchEnd,
		); err != nil {
			return nil, err
		}
		s.PracticeID = p.ID
		p.Settings = s
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Postgres) SelectPatients(ctx context.Context, practiceID string, start, end time.Time) ([]model.Patient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, COALESCE(p.outcome_id, '')
		FROM patients p
		WHERE NULLIF(TRIM(p.name), '') IS NOT NULL
		  AND NOT COALESCE(p.pims_is_deceased, FALSE)
		  AND NOT COALESCE(p.pims_is_inactive, FALSE)
		  AND NOT COALESCE(p.pims_is_deleted, FALSE)
		  AND NOT COALESCE(p.suspended_reminders, FALSE)
		  AND NOT COALESCE(p.is_deceased, FALSE)
		  AND p.death_date IS NULL
		  AND p.euthanasia_date IS NULL
		  AND p.removed_at IS NULL
		  AND (p.outcome_id IS NULL OR NOT (p.outcome_id = ANY($4)))
		  AND EXISTS (
			SELECT 1 FROM reminders r
			WHERE r.patient_id = p.id
			  AND r.practice_id = $1
			  AND r.date_due BETWEEN $2 AND $3
			  AND r.sms_status IS NULL
			  AND r.removed_at IS NULL
		  )
		ORDER BY p.id
	`, practiceID, start, end, model.OutcomesToFilterOut)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Patient
	for rows.Next() {
		var p model.Patient
		if err := rows.Scan(&p.ID, &p.Name, &p.OutcomeID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Postgres) OpenReminders(ctx context.Context, patientID, practiceID string) ([]model.Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, COALESCE(client_id, ''), practice_id, date_due,
		       COALESCE(description, ''), updated_at
		FROM reminders
		WHERE patient_id = $1
		  AND practice_id = $2
		  AND sms_status IS NULL
		  AND removed_at IS NULL
		  AND date_due IS NOT NULL
		ORDER BY date_due DESC, id
	`, patientID, practiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reminder
	for rows.Next() {
		var m model.Reminder
		if err := rows.Scan(&m.ID, &m.PatientID, &m.ClientID, &m.PracticeID, &m.DateDue, &m.Description, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Postgres) HasAppointmentSince(ctx context.Context, patientID string, since time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE patient_id = $1
			  AND NOT COALESCE(is_canceled, FALSE)
			  AND appointment_date >= $2
			  AND removed_at IS NULL
		)
	`, patientID, since).Scan(&exists)
	return exists, err
}

func (r *Postgres) ActiveClient(ctx context.Context, patientID string, day time.Time) (model.Client, error) {
	var c model.Client
	err := r.pool.QueryRow(ctx, `
		SELECT c.id, COALESCE(c.practice_id, ''), COALESCE(c.is_home_practice, FALSE)
		FROM client_patient_relationships r
		JOIN clients c ON c.id = r.client_id
		WHERE r.patient_id = $1
		  AND r.removed_at IS NULL
		  AND (r.start_date IS NULL OR r.start_date <= $2)
		  AND (r.end_date IS NULL OR r.end_date >= $2)
		  AND NOT COALESCE(c.is_inactive, FALSE)
		  AND NOT COALESCE(c.is_deleted, FALSE)
		  AND NOT COALESCE(c.suspended_reminders, FALSE)
		  AND COALESCE(c.is_home_practice, FALSE)
		  AND c.removed_at IS NULL
		ORDER BY COALESCE(r.is_preferred, FALSE) DESC, r.start_date DESC NULLS LAST, r.id
		LIMIT 1
	`, patientID, day).Scan(&c.ID, &c.PracticeID, &c.IsHomePractice)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Client{}, ErrNotFound
	}
	return c, err
}

func (r *Postgres) PreferredPhone(ctx context.Context, clientID string) (model.Phone, error) {
	var p model.Phone
	err := r.pool.QueryRow(ctx, `
		SELECT id, client_id, COALESCE(phone_number, ''), app_number, COALESCE(phone_type, '')
		FROM phones
		WHERE client_id = $1
		  AND COALESCE(is_preferred, FALSE)
		  AND app_number IS NOT NULL
		  AND app_number <> ''
		  AND removed_at IS NULL
		ORDER BY id
		LIMIT 1
	`, clientID).Scan(&p.ID, &p.ClientID, &p.Number, &p.AppNumber, &p.Type)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Phone{}, ErrNotFound
	}
	p.IsPreferred = err == nil
	return p, err
}

func (r *Postgres) UpdateReminders(ctx context.Context, updates []model.ReminderUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return applyReminderUpdates(ctx, tx, updates)
	})
}

func applyReminderUpdates(ctx context.Context, tx pgx.Tx, updates []model.ReminderUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`
			UPDATE reminders
			SET sms_status = $2,
			    sms_history_id = COALESCE($3::uuid, sms_history_id),
			    updated_at = now()
			WHERE id = $1
		`, u.ReminderID, string(u.Status), u.HistoryID)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (r *Postgres) CreateEvent(ctx context.Context, event model.SMSEvent, history model.SMSHistory, updates []model.ReminderUpdate) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO sms_histories (id, client_id, practice_id, status, phone_number, message, payload, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		`, history.ID, history.ClientID, history.PracticeID, string(history.Status),
			history.PhoneNumber, history.MessageText, history.Payload, history.CreatedAt); err != nil {
			return fmt.Errorf("insert sms history: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO sms_events (id, send_at, status, payload, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
		`, event.ID, event.SendAt, string(event.Status), event.Payload, event.CreatedAt); err != nil {
			return fmt.Errorf("insert sms event: %w", err)
		}

		if err := applyReminderUpdates(ctx, tx, updates); err != nil {
			return fmt.Errorf("link reminders: %w", err)
		}
		return nil
	})
}

const eventCols = `id, send_at, status, payload, created_at, updated_at`

func scanEvent(row pgx.Row) (model.SMSEvent, error) {
	var e model.SMSEvent
	var status string
	if err := row.Scan(&e.ID, &e.SendAt, &status, &e.Payload, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return model.SMSEvent{}, err
	}
	e.Status = model.SMSEventStatus(status)
	return e, nil
}

func (r *Postgres) GetEvent(ctx context.Context, id uuid.UUID) (model.SMSEvent, error) {
	e, err := scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventCols+` FROM sms_events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SMSEvent{}, ErrNotFound
	}
	return e, err
}

func (r *Postgres) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sms_events WHERE id = $1`, id)
	return err
}

func (r *Postgres) ClaimDueEvents(ctx context.Context, now time.Time, limit int) ([]model.SMSEvent, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT `+eventCols+`
		FROM sms_events
		WHERE status = 'PENDING' AND send_at <= $1
		ORDER BY send_at ASC, id
		FOR UPDATE SKIP LOCKED
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}

	var events []model.SMSEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		events = append(events, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]uuid.UUID, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}

	updatedAt := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		UPDATE sms_events
		SET status = 'IN_PROGRESS', updated_at = $2
		WHERE id = ANY($1)
	`, ids, updatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	for i := range events {
		events[i].Status = model.EventInProgress
		events[i].UpdatedAt = updatedAt
	}
	return events, nil
}

func (r *Postgres) RequeueStaleEvents(ctx context.Context, staleBefore time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sms_events
		SET status = 'PENDING', updated_at = now()
		WHERE status = 'IN_PROGRESS' AND updated_at < $1
	`, staleBefore)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *Postgres) UpdateHistory(ctx context.Context, id uuid.UUID, u model.HistoryUpdate) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sms_histories
		SET status = $2,
		    sent_at = COALESCE($3, sent_at),
		    error_message = CASE WHEN $4 = '' THEN error_message ELSE $4 END,
		    updated_at = $5
		WHERE id = $1
	`, id, string(u.Status), u.SentAt, u.ErrorMessage, u.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Postgres) ListHistory(ctx context.Context, limit, offset int) ([]model.SMSHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(client_id, ''), COALESCE(practice_id, ''), status,
		       COALESCE(phone_number, ''), COALESCE(message, ''), payload,
		       sent_at, COALESCE(error_message, ''), created_at, updated_at
		FROM sms_histories
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SMSHistory
	for rows.Next() {
		var h model.SMSHistory
		var status string
		if err := rows.Scan(
			&h.ID, &h.ClientID, &h.PracticeID, &status,
			&h.PhoneNumber, &h.MessageText, &h.Payload,
			&h.SentAt, &h.ErrorMessage, &h.CreatedAt, &h.UpdatedAt,
		); err != nil {
			return nil, err
		}
		h.Status = model.SMSHistoryStatus(status)
		out = append(out, h)
	}
	return out, rows.Err()
}
