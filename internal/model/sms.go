package model

import (
	"time"

	"github.com/google/uuid"
)

type SMSEventStatus string

const (
	EventPending    SMSEventStatus = "PENDING"
	EventInProgress SMSEventStatus = "IN_PROGRESS"
)

type SMSHistoryStatus string

const (
	HistoryPending SMSHistoryStatus = "PENDING"
	HistorySent    SMSHistoryStatus = "SENT"
	HistoryError   SMSHistoryStatus = "ERROR"
)

// SMSPayload is everything the dispatcher needs to deliver one message.
// It is stored as structured JSON on both the event and its history row.
type SMSPayload struct {
	From          string    `json:"from"`
	To            string    `json:"to"`
	PracticeID    string    `json:"practiceId"`
	CorrelationID uuid.UUID `json:"correlationId"`
	Text          string    `json:"text"`
}

// SMSEvent is an outbox row: created by the aggregation job and deleted by
// the dispatcher once delivery has been attempted.
type SMSEvent struct {
	ID        uuid.UUID
	SendAt    time.Time
	Status    SMSEventStatus
	Payload   SMSPayload
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SMSHistory is the durable audit record of one outbound message. Its ID is
// the correlation id carried in the payload.
type SMSHistory struct {
	ID           uuid.UUID        `json:"id"`
	ClientID     string           `json:"clientId"`
	PracticeID   string           `json:"practiceId"`
	Status       SMSHistoryStatus `json:"status"`
	PhoneNumber  string           `json:"phoneNumber"`
	MessageText  string           `json:"message"`
	Payload      SMSPayload       `json:"payload"`
	SentAt       *time.Time       `json:"sentAt,omitempty"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// HistoryUpdate finalises a history row after a dispatch attempt.
type HistoryUpdate struct {
	Status       SMSHistoryStatus
	SentAt       *time.Time
	ErrorMessage string
	UpdatedAt    time.Time
}
