package service

import (
	"github.com/LeventeLantos/reminder-sms/internal/model"
)

// Bucket collects every eligible patient of one client. It becomes exactly
// one SMS.
type Bucket struct {
	Client               model.Client
	Phone                model.Phone
	Names                []string
	Reminders            []model.Reminder
	HasMultipleReminders bool
}

// Aggregator groups eligible patients by client, keeping first-encounter
// order.
type Aggregator struct {
	byClient map[string]*Bucket
	order    []*Bucket
}

func NewAggregator() *Aggregator {
	return &Aggregator{byClient: map[string]*Bucket{}}
}

func (a *Aggregator) Add(e Eligible) {
	b, ok := a.byClient[e.Client.ID]
	if !ok {
		b = &Bucket{Client: e.Client, Phone: e.Phone}
		a.byClient[e.Client.ID] = b
		a.order = append(a.order, b)
	}

	b.Names = append(b.Names, TitleName(e.PatientName))
	b.Reminders = append(b.Reminders, e.Reminder)
	if len(b.Reminders) > 1 {
		b.HasMultipleReminders = true
	}
}

func (a *Aggregator) Buckets() []*Bucket {
	return a.order
}
