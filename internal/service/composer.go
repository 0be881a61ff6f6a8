package service

import (
	"strings"

	"github.com/LeventeLantos/reminder-sms/internal/model"
)

// TemplateWithLink is the default overdue-care message. The contact phone is
// available to templates as {phone} but this variant does not use it.
const TemplateWithLink = "Hi, this is {scheduler} reaching out on behalf of {practice}! " +
	"{Names} {verb} overdue for important preventative services. " +
	"But don't worry! You can book an appointment now for {names}. " +
	"Let me help you book! {link}"

// selectTemplate picks the message variant for a bucket. Every bucket
// currently resolves to the with-link template.
func selectTemplate(*Bucket) string {
	return TemplateWithLink
}

// Compose renders the message for one client bucket. Missing settings render
// as empty strings.
func Compose(settings *model.PracticeSettings, b *Bucket) string {
	var s model.PracticeSettings
	if settings != nil {
		s = *settings
	}
	names := RenderNames(b.Names)

	r := strings.NewReplacer(
		"{scheduler}", s.SchedulerName,
		"{practice}", s.DisplayName,
		"{Names}", names.Capitalized,
		"{verb}", names.Verb,
		"{names}", names.Lowercase,
		"{link}", s.BookingLink,
		"{phone}", s.ContactPhone,
	)
	return r.Replace(selectTemplate(b))
}
