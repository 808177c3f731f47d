// Package notification sends trip notifications to parents and keeps a log of what was dispatched.
package notification

import (
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schoolbus/core"
)

// Kinds
const (
	KindTripStarted   = "trip_started"
	KindTripDelayed   = "trip_delayed"
	KindTripCompleted = "trip_completed"
	KindAnnouncement  = "announcement"
)

// Statuses
const (
	StatusQueued     = "queued"
	// StatusDispatched means the emails were handed to the email service, which delivers them
	// asynchronously. Delivery failures are only logged.
	StatusDispatched = "dispatched"
	StatusFailed     = "failed"
)

var (
	AllKinds  = []string{KindTripStarted, KindTripDelayed, KindTripCompleted, KindAnnouncement}
	tripKinds = map[string]bool{KindTripStarted: true, KindTripDelayed: true, KindTripCompleted: true}
)

type (
	Recipient struct {
		Name  string `json:"name" validate:"max=100"`
		Email string `json:"email" validate:"required,email"`
	}

	Notification struct {
		ID         string      `json:"id"`
		Kind       string      `json:"kind"`
		TripID     string      `json:"trip_id,omitempty"`
		Subject    string      `json:"subject"`
		Message    string      `json:"message"`
		Recipients []Recipient `json:"recipients"`
		Status     string      `json:"status"`
		CreatedAt  time.Time   `json:"created_at"`
		SentAt     *time.Time  `json:"sent_at,omitempty"` // when the emails were dispatched
	}

	NewNotification struct {
		Kind       string      `json:"kind" validate:"required,notifkind"`
		TripID     string      `json:"trip_id" validate:"omitempty,max=64"`
		Subject    string      `json:"subject" validate:"required,notblank,max=200"`
		Message    string      `json:"message" validate:"required,notblank,max=2000"`
		Recipients []Recipient `json:"recipients" validate:"required,min=1,max=500,dive"`
	}

	// QueryFilter applies AND on its non-zero fields.
	QueryFilter struct {
		Kind     string
		TripID   string
		Limit    int
		Ordering []core.DBOrdering
	}

	// EmailData is the template data of the notification email.
	EmailData struct {
		RecipientName string
		Message       string
		TripID        string
	}
)

func (nn *NewNotification) clean() {
	nn.Kind = core.CleanString(nn.Kind, true)
	nn.TripID = core.CleanString(nn.TripID)
	nn.Subject = core.CleanString(nn.Subject)
	nn.Message = core.CleanString(nn.Message)
	for i, r := range nn.Recipients {
		nn.Recipients[i] = Recipient{Name: core.CleanString(r.Name), Email: core.CleanString(r.Email, true)}
	}
}

func (nn *NewNotification) Validate(validate *validator.Validate) error {
	nn.clean()
	return validate.Struct(nn)
}

// IsTripKind reports whether kind concerns a single trip.
func IsTripKind(kind string) bool {
	return tripKinds[kind]
}

func (r Recipient) Address() mail.Address {
	return mail.Address{Name: r.Name, Address: r.Email}
}
