package notification

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolbus/core"
)

const emailTemplate = "notification"

var (
	// errors
	ErrNotFound = errors.New("notification not found")

	nowFunc = time.Now
)

type (
	Repository interface {
		Create(ctx context.Context, n Notification) (Notification, error)
		// Query returns the notifications matching filter, newest first unless filter.Ordering says otherwise.
		Query(ctx context.Context, filter QueryFilter) ([]Notification, error)
		GetByID(ctx context.Context, id string) (Notification, error)
		SetStatus(ctx context.Context, id, status string, sentAt *time.Time) error
	}

	// Metrics counts the notifications handled by the Service.
	Metrics interface {
		ObserveNotification(kind, status string, recipients int)
	}

	Option func(*Service)

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		validate *validator.Validate
		log      core.Logger
		metrics  Metrics
	}

	noopMetrics struct{}
)

func (noopMetrics) ObserveNotification(string, string, int) {}

func WithMetrics(m Metrics) Option {
	return func(svc *Service) {
		if m != nil {
			svc.metrics = m
		}
	}
}

func NewService(repo Repository, mailSvc core.EmailService, validate *validator.Validate, logger core.Logger, opts ...Option) *Service {
	svc := &Service{
		repo:     repo,
		mailSvc:  mailSvc,
		validate: validate,
		log:      logger,
		metrics:  noopMetrics{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Send validates nn, logs it as queued, then hands one email per recipient to the email service
// and marks it dispatched. It does not wait for delivery.
func (svc *Service) Send(ctx context.Context, nn NewNotification) (Notification, error) {
	if err := nn.Validate(svc.validate); err != nil {
		return Notification{}, err
	}

	n, err := svc.repo.Create(ctx, Notification{
		ID:         uuid.NewString(),
		Kind:       nn.Kind,
		TripID:     nn.TripID,
		Subject:    nn.Subject,
		Message:    nn.Message,
		Recipients: nn.Recipients,
		Status:     StatusQueued,
		CreatedAt:  nowFunc().UTC(),
	})
	if err != nil {
		return Notification{}, errors.Wrap(err, "creating notification")
	}

	messages := make([]*core.EmailMessage, 0, len(n.Recipients))
	for _, r := range n.Recipients {
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{r.Address()},
			Subject:      n.Subject,
			TemplateName: emailTemplate,
			TemplateData: EmailData{RecipientName: r.Name, Message: n.Message, TripID: n.TripID},
		})
	}
	svc.mailSvc.SendMessages(messages...)

	sentAt := nowFunc().UTC()
	if err := svc.repo.SetStatus(ctx, n.ID, StatusDispatched, &sentAt); err != nil {
		svc.log.Error("marking notification as dispatched", errors.Wrap(err, "setting notification status"), map[string]interface{}{"id": n.ID})
	} else {
		n.Status = StatusDispatched
		n.SentAt = &sentAt
	}
	svc.metrics.ObserveNotification(n.Kind, n.Status, len(n.Recipients))
	return n, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Notification, error) {
	filter.Kind = core.CleanString(filter.Kind, true)
	filter.TripID = core.CleanString(filter.TripID)
	return svc.repo.Query(ctx, filter)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Notification{}, ErrNotFound
	}
	return svc.repo.GetByID(ctx, id)
}
