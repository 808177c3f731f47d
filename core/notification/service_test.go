package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolbus/core"
	"github.com/trezcool/schoolbus/core/notification"
	"github.com/trezcool/schoolbus/services/email"
	"github.com/trezcool/schoolbus/storage/database/inmem"
	"github.com/trezcool/schoolbus/tests"
)

type countingMetrics struct {
	calls map[string]int
}

func (m *countingMetrics) ObserveNotification(kind, status string, recipients int) {
	m.calls[kind+"/"+status] += recipients
}

func newService(t *testing.T, repo notification.Repository, logger core.Logger, opts ...notification.Option) *notification.Service {
	t.Helper()
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	notification.InitValidators(validate, translator)
	return notification.NewService(repo, emailsvc.NewConsoleServiceMock(core.NewTestConfig()), validate, logger, opts...)
}

func validNotification() notification.NewNotification {
	return notification.NewNotification{
		Kind:    notification.KindTripDelayed,
		TripID:  "trip-1",
		Subject: "Bus delayed",
		Message: "Bus KIN-001 is 10 minutes late.",
		Recipients: []notification.Recipient{
			{Name: "Mama Ngalula", Email: "ngalula@test.cd"},
			{Name: "Papa Kabila", Email: " Kabila@Test.cd "},
		},
	}
}

func TestService_Send(t *testing.T) {
	repo := inmemdb.NewNotificationRepository(inmemdb.Open())
	metrics := &countingMetrics{calls: make(map[string]int)}
	svc := newService(t, repo, testutil.NewLogger(t), notification.WithMetrics(metrics))

	n, err := svc.Send(context.Background(), validNotification())
	require.NoError(t, err)

	_, err = uuid.Parse(n.ID)
	assert.NoError(t, err)
	assert.Equal(t, notification.StatusDispatched, n.Status)
	require.NotNil(t, n.SentAt)
	assert.Equal(t, "kabila@test.cd", n.Recipients[1].Email)
	assert.Equal(t, 2, metrics.calls["trip_delayed/dispatched"])

	stored, err := svc.GetByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusDispatched, stored.Status)
}

func TestService_Send_validation(t *testing.T) {
	svc := newService(t, inmemdb.NewNotificationRepository(inmemdb.Open()), testutil.NewLogger(t))

	tests := []struct {
		name      string
		modify    func(nn *notification.NewNotification)
		wantField string
	}{
		{
			name:      "unknown kind",
			modify:    func(nn *notification.NewNotification) { nn.Kind = "party" },
			wantField: "kind",
		},
		{
			name:      "trip kind without trip",
			modify:    func(nn *notification.NewNotification) { nn.TripID = "  " },
			wantField: "trip_id",
		},
		{
			name:      "no recipients",
			modify:    func(nn *notification.NewNotification) { nn.Recipients = nil },
			wantField: "recipients",
		},
		{
			name:      "invalid recipient email",
			modify:    func(nn *notification.NewNotification) { nn.Recipients[0].Email = "nope" },
			wantField: "email",
		},
		{
			name:      "missing subject",
			modify:    func(nn *notification.NewNotification) { nn.Subject = "" },
			wantField: "subject",
		},
		{
			name:      "blank message",
			modify:    func(nn *notification.NewNotification) { nn.Message = " \n " },
			wantField: "message",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nn := validNotification()
			tt.modify(&nn)
			_, err := svc.Send(context.Background(), nn)

			var verr validator.ValidationErrors
			if !errors.As(err, &verr) {
				t.Fatalf("Send() error = %v, want validator.ValidationErrors", err)
			}
			fields := make([]string, 0, len(verr))
			for _, fe := range verr {
				fields = append(fields, fe.Field())
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}

	t.Run("announcement without trip", func(t *testing.T) {
		nn := validNotification()
		nn.Kind = notification.KindAnnouncement
		nn.TripID = ""
		_, err := svc.Send(context.Background(), nn)
		assert.NoError(t, err)
	})
}

type failingStatusRepo struct {
	notification.Repository
}

func (failingStatusRepo) SetStatus(context.Context, string, string, *time.Time) error {
	return errors.New("db down")
}

func TestService_Send_statusFailure(t *testing.T) {
	logger := &testutil.RecordingLogger{}
	repo := failingStatusRepo{Repository: inmemdb.NewNotificationRepository(inmemdb.Open())}
	svc := newService(t, repo, logger)

	n, err := svc.Send(context.Background(), validNotification())
	require.NoError(t, err)
	assert.Equal(t, notification.StatusQueued, n.Status)
	assert.Nil(t, n.SentAt)
	assert.Equal(t, []string{"error"}, logger.Levels())
}

func TestService_Query(t *testing.T) {
	svc := newService(t, inmemdb.NewNotificationRepository(inmemdb.Open()), testutil.NewLogger(t))
	ctx := context.Background()

	_, err := svc.Send(ctx, validNotification())
	require.NoError(t, err)
	announcement := validNotification()
	announcement.Kind = notification.KindAnnouncement
	announcement.TripID = ""
	_, err = svc.Send(ctx, announcement)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter notification.QueryFilter
		want   int
	}{
		{name: "all", want: 2},
		{name: "kind is cleaned", filter: notification.QueryFilter{Kind: " ANNOUNCEMENT "}, want: 1},
		{name: "trip", filter: notification.QueryFilter{TripID: "trip-1"}, want: 1},
		{name: "unknown trip", filter: notification.QueryFilter{TripID: "trip-2"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Query(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestService_GetByID(t *testing.T) {
	svc := newService(t, inmemdb.NewNotificationRepository(inmemdb.Open()), testutil.NewLogger(t))

	tests := []struct {
		name string
		id   string
	}{
		{name: "not a uuid", id: "lol"},
		{name: "unknown uuid", id: uuid.NewString()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.GetByID(context.Background(), tt.id); err != notification.ErrNotFound {
				t.Errorf("GetByID() error = %v, want %v", err, notification.ErrNotFound)
			}
		})
	}
}
