package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/schoolbus/core"
	"github.com/trezcool/schoolbus/core/notification"
)

var notificationOrderings = map[string]string{
	"created_at": "created_at",
	"kind":       "kind",
	"status":     "status",
	"sent_at":    "sent_at",
}

type (
	notificationRow struct {
		ID         string      `db:"id"`
		Kind       string      `db:"kind"`
		TripID     null.String `db:"trip_id"`
		Subject    string      `db:"subject"`
		Message    string      `db:"message"`
		Recipients null.JSON   `db:"recipients"`
		Status     string      `db:"status"`
		CreatedAt  time.Time   `db:"created_at"`
		SentAt     null.Time   `db:"sent_at"`
	}

	notificationRepository struct {
		db *sqlx.DB
	}
)

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *sql.DB, driverName string) notification.Repository {
	return &notificationRepository{db: sqlx.NewDb(db, driverName)}
}

func toRow(n notification.Notification) (notificationRow, error) {
	recipients, err := json.Marshal(n.Recipients)
	if err != nil {
		return notificationRow{}, errors.Wrap(err, "encoding recipients")
	}
	return notificationRow{
		ID:         n.ID,
		Kind:       n.Kind,
		TripID:     null.NewString(n.TripID, n.TripID != ""),
		Subject:    n.Subject,
		Message:    n.Message,
		Recipients: null.JSONFrom(recipients),
		Status:     n.Status,
		CreatedAt:  n.CreatedAt,
		SentAt:     null.TimeFromPtr(n.SentAt),
	}, nil
}

func (row notificationRow) toNotification() (notification.Notification, error) {
	n := notification.Notification{
		ID:         row.ID,
		Kind:       row.Kind,
		TripID:     row.TripID.String,
		Subject:    row.Subject,
		Message:    row.Message,
		Recipients: []notification.Recipient{},
		Status:     row.Status,
		CreatedAt:  row.CreatedAt.UTC(),
	}
	if row.SentAt.Valid {
		sentAt := row.SentAt.Time.UTC()
		n.SentAt = &sentAt
	}
	if row.Recipients.Valid {
		if err := row.Recipients.Unmarshal(&n.Recipients); err != nil {
			return notification.Notification{}, errors.Wrap(err, "decoding recipients")
		}
	}
	return n, nil
}

func (repo *notificationRepository) Create(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	row, err := toRow(n)
	if err != nil {
		return notification.Notification{}, err
	}
	q := `INSERT INTO notification (id, kind, trip_id, subject, message, recipients, status, created_at, sent_at)
		VALUES (:id, :kind, :trip_id, :subject, :message, :recipients, :status, :created_at, :sent_at)`
	if _, err = repo.db.NamedExecContext(ctx, q, row); err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo *notificationRepository) Query(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.TripID != "" {
		where = append(where, "trip_id = ?")
		args = append(args, filter.TripID)
	}

	q := "SELECT * FROM notification"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + orderBy(filter.Ordering)
	if filter.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	result := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := row.toNotification()
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, nil
}

// orderBy only keeps known columns; the default is newest first.
func orderBy(orderings []core.DBOrdering) string {
	clauses := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if col, ok := notificationOrderings[ord.Field]; ok {
			clauses = append(clauses, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(clauses) == 0 {
		return "created_at DESC"
	}
	return strings.Join(clauses, ", ")
}

func (repo *notificationRepository) GetByID(ctx context.Context, id string) (notification.Notification, error) {
	var row notificationRow
	err := repo.db.GetContext(ctx, &row, repo.db.Rebind("SELECT * FROM notification WHERE id = ?"), id)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "getting notification")
	}
	return row.toNotification()
}

func (repo *notificationRepository) SetStatus(ctx context.Context, id, status string, sentAt *time.Time) error {
	q := repo.db.Rebind("UPDATE notification SET status = ?, sent_at = COALESCE(?, sent_at) WHERE id = ?")
	res, err := repo.db.ExecContext(ctx, q, status, null.TimeFromPtr(sentAt), id)
	if err != nil {
		return errors.Wrap(err, "updating notification status")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notification.ErrNotFound
	}
	return nil
}
