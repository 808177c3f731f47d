package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/schoolbus/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db.notification}
}

func copyNotification(n notification.Notification) notification.Notification {
	n.Recipients = append([]notification.Recipient(nil), n.Recipients...)
	if n.SentAt != nil {
		sentAt := *n.SentAt
		n.SentAt = &sentAt
	}
	return n
}

func (repo *notificationRepository) Create(_ context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.index[n.ID] = len(repo.db.rows)
	repo.db.rows = append(repo.db.rows, copyNotification(n))
	return n, nil
}

func (repo *notificationRepository) Query(_ context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	result := make([]notification.Notification, 0, len(repo.db.rows))
	for _, n := range repo.db.rows {
		if filter.Kind != "" && n.Kind != filter.Kind {
			continue
		}
		if filter.TripID != "" && n.TripID != filter.TripID {
			continue
		}
		result = append(result, copyNotification(n))
	}

	ascending := false
	for _, ord := range filter.Ordering {
		if ord.Field == "created_at" {
			ascending = ord.Ascending
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if ascending {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (repo *notificationRepository) GetByID(_ context.Context, id string) (notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if idx, ok := repo.db.index[id]; ok {
		return copyNotification(repo.db.rows[idx]), nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) SetStatus(_ context.Context, id, status string, sentAt *time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	idx, ok := repo.db.index[id]
	if !ok {
		return notification.ErrNotFound
	}
	repo.db.rows[idx].Status = status
	if sentAt != nil {
		at := *sentAt
		repo.db.rows[idx].SentAt = &at
	}
	return nil
}
