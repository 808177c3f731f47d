// Package inmemdb keeps repositories in memory, for local development and tests.
package inmemdb

import (
	"sync"

	"github.com/trezcool/schoolbus/core/notification"
)

type (
	DB struct {
		notification *notificationTable
	}

	notificationTable struct {
		sync.RWMutex
		rows  []notification.Notification
		index map[string]int
	}
)

func Open() *DB {
	return &DB{
		notification: &notificationTable{index: make(map[string]int)},
	}
}
