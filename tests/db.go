package testutil

import (
	"database/sql"
	"testing"

	"github.com/trezcool/schoolbus/core"
	"github.com/trezcool/schoolbus/storage/database"
)

// PrepareDB connects to the test database configured in the environment (TEST_DATABASE_*),
// creates and migrates it, and empties its tables once the test ends.
// The test is skipped when no database is enabled.
func PrepareDB(t *testing.T) *sql.DB {
	t.Helper()

	conf := core.NewConfig()
	if !conf.Database.Enabled {
		t.Skip("database disabled: set TEST_DATABASE_ENABLED=true to run")
	}
	if err := database.CreateIfNotExist(conf); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	db, err := database.Connect(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.Migrate(db, conf.Database.Engine); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}

	t.Cleanup(func() {
		if _, err := db.Exec("TRUNCATE TABLE notification"); err != nil {
			t.Errorf("PrepareDB() cleanup failed: %v", err)
		}
		_ = db.Close()
	})
	return db
}
