package database

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/schoolbus/assets"
	"github.com/trezcool/schoolbus/core"
)

const (
	migrationsDir = "migrations"
	maintenanceDB = "postgres"

	pingAttempts = 20
	pingStep     = 150 * time.Millisecond
)

var gooseRunFunc = goose.Run

// dsn builds the connection URL of dbName, as the admin role when asked and configured.
func dsn(conf core.DatabaseConfig, dbName string, admin bool) string {
	user := url.UserPassword(conf.User, conf.Password)
	if admin && conf.AdminUser != "" {
		user = url.UserPassword(conf.AdminUser, conf.AdminPassword)
	}

	q := url.Values{"timezone": {"utc"}, "sslmode": {"require"}}
	if conf.DisableTLS {
		q.Set("sslmode", "disable")
	}
	u := url.URL{
		Scheme:   conf.Engine,
		User:     user,
		Host:     conf.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open opens the notification log database without checking it is reachable.
func Open(conf *core.Config) (*sql.DB, error) {
	return sql.Open(conf.Database.Engine, dsn(conf.Database, conf.Database.Name, false))
}

// Connect opens the notification log database and waits for it to accept connections.
func Connect(conf *core.Config) (*sql.DB, error) {
	db, err := Open(conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = waitReady(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// waitReady pings db until it answers, backing off a little more after every attempt.
func waitReady(db *sql.DB) error {
	var err error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(time.Duration(attempt) * pingStep)
	}
	return errors.Wrapf(err, "database not ready after %d attempts", pingAttempts)
}

// ensure runs create unless the exists query returns a row for arg.
func ensure(db *sqlx.DB, exists, arg, create string) error {
	var found bool
	err := db.Get(&found, exists, arg)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return errors.Wrapf(err, "looking up %q", arg)
	}
	if _, err = db.Exec(create); err != nil {
		return errors.Wrapf(err, "creating %q", arg)
	}
	return nil
}

// CreateIfNotExist bootstraps the app role (as admin) and the app database (as the app role).
func CreateIfNotExist(conf *core.Config) error {
	dbc := conf.Database

	admin, err := sqlx.Open(dbc.Engine, dsn(dbc, maintenanceDB, true))
	if err != nil {
		return errors.Wrap(err, "opening maintenance database")
	}
	defer func() { _ = admin.Close() }()
	if err = waitReady(admin.DB); err != nil {
		return err
	}
	if dbc.User != "" {
		create := "CREATE USER " + pq.QuoteIdentifier(dbc.User) + " CREATEDB ENCRYPTED PASSWORD " + pq.QuoteLiteral(dbc.Password)
		if err = ensure(admin, "SELECT true FROM pg_roles WHERE rolname = $1", dbc.User, create); err != nil {
			return errors.Wrap(err, "app role")
		}
	}

	app, err := sqlx.Open(dbc.Engine, dsn(dbc, maintenanceDB, false))
	if err != nil {
		return errors.Wrap(err, "opening maintenance database")
	}
	defer func() { _ = app.Close() }()
	create := "CREATE DATABASE " + pq.QuoteIdentifier(dbc.Name)
	if err = ensure(app, "SELECT true FROM pg_database WHERE datname = $1", dbc.Name, create); err != nil {
		return errors.Wrap(err, "app database")
	}
	return nil
}

// RunMigration runs a goose command (up, down, status, ...) against the embedded migrations.
func RunMigration(db *sql.DB, engine, command string, args ...string) error {
	goose.SetBaseFS(assets.FS)
	if err := goose.SetDialect(engine); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	if err := gooseRunFunc(command, db, migrationsDir, args...); err != nil {
		return errors.Wrapf(err, "running migration %q", command)
	}
	return nil
}

// Migrate applies all pending migrations.
func Migrate(db *sql.DB, engine string) error {
	return RunMigration(db, engine, "up")
}
