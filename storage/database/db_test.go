package database

import (
	"database/sql"
	"io/fs"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/schoolbus/assets"
	"github.com/trezcool/schoolbus/core"
)

func Test_dsn(t *testing.T) {
	conf := core.DatabaseConfig{
		Engine:        "postgres",
		Host:          "db",
		Port:          5432,
		Name:          "schoolbus",
		User:          "app",
		Password:      "s3cret",
		AdminUser:     "root",
		AdminPassword: "r00t",
	}
	insecure := conf
	insecure.DisableTLS = true
	noAdmin := conf
	noAdmin.AdminUser = ""

	tests := []struct {
		name   string
		conf   core.DatabaseConfig
		dbName string
		admin  bool
		want   string
	}{
		{name: "app", conf: conf, dbName: "schoolbus", want: "postgres://app:s3cret@db:5432/schoolbus?sslmode=require&timezone=utc"},
		{name: "admin", conf: conf, dbName: "postgres", admin: true, want: "postgres://root:r00t@db:5432/postgres?sslmode=require&timezone=utc"},
		{name: "admin falls back to app role", conf: noAdmin, dbName: "postgres", admin: true, want: "postgres://app:s3cret@db:5432/postgres?sslmode=require&timezone=utc"},
		{name: "tls disabled", conf: insecure, dbName: "schoolbus", want: "postgres://app:s3cret@db:5432/schoolbus?sslmode=disable&timezone=utc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dsn(tt.conf, tt.dbName, tt.admin); got != tt.want {
				t.Errorf("dsn() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunMigration(t *testing.T) {
	var gotCommand, gotDir string
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		gotCommand, gotDir = command, dir
		if command == "lol" {
			return errors.New(`"lol": no such command`)
		}
		return nil
	}

	tests := []struct {
		name    string
		engine  string
		command string
		wantErr bool
	}{
		{name: "up", engine: "postgres", command: "up"},
		{name: "unknown dialect", engine: "oracle", command: "up", wantErr: true},
		{name: "unknown command", engine: "postgres", command: "lol", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotCommand = ""
			if err := RunMigration(nil, tt.engine, tt.command); (err != nil) != tt.wantErr {
				t.Errorf("RunMigration() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.engine == "postgres" {
				assert.Equal(t, tt.command, gotCommand)
				assert.Equal(t, migrationsDir, gotDir)
			}
		})
	}
}

func TestMigrationsAreEmbedded(t *testing.T) {
	files, err := fs.Glob(assets.FS, migrationsDir+"/*.sql")
	assert.NoError(t, err)
	assert.NotEmpty(t, files)
}
