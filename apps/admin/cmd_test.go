package main

import (
	"bytes"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolbus/core"
	"github.com/trezcool/schoolbus/core/collection"
	"github.com/trezcool/schoolbus/core/transport"
	"github.com/trezcool/schoolbus/services/restclient"
	"github.com/trezcool/schoolbus/tests"
)

type harness struct {
	api       *testutil.FakeAPI
	conf      *core.Config
	logger    core.Logger
	tokenFile string
}

func setup(t *testing.T) *harness {
	api := testutil.NewFakeAPI(t)
	conf := core.NewTestConfig()
	conf.API.BaseURL = api.URL
	conf.API.Key = testutil.FakeAPIKey
	conf.API.LoginPath = testutil.FakeLoginPath

	api.Seed(transport.Buses,
		map[string]interface{}{"id": "bus-1", "plate_number": "KIN-001", "capacity": 30, "status": transport.StatusActive},
		map[string]interface{}{"id": "bus-2", "plate_number": "KIN-002", "capacity": 45, "status": transport.StatusActive},
		map[string]interface{}{"id": "bus-3", "plate_number": "LUB-301", "capacity": 20, "status": transport.StatusMaintenance},
	)

	return &harness{
		api:       api,
		conf:      conf,
		logger:    testutil.NewLogger(t),
		tokenFile: filepath.Join(t.TempDir(), "schoolbus", "token"),
	}
}

// run executes the CLI as `admin --token-file <tmp> args...`.
func (h *harness) run(args ...string) (string, error) {
	cli := newCommandLine(h.conf, h.logger)
	root := cli.rootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(append([]string{"--token-file", h.tokenFile}, args...))
	err := root.Execute()
	return out.String(), err
}

func (h *harness) login(t *testing.T, token string) {
	t.Helper()
	require.NoError(t, saveToken(h.tokenFile, token))
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    []string
}

func checkErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		if errors.Cause(err) != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err == nil || err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
		}
	case err != nil:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_login(t *testing.T) {
	h := setup(t)
	defer func(orig func(int) ([]byte, error)) { readPasswordFunc = orig }(readPasswordFunc)

	tests := []struct {
		cliTest
		pwd       string
		wantSaved bool
	}{
		{cliTest: cliTest{name: "no username", args: []string{"login"}, wantErrStr: `required flag(s) "username" not set`}},
		{cliTest: cliTest{name: "empty password", args: []string{"login", "-u", testutil.FakeUsername}, wantErr: errEmptyPassword}},
		{cliTest: cliTest{name: "wrong password", args: []string{"login", "-u", testutil.FakeUsername}, wantErrStr: "logging in: 401: invalid credentials"}, pwd: "lol"},
		{
			cliTest:   cliTest{name: "logged in", args: []string{"login", "--username", testutil.FakeUsername}, wantOut: []string{"logged in as admin", "session expires at"}},
			pwd:       testutil.FakePassword,
			wantSaved: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			readPasswordFunc = func(int) ([]byte, error) { return []byte(tt.pwd), nil }

			out, err := h.run(tt.args...)
			checkErr(t, tt.cliTest, err)
			for _, want := range tt.wantOut {
				assert.Contains(t, out, want)
			}

			token, err := loadToken(h.tokenFile)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSaved, token != "")
		})
	}
}

func Test_commandLine_list(t *testing.T) {
	h := setup(t)

	out, err := h.run("list", transport.Buses)
	assert.Equal(t, errNotLoggedIn, err)
	assert.Empty(t, out)

	h.login(t, h.api.Token(t))

	tests := []struct {
		cliTest
		wantAbsent []string
	}{
		{
			cliTest: cliTest{name: "all", args: []string{"list", "buses"}, wantOut: []string{"plate_number", "KIN-001", "KIN-002", "LUB-301", "3 items (Active: 2, Maintenance: 1, Inactive: 0)"}},
		},
		{
			cliTest:    cliTest{name: "by status", args: []string{"list", "buses", "--status", "Maintenance"}, wantOut: []string{"LUB-301", "1 items"}},
			wantAbsent: []string{"KIN-001"},
		},
		{
			cliTest:    cliTest{name: "search", args: []string{"list", "buses", "--search", "kin-002"}, wantOut: []string{"KIN-002"}},
			wantAbsent: []string{"LUB-301"},
		},
		{
			cliTest: cliTest{name: "empty", args: []string{"list", "trips"}, wantOut: []string{"no items", "0 items"}},
		},
		{
			cliTest: cliTest{name: "unknown resource", args: []string{"list", "planes"}, wantErr: transport.ErrUnknownResource},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.run(tt.args...)
			checkErr(t, tt.cliTest, err)
			for _, want := range tt.wantOut {
				assert.Contains(t, out, want)
			}
			for _, absent := range tt.wantAbsent {
				assert.NotContains(t, out, absent)
			}
		})
	}
}

func Test_commandLine_status(t *testing.T) {
	h := setup(t)
	h.login(t, h.api.Token(t))

	out, err := h.run("status", "buses", "Maintenance", "bus-1", "bus-2", "--concurrency", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "chunk 1/2")
	assert.Contains(t, out, "chunk 2/2")
	assert.Contains(t, out, "set buses status to Maintenance: 2 of 2 succeeded")
	for _, it := range h.api.Items(transport.Buses) {
		assert.Equal(t, transport.StatusMaintenance, it["status"])
	}

	t.Run("partial failure", func(t *testing.T) {
		h.api.Fail(http.MethodPatch, "/buses/bus-2", http.StatusInternalServerError)

		out, err := h.run("status", "buses", "Inactive", "bus-1", "bus-2", "bus-3")
		var perr *collection.PartialFailureError
		require.True(t, errors.As(err, &perr), "error = %v", err)
		assert.Equal(t, []string{"bus-2"}, perr.Summary.Failed)
		assert.Contains(t, out, "2 of 3 succeeded, failed: bus-2")

		statuses := make(map[string]interface{})
		for _, it := range h.api.Items(transport.Buses) {
			statuses[fmt.Sprint(it["id"])] = it["status"]
		}
		assert.Equal(t, map[string]interface{}{
			"bus-1": transport.StatusInactive,
			"bus-2": transport.StatusMaintenance,
			"bus-3": transport.StatusInactive,
		}, statuses)
	})

	t.Run("invalid status", func(t *testing.T) {
		_, err := h.run("status", "buses", "Flying", "bus-1")
		var verr *core.ValidationError
		assert.True(t, errors.As(err, &verr), "error = %v", err)
	})

	t.Run("missing ids", func(t *testing.T) {
		_, err := h.run("status", "buses", "Active")
		assert.EqualError(t, err, "requires at least 3 arg(s), only received 2")
	})
}

func Test_commandLine_delete(t *testing.T) {
	h := setup(t)
	h.login(t, h.api.Token(t))

	out, err := h.run("delete", "buses", "bus-1", "bus-3", "bus-9")
	var perr *collection.PartialFailureError
	require.True(t, errors.As(err, &perr), "error = %v", err)
	assert.Equal(t, []string{"bus-9"}, perr.Summary.Failed)
	assert.Contains(t, out, "delete buses: 2 of 3 succeeded, failed: bus-9")

	items := h.api.Items(transport.Buses)
	require.Len(t, items, 1)
	assert.Equal(t, "bus-2", items[0]["id"])
}

func Test_commandLine_session(t *testing.T) {
	t.Run("expired token", func(t *testing.T) {
		h := setup(t)
		h.login(t, h.api.ExpiredToken(t))

		_, err := h.run("list", "buses")
		assert.Equal(t, errNotLoggedIn, err)
	})

	t.Run("token flag", func(t *testing.T) {
		h := setup(t)
		out, err := h.run("--token", h.api.Token(t), "list", "buses")
		require.NoError(t, err)
		assert.Contains(t, out, "KIN-001")
	})

	t.Run("rejected by the API", func(t *testing.T) {
		h := setup(t)
		h.login(t, h.api.Token(t))
		h.api.Fail(http.MethodGet, "/buses", http.StatusUnauthorized)

		_, err := h.run("list", "buses")
		assert.Equal(t, restclient.ErrUnauthorized, errors.Cause(err))
		assert.Equal(t, "session expired: run `admin login`", describe(err))

		_, statErr := os.Stat(h.tokenFile)
		assert.True(t, os.IsNotExist(statErr), "token file should be removed")
	})
}

func Test_commandLine_migrate(t *testing.T) {
	h := setup(t)

	defer func(orig func(*core.Config) (*sql.DB, error)) { connectDBFunc = orig }(connectDBFunc)
	connectDBFunc = func(*core.Config) (*sql.DB, error) {
		return sql.Open("postgres", "postgres://localhost/schoolbus_test?sslmode=disable")
	}

	defer func(orig func(*sql.DB, string, string, ...string) error) { runMigrationFunc = orig }(runMigrationFunc)
	runMigrationFunc = func(_ *sql.DB, _ string, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErrStr: "requires at least 1 arg(s), only received 0"},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "0"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "add_trip_index", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.run(tt.args...)
			checkErr(t, tt, err)
		})
	}
}
